// Package logging implements the logger used by dockerfile-patch. All log
// output is kept away from stdout so that a patched Dockerfile printed to
// stdout stays byte-clean.
package logging

import (
	"fmt"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/heroku/color"
)

const timeFmt = "2006/01/02 15:04:05.000000"

// Colors map to log levels
var colors = [...]int{
	log.DebugLevel: 37, // gray
	log.InfoLevel:  34, // blue
	log.WarnLevel:  33, // yellow
	log.ErrorLevel: 31, // red
	log.FatalLevel: 31, // red
}

var strings = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

// Logger defines behavior required by components that report progress.
type Logger interface {
	Debug(msg string)
	Debugf(fmt string, v ...interface{})

	Info(msg string)
	Infof(fmt string, v ...interface{})

	Warn(msg string)
	Warnf(fmt string, v ...interface{})

	Error(msg string)
	Errorf(fmt string, v ...interface{})

	Writer() io.Writer

	IsVerbose() bool
}

// LogWithWriters is a Logger backed by apex/log that writes errors to a
// dedicated writer and everything else to the primary one.
type LogWithWriters struct {
	log.Logger
	out     io.Writer
	errOut  io.Writer
	handler *handler
}

// NewLogWithWriters creates a logger at info level.
func NewLogWithWriters(stdout, stderr io.Writer) *LogWithWriters {
	lw := &LogWithWriters{
		out:    stdout,
		errOut: stderr,
		handler: &handler{
			out:    stdout,
			errOut: stderr,
			timer:  time.Now,
		},
	}
	lw.Logger.Handler = lw.handler
	lw.Logger.Level = log.InfoLevel
	return lw
}

// Writer returns the raw writer log output goes to, used for streaming
// subprocess output (e.g. docker pull progress) through the logger's
// destination.
func (lw *LogWithWriters) Writer() io.Writer {
	return lw.out
}

// ErrorWriter returns the writer errors go to.
func (lw *LogWithWriters) ErrorWriter() io.Writer {
	return lw.errOut
}

func (lw *LogWithWriters) WantTime(f bool) {
	lw.handler.wantTime = f
}

func (lw *LogWithWriters) WantQuiet(f bool) {
	if f {
		lw.Logger.Level = log.WarnLevel
	}
}

func (lw *LogWithWriters) WantVerbose(f bool) {
	if f {
		lw.Logger.Level = log.DebugLevel
	}
}

func (lw *LogWithWriters) IsVerbose() bool {
	return lw.Logger.Level == log.DebugLevel
}

// handler implements apex/log.Handler with optional timestamps and a padded,
// colorized level tag.
type handler struct {
	sync.Mutex
	out      io.Writer
	errOut   io.Writer
	wantTime bool
	timer    func() time.Time
}

func (h *handler) HandleLog(e *log.Entry) error {
	h.Lock()
	defer h.Unlock()

	w := h.out
	if e.Level >= log.ErrorLevel {
		w = h.errOut
	}

	if h.wantTime {
		ts := h.timer().Format(timeFmt)
		_, _ = fmt.Fprintf(w, "%s %s %s\n", ts, formatLevel(e.Level), e.Message)
		return nil
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", formatLevel(e.Level), e.Message)
	return nil
}

func formatLevel(level log.Level) string {
	if !color.Enabled() {
		return fmt.Sprintf("%-6s", strings[level])
	}
	return fmt.Sprintf("\033[%dm%-6s\033[0m", colors[level], strings[level])
}

// Discard is a Logger that drops everything.
var Discard Logger = NewLogWithWriters(ioutil.Discard, ioutil.Discard)
