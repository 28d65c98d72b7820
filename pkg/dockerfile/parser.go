package dockerfile

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNoBaseImage is reported when a Dockerfile contains no FROM instruction.
var ErrNoBaseImage = errors.New("no base image instruction (FROM) found")

// Parse segments raw Dockerfile text around its first FROM instruction and
// extracts the base image reference.
func Parse(raw string) (*BuildFile, error) {
	lines := splitLines(raw)

	fromIdx := -1
	for i, ln := range lines {
		if _, ok := instructionArgs(ln, "FROM"); ok {
			fromIdx = i
			break
		}
	}
	if fromIdx < 0 {
		return nil, ErrNoBaseImage
	}

	args, _ := instructionArgs(lines[fromIdx], "FROM")
	rawRef := imageFromArgs(args)
	if rawRef == "" {
		return nil, errors.Wrapf(ErrNoBaseImage, "FROM instruction has no image argument")
	}

	image, err := ParseImageReference(rawRef)
	if err != nil {
		return nil, err
	}

	return &BuildFile{
		preamble:  lines[:fromIdx],
		fromLine:  lines[fromIdx],
		remainder: lines[fromIdx+1:],
		image:     image,
	}, nil
}

// splitLines splits raw text into lines, keeping each line's terminator so
// the original bytes can be reassembled exactly.
func splitLines(raw string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			lines = append(lines, raw[start:i+1])
			start = i + 1
		}
	}
	if start < len(raw) {
		lines = append(lines, raw[start:])
	}
	return lines
}

// instructionArgs reports whether a raw line is the given Dockerfile
// instruction (case-insensitive, leading whitespace tolerated) and returns
// its argument text.
func instructionArgs(line, keyword string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) <= len(keyword) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(keyword)], keyword) {
		return "", false
	}
	rest := trimmed[len(keyword):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// imageFromArgs extracts the image reference from FROM's argument text,
// skipping flags such as --platform and ignoring any stage alias.
func imageFromArgs(args string) string {
	for _, field := range strings.Fields(args) {
		if strings.HasPrefix(field, "--") {
			continue
		}
		return field
	}
	return ""
}
