// Package facts models the system facts gathered from a probed image.
//
// The fact vocabulary is closed: probe scripts may print anything, but only
// the four known fact names survive parsing. Missing facts resolve to
// "unknown" so templates can tolerate exotic base images.
package facts

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dockerfile-patch/dockerfile-patch/pkg/logging"
)

// Unknown is the value of every fact a probe script did not report.
const Unknown = "unknown"

// ErrNoFacts is reported when probe output yields no usable fact at all.
var ErrNoFacts = errors.New("no facts found in probe output")

// Facts is the closed set of facts describing a probed image.
type Facts struct {
	OSFamily        string `yaml:"osfamily"`
	OperatingSystem string `yaml:"operatingsystem"`
	KernelRelease   string `yaml:"kernelrelease"`
	Architecture    string `yaml:"architecture"`
}

// Vars returns the facts as the flat string mapping consumed by templates.
func (f Facts) Vars() map[string]string {
	return map[string]string{
		"osfamily":        f.OSFamily,
		"operatingsystem": f.OperatingSystem,
		"kernelrelease":   f.KernelRelease,
		"architecture":    f.Architecture,
	}
}

// Parse reads probe output into Facts. The output is expected to be a YAML
// document of "key: value" lines; when the document as a whole is malformed,
// parseable lines are salvaged individually and the rest are skipped with a
// warning. Keys outside the fact vocabulary are ignored. An output with no
// usable fact is an error.
func Parse(output string, logger logging.Logger) (Facts, error) {
	values := map[string]string{}

	if err := yaml.Unmarshal([]byte(output), &values); err != nil {
		logger.Warnf("probe output is not a valid YAML document, salvaging line by line: %s", err)
		values = salvageLines(output, logger)
	}

	facts := Facts{
		OSFamily:        Unknown,
		OperatingSystem: Unknown,
		KernelRelease:   Unknown,
		Architecture:    Unknown,
	}

	found := false
	for key, set := range map[string]*string{
		"osfamily":        &facts.OSFamily,
		"operatingsystem": &facts.OperatingSystem,
		"kernelrelease":   &facts.KernelRelease,
		"architecture":    &facts.Architecture,
	} {
		if value, ok := values[key]; ok && value != "" {
			*set = value
			found = true
		}
	}

	if !found {
		return Facts{}, ErrNoFacts
	}
	return facts, nil
}

func salvageLines(output string, logger logging.Logger) map[string]string {
	values := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" {
			logger.Warnf("skipping malformed fact line %q", line)
			continue
		}
		values[key] = value
	}
	return values
}
