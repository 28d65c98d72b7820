package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/heroku/color"
)

// Symbol styles a value mentioned in log output. Without color support the
// value is quoted instead so it still stands out.
var Symbol = func(value string) string {
	if color.Enabled() {
		return Key(value)
	}
	return "'" + value + "'"
}

// Map renders key=value pairs in a stable order, styled like Symbol.
var Map = func(values map[string]string, prefix, separator string) string {
	result := ""

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		result += fmt.Sprintf("%s%s=%s%s", prefix, key, values[key], separator)
	}
	result = strings.TrimPrefix(result, prefix)
	result = strings.TrimSuffix(result, separator)

	if color.Enabled() {
		return Key(result)
	}
	return "'" + result + "'"
}

var Key = color.HiBlueString

var Warn = color.New(color.FgYellow, color.Bold).SprintfFunc()

var Error = color.New(color.FgRed, color.Bold).SprintfFunc()
