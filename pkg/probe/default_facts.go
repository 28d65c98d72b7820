package probe

import (
	_ "embed"
)

// DefaultFactScriptName is the staged name of the embedded fact script.
const DefaultFactScriptName = "default-facts.sh"

//go:embed data/default-facts.sh
var defaultFactsScript string

// DefaultFactScript returns the embedded fact script used when the caller
// supplies none. It reports the standard fact vocabulary for the common
// Linux families.
func DefaultFactScript() Script {
	return Script{Name: DefaultFactScriptName, Contents: defaultFactsScript}
}
