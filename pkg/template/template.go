// Package template renders patch templates against gathered facts.
//
// Templates use Jinja-style syntax: {{ name }} interpolation and
// {% if %}...{% endif %} conditionals. The engine behind the contract is
// pongo2; anything satisfying (source, flat string mapping) -> text could
// be substituted.
package template

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/pkg/errors"
)

// SyntaxError is reported when template source cannot be parsed. It is fatal
// for the invocation: no patch can be produced from a broken template.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid template syntax: %s", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Renderer renders template source against a flat fact mapping. It is pure:
// same inputs, same output, no side effects.
type Renderer struct{}

// Render produces the patch text for the given template source and
// variables. References to undefined variables resolve to the empty string,
// tolerating partial fact sets from unsupported OS families.
func (Renderer) Render(source string, vars map[string]string) (string, error) {
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return "", &SyntaxError{Err: err}
	}

	ctx := pongo2.Context{}
	for k, v := range vars {
		ctx[k] = v
	}

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", errors.Wrap(err, "executing template")
	}
	return out, nil
}
