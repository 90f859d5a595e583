// Package template implements placeholder substitution for unit templates.
//
// Substitution is textual replacement only: no evaluation, no conditionals,
// no loops. A placeholder is a ${name} token; every token must resolve, and
// the result is re-scanned after substitution so nothing unresolved slips
// through to the apply collaborator.
package template

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// UnresolvedPlaceholderError names a placeholder token that survived
// substitution.
type UnresolvedPlaceholderError struct {
	Token string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("template placeholder ${%s} was not resolved", e.Token)
}

// Render substitutes every ${name} token in tmpl with inputs[name].
// Render is pure: identical arguments always yield identical output.
func Render(tmpl string, inputs map[string]string) (string, error) {
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		name := placeholderRe.FindStringSubmatch(token)[1]
		if v, ok := inputs[name]; ok {
			return v
		}
		return token
	})

	// Post-render check: a token may be left over because it had no input,
	// or because a substituted value itself looked like a placeholder.
	if m := placeholderRe.FindStringSubmatch(out); m != nil {
		return "", &UnresolvedPlaceholderError{Token: m[1]}
	}
	return out, nil
}

// RenderParams renders each value of a parameter map. Keys pass through
// untouched. A nil map renders to nil.
func RenderParams(params, inputs map[string]string) (map[string]string, error) {
	if params == nil {
		return nil, nil
	}
	rendered := make(map[string]string, len(params))
	for k, v := range params {
		rv, err := Render(v, inputs)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		rendered[k] = rv
	}
	return rendered, nil
}

// Placeholders returns the distinct placeholder names in tmpl, sorted.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		seen[m[1]] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
