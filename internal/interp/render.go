// Package interp resolves {{name}} placeholders against a variable map.
//
// Substitution is literal: values are inserted verbatim without HTML or URL
// escaping, and substituted text is never scanned again. A placeholder whose name is
// not present in the map is left in place unchanged.
package interp

import (
	"regexp"
	"strings"

	"github.com/loykin/reqpipe/pkg/env"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render replaces every {{name}} in s with vars[name].
func Render(s string, vars env.Vars) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// RenderValue walks arbitrary structures (map[string]any, []any, map[string]string)
// and renders every string leaf in place. Strings are returned rendered; other
// scalars are returned as is. Maps and slices are mutated and returned.
func RenderValue(in any, vars env.Vars) any {
	switch t := in.(type) {
	case string:
		return Render(t, vars)
	case map[string]any:
		for k, v := range t {
			t[k] = RenderValue(v, vars)
		}
		return t
	case []any:
		for i := range t {
			t[i] = RenderValue(t[i], vars)
		}
		return t
	case map[string]string:
		for k, v := range t {
			t[k] = Render(v, vars)
		}
		return t
	case []string:
		for i := range t {
			t[i] = Render(t[i], vars)
		}
		return t
	default:
		return in
	}
}

// Names returns the placeholder names referenced by s in order of appearance.
func Names(s string) []string {
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// Unresolved returns the referenced names missing from vars, without duplicates.
func Unresolved(s string, vars env.Vars) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, name := range Names(s) {
		if _, ok := vars[name]; ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
