package env

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Variable is a single named value of an Environment. Only enabled variables
// take part in interpolation.
type Variable struct {
	Name    string `yaml:"name" json:"name"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type plainVariable Variable

// UnmarshalYAML defaults Enabled to true when the key is omitted.
func (v *Variable) UnmarshalYAML(node *yaml.Node) error {
	out := plainVariable{Enabled: true}
	if err := node.Decode(&out); err != nil {
		return err
	}
	*v = Variable(out)
	return nil
}

// UnmarshalJSON applies the same default as UnmarshalYAML.
func (v *Variable) UnmarshalJSON(data []byte) error {
	out := plainVariable{Enabled: true}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*v = Variable(out)
	return nil
}

// Environment is a named collection of variables as owned by the collection store.
// It is read-only to the request pipeline.
type Environment struct {
	Name      string     `yaml:"name" json:"name"`
	Variables []Variable `yaml:"variables" json:"variables"`
}

// Vars is the resolved name->value map used for interpolation. Values are never escaped.
type Vars map[string]string

// Vars resolves the enabled variables into a fresh map. Later duplicates win.
func (e Environment) Vars() Vars {
	out := Vars{}
	for _, v := range e.Variables {
		if !v.Enabled || v.Name == "" {
			continue
		}
		out[v.Name] = v.Value
	}
	return out
}

// Lookup returns the value of an enabled variable.
func (e Environment) Lookup(name string) (string, bool) {
	v, ok := e.Vars()[name]
	return v, ok
}

// WithVars returns a copy of the environment whose variables reflect vars.
// Existing entries keep their position; names missing from vars are disabled and new
// names are appended in sorted order so the result is deterministic.
func (e Environment) WithVars(vars Vars) Environment {
	out := Environment{Name: e.Name, Variables: make([]Variable, 0, len(e.Variables)+len(vars))}
	seen := map[string]struct{}{}
	for _, v := range e.Variables {
		nv := v
		if val, ok := vars[v.Name]; ok {
			nv.Value = val
			nv.Enabled = true
		} else {
			nv.Enabled = false
		}
		seen[v.Name] = struct{}{}
		out.Variables = append(out.Variables, nv)
	}
	for _, name := range vars.Names() {
		if _, ok := seen[name]; ok {
			continue
		}
		out.Variables = append(out.Variables, Variable{Name: name, Value: vars[name], Enabled: true})
	}
	return out
}

// Clone returns an independent copy. A nil map clones to an empty one.
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Names returns the variable names in sorted order.
func (v Vars) Names() []string {
	names := make([]string, 0, len(v))
	for k := range v {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both maps hold the same entries.
func (v Vars) Equal(o Vars) bool {
	if len(v) != len(o) {
		return false
	}
	for k, val := range v {
		if ov, ok := o[k]; !ok || ov != val {
			return false
		}
	}
	return true
}

// FromStringMap builds an all-enabled Environment from a plain map.
func FromStringMap(name string, m map[string]string) Environment {
	e := Environment{Name: name}
	for _, k := range Vars(m).Names() {
		e.Variables = append(e.Variables, Variable{Name: k, Value: m[k], Enabled: true})
	}
	return e
}

// Load reads an environment YAML file. Two layouts are accepted:
//
//	name: dev
//	variables:
//	  - name: host
//	    value: localhost
//	    enabled: true
//
// or a flat mapping of name to value, in which case every entry is enabled and the
// environment is named after the file.
func Load(path string) (Environment, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- environment path is provided intentionally by the user
	data, err := os.ReadFile(clean)
	if err != nil {
		return Environment{}, fmt.Errorf("read environment: %w", err)
	}
	return Parse(data, strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean)))
}

// Parse decodes environment YAML, see Load for the accepted layouts.
func Parse(data []byte, fallbackName string) (Environment, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Environment{}, fmt.Errorf("parse environment: %w", err)
	}
	if len(doc.Content) == 0 {
		return Environment{Name: fallbackName}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Environment{}, fmt.Errorf("parse environment: expected a mapping, got %v", root.Kind)
	}
	if hasKey(root, "variables") {
		var e Environment
		if err := root.Decode(&e); err != nil {
			return Environment{}, fmt.Errorf("parse environment: %w", err)
		}
		if e.Name == "" {
			e.Name = fallbackName
		}
		return e, nil
	}
	var flat map[string]string
	if err := root.Decode(&flat); err != nil {
		return Environment{}, fmt.Errorf("parse environment: %w", err)
	}
	return FromStringMap(fallbackName, flat), nil
}

func hasKey(n *yaml.Node, key string) bool {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return true
		}
	}
	return false
}
