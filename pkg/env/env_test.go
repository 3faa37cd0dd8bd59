package env

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestEnvironment_VarsOnlyEnabled(t *testing.T) {
	e := Environment{Name: "dev", Variables: []Variable{
		{Name: "id", Value: "42", Enabled: true},
		{Name: "secret", Value: "s3cr3t", Enabled: false},
		{Name: "", Value: "ignored", Enabled: true},
		{Name: "host", Value: "<b>x</b>", Enabled: true},
	}}

	if vars := e.Vars(); !vars.Equal(Vars{"id": "42", "host": "<b>x</b>"}) {
		t.Fatalf("vars %v", vars)
	}
	if _, ok := e.Lookup("secret"); ok {
		t.Fatalf("disabled variable resolved")
	}
}

func TestEnvironment_VarsIsFreshCopy(t *testing.T) {
	e := FromStringMap("dev", map[string]string{"a": "1"})
	v := e.Vars()
	v["a"] = "changed"
	if got, _ := e.Lookup("a"); got != "1" {
		t.Fatalf("environment changed through Vars: %q", got)
	}
}

func TestEnvironment_WithVars(t *testing.T) {
	e := Environment{Name: "dev", Variables: []Variable{
		{Name: "keep", Value: "old", Enabled: true},
		{Name: "gone", Value: "x", Enabled: true},
	}}
	out := e.WithVars(Vars{"keep": "new", "token": "abc", "alpha": "1"})

	want := []Variable{
		{Name: "keep", Value: "new", Enabled: true},
		{Name: "gone", Value: "x", Enabled: false},
		{Name: "alpha", Value: "1", Enabled: true},
		{Name: "token", Value: "abc", Enabled: true},
	}
	if !reflect.DeepEqual(out.Variables, want) {
		t.Fatalf("variables %#v", out.Variables)
	}
	if !out.Vars().Equal(Vars{"keep": "new", "token": "abc", "alpha": "1"}) {
		t.Fatalf("vars %v", out.Vars())
	}
}

func TestVars_CloneAndEqual(t *testing.T) {
	var nilVars Vars
	c := nilVars.Clone()
	if c == nil || len(c) != 0 {
		t.Fatalf("clone of nil = %#v", c)
	}

	v := Vars{"a": "1", "b": "2"}
	cp := v.Clone()
	if !v.Equal(cp) {
		t.Fatalf("clone differs")
	}
	cp["a"] = "x"
	if v.Equal(cp) {
		t.Fatalf("clone shares storage")
	}
	if names := v.Names(); !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Fatalf("names %v", names)
	}
}

func TestVariable_EnabledDefaultsToTrue(t *testing.T) {
	var fromJSON []Variable
	if err := json.Unmarshal([]byte(`[{"name":"a","value":"1"},{"name":"b","value":"2","enabled":false}]`), &fromJSON); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	e, err := Parse([]byte("variables:\n  - name: a\n    value: \"1\"\n  - name: b\n    value: \"2\"\n    enabled: false\n"), "dev")
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	want := []Variable{{Name: "a", Value: "1", Enabled: true}, {Name: "b", Value: "2", Enabled: false}}
	if !reflect.DeepEqual(fromJSON, want) {
		t.Fatalf("json variables %#v", fromJSON)
	}
	if !reflect.DeepEqual(e.Variables, want) {
		t.Fatalf("yaml variables %#v", e.Variables)
	}
}

func TestParse_Layouts(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantName string
		want     Vars
	}{
		{
			name: "structured",
			content: `name: staging
variables:
  - name: host
    value: api.example.com
  - name: token
    value: t0k
    enabled: false
`,
			wantName: "staging",
			want:     Vars{"host": "api.example.com"},
		},
		{
			name:     "flat mapping",
			content:  "host: localhost\nport: \"8080\"\n",
			wantName: "fallback",
			want:     Vars{"host": "localhost", "port": "8080"},
		},
		{
			name:     "empty document",
			content:  "",
			wantName: "fallback",
			want:     Vars{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse([]byte(tt.content), "fallback")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if e.Name != tt.wantName {
				t.Fatalf("name %q, want %q", e.Name, tt.wantName)
			}
			if !e.Vars().Equal(tt.want) {
				t.Fatalf("vars %v, want %v", e.Vars(), tt.want)
			}
		})
	}
}

func TestParse_RejectsSequence(t *testing.T) {
	if _, err := Parse([]byte("- a\n- b\n"), "x"); err == nil {
		t.Fatalf("expected error for a sequence document")
	}
}

func TestLoad_FileNameFallback(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "local.yaml")
	if err := os.WriteFile(p, []byte("id: \"7\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	e, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if e.Name != "local" || !e.Vars().Equal(Vars{"id": "7"}) {
		t.Fatalf("environment %#v", e)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}
