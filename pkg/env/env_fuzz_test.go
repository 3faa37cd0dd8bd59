package env

import "testing"

func FuzzParse(f *testing.F) {
	seeds := []string{
		"",
		"a: b\n",
		"name: dev\nvariables:\n  - name: x\n    value: y\n",
		"variables: 3\n",
		"- a\n",
		"{",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		e, err := Parse([]byte(s), "fallback")
		if err != nil {
			return
		}
		if e.Name == "" {
			t.Fatalf("parsed environment without a name from %q", s)
		}
		vars := e.Vars()
		if !e.WithVars(vars).Vars().Equal(vars) {
			t.Fatalf("WithVars round trip changed variables for %q", s)
		}
	})
}
