package request

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/loykin/reqpipe/internal/interp"
	"github.com/loykin/reqpipe/pkg/env"
)

// JSONBody is a JSON request body kept as the text it was written in, so key order
// and number precision reach the wire untouched. It is only built from valid JSON.
type JSONBody string

// Value decodes the body the way response bodies are decoded (numbers to float64).
func (b JSONBody) Value() any {
	return gjson.Parse(string(b)).Value()
}

// Decode decodes the body keeping numbers as json.Number.
func (b JSONBody) Decode() (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (b JSONBody) MarshalJSON() ([]byte, error) {
	return []byte(b), nil
}

// Render resolves placeholders inside string values. Object keys and everything
// outside string literals are copied byte for byte; a rendered value is written
// back as a JSON string.
func (b JSONBody) Render(vars env.Vars) JSONBody {
	s := string(b)
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return b
	}
	var out strings.Builder
	last := 0
	for i := 0; i < len(s); {
		if s[i] != '"' {
			i++
			continue
		}
		end := literalEnd(s, i)
		lit := s[i:end]
		if !isObjectKey(s, end) && strings.Contains(lit, "{{") {
			var v string
			if err := json.Unmarshal([]byte(lit), &v); err == nil {
				if r := interp.Render(v, vars); r != v {
					out.WriteString(s[last:i])
					out.WriteString(quoteJSON(r))
					last = end
				}
			}
		}
		i = end
	}
	if last == 0 {
		return b
	}
	out.WriteString(s[last:])
	return JSONBody(out.String())
}

// literalEnd returns the index just past the string literal opening at start.
func literalEnd(s string, start int) int {
	for j := start + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(s)
}

func isObjectKey(s string, end int) bool {
	for k := end; k < len(s); k++ {
		switch s[k] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}

func quoteJSON(v string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimSuffix(buf.String(), "\n")
}

// decodeJSONBody keeps valid JSON as a JSONBody and returns anything else as is.
func decodeJSONBody(s string) any {
	if !gjson.Valid(s) {
		return s
	}
	return JSONBody(s)
}
