// Package request turns collection request definitions into executable requests and
// models the responses that come back.
package request

import (
	"encoding/json"
	"mime"
	"strings"

	"github.com/loykin/reqpipe/internal/interp"
	"github.com/loykin/reqpipe/pkg/env"
)

// HeaderContentType is the header key Prepare writes when it sets a content type.
const HeaderContentType = "content-type"

// Prepared is an executable request. It stays mutable until it is handed to the
// transport: scripts and interpolation update it in place.
//
// Data holds one of: nil, string, []byte, JSONBody, a decoded JSON value
// (map[string]any, []any, scalars), *Form or *Multipart.
type Prepared struct {
	Method  string
	URL     string
	Headers Headers
	Data    any
	Script  string
}

// Prepare normalizes an item's effective definition (the draft wins over the saved
// request). It performs no I/O, no interpolation and no validation.
func Prepare(item Item) *Prepared {
	return PrepareDefinition(item.Effective())
}

// PrepareDefinition normalizes a single definition.
func PrepareDefinition(def Definition) *Prepared {
	p := &Prepared{
		Method: normalizeMethod(def.Method),
		URL:    def.URL,
		Script: def.Script,
	}
	for _, h := range def.Headers {
		if !h.Enabled || h.Name == "" {
			continue
		}
		p.Headers.Set(h.Name, h.Value)
	}

	switch def.Body.Mode {
	case ModeJSON:
		p.Headers.SetDefault(HeaderContentType, "application/json")
		p.Data = decodeJSONBody(def.Body.JSON)
	case ModeText:
		p.Headers.SetDefault(HeaderContentType, "text/plain")
		p.Data = def.Body.Text
	case ModeXML:
		p.Headers.SetDefault(HeaderContentType, "text/xml")
		p.Data = def.Body.XML
	case ModeFormURLEncoded:
		p.Headers.SetDefault(HeaderContentType, "application/x-www-form-urlencoded")
		p.Data = enabledForm(def.Body.FormURLEncoded)
	case ModeMultipartForm:
		p.Headers.SetDefault(HeaderContentType, "multipart/form-data")
		p.Data = enabledForm(def.Body.MultipartForm)
	case ModeGraphQL:
		p.Headers.SetDefault(HeaderContentType, "application/json")
		gql := map[string]any{"query": ""}
		if def.Body.GraphQL != nil {
			gql["query"] = def.Body.GraphQL.Query
			if strings.TrimSpace(def.Body.GraphQL.Variables) != "" {
				gql["variables"] = DecodeJSONText(def.Body.GraphQL.Variables)
			}
		}
		p.Data = gql
	}

	reshapeMultipart(p)
	return p
}

// reshapeMultipart converts a key/value body into a Multipart payload when the
// declared content type is multipart/form-data, and overwrites the content-type value
// with one carrying the boundary. Bodies without key/value shape are left untouched.
func reshapeMultipart(p *Prepared) {
	if !IsMultipart(p.ContentType()) {
		return
	}
	pairs, ok := toPairs(p.Data)
	if !ok && p.Data != nil {
		return
	}
	mp := NewMultipart(pairs)
	p.Data = mp
	p.Headers.Set(HeaderContentType, mp.ContentType())
}

// IsMultipart reports whether a content-type value names multipart/form-data.
func IsMultipart(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/form-data")
	}
	return mt == "multipart/form-data"
}

// ContentType returns the declared content-type header value.
func (p *Prepared) ContentType() string {
	v, _ := p.Headers.Get(HeaderContentType)
	return v
}

// Interpolate resolves placeholders in the url, header values and body in place.
func (p *Prepared) Interpolate(vars env.Vars) {
	p.URL = interp.Render(p.URL, vars)
	for i := range p.Headers {
		p.Headers[i].Value = interp.Render(p.Headers[i].Value, vars)
	}
	switch d := p.Data.(type) {
	case nil, []byte:
	case *Form:
		renderPairs(d.Fields, vars)
	case *Multipart:
		renderPairs(d.Fields, vars)
	case JSONBody:
		p.Data = d.Render(vars)
	default:
		p.Data = interp.RenderValue(d, vars)
	}
}

// Unresolved lists placeholder names left in the url and header values.
func (p *Prepared) Unresolved(vars env.Vars) []string {
	parts := []string{p.URL}
	for _, h := range p.Headers {
		parts = append(parts, h.Value)
	}
	return interp.Unresolved(strings.Join(parts, "\n"), vars)
}

func renderPairs(pairs []Pair, vars env.Vars) {
	for i := range pairs {
		pairs[i].Value = interp.Render(pairs[i].Value, vars)
	}
}

// Snapshot is a detached copy of the outgoing request, safe to hand to other
// goroutines or to encode for another process.
type Snapshot struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Data    any               `json:"data"`
}

// Snapshot copies the request. Body values without a known shape are round-tripped
// through JSON; when that fails the raw value is used.
func (p *Prepared) Snapshot() Snapshot {
	return Snapshot{
		URL:     p.URL,
		Method:  p.Method,
		Headers: p.Headers.Map(),
		Data:    copyData(p.Data),
	}
}

func copyData(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int64, int32, json.Number:
		return t
	case []byte:
		return append([]byte(nil), t...)
	case JSONBody:
		if v, err := t.Decode(); err == nil {
			return v
		}
		return string(t)
	case *Form:
		return t.Map()
	case *Multipart:
		return t.Map()
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyData(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyData(t[i])
		}
		return out
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return v
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return v
		}
		return out
	}
}

func enabledForm(fields []Field) *Form {
	f := &Form{}
	for _, fl := range fields {
		if !fl.Enabled || fl.Name == "" {
			continue
		}
		f.Fields = append(f.Fields, Pair{Key: fl.Name, Value: fl.Value})
	}
	return f
}

func normalizeMethod(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return "GET"
	}
	return m
}
