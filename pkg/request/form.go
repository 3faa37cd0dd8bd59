package request

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
)

// Form is an ordered application/x-www-form-urlencoded payload.
type Form struct {
	Fields []Pair
}

// Get returns the first value for name.
func (f *Form) Get(name string) (string, bool) {
	for _, p := range f.Fields {
		if p.Key == name {
			return p.Value, true
		}
	}
	return "", false
}

// Set replaces the first value for name or appends it.
func (f *Form) Set(name, value string) {
	for i := range f.Fields {
		if f.Fields[i].Key == name {
			f.Fields[i].Value = value
			return
		}
	}
	f.Fields = append(f.Fields, Pair{Key: name, Value: value})
}

// Map flattens the fields; later duplicates win.
func (f *Form) Map() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, p := range f.Fields {
		out[p.Key] = p.Value
	}
	return out
}

// Encode renders the form in field order.
func (f *Form) Encode() string {
	var buf bytes.Buffer
	for i, p := range f.Fields {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(p.Key))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(p.Value))
	}
	return buf.String()
}

// Multipart is a multipart/form-data payload whose boundary is fixed when it is
// created, so the content-type header can be computed before the body is written.
type Multipart struct {
	Form
	boundary string
}

// NewMultipart creates a payload with a fresh random boundary.
func NewMultipart(fields []Pair) *Multipart {
	return &Multipart{
		Form:     Form{Fields: append([]Pair(nil), fields...)},
		boundary: multipart.NewWriter(io.Discard).Boundary(),
	}
}

// Boundary returns the boundary used by Encode.
func (m *Multipart) Boundary() string { return m.boundary }

// ContentType is the header value matching Encode's output.
func (m *Multipart) ContentType() string {
	return "multipart/form-data; boundary=" + m.boundary
}

// Encode writes every field as a form-data part.
func (m *Multipart) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(m.boundary); err != nil {
		return nil, fmt.Errorf("multipart boundary: %w", err)
	}
	for _, p := range m.Fields {
		if err := w.WriteField(p.Key, p.Value); err != nil {
			return nil, fmt.Errorf("multipart field %q: %w", p.Key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toPairs turns a key/value body into ordered pairs. ok is false when the value has
// no key/value shape.
func toPairs(data any) ([]Pair, bool) {
	switch t := data.(type) {
	case *Form:
		return append([]Pair(nil), t.Fields...), true
	case *Multipart:
		return append([]Pair(nil), t.Fields...), true
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Pair, 0, len(keys))
		for _, k := range keys {
			out = append(out, Pair{Key: k, Value: t[k]})
		}
		return out, true
	case JSONBody:
		return toPairs(t.Value())
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Pair, 0, len(keys))
		for _, k := range keys {
			out = append(out, Pair{Key: k, Value: stringify(t[k])})
		}
		return out, true
	default:
		return nil, false
	}
}
