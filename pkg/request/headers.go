package request

import (
	"encoding/json"
	"strings"
)

// Pair is an ordered key/value entry.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Headers is an ordered header set with case-insensitive lookup.
// Keys keep the spelling they were first set with.
type Headers []Pair

func (h Headers) index(key string) int {
	for i, p := range h {
		if strings.EqualFold(p.Key, key) {
			return i
		}
	}
	return -1
}

// Get returns the value of the first header matching key.
func (h Headers) Get(key string) (string, bool) {
	if i := h.index(key); i >= 0 {
		return h[i].Value, true
	}
	return "", false
}

// Set overwrites the value of an existing header, keeping its key spelling,
// or appends a new one.
func (h *Headers) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		(*h)[i].Value = value
		return
	}
	*h = append(*h, Pair{Key: key, Value: value})
}

// SetDefault sets key only when no header with that name exists.
func (h *Headers) SetDefault(key, value string) {
	if h.index(key) < 0 {
		*h = append(*h, Pair{Key: key, Value: value})
	}
}

// Del removes every header matching key.
func (h *Headers) Del(key string) {
	out := (*h)[:0]
	for _, p := range *h {
		if !strings.EqualFold(p.Key, key) {
			out = append(out, p)
		}
	}
	*h = out
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Map flattens the headers; later duplicates win.
func (h Headers) Map() map[string]string {
	out := make(map[string]string, len(h))
	for _, p := range h {
		out[p.Key] = p.Value
	}
	return out
}

// MarshalJSON encodes the headers as an object, which is what UI consumers expect.
func (h Headers) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Map())
}
