package request

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/loykin/reqpipe/pkg/env"
)

func TestPrepare_DraftTakesPrecedence(t *testing.T) {
	item := Item{
		UID:     "i1",
		Request: &Definition{Method: "get", URL: "https://saved"},
		Draft:   &Draft{Request: &Definition{Method: "post", URL: "https://draft"}},
	}
	p := Prepare(item)
	if p.Method != "POST" || p.URL != "https://draft" {
		t.Fatalf("expected draft request, got %s %s", p.Method, p.URL)
	}

	item.Draft = nil
	p = Prepare(item)
	if p.Method != "GET" || p.URL != "https://saved" {
		t.Fatalf("expected saved request, got %s %s", p.Method, p.URL)
	}

	p = Prepare(Item{})
	if p.Method != "GET" || p.URL != "" {
		t.Fatalf("expected empty GET, got %s %q", p.Method, p.URL)
	}
}

func TestPrepare_HeadersOrderedAndEnabledOnly(t *testing.T) {
	p := PrepareDefinition(Definition{
		URL: "https://x",
		Headers: []Field{
			{Name: "X-First", Value: "1", Enabled: true},
			{Name: "X-Off", Value: "no", Enabled: false},
			{Name: "X-Second", Value: "2", Enabled: true},
			{Name: "x-first", Value: "override", Enabled: true},
		},
	})
	want := Headers{{Key: "X-First", Value: "override"}, {Key: "X-Second", Value: "2"}}
	if !reflect.DeepEqual(p.Headers, want) {
		t.Fatalf("headers mismatch: %#v", p.Headers)
	}
}

func TestPrepare_BodyModes(t *testing.T) {
	tests := []struct {
		name   string
		body   Body
		wantCT string
		check  func(t *testing.T, data any)
	}{
		{
			name:   "json kept as text",
			body:   Body{Mode: ModeJSON, JSON: `{"b":"{{x}}","a":1}`},
			wantCT: "application/json",
			check: func(t *testing.T, data any) {
				if data != JSONBody(`{"b":"{{x}}","a":1}`) {
					t.Fatalf("unexpected json data %#v", data)
				}
			},
		},
		{
			name:   "invalid json kept raw",
			body:   Body{Mode: ModeJSON, JSON: `{"a": {{n}}}`},
			wantCT: "application/json",
			check: func(t *testing.T, data any) {
				if data != `{"a": {{n}}}` {
					t.Fatalf("expected raw string, got %#v", data)
				}
			},
		},
		{
			name:   "text",
			body:   Body{Mode: ModeText, Text: "hello"},
			wantCT: "text/plain",
			check: func(t *testing.T, data any) {
				if data != "hello" {
					t.Fatalf("got %#v", data)
				}
			},
		},
		{
			name:   "xml",
			body:   Body{Mode: ModeXML, XML: "<a/>"},
			wantCT: "text/xml",
			check: func(t *testing.T, data any) {
				if data != "<a/>" {
					t.Fatalf("got %#v", data)
				}
			},
		},
		{
			name: "form urlencoded",
			body: Body{Mode: ModeFormURLEncoded, FormURLEncoded: []Field{
				{Name: "a", Value: "1", Enabled: true},
				{Name: "b", Value: "2", Enabled: false},
			}},
			wantCT: "application/x-www-form-urlencoded",
			check: func(t *testing.T, data any) {
				f, ok := data.(*Form)
				if !ok || f.Encode() != "a=1" {
					t.Fatalf("unexpected form %#v", data)
				}
			},
		},
		{
			name:   "graphql",
			body:   Body{Mode: ModeGraphQL, GraphQL: &GraphQL{Query: "{ me }", Variables: `{"id":1}`}},
			wantCT: "application/json",
			check: func(t *testing.T, data any) {
				m := data.(map[string]any)
				if m["query"] != "{ me }" || !reflect.DeepEqual(m["variables"], map[string]any{"id": float64(1)}) {
					t.Fatalf("unexpected graphql body %#v", m)
				}
			},
		},
		{
			name:   "none",
			body:   Body{Mode: ModeNone},
			wantCT: "",
			check: func(t *testing.T, data any) {
				if data != nil {
					t.Fatalf("expected nil data, got %#v", data)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PrepareDefinition(Definition{Method: "POST", URL: "https://x", Body: tt.body})
			if got := p.ContentType(); got != tt.wantCT {
				t.Fatalf("content-type = %q, want %q", got, tt.wantCT)
			}
			tt.check(t, p.Data)
		})
	}
}

func TestPrepare_DeclaredContentTypeIsKept(t *testing.T) {
	p := PrepareDefinition(Definition{
		Headers: []Field{{Name: "Content-Type", Value: "application/vnd.api+json", Enabled: true}},
		Body:    Body{Mode: ModeJSON, JSON: `{}`},
	})
	if len(p.Headers) != 1 || p.Headers[0].Key != "Content-Type" || p.Headers[0].Value != "application/vnd.api+json" {
		t.Fatalf("unexpected headers %#v", p.Headers)
	}
}

func TestPrepare_MultipartReshaping(t *testing.T) {
	p := PrepareDefinition(Definition{
		Method: "POST",
		URL:    "https://x/upload",
		Body: Body{Mode: ModeMultipartForm, MultipartForm: []Field{
			{Name: "a", Value: "1", Enabled: true},
			{Name: "b", Value: "2", Enabled: true},
		}},
	})
	mp, ok := p.Data.(*Multipart)
	if !ok {
		t.Fatalf("expected *Multipart, got %T", p.Data)
	}
	if v, _ := mp.Get("a"); v != "1" {
		t.Fatalf("missing field a")
	}
	if v, _ := mp.Get("b"); v != "2" {
		t.Fatalf("missing field b")
	}

	mt, params, err := mime.ParseMediaType(p.ContentType())
	if err != nil || mt != "multipart/form-data" || params["boundary"] == "" {
		t.Fatalf("expected multipart content type with boundary, got %q (%v)", p.ContentType(), err)
	}
	if params["boundary"] != mp.Boundary() {
		t.Fatalf("header boundary %q != payload boundary %q", params["boundary"], mp.Boundary())
	}

	body, err := mp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := readParts(t, body, mp.Boundary())
	if !reflect.DeepEqual(got, map[string]string{"a": "1", "b": "2"}) {
		t.Fatalf("unexpected parts %v", got)
	}
}

func TestPrepare_MultipartFromDeclaredHeaderKeepsKey(t *testing.T) {
	p := PrepareDefinition(Definition{
		Headers: []Field{{Name: "Content-Type", Value: "multipart/form-data; boundary=old", Enabled: true}},
		Body:    Body{Mode: ModeJSON, JSON: `{"b":"2","a":1}`},
	})
	if len(p.Headers) != 1 || p.Headers[0].Key != "Content-Type" {
		t.Fatalf("expected a single Content-Type header, got %#v", p.Headers)
	}
	if strings.Contains(p.Headers[0].Value, "boundary=old") {
		t.Fatalf("expected boundary to be replaced, got %q", p.Headers[0].Value)
	}
	mp := p.Data.(*Multipart)
	want := []Pair{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	if !reflect.DeepEqual(mp.Fields, want) {
		t.Fatalf("fields %#v", mp.Fields)
	}
}

func TestPrepare_MultipartWithScalarBodyPassesThrough(t *testing.T) {
	p := PrepareDefinition(Definition{
		Headers: []Field{{Name: "content-type", Value: "multipart/form-data", Enabled: true}},
		Body:    Body{Mode: ModeText, Text: "not a form"},
	})
	if p.Data != "not a form" {
		t.Fatalf("expected raw body, got %#v", p.Data)
	}
	if p.ContentType() != "multipart/form-data" {
		t.Fatalf("content-type changed: %q", p.ContentType())
	}
}

func TestPrepared_Interpolate(t *testing.T) {
	vars := env.Vars{"id": "42", "tok": "abc", "name": "<x>"}
	p := &Prepared{
		Method:  "POST",
		URL:     "https://x/{{id}}",
		Headers: Headers{{Key: "Authorization", Value: "Bearer {{tok}}"}, {Key: "{{id}}", Value: "k"}},
		Data:    map[string]any{"n": "{{name}}", "list": []any{"{{id}}"}},
	}
	p.Interpolate(vars)
	if p.URL != "https://x/42" {
		t.Fatalf("url %q", p.URL)
	}
	if p.Headers[0].Value != "Bearer abc" || p.Headers[1].Key != "{{id}}" {
		t.Fatalf("headers %#v", p.Headers)
	}
	want := map[string]any{"n": "<x>", "list": []any{"42"}}
	if !reflect.DeepEqual(p.Data, want) {
		t.Fatalf("data %#v", p.Data)
	}

	mp := NewMultipart([]Pair{{Key: "f", Value: "{{id}}"}})
	p2 := &Prepared{Data: mp}
	p2.Interpolate(vars)
	if v, _ := mp.Get("f"); v != "42" {
		t.Fatalf("multipart field not rendered: %q", v)
	}

	p3 := &Prepared{Data: "id={{id}}&missing={{missing}}"}
	p3.Interpolate(vars)
	if p3.Data != "id=42&missing={{missing}}" {
		t.Fatalf("string body %q", p3.Data)
	}
}

func TestPrepared_SnapshotIsDetached(t *testing.T) {
	data := map[string]any{"a": []any{"x"}}
	p := &Prepared{Method: "PUT", URL: "u", Headers: Headers{{Key: "k", Value: "v"}}, Data: data}
	s := p.Snapshot()

	data["a"].([]any)[0] = "changed"
	p.Headers[0].Value = "changed"

	if s.Headers["k"] != "v" {
		t.Fatalf("snapshot headers not detached")
	}
	if s.Data.(map[string]any)["a"].([]any)[0] != "x" {
		t.Fatalf("snapshot data not detached")
	}
}

type opaque struct {
	Ch chan int
}

func TestPrepared_SnapshotFallsBackToRawValue(t *testing.T) {
	v := opaque{Ch: make(chan int)}
	p := &Prepared{Data: v}
	if got := p.Snapshot().Data; !reflect.DeepEqual(got, v) {
		t.Fatalf("expected raw value fallback, got %#v", got)
	}

	type point struct {
		X int `json:"x"`
	}
	p.Data = point{X: 3}
	if got := p.Snapshot().Data; !reflect.DeepEqual(got, map[string]any{"x": float64(3)}) {
		t.Fatalf("expected round-tripped value, got %#v", got)
	}
}

func TestNewResponse(t *testing.T) {
	h := http.Header{}
	h.Add("Content-Type", "application/json")
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	r := NewResponse(404, "404 Not Found", h, []byte(`{"error":"missing"}`), 0)

	if r.StatusText != "Not Found" || r.IsSuccess() {
		t.Fatalf("unexpected status %d %q", r.Status, r.StatusText)
	}
	if r.Header("CONTENT-TYPE") != "application/json" || r.Headers["set-cookie"] != "a=1, b=2" {
		t.Fatalf("headers %#v", r.Headers)
	}
	if !reflect.DeepEqual(r.Data, map[string]any{"error": "missing"}) {
		t.Fatalf("data %#v", r.Data)
	}
	res := r.Result()
	if res.Status != 404 || res.StatusText != "Not Found" {
		t.Fatalf("result %#v", res)
	}

	if got := NewResponse(200, "", nil, []byte("plain"), 0); got.StatusText != "OK" || got.Data != "plain" {
		t.Fatalf("fallback status text or data wrong: %#v", got)
	}
}

func readParts(t *testing.T, body []byte, boundary string) map[string]string {
	t.Helper()
	out := map[string]string{}
	r := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		b, _ := io.ReadAll(part)
		out[part.FormName()] = string(b)
	}
}
