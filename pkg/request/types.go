package request

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Body modes understood by Prepare.
const (
	ModeNone           = "none"
	ModeJSON           = "json"
	ModeText           = "text"
	ModeXML            = "xml"
	ModeFormURLEncoded = "formUrlEncoded"
	ModeMultipartForm  = "multipartForm"
	ModeGraphQL        = "graphql"
)

// Field is a name/value pair that can be switched off without being removed.
// It is used for headers and form fields. Enabled defaults to true when omitted.
type Field struct {
	Name    string `yaml:"name" json:"name"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type plainField Field

func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	out := plainField{Enabled: true}
	if err := node.Decode(&out); err != nil {
		return err
	}
	*f = Field(out)
	return nil
}

func (f *Field) UnmarshalJSON(data []byte) error {
	out := plainField{Enabled: true}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*f = Field(out)
	return nil
}

// GraphQL holds a graphql body; Variables is JSON text.
type GraphQL struct {
	Query     string `yaml:"query" json:"query"`
	Variables string `yaml:"variables" json:"variables"`
}

// Body is the declarative request payload. Only the member selected by Mode is used.
type Body struct {
	Mode           string   `yaml:"mode" json:"mode"`
	JSON           string   `yaml:"json" json:"json"`
	Text           string   `yaml:"text" json:"text"`
	XML            string   `yaml:"xml" json:"xml"`
	FormURLEncoded []Field  `yaml:"formUrlEncoded" json:"formUrlEncoded"`
	MultipartForm  []Field  `yaml:"multipartForm" json:"multipartForm"`
	GraphQL        *GraphQL `yaml:"graphql" json:"graphql"`
}

// Definition is a raw request as saved in a collection.
type Definition struct {
	Method  string  `yaml:"method" json:"method"`
	URL     string  `yaml:"url" json:"url"`
	Headers []Field `yaml:"headers" json:"headers"`
	Body    Body    `yaml:"body" json:"body"`
	// Script may define onRequest(req) and/or onResponse(res).
	Script string `yaml:"script" json:"script"`
}

// Draft is an unsaved, in-progress variant of an item's request.
type Draft struct {
	Request *Definition `yaml:"request" json:"request"`
}

// Item is a collection entry: the saved request plus an optional draft.
type Item struct {
	UID     string      `yaml:"uid" json:"uid"`
	Name    string      `yaml:"name" json:"name"`
	Request *Definition `yaml:"request" json:"request"`
	Draft   *Draft      `yaml:"draft" json:"draft"`
}

// Effective returns the definition to execute: the draft when present, the saved
// request otherwise, or an empty definition.
func (i Item) Effective() Definition {
	if i.Draft != nil && i.Draft.Request != nil {
		return *i.Draft.Request
	}
	if i.Request != nil {
		return *i.Request
	}
	return Definition{}
}

// LoadItem reads a request item from a YAML (or JSON) file.
// A file holding a bare definition (method/url at the top level) is accepted too.
func LoadItem(path string) (Item, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- item path is provided intentionally by the user
	data, err := os.ReadFile(clean)
	if err != nil {
		return Item{}, fmt.Errorf("read request item: %w", err)
	}
	var it Item
	if err := yaml.Unmarshal(data, &it); err != nil {
		return Item{}, fmt.Errorf("parse request item: %w", err)
	}
	if it.Request == nil && it.Draft == nil {
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return Item{}, fmt.Errorf("parse request definition: %w", err)
		}
		it.Request = &def
	}
	if strings.TrimSpace(it.UID) == "" {
		it.UID = strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))
	}
	return it, nil
}
