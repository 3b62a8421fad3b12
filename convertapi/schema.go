package convertapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtensionKind classifies the value of a vendor extension ("x-...") field
type ExtensionKind int

const (
	UnknownExtension ExtensionKind = iota
	StringExtension
	ArrayExtension
)

// Extension is a decoded vendor extension value. Only string scalars and
// sequences of strings are kept; anything else is UnknownExtension.
type Extension struct {
	Kind   ExtensionKind
	Value  string
	Values []string
}

// UnmarshalYAML classifies the node once so readers never inspect raw values
func (e *Extension) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == "!!str" {
			e.Kind = StringExtension
			e.Value = node.Value
		}
	case yaml.SequenceNode:
		e.Kind = ArrayExtension
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode && item.ShortTag() == "!!str" && strings.TrimSpace(item.Value) != "" {
				e.Values = append(e.Values, item.Value)
			}
		}
	}
	return nil
}

// Text returns the extension as one comma separated string
func (e Extension) Text() (string, bool) {
	switch e.Kind {
	case StringExtension:
		return e.Value, true
	case ArrayExtension:
		return strings.Join(e.Values, ","), true
	default:
		return "", false
	}
}

// extensions holds every field of an object that the typed struct does not
// declare; only keys starting with "x-" are meaningful.
type extensions map[string]Extension

func (x extensions) text(key string) string {
	if x == nil {
		return ""
	}
	if ext, ok := x[key]; ok {
		if s, ok := ext.Text(); ok {
			return s
		}
	}
	return ""
}

// orderedMap decodes a mapping while remembering key order
type orderedMap[T any] struct {
	keys   []string
	values map[string]T
}

func (m *orderedMap[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	m.values = make(map[string]T, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return err
		}
		if _, dup := m.values[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.values[key] = v
	}
	return nil
}

// schemaType accepts both `type: string` and the 3.1 form `type: [string, "null"]`
type schemaType string

func (t *schemaType) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = schemaType(node.Value)
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Value != "null" {
				*t = schemaType(item.Value)
				break
			}
		}
	}
	return nil
}

// schemaDocument is the narrow slice of an OpenAPI document the extractor reads
type schemaDocument struct {
	Paths      map[string]*pathItem `yaml:"paths"`
	Components struct {
		Schemas map[string]*schema `yaml:"schemas"`
	} `yaml:"components"`
}

type pathItem struct {
	Summary     string     `yaml:"summary"`
	Description string     `yaml:"description"`
	Post        *operation `yaml:"post"`
	Extensions  extensions `yaml:",inline"`
}

type operation struct {
	Summary     string       `yaml:"summary"`
	Description string       `yaml:"description"`
	RequestBody *requestBody `yaml:"requestBody"`
	Extensions  extensions   `yaml:",inline"`
}

type requestBody struct {
	Content orderedMap[mediaType] `yaml:"content"`
}

type mediaType struct {
	Schema *schema `yaml:"schema"`
}

type schema struct {
	Ref        string              `yaml:"$ref"`
	Type       schemaType          `yaml:"type"`
	Format     string              `yaml:"format"`
	Items      *schema             `yaml:"items"`
	Properties orderedMap[*schema] `yaml:"properties"`
	Extensions extensions          `yaml:",inline"`
}

// parseSchemaDocument decodes a JSON or YAML OpenAPI document. JSON bodies go
// through encoding/json so every JSON escape is accepted; YAML flow documents
// that merely start with "{" still decode as YAML.
func parseSchemaDocument(data []byte) (*schemaDocument, error) {
	var doc schemaDocument
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		node, jsonErr := decodeJSONNode(data)
		if jsonErr == nil {
			if err := node.Decode(&doc); err != nil {
				return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
			}
			return &doc, nil
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse OpenAPI document: %w", jsonErr)
		}
		return &doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	return &doc, nil
}

// decodeJSONNode reads a single JSON value into a yaml.Node tree, keeping key order
func decodeJSONNode(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	node, err := jsonValueNode(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON document")
	}
	return node, nil
}

func jsonValueNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				value, err := jsonValueNode(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		case '[':
			node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				item, err := jsonValueNode(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(v.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(v)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

const componentSchemaPrefix = "#/components/schemas/"

// resolve follows local component references. Unresolvable references yield nil.
func (d *schemaDocument) resolve(s *schema) *schema {
	for depth := 0; s != nil && s.Ref != "" && depth < 16; depth++ {
		if !strings.HasPrefix(s.Ref, componentSchemaPrefix) {
			return nil
		}
		s = d.Components.Schemas[strings.TrimPrefix(s.Ref, componentSchemaPrefix)]
	}
	if s != nil && s.Ref != "" {
		return nil
	}
	return s
}
