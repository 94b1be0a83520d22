// Package project loads and saves scenario projects. JSON documents are
// checked against an embedded JSON Schema before decoding; YAML documents
// are converted through the same decoder.
package project

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/graph"
)

//go:embed schema/project.schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/bissakov/qazcode-rpa-sub000/project.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// New returns an empty project with generated ids and a bare main scenario.
func New(name string) *graph.Project {
	return &graph.Project{
		ID:   uuid.NewString(),
		Name: name,
		Main: graph.Scenario{
			ID:   uuid.NewString(),
			Name: "main",
		},
	}
}

// Decode parses and schema-validates a JSON project document.
func Decode(data []byte) (*graph.Project, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid project document: %w", err)
	}
	var p graph.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return &p, nil
}

// DecodeYAML parses a YAML project document. The document is re-encoded as
// JSON so the same schema applies.
func DecodeYAML(data []byte) (*graph.Project, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	jsonData, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("convert project: %w", err)
	}
	return Decode(jsonData)
}

// normalizeYAML rewrites map[any]any keys to strings so the value can pass
// through encoding/json.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}

// Load reads a project file, dispatching on extension (.json, .yaml, .yml).
func Load(path string) (*graph.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return Decode(data)
	}
}

// Encode serializes a project as indented JSON.
func Encode(p *graph.Project) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Save writes the project to path in the format its extension selects.
func Save(p *graph.Project, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = Encode(p)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
