package learnpath

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "learning_path.schema.json"

// MinDifficulty and MaxDifficulty bound Node.DifficultyLevel.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// Schema returns the JSON schema of a node array.
func Schema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "array",
		"items": map[string]any{
			"type":     "object",
			"required": []any{"node_id", "title", "description", "difficulty_level", "prerequisites"},
			"properties": map[string]any{
				"node_id":     map[string]any{"type": "string", "minLength": 1},
				"title":       map[string]any{"type": "string", "minLength": 1},
				"description": map[string]any{"type": "string"},
				"difficulty_level": map[string]any{
					"type":    "integer",
					"minimum": MinDifficulty,
					"maximum": MaxDifficulty,
				},
				"prerequisites": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
		},
	}
}

// SchemaJSON renders Schema as indented JSON for prompts.
func SchemaJSON() string {
	b, _ := json.MarshalIndent(Schema(), "", "  ")
	return string(b)
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(Schema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaResource, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaResource)
	})
	return compiled, compileErr
}

// ValidateJSON checks that data is a JSON node array matching Schema.
func ValidateJSON(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("unmarshal data: trailing content after JSON value")
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
