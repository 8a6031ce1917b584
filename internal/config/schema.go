package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SourcesSchema is the JSON schema for the sources block. It catches shape
// errors (wrong types, unknown keys) before semantic validation runs.
const SourcesSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["pattern", "collection"],
		"additionalProperties": false,
		"properties": {
			"pattern": {
				"type": "string",
				"minLength": 1
			},
			"collection": {
				"type": "string",
				"minLength": 1,
				"pattern": "^[a-zA-Z0-9_-]+$"
			},
			"extensions": {
				"type": "array",
				"items": {"type": "string"}
			},
			"exclude": {
				"type": "array",
				"items": {"type": "string"}
			}
		}
	}
}`

// ValidateSourcesSchema validates the sources block against SourcesSchema
func ValidateSourcesSchema(sources []SourceConfig) error {
	doc, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(SourcesSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid sources configuration: %s", strings.Join(msgs, "; "))
	}

	return nil
}
