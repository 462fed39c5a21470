package openai

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compileReplySchema builds a closed object schema over exactly the
// requested field names. Extra keys invented by the model fail validation.
func compileReplySchema(fields []string) (*jsonschema.Schema, error) {
	properties := make(map[string]any, len(fields))
	for _, name := range fields {
		properties[name] = map[string]any{
			"type": []string{"string", "null"},
		}
	}
	document := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString("reply.json", string(raw))
}
