package wire

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// eventSchemaJSON constrains inbound frames to the shapes the backend emits.
// A frame is either a typed event or a bare error object. Score bounds come
// from the backend's 0-10 rubric.
const eventSchemaJSON = `{
	"oneOf": [
		{
			"type": "object",
			"properties": {
				"type": {"enum": ["question", "end"]},
				"content": {"type": "string"}
			},
			"required": ["type"],
			"additionalProperties": false
		},
		{
			"type": "object",
			"properties": {
				"type": {"const": "evaluation"},
				"content": {
					"type": "object",
					"properties": {
						"question": {"type": "string"},
						"human_answer": {"type": "string"},
						"llm_actual_answer": {"type": "string"},
						"score": {"type": "integer", "minimum": 0, "maximum": 10},
						"reason": {"type": "string"}
					},
					"required": ["score"]
				}
			},
			"required": ["type", "content"],
			"additionalProperties": false
		},
		{
			"type": "object",
			"properties": {
				"error": {"type": "string"}
			},
			"required": ["error"],
			"additionalProperties": false
		}
	]
}`

var (
	eventSchemaOnce sync.Once
	eventSchema     *jsonschema.Schema
	eventSchemaErr  error
)

func compiledEventSchema() (*jsonschema.Schema, error) {
	eventSchemaOnce.Do(func() {
		var parsed any
		if err := json.Unmarshal([]byte(eventSchemaJSON), &parsed); err != nil {
			eventSchemaErr = fmt.Errorf("parse event schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		const schemaURL = "schema://intervo-event.json"
		if err := c.AddResource(schemaURL, parsed); err != nil {
			eventSchemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		eventSchema, eventSchemaErr = c.Compile(schemaURL)
	})
	return eventSchema, eventSchemaErr
}

// validateFrame checks a raw inbound frame against the event schema.
func validateFrame(data []byte) error {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("invalid JSON frame: %w", err)
	}

	schema, err := compiledEventSchema()
	if err != nil {
		return err
	}

	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("frame failed validation: %w", err)
	}
	return nil
}
