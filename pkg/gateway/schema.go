package gateway

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// collaborateSchema validates inbound collaborate payloads before they
// reach the engine. Unknown shapes are rejected at the boundary.
const collaborateSchema = `{
	"type": "object",
	"additionalProperties": false,
	"required": ["prompt"],
	"properties": {
		"prompt": {"type": "string", "minLength": 1},
		"context": {"type": "array", "items": {"type": "string"}},
		"requirements": {"type": "array", "items": {"type": "string"}},
		"constraints": {"type": "array", "items": {"type": "string"}},
		"preferred_participants": {"type": "array", "items": {"type": "string"}},
		"max_rounds": {"type": "integer", "minimum": 1, "maximum": 50},
		"time_limit_ms": {"type": "integer", "minimum": 0},
		"consensus_threshold": {"type": "number", "minimum": 0, "maximum": 100},
		"token_budget": {"type": "integer", "minimum": 0},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "critical"]}
	}
}`

var collaborateSchemaLoader = gojsonschema.NewStringLoader(collaborateSchema)

// ValidateCollaboratePayload checks a raw JSON payload against the
// collaborate request schema.
func ValidateCollaboratePayload(payload []byte) error {
	result, err := gojsonschema.Validate(collaborateSchemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid collaborate payload: %s", errs[0].String())
		}
		return fmt.Errorf("invalid collaborate payload")
	}
	return nil
}
