package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// classificationSchema is what the language model's reply must parse as
// before it is trusted. Anything else counts as a malformed response.
const classificationSchema = `{
	"type": "object",
	"required": ["intent", "confidence"],
	"properties": {
		"intent": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"entities": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type", "value"],
				"properties": {
					"type": {"type": "string"},
					"value": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

type classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Entities   []struct {
		Type       string  `json:"type"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

var schemaLoader = gojsonschema.NewStringLoader(classificationSchema)

// parseClassification validates the raw payload against the schema and
// decodes it. A schema violation is a malformed response, not an error the
// caller should retry.
func parseClassification(raw []byte) (*classification, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("classification not valid JSON: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("classification schema violation: %v", result.Errors())
	}

	var c classification
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("classification decode: %w", err)
	}
	return &c, nil
}
