package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "last_data_response.json"

// lastDataSchema mirrors the firmware contract: every field except the
// timestamp is mandatory.
const lastDataSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {
      "type": "object",
      "required": ["sample_rate", "flags", "latitude", "longitude", "elevation", "speed", "angle", "fix", "data"],
      "properties": {
        "timestamp":   {"type": ["integer", "null"]},
        "sample_rate": {"type": "number"},
        "flags": {
          "type": "object",
          "required": ["has_gps_fix", "is_clipping"],
          "properties": {
            "has_gps_fix": {"type": "boolean"},
            "is_clipping": {"type": "boolean"}
          }
        },
        "latitude":  {"type": "number"},
        "longitude": {"type": "number"},
        "elevation": {"type": "number"},
        "speed":     {"type": "number"},
        "angle":     {"type": "number"},
        "fix":       {"type": "integer", "minimum": 0, "maximum": 65535},
        "data":      {"type": "array", "items": {"type": "number"}}
      }
    }
  }
}`

// ErrEmptyBody is returned by [Decode] when the response body is empty.
var ErrEmptyBody = errors.New("empty response body")

var payloadSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(lastDataSchema)); err != nil {
		panic(fmt.Sprintf("telemetry: failed to add schema resource: %v", err))
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("telemetry: failed to compile schema: %v", err))
	}
	return schema
}

// Decode parses a node response body of the form {"data": Measurement}.
//
// The body is first validated against the response schema, then unmarshalled.
// Any deviation (malformed JSON, missing field, wrong type) is an error.
func Decode(body []byte) (*Measurement, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := payloadSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var resp LastDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal measurement: %w", err)
	}
	return &resp.Data, nil
}
