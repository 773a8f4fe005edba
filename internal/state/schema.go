package state

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "state.schema.json"

// stateSchema describes the dashboard document. Records may carry extra
// fields; the listed ones must be strings.
const stateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["ts", "type", "src_path"],
        "properties": {
          "ts": {"type": "string"},
          "type": {"type": "string"},
          "src_path": {"type": "string"},
          "dest_path": {"type": "string"},
          "ext_before": {"type": "string"},
          "ext_after": {"type": "string"}
        }
      }
    },
    "alerts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["ts", "rule", "severity", "details"],
        "properties": {
          "ts": {"type": "string"},
          "rule": {"type": "string"},
          "severity": {"type": "string"},
          "details": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString(schemaURL, stateSchema)

func validate(doc any) error {
	return compiledSchema.Validate(doc)
}
