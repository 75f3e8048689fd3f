// Package schema checks decoded hub payloads before they become devices.
package schema

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Name identifies one of the built-in schemas.
type Name string

// DeviceRecord requires the fields discovery depends on: id, label and
// type. Capabilities and attributes are optional and anything else is
// passed through.
const DeviceRecord Name = "device_record"

var documents = map[Name]string{
	DeviceRecord: `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"required": ["id", "label", "type"],
		"properties": {
			"id": {"type": ["string", "number"]},
			"label": {"type": "string"},
			"type": {"type": "string"},
			"capabilities": {"type": "array"},
			"attributes": {"type": ["object", "array"]}
		}
	}`,
}

// Validator holds the compiled built-in schemas. It is read-only after
// construction and safe for concurrent use.
type Validator struct {
	schemas map[Name]*jsonschema.Schema
}

// NewValidator compiles every built-in schema. A schema that does not
// compile is a programming error and panics.
func NewValidator() *Validator {
	v := &Validator{schemas: make(map[Name]*jsonschema.Schema, len(documents))}
	for name, doc := range documents {
		compiled, err := compile(name, doc)
		if err != nil {
			panic(err)
		}
		v.schemas[name] = compiled
	}
	return v
}

func compile(name Name, doc string) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	url := string(name) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return compiled, nil
}

// Validate checks payload against the named schema.
func (v *Validator) Validate(name Name, payload map[string]any) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
