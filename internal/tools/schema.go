package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/itsuki0/term-assistant/internal/llm"
)

// ReflectSchema derives a tool input schema from an argument struct. Field
// names come from json tags, descriptions from jsonschema_description tags,
// and fields without omitempty are required.
func ReflectSchema[T any]() (llm.ToolSchema, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	var zero T
	data, err := json.Marshal(r.Reflect(&zero))
	if err != nil {
		return llm.ToolSchema{}, fmt.Errorf("marshal schema: %w", err)
	}
	wire, err := llm.ParseValue(data)
	if err != nil {
		return llm.ToolSchema{}, err
	}
	return llm.SchemaFromWire(wire)
}

func toolSpec[T any](id ID, description string) (llm.ToolSpec, error) {
	schema, err := ReflectSchema[T]()
	if err != nil {
		return llm.ToolSpec{}, fmt.Errorf("%s schema: %w", id, err)
	}
	return llm.ToolSpec{Name: id.String(), Description: description, InputSchema: schema}, nil
}
