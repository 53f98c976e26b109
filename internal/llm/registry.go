package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema ToolSchema
}

// ToolSchema is the object schema of a tool's input.
type ToolSchema struct {
	Type       string
	Properties map[string]Property
	Required   []string
}

// Property describes one member of a tool input object.
type Property struct {
	Type        string
	Description string
	Enum        []string
}

// Wire renders the schema as the JSON object the model service expects.
func (s ToolSchema) Wire() Value {
	props := make(map[string]Value, len(s.Properties))
	for name, p := range s.Properties {
		fields := map[string]Value{"type": String(p.Type)}
		if p.Description != "" {
			fields["description"] = String(p.Description)
		}
		if len(p.Enum) > 0 {
			enum := make([]Value, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = String(e)
			}
			fields["enum"] = Array(enum...)
		}
		props[name] = Object(fields)
	}
	required := make([]Value, len(s.Required))
	for i, r := range s.Required {
		required[i] = String(r)
	}
	return Object(map[string]Value{
		"type":       String(s.Type),
		"properties": Object(props),
		"required":   Array(required...),
	})
}

// SchemaFromWire is the inverse of Wire. Unknown keywords are ignored.
func SchemaFromWire(v Value) (ToolSchema, error) {
	if v.Kind() != KindObject {
		return ToolSchema{}, fmt.Errorf("schema must be an object, got %s", v.Kind())
	}
	var s ToolSchema
	if t, ok := v.Field("type"); ok {
		s.Type, _ = t.Str()
	}
	props, ok := v.Field("properties")
	if !ok || props.Kind() != KindObject {
		return ToolSchema{}, fmt.Errorf("schema properties must be an object")
	}
	s.Properties = make(map[string]Property, props.Len())
	for _, name := range props.Keys() {
		pv, _ := props.Field(name)
		var p Property
		if t, ok := pv.Field("type"); ok {
			p.Type, _ = t.Str()
		}
		if d, ok := pv.Field("description"); ok {
			p.Description, _ = d.Str()
		}
		if e, ok := pv.Field("enum"); ok {
			for _, item := range e.Items() {
				if str, ok := item.Str(); ok {
					p.Enum = append(p.Enum, str)
				}
			}
		}
		s.Properties[name] = p
	}
	if req, ok := v.Field("required"); ok {
		if req.Kind() != KindArray {
			return ToolSchema{}, fmt.Errorf("schema required must be an array")
		}
		for _, item := range req.Items() {
			name, ok := item.Str()
			if !ok {
				return ToolSchema{}, fmt.Errorf("schema required entries must be strings")
			}
			s.Required = append(s.Required, name)
		}
	}
	return s, nil
}

func (s ToolSchema) validate() error {
	if s.Type != "object" {
		return fmt.Errorf("schema type must be \"object\", got %q", s.Type)
	}
	if s.Properties == nil {
		return fmt.Errorf("schema has no properties")
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("required property %q is not declared", name)
		}
	}
	return nil
}

// ToolConfiguration is the immutable tool set sent with every model turn.
type ToolConfiguration struct {
	specs    []ToolSpec
	compiled map[string]*jsonschema.Schema
}

// RegisterTools validates specs and compiles their schemas.
func RegisterTools(specs []ToolSpec) (*ToolConfiguration, error) {
	cfg := &ToolConfiguration{
		specs:    make([]ToolSpec, 0, len(specs)),
		compiled: make(map[string]*jsonschema.Schema, len(specs)),
	}
	compiler := jsonschema.NewCompiler()
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, &ConfigError{Reason: "tool with empty name"}
		}
		if _, dup := cfg.compiled[spec.Name]; dup {
			return nil, &ConfigError{Tool: spec.Name, Reason: "duplicate tool name"}
		}
		if err := spec.InputSchema.validate(); err != nil {
			return nil, &ConfigError{Tool: spec.Name, Reason: err.Error()}
		}
		doc, err := normalize(spec.InputSchema.Wire())
		if err != nil {
			return nil, &ConfigError{Tool: spec.Name, Reason: err.Error()}
		}
		url := "mem://tools/" + spec.Name + ".json"
		if err := compiler.AddResource(url, doc); err != nil {
			return nil, &ConfigError{Tool: spec.Name, Reason: err.Error()}
		}
		sch, err := compiler.Compile(url)
		if err != nil {
			return nil, &ConfigError{Tool: spec.Name, Reason: err.Error()}
		}
		cfg.compiled[spec.Name] = sch
		cfg.specs = append(cfg.specs, spec)
	}
	return cfg, nil
}

// Specs returns the registered specs in registration order.
func (c *ToolConfiguration) Specs() []ToolSpec {
	if c == nil {
		return nil
	}
	return append([]ToolSpec(nil), c.specs...)
}

// Names returns the registered tool names, sorted.
func (c *ToolConfiguration) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.specs))
	for _, s := range c.specs {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (c *ToolConfiguration) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.compiled[name]
	return ok
}

// ValidateInput checks tool input against the compiled schema.
func (c *ToolConfiguration) ValidateInput(name string, input Value) error {
	if !c.Has(name) {
		return unknownTool(name)
	}
	inst, err := normalize(input)
	if err != nil {
		return err
	}
	return c.compiled[name].Validate(inst)
}

// normalize converts a Value into the instance form the validator expects.
func normalize(v Value) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
