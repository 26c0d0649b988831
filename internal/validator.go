package internal

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lychee-technology/dataeditor"
)

var knownTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"array":   true,
	"null":    true,
}

// Validator checks and normalizes records against one schema.
// It is safe for concurrent use once built.
type Validator struct {
	schema   *dataeditor.Schema
	resolved *jsonschema.Resolved
}

// NewValidator normalizes a copy of schema and compiles it.
// Any structural problem is reported as a schema error.
func NewValidator(schema dataeditor.Schema) (*Validator, error) {
	s := schema.Clone()
	if err := normalizeSchema(s); err != nil {
		return nil, err
	}

	resolved, err := compileSchema(s)
	if err != nil {
		return nil, dataeditor.NewSchemaError(fmt.Sprintf("schema %s cannot be compiled", s.ID)).
			WithModel(s.ID).WithCause(err)
	}

	return &Validator{schema: s, resolved: resolved}, nil
}

// Schema returns a copy of the normalized schema.
func (v *Validator) Schema() *dataeditor.Schema {
	return v.schema.Clone()
}

// Test returns a normalized copy of data: undeclared fields dropped, defaults
// filled in. It fails with a validation error when the result does not conform.
func (v *Validator) Test(data any) (dataeditor.Record, error) {
	record, err := copyRecord(data)
	if err != nil {
		return nil, err
	}

	for name := range record {
		if !v.schema.Properties.Has(name) {
			delete(record, name)
		}
	}

	for _, p := range v.schema.Properties {
		if _, present := record[p.Name]; present || !p.Schema.HasDefault() {
			continue
		}
		record[p.Name] = dataeditor.CloneValue(p.Schema.Default)
	}

	if err := v.resolved.Validate(map[string]any(record)); err != nil {
		return nil, dataeditor.NewValidationError("", err.Error()).WithModel(v.schema.ID)
	}
	return record, nil
}

// copyRecord deep-copies data through JSON so numbers come out as float64
// regardless of the Go type the caller used.
func copyRecord(data any) (dataeditor.Record, error) {
	if data == nil {
		return dataeditor.Record{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, dataeditor.NewValidationError("", "data is not valid JSON").WithCause(err)
	}
	var record dataeditor.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, dataeditor.NewValidationError("", "data must be an object").WithCause(err)
	}
	if record == nil {
		record = dataeditor.Record{}
	}
	return record, nil
}

func normalizeSchema(s *dataeditor.Schema) error {
	if s.ID == "" {
		return dataeditor.NewSchemaError("schema needs to specify an $id")
	}
	fail := func(format string, args ...any) error {
		return dataeditor.NewSchemaError(fmt.Sprintf(format, args...)).WithModel(s.ID)
	}

	if s.Properties == nil {
		return fail("schema %s needs to specify properties", s.ID)
	}
	if s.Type == "" {
		s.Type = "object"
	}
	if s.Type != "object" {
		return fail("schema %s must describe an object, got type %q", s.ID, s.Type)
	}
	if s.AdditionalProperties == nil {
		additional := false
		s.AdditionalProperties = &additional
	}
	if s.Required == nil {
		s.Required = []string{}
	}

	seen := make(map[string]bool, len(s.Properties))
	for i := range s.Properties {
		p := &s.Properties[i]
		if seen[p.Name] {
			return fail("property %s is declared twice", p.Name)
		}
		seen[p.Name] = true
		if err := checkProperty(p.Name, &p.Schema); err != nil {
			return fail("%s", err.Error())
		}
	}

	for _, name := range s.Required {
		if !seen[name] {
			return fail("required property %s is not declared in properties", name)
		}
	}

	if s.PrimaryKey == "" {
		return fail("schema %s needs to specify a primaryKey", s.ID)
	}
	pk, ok := s.Property(s.PrimaryKey)
	if !ok {
		return fail("primary key %s is not declared in properties", s.PrimaryKey)
	}
	if len(pk.Type) != 1 || pk.Type[0] != "string" {
		return fail("primary key %s must be of type string", s.PrimaryKey)
	}

	for _, name := range s.Required {
		p, _ := s.Property(name)
		if p.Type.Includes("string") && (p.MinLength == nil || *p.MinLength < 1) {
			one := 1
			p.MinLength = &one
		}
	}
	return nil
}

func checkProperty(name string, p *dataeditor.PropertySchema) error {
	if len(p.Type) == 0 {
		return fmt.Errorf("property %s needs to specify a type", name)
	}
	for _, t := range p.Type {
		if !knownTypes[t] {
			return fmt.Errorf("property %s has unknown type %q", name, t)
		}
	}
	if p.HasDefault() {
		normalized, err := normalizeJSON(p.Default)
		if err != nil {
			return fmt.Errorf("default value of property %s is not valid JSON: %w", name, err)
		}
		if !matchesType(normalized, p.Type) {
			return fmt.Errorf("default value of property %s does not match type %s", name, strings.Join(p.Type, "|"))
		}
		p.Default = normalized
	}
	if p.Items != nil {
		if err := checkProperty(name+"[]", p.Items); err != nil {
			return err
		}
	}
	return nil
}

func matchesType(value any, types dataeditor.TypeList) bool {
	for _, t := range types {
		switch t {
		case "string":
			if _, ok := value.(string); ok {
				return true
			}
		case "number":
			if _, ok := value.(float64); ok {
				return true
			}
		case "integer":
			if f, ok := value.(float64); ok && f == math.Trunc(f) {
				return true
			}
		case "boolean":
			if _, ok := value.(bool); ok {
				return true
			}
		case "object":
			if _, ok := value.(map[string]any); ok {
				return true
			}
		case "array":
			if _, ok := value.([]any); ok {
				return true
			}
		case "null":
			if value == nil {
				return true
			}
		}
	}
	return false
}

// normalizeJSON round-trips value through JSON so Go literals compare like decoded input.
func normalizeJSON(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// compileSchema turns the normalized schema into a resolved JSON Schema.
// Only validation keywords are passed on; UI hints stay out of the compiled form.
func compileSchema(s *dataeditor.Schema) (*jsonschema.Resolved, error) {
	properties := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		properties[p.Name] = propertyKeywords(p.Schema)
	}
	schemaMap := map[string]any{
		"type":                 s.Type,
		"properties":           properties,
		"required":             s.Required,
		"additionalProperties": *s.AdditionalProperties,
	}

	var schema jsonschema.Schema
	schemaBytes, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for validation: %w", err)
	}
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into jsonschema.Schema: %w", err)
	}

	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve JSON schema: %w", err)
	}
	return resolved, nil
}

func propertyKeywords(p dataeditor.PropertySchema) map[string]any {
	kw := map[string]any{}
	if len(p.Type) == 1 {
		kw["type"] = p.Type[0]
	} else {
		kw["type"] = []string(p.Type)
	}
	if p.MinLength != nil {
		kw["minLength"] = *p.MinLength
	}
	if p.MaxLength != nil {
		kw["maxLength"] = *p.MaxLength
	}
	if p.Minimum != nil {
		kw["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		kw["maximum"] = *p.Maximum
	}
	if p.Pattern != "" {
		kw["pattern"] = p.Pattern
	}
	if len(p.Enum) > 0 {
		kw["enum"] = p.Enum
	}
	if p.Items != nil {
		kw["items"] = propertyKeywords(*p.Items)
	}
	return kw
}
