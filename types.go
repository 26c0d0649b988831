package dataeditor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Record is a plain JSON object as stored by an adapter.
type Record map[string]any

// Schema describes one editable collection.
type Schema struct {
	ID                   string       `json:"$id"`
	Type                 string       `json:"type,omitempty"`
	Title                string       `json:"title,omitempty"`
	Description          string       `json:"description,omitempty"`
	Properties           PropertyList `json:"properties"`
	Required             []string     `json:"required,omitempty"`
	PrimaryKey           string       `json:"primaryKey"`
	TitleTemplate        string       `json:"titleTemplate,omitempty"`
	Links                []SchemaLink `json:"links,omitempty"`
	AdditionalProperties *bool        `json:"additionalProperties,omitempty"`
}

// Property returns the property declared under name.
func (s *Schema) Property(name string) (*PropertySchema, bool) {
	return s.Properties.Get(name)
}

// IsRequired reports whether name is listed in required.
func (s *Schema) IsRequired(name string) bool {
	return slices.Contains(s.Required, name)
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := *s
	out.Properties = s.Properties.Clone()
	out.Required = slices.Clone(s.Required)
	out.Links = slices.Clone(s.Links)
	if s.AdditionalProperties != nil {
		v := *s.AdditionalProperties
		out.AdditionalProperties = &v
	}
	return &out
}

// PropertySchema is the JSON Schema subset understood by the validator
// plus the UI hints the editor front-end reads.
type PropertySchema struct {
	Type        TypeList        `json:"type,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Default     any             `json:"default,omitempty"`
	MinLength   *int            `json:"minLength,omitempty"`
	MaxLength   *int            `json:"maxLength,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	Pattern     string          `json:"pattern,omitempty"`
	Format      string          `json:"format,omitempty"`
	Enum        []any           `json:"enum,omitempty"`
	Items       *PropertySchema `json:"items,omitempty"`

	ReadOnly      bool `json:"readonly,omitempty"`
	AutoIncrement bool `json:"autoIncrement,omitempty"`

	// nullDefault records an explicit "default": null, which Default alone cannot express.
	nullDefault bool
}

// HasDefault reports whether the property declares a default, including null.
func (p PropertySchema) HasDefault() bool {
	return p.Default != nil || p.nullDefault
}

func (p PropertySchema) MarshalJSON() ([]byte, error) {
	type plain PropertySchema
	if !p.nullDefault || p.Default != nil {
		return json.Marshal(plain(p))
	}
	return json.Marshal(struct {
		plain
		Default any `json:"default"`
	}{plain: plain(p)})
}

func (p *PropertySchema) UnmarshalJSON(data []byte) error {
	type plain PropertySchema
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PropertySchema(v)
	if p.Default == nil {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return err
		}
		_, p.nullDefault = keys["default"]
	}
	return nil
}

// Clone returns a deep copy of the property schema.
func (p PropertySchema) Clone() PropertySchema {
	out := p
	out.Type = slices.Clone(p.Type)
	out.Default = CloneValue(p.Default)
	out.Enum = slices.Clone(p.Enum)
	if p.MinLength != nil {
		v := *p.MinLength
		out.MinLength = &v
	}
	if p.MaxLength != nil {
		v := *p.MaxLength
		out.MaxLength = &v
	}
	if p.Minimum != nil {
		v := *p.Minimum
		out.Minimum = &v
	}
	if p.Maximum != nil {
		v := *p.Maximum
		out.Maximum = &v
	}
	if p.Items != nil {
		items := p.Items.Clone()
		out.Items = &items
	}
	return out
}

// TypeList holds a JSON Schema "type" keyword, which may be a single name or a list.
type TypeList []string

// Includes reports whether t names typ.
func (t TypeList) Includes(typ string) bool {
	return slices.Contains(t, typ)
}

func (t TypeList) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

func (t *TypeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("type must be a string or a list of strings: %w", err)
	}
	*t = list
	return nil
}

// Property is one named entry of a PropertyList.
type Property struct {
	Name   string
	Schema PropertySchema
}

// PropertyList is the ordered "properties" mapping of a schema.
// Declaration order drives the editor's field order, so it survives JSON round trips.
type PropertyList []Property

// Get returns the property declared under name.
func (l PropertyList) Get(name string) (*PropertySchema, bool) {
	for i := range l {
		if l[i].Name == name {
			return &l[i].Schema, true
		}
	}
	return nil, false
}

// Has reports whether name is declared.
func (l PropertyList) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// Names returns the declared property names in order.
func (l PropertyList) Names() []string {
	names := make([]string, 0, len(l))
	for _, p := range l {
		names = append(names, p.Name)
	}
	return names
}

// Clone returns a deep copy of the list.
func (l PropertyList) Clone() PropertyList {
	if l == nil {
		return nil
	}
	out := make(PropertyList, len(l))
	for i, p := range l {
		out[i] = Property{Name: p.Name, Schema: p.Schema.Clone()}
	}
	return out
}

func (l PropertyList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal property %s: %w", p.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l *PropertyList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be an object")
	}
	list := PropertyList{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in properties", tok)
		}
		var ps PropertySchema
		if err := dec.Decode(&ps); err != nil {
			return fmt.Errorf("failed to decode property %s: %w", name, err)
		}
		list = append(list, Property{Name: name, Schema: ps})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = list
	return nil
}

// SchemaLink declares a relation to another model: entries of Model whose
// ForeignKey field equals this entry's Key field are linked.
type SchemaLink struct {
	Model      string `json:"model"`
	Key        string `json:"key,omitempty"`
	ForeignKey string `json:"foreignKey,omitempty"`
}

// DataEntry is a stored record decorated with its key and display title.
type DataEntry struct {
	Data  Record `json:"data"`
	Key   any    `json:"$key"`
	Title string `json:"$title"`
}

// LinkEntry is the compact form of a linked entry.
type LinkEntry struct {
	Key   any    `json:"key"`
	Title string `json:"title"`
}

// DataModelLink lists the entries of one related model.
type DataModelLink struct {
	Model   string      `json:"model"`
	Entries []LinkEntry `json:"entries"`
}

// Credentials is a single basic-auth login/password pair.
type Credentials struct {
	Login    string `yaml:"login" json:"login"`
	Password string `yaml:"password" json:"password"`
}

// IsZero reports whether no credentials are configured.
func (c Credentials) IsZero() bool {
	return c.Login == "" && c.Password == ""
}

// SchemasResponse is returned by GET /.
type SchemasResponse struct {
	Schemas []*Schema `json:"schemas"`
}

// EntriesResponse is returned by GET /{model}/.
type EntriesResponse struct {
	Schema  *Schema     `json:"schema"`
	Entries []DataEntry `json:"entries"`
}

// EntryResponse is returned by the single-entry endpoints.
type EntryResponse struct {
	Schema *Schema         `json:"schema"`
	Entry  *DataEntry      `json:"entry,omitempty"`
	Links  []DataModelLink `json:"links"`
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case Record:
		return map[string]any(CloneRecord(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return val
	}
}

// CloneRecord deep-copies a record.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneRecords deep-copies a slice of records.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = CloneRecord(r)
	}
	return out
}
