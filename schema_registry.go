package dataeditor

// SchemaRegistry provides schema lookup operations.
// Implementations can load schemas from files, databases, or other sources.
type SchemaRegistry interface {
	// GetSchema returns a copy of the schema registered under id.
	GetSchema(id string) (*Schema, error)
	// ListSchemas returns the registered schema ids in load order.
	ListSchemas() []string
	// SeedData returns the initial records shipped with a schema, if any.
	SeedData(id string) []Record
}
