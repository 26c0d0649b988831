package dataeditor

import (
	"context"
	"time"
)

// Adapter is the storage contract every backend implements.
// Keys are compared as strings, so "1" and 1 address the same record.
type Adapter interface {
	// List returns every stored record in storage order.
	List(ctx context.Context) ([]Record, error)
	// Read returns the record whose primary key matches id, or nil when none does.
	Read(ctx context.Context, id string) (Record, error)
	// Create stores data and returns what was stored.
	Create(ctx context.Context, data Record) (Record, error)
	// Update replaces the record currently keyed by id with data.
	Update(ctx context.Context, id string, data Record) (Record, error)
	// Delete removes the record keyed by id and fails when none matches.
	Delete(ctx context.Context, id string) error
}

// DataModel binds a schema to an adapter and exposes validated CRUD plus link resolution.
type DataModel interface {
	ID() string
	Schema() *Schema
	PrimaryKey() string

	List(ctx context.Context) ([]DataEntry, error)
	// Get returns nil without error when no entry matches id.
	Get(ctx context.Context, id string) (*DataEntry, error)
	Create(ctx context.Context, data Record) (*DataEntry, error)
	// Update merges data over the stored entry, re-validates and replaces it.
	Update(ctx context.Context, id string, data Record) (*DataEntry, error)
	Delete(ctx context.Context, id string) error

	// GetLinks resolves the schema's links for entry against models.
	GetLinks(ctx context.Context, entry *DataEntry, models []DataModel) ([]DataModelLink, error)
}

// KeyGenerator produces primary key values for auto-increment adapters.
type KeyGenerator interface {
	NewKey() string
}

// ChangeOperation names the mutation carried by a ChangeEvent.
type ChangeOperation string

const (
	ChangeCreate ChangeOperation = "create"
	ChangeUpdate ChangeOperation = "update"
	ChangeDelete ChangeOperation = "delete"
)

// ChangeEvent describes one successful mutation of a model's collection.
type ChangeEvent struct {
	Model       string          `json:"model"`
	Operation   ChangeOperation `json:"operation"`
	Key         string          `json:"key"`
	PreviousKey string          `json:"previousKey,omitempty"`
	Data        Record          `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ChangePublisher delivers change events to downstream consumers.
type ChangePublisher interface {
	Publish(ctx context.Context, events ...ChangeEvent) error
	Close() error
}
