package internal

import (
	"context"

	"github.com/lychee-technology/dataeditor"
)

// memoryStore keeps the collection in process memory. Every load and save
// copies, so callers never share state with the store.
type memoryStore struct {
	records []dataeditor.Record
}

func (s *memoryStore) load(context.Context) ([]dataeditor.Record, error) {
	return dataeditor.CloneRecords(s.records), nil
}

func (s *memoryStore) save(_ context.Context, records []dataeditor.Record) error {
	s.records = dataeditor.CloneRecords(records)
	return nil
}

// NewMemoryAdapter returns an in-memory adapter seeded with a copy of initial.
func NewMemoryAdapter(initial []dataeditor.Record, options AdapterOptions) dataeditor.Adapter {
	return newCollectionAdapter(&memoryStore{records: dataeditor.CloneRecords(initial)}, options)
}
