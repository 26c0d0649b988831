package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/lychee-technology/dataeditor"
)

// AdapterOptions are shared by every adapter implementation.
type AdapterOptions struct {
	PrimaryKey string
	// KeyGenerator enables auto-increment: Create replaces the primary key
	// with a generated value. Nil leaves keys to the caller.
	KeyGenerator dataeditor.KeyGenerator
}

func (o AdapterOptions) primaryKey() string {
	if o.PrimaryKey == "" {
		return "id"
	}
	return o.PrimaryKey
}

// assignKey applies auto-increment to a record about to be created.
func (o AdapterOptions) assignKey(data dataeditor.Record) dataeditor.Record {
	if o.KeyGenerator == nil {
		return data
	}
	out := dataeditor.CloneRecord(data)
	if out == nil {
		out = dataeditor.Record{}
	}
	out[o.primaryKey()] = o.KeyGenerator.NewKey()
	return out
}

// documentStore loads and saves a whole collection at once.
type documentStore interface {
	load(ctx context.Context) ([]dataeditor.Record, error)
	save(ctx context.Context, records []dataeditor.Record) error
}

// collectionAdapter implements Adapter over a documentStore with a
// read-modify-write of the full collection per mutation.
type collectionAdapter struct {
	mu      sync.Mutex
	store   documentStore
	options AdapterOptions
}

func newCollectionAdapter(store documentStore, options AdapterOptions) *collectionAdapter {
	return &collectionAdapter{store: store, options: options}
}

func (a *collectionAdapter) indexOf(records []dataeditor.Record, id string) int {
	pk := a.options.primaryKey()
	for i, r := range records {
		if RecordKey(r, pk) == id {
			return i
		}
	}
	return -1
}

func (a *collectionAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.store.load(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []dataeditor.Record{}
	}
	return records, nil
}

func (a *collectionAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.store.load(ctx)
	if err != nil {
		return nil, err
	}
	if i := a.indexOf(records, id); i >= 0 {
		return records[i], nil
	}
	return nil, nil
}

func (a *collectionAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.store.load(ctx)
	if err != nil {
		return nil, err
	}
	record := a.options.assignKey(data)
	key := RecordKey(record, a.options.primaryKey())
	if a.indexOf(records, key) >= 0 {
		return nil, dataeditor.NewEntryExistsError(key)
	}
	records = append(records, dataeditor.CloneRecord(record))
	if err := a.store.save(ctx, records); err != nil {
		return nil, err
	}
	return dataeditor.CloneRecord(record), nil
}

func (a *collectionAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.store.load(ctx)
	if err != nil {
		return nil, err
	}
	i := a.indexOf(records, id)
	if i < 0 {
		return nil, dataeditor.NewEntryNotFoundError(id)
	}
	newKey := RecordKey(data, a.options.primaryKey())
	if newKey != id {
		if j := a.indexOf(records, newKey); j >= 0 && j != i {
			return nil, dataeditor.NewEntryExistsError(newKey)
		}
	}
	records[i] = dataeditor.CloneRecord(data)
	if err := a.store.save(ctx, records); err != nil {
		return nil, err
	}
	return dataeditor.CloneRecord(data), nil
}

func (a *collectionAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.store.load(ctx)
	if err != nil {
		return err
	}
	i := a.indexOf(records, id)
	if i < 0 {
		return dataeditor.NewEntryNotFoundError(id)
	}
	records = append(records[:i], records[i+1:]...)
	if err := a.store.save(ctx, records); err != nil {
		return err
	}
	return nil
}

// decodeCollection parses a stored collection; a single object counts as one record.
func decodeCollection(data []byte) ([]dataeditor.Record, error) {
	var raw any
	if err := unmarshalJSON(data, &raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case []any:
		records := make([]dataeditor.Record, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("collection item %d is not an object", i)
			}
			records = append(records, dataeditor.Record(obj))
		}
		return records, nil
	case map[string]any:
		return []dataeditor.Record{dataeditor.Record(v)}, nil
	default:
		return nil, fmt.Errorf("collection must be an array of objects")
	}
}
