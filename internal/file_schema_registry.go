package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lychee-technology/dataeditor"
	"go.uber.org/zap"
)

const seedFileSuffix = "_data.json"

// fileSchemaRegistry is a SchemaRegistry implementation that loads schemas
// from JSON files in one directory. A schema file may ship seed records in a
// sibling <id>_data.json file.
type fileSchemaRegistry struct {
	mu        sync.RWMutex
	schemaDir string
	order     []string
	schemas   map[string]*dataeditor.Schema
	seeds     map[string][]dataeditor.Record
}

// NewFileSchemaRegistry scans schemaDir for *.json schema files.
// Files are loaded in name order; a schema without $id takes its file name.
func NewFileSchemaRegistry(schemaDir string) (dataeditor.SchemaRegistry, error) {
	registry := &fileSchemaRegistry{
		schemaDir: schemaDir,
		schemas:   make(map[string]*dataeditor.Schema),
		seeds:     make(map[string][]dataeditor.Record),
	}
	if err := registry.loadSchemasFromDirectory(); err != nil {
		return nil, err
	}
	return registry, nil
}

// isSeedFile checks if a filename holds seed records rather than a schema.
func isSeedFile(name string) bool {
	return strings.HasSuffix(name, seedFileSuffix)
}

func (r *fileSchemaRegistry) loadSchemasFromDirectory() error {
	entries, err := os.ReadDir(r.schemaDir)
	if err != nil {
		return fmt.Errorf("failed to read schema directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || isSeedFile(name) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	for _, name := range files {
		schemaFile := filepath.Join(r.schemaDir, name)
		data, err := os.ReadFile(schemaFile)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", schemaFile, err)
		}

		var schema dataeditor.Schema
		if err := json.Unmarshal(data, &schema); err != nil {
			return dataeditor.NewSchemaError(fmt.Sprintf("failed to parse schema file %s", schemaFile)).WithCause(err)
		}
		if schema.ID == "" {
			schema.ID = strings.TrimSuffix(name, ".json")
		}
		if _, exists := r.schemas[schema.ID]; exists {
			return dataeditor.NewSchemaError(fmt.Sprintf("schema %s is defined more than once", schema.ID)).
				WithModel(schema.ID).WithDetail("file", schemaFile)
		}

		seeds, err := r.loadSeedData(schema.ID)
		if err != nil {
			return err
		}

		r.schemas[schema.ID] = &schema
		r.order = append(r.order, schema.ID)
		if seeds != nil {
			r.seeds[schema.ID] = seeds
		}
		zap.S().Debugw("Loaded schema", "id", schema.ID, "file", schemaFile, "seedRecords", len(seeds))
	}
	return nil
}

// loadSeedData reads <id>_data.json when it exists.
func (r *fileSchemaRegistry) loadSeedData(id string) ([]dataeditor.Record, error) {
	seedFile := filepath.Join(r.schemaDir, id+seedFileSuffix)
	data, err := os.ReadFile(seedFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", seedFile, err)
	}
	records, err := decodeCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", seedFile, err)
	}
	return records, nil
}

func (r *fileSchemaRegistry) GetSchema(id string) (*dataeditor.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, exists := r.schemas[id]
	if !exists {
		return nil, dataeditor.NewSchemaNotFoundError(id)
	}
	// Return a copy to prevent external mutations
	return schema.Clone(), nil
}

func (r *fileSchemaRegistry) ListSchemas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *fileSchemaRegistry) SeedData(id string) []dataeditor.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return dataeditor.CloneRecords(r.seeds[id])
}
