package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lychee-technology/dataeditor"
	"go.uber.org/zap"
)

// fileStore persists the collection as a JSON array in one file.
type fileStore struct {
	path    string
	initial []dataeditor.Record
}

// load falls back to the initial data when the file is missing or unreadable.
func (s *fileStore) load(context.Context) ([]dataeditor.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.S().Warnw("Failed to read collection file, using initial data", "path", s.path, "error", err)
		}
		return dataeditor.CloneRecords(s.initial), nil
	}
	records, err := decodeCollection(data)
	if err != nil {
		zap.S().Warnw("Failed to parse collection file, using initial data", "path", s.path, "error", err)
		return dataeditor.CloneRecords(s.initial), nil
	}
	return records, nil
}

// save writes to a temporary file and renames it over the target.
func (s *fileStore) save(_ context.Context, records []dataeditor.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return dataeditor.NewAdapterError("failed to encode collection", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to create directory %s", dir), err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return dataeditor.NewAdapterError("failed to write collection file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return dataeditor.NewAdapterError("failed to write collection file", err)
	}
	if err := tmp.Close(); err != nil {
		return dataeditor.NewAdapterError("failed to write collection file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return dataeditor.NewAdapterError("failed to replace collection file", err)
	}
	return nil
}

// NewFileAdapter returns an adapter backed by the JSON file at path.
func NewFileAdapter(path string, initial []dataeditor.Record, options AdapterOptions) dataeditor.Adapter {
	return newCollectionAdapter(&fileStore{path: path, initial: dataeditor.CloneRecords(initial)}, options)
}
