package internal

import (
	"context"
	"fmt"
	"maps"

	"github.com/lychee-technology/dataeditor"
	"go.uber.org/zap"
)

type dataModel struct {
	validator *Validator
	schema    *dataeditor.Schema
	adapter   dataeditor.Adapter
	title     titleRenderer
}

// NewDataModel binds schema to adapter. The schema is validated and normalized first.
func NewDataModel(schema dataeditor.Schema, adapter dataeditor.Adapter) (dataeditor.DataModel, error) {
	if adapter == nil {
		return nil, fmt.Errorf("adapter is required for model %s", schema.ID)
	}
	validator, err := NewValidator(schema)
	if err != nil {
		return nil, err
	}
	normalized := validator.Schema()
	return &dataModel{
		validator: validator,
		schema:    normalized,
		adapter:   adapter,
		title:     newTitleRenderer(normalized),
	}, nil
}

func (m *dataModel) ID() string {
	return m.schema.ID
}

func (m *dataModel) Schema() *dataeditor.Schema {
	return m.schema.Clone()
}

func (m *dataModel) PrimaryKey() string {
	return m.schema.PrimaryKey
}

// wrap decorates a stored record with its key and title.
func (m *dataModel) wrap(record dataeditor.Record) dataeditor.DataEntry {
	if record == nil {
		record = dataeditor.Record{}
	}
	return dataeditor.DataEntry{
		Data:  record,
		Key:   record[m.schema.PrimaryKey],
		Title: m.title.Render(record),
	}
}

func (m *dataModel) List(ctx context.Context) ([]dataeditor.DataEntry, error) {
	records, err := m.adapter.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", m.schema.ID, err)
	}
	entries := make([]dataeditor.DataEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, m.wrap(record))
	}
	return entries, nil
}

func (m *dataModel) Get(ctx context.Context, id string) (*dataeditor.DataEntry, error) {
	record, err := m.adapter.Read(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", m.schema.ID, id, err)
	}
	if record == nil {
		return nil, nil
	}
	entry := m.wrap(record)
	return &entry, nil
}

func (m *dataModel) Create(ctx context.Context, data dataeditor.Record) (*dataeditor.DataEntry, error) {
	validated, err := m.validator.Test(data)
	if err != nil {
		return nil, err
	}
	zap.S().Debugw("Creating entry", "model", m.schema.ID, "key", validated[m.schema.PrimaryKey])
	stored, err := m.adapter.Create(ctx, validated)
	if err != nil {
		return nil, fmt.Errorf("failed to create entry in %s: %w", m.schema.ID, err)
	}
	entry := m.wrap(stored)
	return &entry, nil
}

func (m *dataModel) Update(ctx context.Context, id string, data dataeditor.Record) (*dataeditor.DataEntry, error) {
	existing, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, dataeditor.NewModelError("entry cannot be updated, because it does not exist.").
			WithModel(m.schema.ID).WithKey(id)
	}

	merged := maps.Clone(existing.Data)
	maps.Copy(merged, data)
	validated, err := m.validator.Test(merged)
	if err != nil {
		return nil, err
	}

	zap.S().Debugw("Updating entry", "model", m.schema.ID, "key", id, "newKey", validated[m.schema.PrimaryKey])
	stored, err := m.adapter.Update(ctx, id, validated)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s/%s: %w", m.schema.ID, id, err)
	}
	entry := m.wrap(stored)
	return &entry, nil
}

func (m *dataModel) Delete(ctx context.Context, id string) error {
	zap.S().Debugw("Deleting entry", "model", m.schema.ID, "key", id)
	if err := m.adapter.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", m.schema.ID, id, err)
	}
	return nil
}
