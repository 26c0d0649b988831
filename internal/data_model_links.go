package internal

import (
	"context"
	"fmt"

	"github.com/lychee-technology/dataeditor"
)

// GetLinks resolves every declared link of the schema for entry.
// Links missing key or foreignKey are skipped; a link to an unknown model
// yields an empty entry list.
func (m *dataModel) GetLinks(ctx context.Context, entry *dataeditor.DataEntry, models []dataeditor.DataModel) ([]dataeditor.DataModelLink, error) {
	links := make([]dataeditor.DataModelLink, 0, len(m.schema.Links))
	if entry == nil {
		return links, nil
	}

	for _, link := range m.schema.Links {
		if link.Key == "" || link.ForeignKey == "" {
			continue
		}

		result := dataeditor.DataModelLink{Model: link.Model, Entries: []dataeditor.LinkEntry{}}
		target := FindModel(models, link.Model)
		if target == nil {
			links = append(links, result)
			continue
		}

		local := entry.Data[link.Key]
		if !IsTruthyKey(local) {
			links = append(links, result)
			continue
		}

		candidates, err := target.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve link %s -> %s: %w", m.schema.ID, link.Model, err)
		}
		for _, candidate := range candidates {
			if KeyEquals(candidate.Data[link.ForeignKey], local) {
				result.Entries = append(result.Entries, dataeditor.LinkEntry{Key: candidate.Key, Title: candidate.Title})
			}
		}
		links = append(links, result)
	}
	return links, nil
}

// FindModel returns the model with the given id, or nil.
func FindModel(models []dataeditor.DataModel, id string) dataeditor.DataModel {
	for _, model := range models {
		if model.ID() == id {
			return model
		}
	}
	return nil
}
