package internal

import (
	"context"
	"testing"

	"github.com/lychee-technology/dataeditor"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func prop(name string, types ...string) dataeditor.Property {
	return dataeditor.Property{Name: name, Schema: dataeditor.PropertySchema{Type: types}}
}

func propWithDefault(name string, def any, types ...string) dataeditor.Property {
	p := prop(name, types...)
	p.Schema.Default = def
	return p
}

// fooSchema is {id, text} keyed by id with a default text.
func fooSchema() dataeditor.Schema {
	return dataeditor.Schema{
		ID:         "foo",
		PrimaryKey: "id",
		Required:   []string{"id"},
		Properties: dataeditor.PropertyList{
			prop("id", "string"),
			propWithDefault("text", "nothing", "string"),
		},
	}
}

func linkedSchema(id string) dataeditor.Schema {
	return dataeditor.Schema{
		ID:         id,
		PrimaryKey: "id",
		Required:   []string{"id"},
		Properties: dataeditor.PropertyList{
			prop("id", "string"),
			prop("fooId", "string"),
		},
	}
}

func newTestModel(t *testing.T, schema dataeditor.Schema, records ...dataeditor.Record) dataeditor.DataModel {
	t.Helper()
	model, err := NewDataModel(schema, NewMemoryAdapter(records, AdapterOptions{PrimaryKey: schema.PrimaryKey}))
	require.NoError(t, err)
	return model
}

type sequenceKeys struct {
	next int
	keys []string
}

func (s *sequenceKeys) NewKey() string {
	k := s.keys[s.next%len(s.keys)]
	s.next++
	return k
}

// adapterContract runs the shared Adapter behaviour against a fresh, empty adapter.
func adapterContract(t *testing.T, newAdapter func(t *testing.T) dataeditor.Adapter) {
	ctx := context.Background()

	t.Run("empty list", func(t *testing.T) {
		a := newAdapter(t)
		records, err := a.List(ctx)
		require.NoError(t, err)
		require.NotNil(t, records)
		require.Empty(t, records)
	})

	t.Run("create then read", func(t *testing.T) {
		a := newAdapter(t)
		created, err := a.Create(ctx, dataeditor.Record{"id": "0", "text": "a"})
		require.NoError(t, err)
		require.Equal(t, dataeditor.Record{"id": "0", "text": "a"}, created)

		got, err := a.Read(ctx, "0")
		require.NoError(t, err)
		require.Equal(t, dataeditor.Record{"id": "0", "text": "a"}, got)
	})

	t.Run("read missing returns nil", func(t *testing.T) {
		a := newAdapter(t)
		got, err := a.Read(ctx, "missing")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.Create(ctx, dataeditor.Record{"id": "0"})
		require.NoError(t, err)
		_, err = a.Create(ctx, dataeditor.Record{"id": "0"})
		require.Error(t, err)
		require.True(t, dataeditor.IsAdapterError(err))
	})

	t.Run("list keeps insertion order", func(t *testing.T) {
		a := newAdapter(t)
		for _, id := range []string{"b", "a", "c"} {
			_, err := a.Create(ctx, dataeditor.Record{"id": id})
			require.NoError(t, err)
		}
		records, err := a.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)
		require.Equal(t, "b", records[0]["id"])
		require.Equal(t, "a", records[1]["id"])
		require.Equal(t, "c", records[2]["id"])
	})

	t.Run("update replaces", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.Create(ctx, dataeditor.Record{"id": "0", "text": "a", "n": 1.0})
		require.NoError(t, err)
		_, err = a.Update(ctx, "0", dataeditor.Record{"id": "0", "text": "b"})
		require.NoError(t, err)
		got, err := a.Read(ctx, "0")
		require.NoError(t, err)
		require.Equal(t, dataeditor.Record{"id": "0", "text": "b"}, got)
	})

	t.Run("update renames key", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.Create(ctx, dataeditor.Record{"id": "0"})
		require.NoError(t, err)
		_, err = a.Update(ctx, "0", dataeditor.Record{"id": "9"})
		require.NoError(t, err)

		old, err := a.Read(ctx, "0")
		require.NoError(t, err)
		require.Nil(t, old)
		renamed, err := a.Read(ctx, "9")
		require.NoError(t, err)
		require.Equal(t, dataeditor.Record{"id": "9"}, renamed)
	})

	t.Run("rename onto existing key fails", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.Create(ctx, dataeditor.Record{"id": "0"})
		require.NoError(t, err)
		_, err = a.Create(ctx, dataeditor.Record{"id": "1"})
		require.NoError(t, err)
		_, err = a.Update(ctx, "0", dataeditor.Record{"id": "1"})
		require.Error(t, err)
		require.True(t, dataeditor.IsAdapterError(err))
	})

	t.Run("update missing fails", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.Update(ctx, "missing", dataeditor.Record{"id": "missing"})
		require.Error(t, err)
		require.True(t, dataeditor.IsEntryNotFoundError(err))
	})

	t.Run("delete", func(t *testing.T) {
		a := newAdapter(t)
		_, err := a.Create(ctx, dataeditor.Record{"id": "0"})
		require.NoError(t, err)
		require.NoError(t, a.Delete(ctx, "0"))
		records, err := a.List(ctx)
		require.NoError(t, err)
		require.Empty(t, records)
	})

	t.Run("delete missing fails", func(t *testing.T) {
		a := newAdapter(t)
		err := a.Delete(ctx, "missing")
		require.Error(t, err)
		require.True(t, dataeditor.IsAdapterError(err))
		require.True(t, dataeditor.IsEntryNotFoundError(err))
		require.Equal(t, "entry with key missing does not exist.", dataeditor.ErrorMessage(err))
	})
}
