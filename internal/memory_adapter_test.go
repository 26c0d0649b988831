package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/dataeditor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapterContract(t *testing.T) {
	adapterContract(t, func(t *testing.T) dataeditor.Adapter {
		return NewMemoryAdapter(nil, AdapterOptions{})
	})
}

func TestMemoryAdapterIsolation(t *testing.T) {
	ctx := context.Background()
	initial := []dataeditor.Record{{"id": "0", "tags": []any{"a"}}}
	a := NewMemoryAdapter(initial, AdapterOptions{})

	// mutating the seed after construction has no effect
	initial[0]["id"] = "changed"

	records, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0", records[0]["id"])

	// mutating a read result has no effect
	records[0]["tags"].([]any)[0] = "z"
	got, err := a.Read(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, got["tags"])

	// mutating the created input or result has no effect
	input := dataeditor.Record{"id": "1"}
	created, err := a.Create(ctx, input)
	require.NoError(t, err)
	input["x"] = 1
	created["y"] = 2
	got, err = a.Read(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, dataeditor.Record{"id": "1"}, got)
}

func TestMemoryAdapterLooseKeys(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter([]dataeditor.Record{{"id": 1.0, "text": "one"}}, AdapterOptions{})

	got, err := a.Read(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "one", got["text"])

	_, err = a.Create(ctx, dataeditor.Record{"id": "1"})
	require.Error(t, err)

	require.NoError(t, a.Delete(ctx, "1"))
}

func TestMemoryAdapterCustomPrimaryKey(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(nil, AdapterOptions{PrimaryKey: "slug"})
	_, err := a.Create(ctx, dataeditor.Record{"slug": "hello"})
	require.NoError(t, err)
	got, err := a.Read(ctx, "hello")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestFileAdapterContract(t *testing.T) {
	adapterContract(t, func(t *testing.T) dataeditor.Adapter {
		return NewFileAdapter(filepath.Join(t.TempDir(), "data.json"), nil, AdapterOptions{})
	})
}

func TestFileAdapterPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "foo.json")

	a := NewFileAdapter(path, nil, AdapterOptions{})
	_, err := a.Create(ctx, dataeditor.Record{"id": "0", "text": "a"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"0","text":"a"}]`, string(data))

	// a second adapter on the same file sees the write
	b := NewFileAdapter(path, nil, AdapterOptions{})
	got, err := b.Read(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, dataeditor.Record{"id": "0", "text": "a"}, got)
}

func TestFileAdapterFallsBackToInitialData(t *testing.T) {
	ctx := context.Background()
	initial := []dataeditor.Record{{"id": "seed"}}

	t.Run("missing file", func(t *testing.T) {
		a := NewFileAdapter(filepath.Join(t.TempDir(), "missing.json"), initial, AdapterOptions{})
		records, err := a.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, initial, records)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		a := NewFileAdapter(path, initial, AdapterOptions{})
		records, err := a.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, initial, records)
	})

	t.Run("single object file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "single.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"only"}`), 0o644))
		a := NewFileAdapter(path, initial, AdapterOptions{})
		records, err := a.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []dataeditor.Record{{"id": "only"}}, records)
	})

	t.Run("first write keeps seed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seeded.json")
		a := NewFileAdapter(path, initial, AdapterOptions{})
		_, err := a.Create(ctx, dataeditor.Record{"id": "new"})
		require.NoError(t, err)
		records, err := a.List(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}

func TestDecodeCollection(t *testing.T) {
	_, err := decodeCollection([]byte(`[1, 2]`))
	assert.Error(t, err)
	_, err = decodeCollection([]byte(`"text"`))
	assert.Error(t, err)
	records, err := decodeCollection([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, records)
}
