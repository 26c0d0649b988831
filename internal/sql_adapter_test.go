package internal

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lychee-technology/dataeditor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSQLTable(context.Background(), db, DialectSQLite, "records"))
	return db
}

func TestSQLAdapterContract(t *testing.T) {
	adapterContract(t, func(t *testing.T) dataeditor.Adapter {
		return NewSQLAdapter(openSQLite(t), DialectSQLite, "records", "foo", AdapterOptions{})
	})
}

func TestSQLAdapterSeparatesModels(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	foo := NewSQLAdapter(db, DialectSQLite, "records", "foo", AdapterOptions{})
	bar := NewSQLAdapter(db, DialectSQLite, "records", "bar", AdapterOptions{})

	_, err := foo.Create(ctx, dataeditor.Record{"id": "0", "text": "foo"})
	require.NoError(t, err)
	_, err = bar.Create(ctx, dataeditor.Record{"id": "0", "text": "bar"})
	require.NoError(t, err)

	got, err := foo.Read(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "foo", got["text"])

	require.NoError(t, bar.Delete(ctx, "0"))
	records, err := foo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLAdapterUpdateWithSameData(t *testing.T) {
	ctx := context.Background()
	a := NewSQLAdapter(openSQLite(t), DialectSQLite, "records", "foo", AdapterOptions{})
	_, err := a.Create(ctx, dataeditor.Record{"id": "0", "text": "a"})
	require.NoError(t, err)

	updated, err := a.Update(ctx, "0", dataeditor.Record{"id": "0", "text": "a"})
	require.NoError(t, err)
	assert.Equal(t, dataeditor.Record{"id": "0", "text": "a"}, updated)
}

func TestSQLAdapterAutoIncrement(t *testing.T) {
	ctx := context.Background()
	a := NewSQLAdapter(openSQLite(t), DialectSQLite, "records", "foo", AdapterOptions{
		KeyGenerator: &sequenceKeys{keys: []string{"k1", "k2"}},
	})
	first, err := a.Create(ctx, dataeditor.Record{"id": "ignored"})
	require.NoError(t, err)
	second, err := a.Create(ctx, dataeditor.Record{"id": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "k1", first["id"])
	assert.Equal(t, "k2", second["id"])
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver string
		quoted string
	}{
		{driver: "sqlite", quoted: `"my table"`},
		{driver: "duckdb", quoted: `"my table"`},
		{driver: "mysql", quoted: "`my table`"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := DialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.driver, d.Driver)
			assert.Equal(t, tt.quoted, d.quote("my table"))
		})
	}

	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func TestSQLAdapterNextPositionIsMonotonic(t *testing.T) {
	a := &sqlAdapter{}
	prev := a.nextPosition()
	for i := 0; i < 1000; i++ {
		next := a.nextPosition()
		require.Greater(t, next, prev)
		prev = next
	}
}
