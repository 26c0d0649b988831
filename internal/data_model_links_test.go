package internal

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/lychee-technology/dataeditor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkFixture(t *testing.T, links []dataeditor.SchemaLink) (dataeditor.DataModel, []dataeditor.DataModel) {
	t.Helper()
	foo := fooSchema()
	foo.Links = links
	fooModel := newTestModel(t, foo,
		dataeditor.Record{"id": "0"},
		dataeditor.Record{"id": "1"},
		dataeditor.Record{"id": "2"},
	)
	bar := newTestModel(t, linkedSchema("bar"),
		dataeditor.Record{"id": "0", "fooId": "0"},
		dataeditor.Record{"id": "1", "fooId": "0"},
		dataeditor.Record{"id": "2", "fooId": "1"},
	)
	bar2 := newTestModel(t, linkedSchema("bar2"),
		dataeditor.Record{"id": "0", "fooId": "1"},
		dataeditor.Record{"id": "1", "fooId": "1"},
		dataeditor.Record{"id": "2", "fooId": 1.0},
	)
	return fooModel, []dataeditor.DataModel{fooModel, bar, bar2}
}

func entryCounts(links []dataeditor.DataModelLink) map[string]int {
	counts := make(map[string]int, len(links))
	for _, l := range links {
		counts[l.Model] = len(l.Entries)
	}
	return counts
}

func TestGetLinks(t *testing.T) {
	ctx := context.Background()
	foo, models := linkFixture(t, []dataeditor.SchemaLink{
		{Model: "bar", Key: "id", ForeignKey: "fooId"},
		{Model: "bar2", Key: "id", ForeignKey: "fooId"},
	})

	tests := []struct {
		id       string
		expected map[string]int
	}{
		{id: "0", expected: map[string]int{"bar": 2, "bar2": 0}},
		{id: "1", expected: map[string]int{"bar": 1, "bar2": 3}},
		{id: "2", expected: map[string]int{"bar": 0, "bar2": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			entry, err := foo.Get(ctx, tt.id)
			require.NoError(t, err)
			require.NotNil(t, entry)

			links, err := foo.GetLinks(ctx, entry, models)
			require.NoError(t, err)
			require.Len(t, links, 2)
			assert.Equal(t, "bar", links[0].Model)
			assert.Equal(t, "bar2", links[1].Model)
			assert.Equal(t, tt.expected, entryCounts(links))
		})
	}
}

func TestGetLinksEntryShape(t *testing.T) {
	ctx := context.Background()
	foo, models := linkFixture(t, []dataeditor.SchemaLink{{Model: "bar", Key: "id", ForeignKey: "fooId"}})

	entry, err := foo.Get(ctx, "0")
	require.NoError(t, err)
	links, err := foo.GetLinks(ctx, entry, models)
	require.NoError(t, err)
	want := []dataeditor.DataModelLink{{
		Model:   "bar",
		Entries: []dataeditor.LinkEntry{{Key: "0", Title: "0"}, {Key: "1", Title: "1"}},
	}}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Errorf("GetLinks() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetLinksUnknownTargetYieldsEmpty(t *testing.T) {
	ctx := context.Background()
	foo, models := linkFixture(t, []dataeditor.SchemaLink{{Model: "ghost", Key: "id", ForeignKey: "fooId"}})

	entry, err := foo.Get(ctx, "0")
	require.NoError(t, err)
	links, err := foo.GetLinks(ctx, entry, models)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.NotNil(t, links[0].Entries)
	want := []dataeditor.DataModelLink{{Model: "ghost"}}
	if diff := cmp.Diff(want, links, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("GetLinks() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetLinksSkipsIncompleteDeclarations(t *testing.T) {
	ctx := context.Background()
	foo, models := linkFixture(t, []dataeditor.SchemaLink{
		{Model: "bar", Key: "id"},
		{Model: "bar2", ForeignKey: "fooId"},
		{Model: "bar", Key: "id", ForeignKey: "fooId"},
	})

	entry, err := foo.Get(ctx, "0")
	require.NoError(t, err)
	links, err := foo.GetLinks(ctx, entry, models)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "bar", links[0].Model)
	assert.Len(t, links[0].Entries, 2)
}

func TestGetLinksNilEntry(t *testing.T) {
	foo, models := linkFixture(t, []dataeditor.SchemaLink{{Model: "bar", Key: "id", ForeignKey: "fooId"}})
	links, err := foo.GetLinks(context.Background(), nil, models)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestFindModel(t *testing.T) {
	_, models := linkFixture(t, nil)
	require.NotNil(t, FindModel(models, "bar2"))
	assert.Equal(t, "bar2", FindModel(models, "bar2").ID())
	assert.Nil(t, FindModel(models, "ghost"))
}

func TestGetLinksFalsyLocalKeyMatchesNothing(t *testing.T) {
	ctx := context.Background()
	foo := fooSchema()
	foo.Links = []dataeditor.SchemaLink{{Model: "bar", Key: "code", ForeignKey: "fooId"}}
	fooModel := newTestModel(t, foo,
		dataeditor.Record{"id": "zero", "code": 0.0},
		dataeditor.Record{"id": "off", "code": false},
		dataeditor.Record{"id": "one", "code": 1.0},
	)
	bar := newTestModel(t, linkedSchema("bar"),
		dataeditor.Record{"id": "a", "fooId": "0"},
		dataeditor.Record{"id": "b", "fooId": "false"},
		dataeditor.Record{"id": "c", "fooId": "1"},
	)
	models := []dataeditor.DataModel{fooModel, bar}

	tests := []struct {
		id       string
		expected int
	}{
		{id: "zero", expected: 0},
		{id: "off", expected: 0},
		{id: "one", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			entry, err := fooModel.Get(ctx, tt.id)
			require.NoError(t, err)
			require.NotNil(t, entry)

			links, err := fooModel.GetLinks(ctx, entry, models)
			require.NoError(t, err)
			require.Len(t, links, 1)
			assert.Len(t, links[0].Entries, tt.expected)
		})
	}
}
