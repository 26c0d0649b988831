package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lychee-technology/dataeditor"
	"github.com/lychee-technology/dataeditor/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringProp() dataeditor.PropertySchema {
	return dataeditor.PropertySchema{Type: dataeditor.TypeList{"string"}}
}

func testModels(t *testing.T) []dataeditor.DataModel {
	t.Helper()
	foo := dataeditor.Schema{
		ID:            "foo",
		PrimaryKey:    "id",
		Required:      []string{"id"},
		TitleTemplate: "Foo ${text}",
		Properties: dataeditor.PropertyList{
			{Name: "id", Schema: stringProp()},
			{Name: "text", Schema: dataeditor.PropertySchema{Type: dataeditor.TypeList{"string"}, Default: "nothing"}},
		},
		Links: []dataeditor.SchemaLink{{Model: "bar", Key: "id", ForeignKey: "fooId"}},
	}
	bar := dataeditor.Schema{
		ID:         "bar",
		PrimaryKey: "id",
		Required:   []string{"id"},
		Properties: dataeditor.PropertyList{
			{Name: "id", Schema: stringProp()},
			{Name: "fooId", Schema: stringProp()},
		},
	}

	fooModel, err := internal.NewDataModel(foo, internal.NewMemoryAdapter([]dataeditor.Record{
		{"id": "0", "text": "zero"},
		{"id": "1", "text": "one"},
	}, internal.AdapterOptions{}))
	require.NoError(t, err)
	barModel, err := internal.NewDataModel(bar, internal.NewMemoryAdapter([]dataeditor.Record{
		{"id": "a", "fooId": "0"},
		{"id": "b", "fooId": "0"},
		{"id": "c", "fooId": "1"},
	}, internal.AdapterOptions{}))
	require.NoError(t, err)
	return []dataeditor.DataModel{fooModel, barModel}
}

func testConfig() *dataeditor.Config {
	config := dataeditor.DefaultConfig()
	config.Metrics.Enabled = false
	config.Logging.AccessLog = false
	return config
}

func newTestHandler(t *testing.T, config *dataeditor.Config) http.Handler {
	t.Helper()
	return NewHandler(NewServer(testModels(t), config.Auth), config, prometheus.NewRegistry())
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHandleListSchemas(t *testing.T) {
	h := newTestHandler(t, testConfig())

	for _, path := range []string{"/api", "/api/"} {
		rec := doRequest(t, h, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		resp := decode[dataeditor.SchemasResponse](t, rec)
		require.Len(t, resp.Schemas, 2)
		assert.Equal(t, "foo", resp.Schemas[0].ID)
		assert.Equal(t, "bar", resp.Schemas[1].ID)
	}
}

func TestHandleListEntries(t *testing.T) {
	h := newTestHandler(t, testConfig())

	for _, path := range []string{"/api/foo", "/api/foo/"} {
		rec := doRequest(t, h, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		resp := decode[dataeditor.EntriesResponse](t, rec)
		assert.Equal(t, "foo", resp.Schema.ID)
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, "0", resp.Entries[0].Key)
		assert.Equal(t, "Foo zero", resp.Entries[0].Title)
	}
}

func TestHandleGetEntry(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := doRequest(t, h, http.MethodGet, "/api/foo/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dataeditor.EntryResponse](t, rec)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, "zero", resp.Entry.Data["text"])
	assert.Equal(t, []dataeditor.DataModelLink{{
		Model: "bar",
		Entries: []dataeditor.LinkEntry{
			{Key: "a", Title: "a"},
			{Key: "b", Title: "b"},
		},
	}}, resp.Links)
}

func TestHandleGetMissingEntry(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := doRequest(t, h, http.MethodGet, "/api/foo/404", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schema": `+mustSchemaJSON(t, h, "foo")+`, "links": []}`, rec.Body.String())
}

func mustSchemaJSON(t *testing.T, h http.Handler, model string) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodGet, "/api/"+model+"/", nil)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return string(raw["schema"])
}

func TestHandleUnknownModel(t *testing.T) {
	h := newTestHandler(t, testConfig())

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/ghost/", nil},
		{http.MethodGet, "/api/ghost/1", nil},
		{http.MethodPost, "/api/ghost/", map[string]any{"id": "x"}},
		{http.MethodPut, "/api/ghost/1", map[string]any{"id": "x"}},
		{http.MethodDelete, "/api/ghost/1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "model ghost does not exist.", strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestHandleCreateEntry(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := doRequest(t, h, http.MethodPost, "/api/foo/", map[string]any{"id": "2", "extra": true})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dataeditor.EntryResponse](t, rec)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, dataeditor.Record{"id": "2", "text": "nothing"}, resp.Entry.Data)
	assert.Empty(t, resp.Links)
	assert.NotNil(t, resp.Links)

	rec = doRequest(t, h, http.MethodPost, "/api/foo/", map[string]any{"id": "2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "entry with key 2 already exists.", strings.TrimSpace(rec.Body.String()))

	rec = doRequest(t, h, http.MethodPost, "/api/foo/", map[string]any{"id": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/foo/", map[string]any{"text": "no key"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateEntryInvalidBody(t *testing.T) {
	h := newTestHandler(t, testConfig())

	for _, body := range []string{"{", "null", "[1, 2]"} {
		rec := doRequest(t, h, http.MethodPost, "/api/foo/", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "invalid json body", body)
	}
}

func TestHandleUpdateEntry(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := doRequest(t, h, http.MethodPut, "/api/foo/0", map[string]any{"text": "changed"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dataeditor.EntryResponse](t, rec)
	assert.Equal(t, dataeditor.Record{"id": "0", "text": "changed"}, resp.Entry.Data)

	// rename
	rec = doRequest(t, h, http.MethodPut, "/api/foo/0", map[string]any{"id": "9"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, h, http.MethodGet, "/api/foo/9", nil)
	resp = decode[dataeditor.EntryResponse](t, rec)
	require.NotNil(t, resp.Entry)
	assert.Equal(t, "changed", resp.Entry.Data["text"])

	rec = doRequest(t, h, http.MethodPut, "/api/foo/0", map[string]any{"text": "gone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "entry cannot be updated, because it does not exist.", strings.TrimSpace(rec.Body.String()))
}

func TestHandleDeleteEntry(t *testing.T) {
	h := newTestHandler(t, testConfig())

	rec := doRequest(t, h, http.MethodDelete, "/api/foo/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = doRequest(t, h, http.MethodDelete, "/api/foo/1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "entry with key 1 does not exist.", strings.TrimSpace(rec.Body.String()))
}

func TestBasicAuth(t *testing.T) {
	tests := []struct {
		name        string
		publicReads bool
		method      string
		path        string
		login       string
		password    string
		wantStatus  int
	}{
		{name: "read without credentials", method: http.MethodGet, path: "/api/foo/", wantStatus: http.StatusUnauthorized},
		{name: "read with credentials", method: http.MethodGet, path: "/api/foo/", login: "admin", password: "secret", wantStatus: http.StatusOK},
		{name: "public read", publicReads: true, method: http.MethodGet, path: "/api/foo/0", wantStatus: http.StatusOK},
		{name: "public read still guards writes", publicReads: true, method: http.MethodDelete, path: "/api/foo/0", wantStatus: http.StatusUnauthorized},
		{name: "wrong password", method: http.MethodDelete, path: "/api/foo/0", login: "admin", password: "nope", wantStatus: http.StatusUnauthorized},
		{name: "write with credentials", method: http.MethodDelete, path: "/api/foo/0", login: "admin", password: "secret", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			config.Auth = dataeditor.AuthConfig{
				Credentials: dataeditor.Credentials{Login: "admin", Password: "secret"},
				PublicReads: tt.publicReads,
			}
			h := newTestHandler(t, config)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.login != "" {
				req.SetBasicAuth(tt.login, tt.password)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="dataeditor"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestNoCredentialsMeansOpenAPI(t *testing.T) {
	h := newTestHandler(t, testConfig())
	rec := doRequest(t, h, http.MethodDelete, "/api/foo/0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCustomAPIPrefix(t *testing.T) {
	config := testConfig()
	config.Server.APIPrefix = "/"
	h := newTestHandler(t, config)

	rec := doRequest(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, h, http.MethodGet, "/bar/c", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	config := testConfig()
	config.Metrics.Enabled = true
	h := newTestHandler(t, config)

	require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/api/foo/0", nil).Code)

	rec := doRequest(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `handler="/api/{model}/{id}"`)
}

func TestStaticDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>editor</h1>"), 0o644))

	config := testConfig()
	config.Server.StaticDirectory = dir
	h := newTestHandler(t, config)

	rec := doRequest(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "editor")

	rec = doRequest(t, h, http.MethodGet, "/api/foo/0", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
