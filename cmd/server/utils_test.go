package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lychee-technology/dataeditor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecordBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    dataeditor.Record
		wantErr bool
	}{
		{name: "object", body: `{"id": "1", "n": 2}`, want: dataeditor.Record{"id": "1", "n": 2.0}},
		{name: "empty object", body: `{}`, want: dataeditor.Record{}},
		{name: "null", body: `null`, wantErr: true},
		{name: "array", body: `[]`, wantErr: true},
		{name: "truncated", body: `{"id"`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			got, err := readRecordBody(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SCHEMA_DIR", "/srv/schemas")
	t.Setenv("PORT", "8081")
	t.Setenv("API_LOGIN", "admin")
	t.Setenv("API_PASSWORD", "secret")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_MAX_CONNECTIONS", "not-a-number")

	config := dataeditor.DefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, "/srv/schemas", config.SchemaDirectory)
	assert.Equal(t, ":8081", config.Server.Address)
	assert.Equal(t, dataeditor.Credentials{Login: "admin", Password: "secret"}, config.Auth.Credentials)
	assert.Equal(t, 6543, config.Storage.Postgres.Port)
	assert.Equal(t, dataeditor.DefaultConfig().Storage.Postgres.MaxConnections, config.Storage.Postgres.MaxConnections)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(dataeditor.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(dataeditor.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
