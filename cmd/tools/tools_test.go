package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lychee-technology/dataeditor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchemaDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

const fooSchemaJSON = `{
	"$id": "foo",
	"primaryKey": "id",
	"required": ["id"],
	"properties": {
		"id": {"type": "string"},
		"text": {"type": "string", "default": "nothing"}
	}
}`

func TestRunValidate(t *testing.T) {
	dir := writeSchemaDir(t, map[string]string{
		"foo.json":      fooSchemaJSON,
		"foo_data.json": `[{"id": "0"}, {"id": "1", "text": "one"}]`,
	})

	var out bytes.Buffer
	require.NoError(t, runValidate(&out, dir))
	assert.Contains(t, out.String(), "ok   foo (2 seed records)")
}

func TestRunValidateReportsProblems(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name: "invalid seed record",
			files: map[string]string{
				"foo.json":      fooSchemaJSON,
				"foo_data.json": `[{"id": "0"}, {"id": 1}]`,
			},
			want: "FAIL foo seed[1]",
		},
		{
			name: "duplicate seed key",
			files: map[string]string{
				"foo.json":      fooSchemaJSON,
				"foo_data.json": `[{"id": "0"}, {"id": "0"}]`,
			},
			want: "already used by seed[0]",
		},
		{
			name: "numeric primary key",
			files: map[string]string{
				"bar.json": `{"$id": "bar", "primaryKey": "id", "properties": {"id": {"type": "number"}}}`,
			},
			want: "FAIL bar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runValidate(&out, writeSchemaDir(t, tt.files))
			require.Error(t, err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func exportConfig(t *testing.T) *dataeditor.Config {
	t.Helper()
	config := dataeditor.DefaultConfig()
	config.Metrics.Enabled = false
	config.SchemaDirectory = writeSchemaDir(t, map[string]string{
		"foo.json":      fooSchemaJSON,
		"foo_data.json": `[{"id": "0", "text": "zero"}]`,
	})
	return config
}

func TestRunExport(t *testing.T) {
	ctx := context.Background()

	t.Run("stdout", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runExport(ctx, &out, exportConfig(t), exportOptions{model: "foo"}))
		assert.JSONEq(t, `[{"id": "0", "text": "zero"}]`, out.String())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "foo.json")
		var out bytes.Buffer
		require.NoError(t, runExport(ctx, &out, exportConfig(t), exportOptions{model: "foo", output: path}))
		assert.Empty(t, out.String())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var records []dataeditor.Record
		require.NoError(t, json.Unmarshal(data, &records))
		assert.Equal(t, []dataeditor.Record{{"id": "0", "text": "zero"}}, records)
	})

	t.Run("unknown model", func(t *testing.T) {
		err := runExport(ctx, io.Discard, exportConfig(t), exportOptions{model: "ghost"})
		require.Error(t, err)
		assert.True(t, dataeditor.IsModelError(err))
	})
}

type fakeUploadClient struct {
	puts []*s3.PutObjectInput
	body []byte
}

func (f *fakeUploadClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeUploadClient) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	panic("unexpected multipart upload")
}

func (f *fakeUploadClient) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	panic("unexpected multipart upload")
}

func (f *fakeUploadClient) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	panic("unexpected multipart upload")
}

func (f *fakeUploadClient) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	panic("unexpected multipart upload")
}

func TestUploadExport(t *testing.T) {
	client := &fakeUploadClient{}
	require.NoError(t, uploadExport(context.Background(), client, "exports", "foo.json", []byte(`[]`)))

	require.Len(t, client.puts, 1)
	assert.Equal(t, "exports", aws.ToString(client.puts[0].Bucket))
	assert.Equal(t, "foo.json", aws.ToString(client.puts[0].Key))
	assert.Equal(t, "application/json", aws.ToString(client.puts[0].ContentType))
	assert.Equal(t, `[]`, string(client.body))
}

func TestRunInitDB(t *testing.T) {
	config := dataeditor.DefaultConfig()
	config.Storage.SQL = dataeditor.SQLConfig{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "records.db"),
		Table:  "records",
	}

	var out bytes.Buffer
	require.NoError(t, runInitDB(context.Background(), &out, config, dataeditor.AdapterSQL))
	assert.Contains(t, out.String(), "table records ready on sqlite")

	// idempotent
	require.NoError(t, runInitDB(context.Background(), &out, config, dataeditor.AdapterSQL))

	assert.Error(t, runInitDB(context.Background(), &out, config, dataeditor.AdapterRedis))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	var names []string
	for _, cmd := range RootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"validate", "init-db", "export"})
}
