package internal

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/dataeditor"
)

// unmarshalJSON decodes data keeping numbers as float64, like any JSON client would.
func unmarshalJSON(data []byte, v any) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func encodeRecord(record dataeditor.Record) ([]byte, error) {
	if record == nil {
		record = dataeditor.Record{}
	}
	return json.Marshal(record)
}

func decodeRecord(data []byte) (dataeditor.Record, error) {
	var record dataeditor.Record
	if err := unmarshalJSON(data, &record); err != nil {
		return nil, err
	}
	if record == nil {
		record = dataeditor.Record{}
	}
	return record, nil
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.Trim(part, " \"")
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}
	if len(clean) == 0 {
		clean = []string{name}
	}
	return pgx.Identifier(clean).Sanitize()
}
