package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lychee-technology/dataeditor"
)

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the message as a plain-text body
func writeError(w http.ResponseWriter, statusCode int, message string) {
	http.Error(w, message, statusCode)
}

// readRecordBody reads and decodes a JSON object from the request body
func readRecordBody(r *http.Request) (dataeditor.Record, error) {
	defer r.Body.Close()
	var record dataeditor.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return record, nil
}
