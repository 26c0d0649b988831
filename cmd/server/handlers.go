package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lychee-technology/dataeditor"
	"github.com/lychee-technology/dataeditor/internal"
	"go.uber.org/zap"
)

// model resolves the {model} path variable, answering 400 when it is unknown.
func (s *Server) model(w http.ResponseWriter, r *http.Request) (dataeditor.DataModel, bool) {
	id := mux.Vars(r)["model"]
	model := internal.FindModel(s.models, id)
	if model == nil {
		writeError(w, http.StatusBadRequest, dataeditor.NewUnknownModelError(id).Message)
		return nil, false
	}
	return model, true
}

// fail maps err onto a response: editor errors are client errors carrying
// their message, anything else is logged and reported as a server error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if dataeditor.ErrorTypeOf(err) == dataeditor.ErrorTypeInternal {
		internalErr := dataeditor.NewInternalError("internal server error", err)
		zap.S().Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", internalErr)
		writeError(w, http.StatusInternalServerError, internalErr.Message)
		return
	}
	zap.S().Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusBadRequest, dataeditor.ErrorMessage(err))
}

// handleListSchemas handles GET /
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := make([]*dataeditor.Schema, 0, len(s.models))
	for _, model := range s.models {
		schemas = append(schemas, model.Schema())
	}
	writeJSON(w, http.StatusOK, dataeditor.SchemasResponse{Schemas: schemas})
}

// handleListEntries handles GET /{model}/
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	model, ok := s.model(w, r)
	if !ok {
		return
	}
	entries, err := model.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataeditor.EntriesResponse{Schema: model.Schema(), Entries: entries})
}

// handleGetEntry handles GET /{model}/{id}
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	model, ok := s.model(w, r)
	if !ok {
		return
	}
	entry, err := model.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, err)
		return
	}

	links := []dataeditor.DataModelLink{}
	if entry != nil {
		links, err = model.GetLinks(r.Context(), entry, s.models)
		if err != nil {
			fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dataeditor.EntryResponse{Schema: model.Schema(), Entry: entry, Links: links})
}

// handleCreateEntry handles POST /{model}/
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	model, ok := s.model(w, r)
	if !ok {
		return
	}
	data, err := readRecordBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	entry, err := model.Create(r.Context(), data)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataeditor.EntryResponse{Schema: model.Schema(), Entry: entry, Links: []dataeditor.DataModelLink{}})
}

// handleUpdateEntry handles PUT /{model}/{id}
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	model, ok := s.model(w, r)
	if !ok {
		return
	}
	data, err := readRecordBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	entry, err := model.Update(r.Context(), mux.Vars(r)["id"], data)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataeditor.EntryResponse{Schema: model.Schema(), Entry: entry, Links: []dataeditor.DataModelLink{}})
}

// handleDeleteEntry handles DELETE /{model}/{id}
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	model, ok := s.model(w, r)
	if !ok {
		return
	}
	if err := model.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
