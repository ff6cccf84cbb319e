package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nhle/webmail/internal/session"
	"github.com/nhle/webmail/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		http.Error(w, "Error marshalling response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Code: code, Message: message})
}

// writeStoreError maps store errors onto API errors.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, session.CodeNotFound, what+" not found")
		return
	}
	s.logger.Error("store failure", "error", err)
	writeError(w, http.StatusInternalServerError, session.CodeInternal, "Something went wrong")
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, session.CodeValidation, "Could not decode request body")
		return false
	}
	return true
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
