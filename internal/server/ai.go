package server

import (
	"net/http"
	"strings"

	"github.com/nhle/webmail/internal/ai"
	"github.com/nhle/webmail/internal/session"
)

// handleAIDraft generates a body for the prompt. The response data is
// the text itself.
func (s *Server) handleAIDraft(w http.ResponseWriter, r *http.Request) {
	if s.writer == nil {
		writeError(w, http.StatusServiceUnavailable, session.CodeInternal, "AI drafting is not configured")
		return
	}

	var req ai.DraftRequest
	if !decode(w, r, &req) {
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, session.CodeValidation, "Prompt is required")
		return
	}

	text, err := s.writer.Write(r.Context(), prompt)
	if err != nil {
		s.logger.Error("generating draft", "user_id", userID(r.Context()), "error", err)
		writeError(w, http.StatusBadGateway, session.CodeInternal, "Failed to generate draft")
		return
	}
	writeData(w, http.StatusOK, text)
}
