package handlers

import (
	"encoding/json"
	"net/http"

	"audience-live/internal/engine"
	"audience-live/internal/models"
	"audience-live/internal/services"

	"github.com/gorilla/mux"
)

// SessionHandler handles HTTP requests for live and archived sessions
type SessionHandler struct {
	registry *engine.Registry
	archive  *services.ArchiveService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *engine.Registry, archive *services.ArchiveService) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		archive:  archive,
	}
}

// GetSession returns the live summary of a session. Ended sessions stay
// readable until the eviction grace passes, so presenters can fetch final
// results after closing.
// GET /api/sessions/{code}
func (sh *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["code"]

	session, err := sh.registry.GetSession(code)
	if err != nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Summary())
}

// ListSessionsByPresentation returns the archived session history of a
// presentation
// GET /api/presentations/{presentationId}/sessions
func (sh *SessionHandler) ListSessionsByPresentation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	presentationID := vars["presentationId"]

	sessions, err := sh.archive.ListByPresentation(presentationID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	// Always return an array, even if empty
	if sessions == nil {
		sessions = []*models.ArchivedSession{}
	}
	json.NewEncoder(w).Encode(sessions)
}

// GetPollResults returns the archived vote counts for one poll
// GET /api/sessions/{sessionId}/polls/{pollId}/results
func (sh *SessionHandler) GetPollResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["sessionId"]
	pollID := vars["pollId"]

	results, err := sh.archive.GetPollResults(sessionID, pollID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// Health reports liveness
// GET /api/health
func (sh *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
