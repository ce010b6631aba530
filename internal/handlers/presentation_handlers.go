package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"audience-live/internal/models"
	"audience-live/internal/services"

	"github.com/gorilla/mux"
)

// PresentationHandler handles HTTP requests for presentation metadata
type PresentationHandler struct {
	store *services.PresentationStore
}

// NewPresentationHandler creates a new presentation handler
func NewPresentationHandler(store *services.PresentationStore) *PresentationHandler {
	return &PresentationHandler{
		store: store,
	}
}

// UpsertPresentation stores the metadata the authoring system pushes for
// a presentation (title and prepared activity configs)
// PUT /api/presentations/{presentationId}
func (h *PresentationHandler) UpsertPresentation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	presentationID := vars["presentationId"]

	var record models.PresentationRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	record.ID = presentationID

	if record.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	if err := h.store.Upsert(&record); err != nil {
		log.Printf("Failed to upsert presentation: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// GetPresentation returns the stored metadata for a presentation
// GET /api/presentations/{presentationId}
func (h *PresentationHandler) GetPresentation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	presentationID := vars["presentationId"]

	record, exists := h.store.Get(presentationID)
	if !exists {
		http.Error(w, "Presentation not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}
