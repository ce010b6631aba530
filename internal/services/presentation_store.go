package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"audience-live/internal/models"
)

// PresentationStore mirrors presentation metadata in a JSON file. The
// authoring system owns presentations; the engine only needs titles and
// prepared activity configs, synced in through the REST surface.
type PresentationStore struct {
	mu       sync.RWMutex
	filePath string
	data     *models.PresentationsFile
}

// NewPresentationStore creates a new presentation store and loads data
func NewPresentationStore(dataPath string) (*PresentationStore, error) {
	filePath := filepath.Join(dataPath, "presentations.json")

	store := &PresentationStore{
		filePath: filePath,
		data: &models.PresentationsFile{
			Presentations: make(map[string]*models.PresentationRecord),
		},
	}

	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load presentations: %w", err)
	}

	return store, nil
}

// Load reads presentations.json file or creates empty structure if file doesn't exist
func (s *PresentationStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check if file exists
	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		log.Printf("Presentations file not found, creating empty structure: %s", s.filePath)
		return nil
	}

	// Read file
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to read presentations file: %w", err)
	}

	// Parse JSON
	var file models.PresentationsFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Printf("Failed to parse presentations.json, using empty structure: %v", err)
		// Use empty structure instead of failing
		return nil
	}

	if file.Presentations == nil {
		file.Presentations = make(map[string]*models.PresentationRecord)
	}
	s.data = &file
	log.Printf("Loaded %d presentations from %s", len(s.data.Presentations), s.filePath)
	return nil
}

// save atomically writes presentations.json file (temp file → rename)
// Must be called with lock held
func (s *PresentationStore) save() error {
	// Marshal JSON with indentation
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal presentations: %w", err)
	}

	// Write to temp file
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Sync to disk
	file, err := os.OpenFile(tempPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file for sync: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	file.Close()

	// Atomic rename
	if err := os.Rename(tempPath, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Get returns the metadata record for a presentation
func (s *PresentationStore) Get(presentationID string) (*models.PresentationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.data.Presentations[presentationID]
	return record, exists
}

// Title returns the presentation title, or "" when unknown
func (s *PresentationStore) Title(presentationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, exists := s.data.Presentations[presentationID]; exists {
		return record.Title
	}
	return ""
}

// Upsert stores a presentation metadata record and persists the file
func (s *PresentationStore) Upsert(record *models.PresentationRecord) error {
	if record.ID == "" {
		return fmt.Errorf("presentation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Presentations[record.ID] = record

	if err := s.save(); err != nil {
		return fmt.Errorf("failed to save after upsert: %w", err)
	}

	log.Printf("Presentation metadata updated: id=%s", record.ID)
	return nil
}

// ActivityTemplate returns a prepared activity config by ID, if the
// presentation carries one
func (s *PresentationStore) ActivityTemplate(presentationID, activityID string) (*models.ActivityInput, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.data.Presentations[presentationID]
	if !exists || record.Activities == nil {
		return nil, false
	}
	template, exists := record.Activities[activityID]
	return template, exists
}
