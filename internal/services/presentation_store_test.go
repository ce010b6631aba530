package services

import (
	"os"
	"path/filepath"
	"testing"

	"audience-live/internal/models"
)

func TestPresentationStoreRoundTrip(t *testing.T) {
	dataPath := t.TempDir()

	store, err := NewPresentationStore(dataPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	record := &models.PresentationRecord{
		ID:    "pres-1",
		Title: "Quarterly review",
		Activities: map[string]*models.ActivityInput{
			"poll-1": {
				ID:   "poll-1",
				Type: models.ActivityPoll,
				Config: models.ActivityConfig{
					Question: "Pick one",
					Options:  []string{"Red", "Blue"},
				},
			},
		},
	}
	if err := store.Upsert(record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if got := store.Title("pres-1"); got != "Quarterly review" {
		t.Errorf("Expected title, got %q", got)
	}
	if got := store.Title("unknown"); got != "" {
		t.Errorf("Expected empty title for unknown presentation, got %q", got)
	}

	template, ok := store.ActivityTemplate("pres-1", "poll-1")
	if !ok || template.Config.Question != "Pick one" {
		t.Errorf("Expected stored template, got %+v (ok=%v)", template, ok)
	}
	if _, ok := store.ActivityTemplate("pres-1", "missing"); ok {
		t.Error("Expected no template for unknown activity")
	}

	// A fresh store picks the data back up from disk
	reloaded, err := NewPresentationStore(dataPath)
	if err != nil {
		t.Fatalf("Failed to reload store: %v", err)
	}
	if got := reloaded.Title("pres-1"); got != "Quarterly review" {
		t.Errorf("Expected title after reload, got %q", got)
	}
}

func TestPresentationStoreMissingFile(t *testing.T) {
	store, err := NewPresentationStore(t.TempDir())
	if err != nil {
		t.Fatalf("Expected empty store for missing file, got %v", err)
	}
	if _, exists := store.Get("anything"); exists {
		t.Error("Expected empty store")
	}
}

func TestPresentationStoreCorruptFile(t *testing.T) {
	dataPath := t.TempDir()
	filePath := filepath.Join(dataPath, "presentations.json")
	if err := os.WriteFile(filePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	// Corrupt data degrades to an empty store instead of failing startup
	store, err := NewPresentationStore(dataPath)
	if err != nil {
		t.Fatalf("Expected corrupt file to be tolerated, got %v", err)
	}
	if _, exists := store.Get("anything"); exists {
		t.Error("Expected empty store after corrupt load")
	}
}

func TestPresentationStoreUpsertValidation(t *testing.T) {
	store, err := NewPresentationStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Upsert(&models.PresentationRecord{Title: "No ID"}); err == nil {
		t.Error("Expected rejection of a record without an ID")
	}
}
