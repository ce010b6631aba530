package models

// PresentationRecord is the metadata the engine needs about an authored
// presentation. Authoring itself lives in an external system; this record
// is a local mirror consumed read-mostly.
type PresentationRecord struct {
	ID         string                    `json:"id"`
	Title      string                    `json:"title"`
	Activities map[string]*ActivityInput `json:"activities,omitempty"`
}

// PresentationsFile is the root structure of presentations.json
type PresentationsFile struct {
	Presentations map[string]*PresentationRecord `json:"presentations"`
}
