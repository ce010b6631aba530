package models

import "time"

// Participant roles on the wire
const (
	RolePresenter   = "presenter"
	RoleParticipant = "participant"
)

// Participant is one audience member of a session. ID is generated by the
// client and survives reconnects, so rejoining replaces the stale
// connection instead of creating a duplicate.
type Participant struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ConnectionID   string     `json:"-"`
	JoinedAt       time.Time  `json:"joinedAt"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"-"`
}

// SessionSummary is the read-only view of a session used by REST handlers
// and late result queries
type SessionSummary struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	PresentationID   string     `json:"presentationId"`
	Title            string     `json:"title"`
	ParticipantCount int        `json:"participantCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	Activity         *Activity  `json:"activity,omitempty"`
}
