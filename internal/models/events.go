package models

import "encoding/json"

// Envelope is the wire frame for every WebSocket message in both directions
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client → server event types
const (
	EventCreateSession    = "create-session"
	EventJoinSession      = "join-session"
	EventLeaveSession     = "leave-session"
	EventUpdateActivity   = "update-activity"
	EventEndActivity      = "end-activity"
	EventActivityResponse = "activity-response"
	EventQuestionUpvote   = "question-upvote"
	EventQuestionModerate = "question-moderate"
	EventEndSession       = "end-session"
)

// Server → client event types
const (
	EventSessionCreated          = "session-created"
	EventSessionInfo             = "session-info"
	EventSessionError            = "session-error"
	EventSessionEnded            = "session-ended"
	EventParticipantCountChanged = "participant-count-changed"
	EventActivityStarted         = "activity-started"
	EventActivityEnded           = "activity-ended"
	EventResponseReceived        = "response-received"
	EventResultsUpdate           = "activity-results-update"
)

// NewEnvelope marshals a payload into an Envelope. Marshal failures are a
// programming error on our own types, so the payload is dropped rather
// than propagated.
func NewEnvelope(eventType string, payload interface{}) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Type: eventType}
	}
	return Envelope{Type: eventType, Payload: data}
}

// CreateSessionPayload opens a new session for a presentation
type CreateSessionPayload struct {
	PresentationID string `json:"presentationId"`
	PresenterName  string `json:"presenterName"`
	Token          string `json:"token,omitempty"`
}

// JoinSessionPayload enters an existing session by code. UserID is
// client-generated and stable across reconnects.
type JoinSessionPayload struct {
	SessionCode string `json:"sessionCode"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	Role        string `json:"role"`
}

// UpdateActivityPayload starts (or restarts) an activity
type UpdateActivityPayload struct {
	SessionID string        `json:"sessionId"`
	Activity  ActivityInput `json:"activity"`
}

// ActivityInput is the presenter-authored activity to run
type ActivityInput struct {
	ID     string         `json:"id,omitempty"`
	Type   ActivityType   `json:"type"`
	Config ActivityConfig `json:"config"`
}

// EndActivityPayload closes the active activity
type EndActivityPayload struct {
	SessionID  string `json:"sessionId"`
	ActivityID string `json:"activityId"`
}

// ActivityResponsePayload carries one participant response
type ActivityResponsePayload struct {
	SessionID    string          `json:"sessionId"`
	ActivityID   string          `json:"activityId"`
	UserID       string          `json:"userId"`
	UserName     string          `json:"userName"`
	ResponseType ActivityType    `json:"responseType"`
	ResponseData json.RawMessage `json:"responseData"`
}

// PollResponseData selects one option, or several when multi-select is on
type PollResponseData struct {
	Option  int   `json:"option"`
	Options []int `json:"options,omitempty"`
}

// QuizResponseData selects one answer option
type QuizResponseData struct {
	Option int `json:"option"`
}

// WordCloudResponseData submits one word
type WordCloudResponseData struct {
	Word string `json:"word"`
}

// QAResponseData submits one audience question
type QAResponseData struct {
	Text string `json:"text"`
}

// QuestionUpvotePayload upvotes an audience question
type QuestionUpvotePayload struct {
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	UserID     string `json:"userId"`
}

// Moderation actions on audience questions
const (
	ModerateApprove   = "approve"
	ModerateHighlight = "highlight"
	ModerateRemove    = "remove"
)

// QuestionModeratePayload applies a presenter moderation action
type QuestionModeratePayload struct {
	SessionID  string `json:"sessionId"`
	QuestionID string `json:"questionId"`
	Action     string `json:"action"`
}

// EndSessionPayload closes a session for everyone
type EndSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// SessionCreatedPayload acknowledges create-session
type SessionCreatedPayload struct {
	SessionID   string `json:"sessionId"`
	SessionCode string `json:"sessionCode"`
}

// SessionInfoPayload is the full snapshot sent on join and resume
type SessionInfoPayload struct {
	SessionID        string    `json:"sessionId"`
	Code             string    `json:"code"`
	Title            string    `json:"title"`
	ParticipantCount int       `json:"participantCount"`
	ActiveActivity   *Activity `json:"activeActivity,omitempty"`
}

// SessionErrorPayload reports a typed error to the originating client only
type SessionErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParticipantCountPayload notifies the presenter of audience size changes
type ParticipantCountPayload struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

// ResultsUpdatePayload pushes a results snapshot after an accepted response
type ResultsUpdatePayload struct {
	SessionID  string      `json:"sessionId"`
	ActivityID string      `json:"activityId"`
	Results    interface{} `json:"results"`
}

// ResponseReceivedPayload acknowledges an accepted response to the presenter
type ResponseReceivedPayload struct {
	SessionID  string       `json:"sessionId"`
	ActivityID string       `json:"activityId"`
	UserID     string       `json:"userId"`
	Type       ActivityType `json:"type"`
}
