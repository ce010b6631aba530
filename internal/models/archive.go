package models

import "time"

// ArchivedSession is the durable record of one session run
type ArchivedSession struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	PresentationID string     `json:"presentationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// ArchivedOptionCount is one option's archived vote count
type ArchivedOptionCount struct {
	OptionID int `json:"optionId"`
	Votes    int `json:"votes"`
}

// ArchivedPollResults is the archived tally for one poll of one session
type ArchivedPollResults struct {
	SessionID string                `json:"sessionId"`
	PollID    string                `json:"pollId"`
	Options   []ArchivedOptionCount `json:"options"`
	Total     int                   `json:"total"`
}
