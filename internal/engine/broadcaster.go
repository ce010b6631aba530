package engine

import (
	"log"
	"time"

	"audience-live/internal/models"

	"github.com/google/uuid"
)

// Sender delivers an event to one connection. Implemented by the
// WebSocket hub; delivery is best-effort and must never block the engine.
type Sender interface {
	Send(connectionID string, envelope models.Envelope)
}

// Archive is the durable record-keeping boundary. The engine writes
// behind it and never reads live state back out of it.
type Archive interface {
	CreateSession(id, code, presentationID string, createdAt time.Time) error
	EndSession(id string, endedAt time.Time) error
	AddPollResponse(sessionID, activityID string, optionID int, userID string) error
}

// Broadcaster fans activity-lifecycle events out to a session's audience
// and pushes results back to the presenter. It implements RegistryObserver
// so sweep-driven expirations reach connected clients the same way
// presenter-driven ones do.
type Broadcaster struct {
	sender  Sender
	archive Archive
}

// NewBroadcaster creates a broadcaster over the given transport and archive
func NewBroadcaster(sender Sender, archive Archive) *Broadcaster {
	return &Broadcaster{sender: sender, archive: archive}
}

// Activate starts a new activity, implicitly ending the previous one, and
// pushes the participant-safe snapshot to every connected participant.
// The presenter receives the full activity as acknowledgment.
func (b *Broadcaster) Activate(session *Session, input models.ActivityInput) (*models.Activity, error) {
	activity := newActivity(input)
	snapshot, err := session.startActivity(activity)
	if err != nil {
		return nil, err
	}

	log.Printf("Activity started: code=%s, activity=%s, type=%s", session.Code, activity.ID, activity.Type)

	// Envelopes are built from the snapshot: responses may already be
	// folding into the live activity on other goroutines.
	b.fanout(session, models.NewEnvelope(models.EventActivityStarted, participantView(snapshot)))
	b.toPresenter(session, models.NewEnvelope(models.EventActivityStarted, snapshot))
	return activity, nil
}

// End closes the active activity and reveals the final snapshot to
// everyone. Ending when nothing is active is reported only to the caller.
func (b *Broadcaster) End(session *Session) (*models.Activity, error) {
	snapshot, err := session.endActivity()
	if err != nil {
		return nil, err
	}

	log.Printf("Activity ended: code=%s, activity=%s", session.Code, snapshot.ID)

	b.fanout(session, models.NewEnvelope(models.EventActivityEnded, endedParticipantView(snapshot)))
	b.toPresenter(session, models.NewEnvelope(models.EventActivityEnded, snapshot))
	return snapshot, nil
}

// endedParticipantView is the final snapshot participants receive: the
// answer key is revealed, but per-user quiz entries stay with the
// presenter; the audience sees only the derived leaderboard.
func endedParticipantView(a *models.Activity) *models.Activity {
	if a.Quiz == nil {
		return a
	}
	view := a.Clone()
	view.Quiz = &models.QuizResults{Leaderboard: a.Quiz.Standings()}
	return view
}

// PushResultsUpdate sends a results snapshot taken by the aggregator after
// an accepted response. Tallies go to the presenter only, except for word
// clouds and Q&A where the live view is part of the audience experience.
func (b *Broadcaster) PushResultsUpdate(session *Session, activityID string, activityType models.ActivityType, results interface{}) {
	payload := models.ResultsUpdatePayload{
		SessionID:  session.ID,
		ActivityID: activityID,
		Results:    results,
	}
	envelope := models.NewEnvelope(models.EventResultsUpdate, payload)

	b.toPresenter(session, envelope)
	if activityType == models.ActivityWordCloud || activityType == models.ActivityQA {
		b.fanout(session, envelope)
	}
}

// ResponseReceived acknowledges an accepted response to the presenter
func (b *Broadcaster) ResponseReceived(session *Session, activityID string, activityType models.ActivityType, userID string) {
	payload := models.ResponseReceivedPayload{
		SessionID:  session.ID,
		ActivityID: activityID,
		UserID:     userID,
		Type:       activityType,
	}
	b.toPresenter(session, models.NewEnvelope(models.EventResponseReceived, payload))
}

// ParticipantCountChanged notifies the presenter of the new audience size
func (b *Broadcaster) ParticipantCountChanged(session *Session, count int) {
	payload := models.ParticipantCountPayload{SessionID: session.ID, Count: count}
	b.toPresenter(session, models.NewEnvelope(models.EventParticipantCountChanged, payload))
}

// SessionEnded tells every connected client the session is over and
// records the end in the archive
func (b *Broadcaster) SessionEnded(session *Session) {
	envelope := models.Envelope{Type: models.EventSessionEnded}
	b.fanout(session, envelope)
	b.toPresenter(session, envelope)

	if b.archive != nil {
		endedAt := time.Now()
		if t := session.EndedAt(); t != nil {
			endedAt = *t
		}
		go func() {
			if err := b.archive.EndSession(session.ID, endedAt); err != nil {
				log.Printf("Failed to archive session end: code=%s, err=%v", session.Code, err)
			}
		}()
	}
}

// SessionExpired implements RegistryObserver for idle-timeout expirations
func (b *Broadcaster) SessionExpired(session *Session) {
	b.SessionEnded(session)
}

// SendError reports a typed engine error to one client only
func (b *Broadcaster) SendError(connectionID string, err error) {
	engineErr := AsError(err)
	payload := models.SessionErrorPayload{Code: engineErr.Code, Message: engineErr.Message}
	b.sender.Send(connectionID, models.NewEnvelope(models.EventSessionError, payload))
}

// SendTo delivers an arbitrary event to one connection
func (b *Broadcaster) SendTo(connectionID string, envelope models.Envelope) {
	b.sender.Send(connectionID, envelope)
}

func (b *Broadcaster) fanout(session *Session, envelope models.Envelope) {
	for _, connID := range session.ParticipantConnectionIDs() {
		b.sender.Send(connID, envelope)
	}
}

func (b *Broadcaster) toPresenter(session *Session, envelope models.Envelope) {
	if connID := session.PresenterConnectionID(); connID != "" {
		b.sender.Send(connID, envelope)
	}
}

// newActivity builds an activity with results seeded for its type
func newActivity(input models.ActivityInput) *models.Activity {
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	activity := &models.Activity{
		ID:     id,
		Type:   input.Type,
		Config: input.Config,
	}

	switch input.Type {
	case models.ActivityPoll:
		activity.Poll = &models.PollResults{
			Counts: make([]int, len(input.Config.Options)),
			Voters: make(map[string]bool),
		}
	case models.ActivityQuiz:
		activity.Quiz = &models.QuizResults{Entries: make(map[string]*models.QuizEntry)}
	case models.ActivityWordCloud:
		activity.WordCloud = &models.WordCloudResults{
			Frequencies: make(map[string]int),
			PerUser:     make(map[string]int),
		}
	case models.ActivityQA:
		activity.QA = &models.QAResults{Questions: make([]*models.QAQuestion, 0)}
	}
	return activity
}
