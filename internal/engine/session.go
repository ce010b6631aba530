package engine

import (
	"sync"
	"time"

	"audience-live/internal/models"
)

// Session is one live run of a presentation. All mutations go through
// methods that hold the session mutex, so concurrent joins, responses and
// lifecycle transitions for the same session serialize while distinct
// sessions proceed in parallel.
type Session struct {
	ID             string
	Code           string
	PresentationID string
	Title          string
	CreatedAt      time.Time

	mu              sync.Mutex
	presenterConnID string
	participants    map[string]*models.Participant
	active          *models.Activity
	endedAt         *time.Time
	lastActivityAt  time.Time
}

// NewSession creates a session with an empty participant set
func NewSession(id, code, presentationID, title, presenterConnID string) *Session {
	now := time.Now()
	return &Session{
		ID:              id,
		Code:            code,
		PresentationID:  presentationID,
		Title:           title,
		CreatedAt:       now,
		presenterConnID: presenterConnID,
		participants:    make(map[string]*models.Participant),
		lastActivityAt:  now,
	}
}

// Join upserts a participant keyed by its client-stable user ID. Rejoining
// with a known ID replaces the stale connection instead of adding a
// duplicate, so the reported count only grows for genuinely new users.
func (s *Session) Join(userID, name, connectionID string) (count int, resumed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedAt != nil {
		return 0, false, ErrSessionNotFound
	}

	if p, exists := s.participants[userID]; exists {
		p.ConnectionID = connectionID
		p.Connected = true
		p.DisconnectedAt = nil
		if name != "" {
			p.Name = name
		}
		s.lastActivityAt = time.Now()
		return len(s.participants), true, nil
	}

	s.participants[userID] = &models.Participant{
		ID:           userID,
		Name:         name,
		ConnectionID: connectionID,
		JoinedAt:     time.Now(),
		Connected:    true,
	}
	s.lastActivityAt = time.Now()
	return len(s.participants), false, nil
}

// AttachPresenter binds the presenter connection. Only one live presenter
// is allowed; a dead presenter connection may be replaced.
func (s *Session) AttachPresenter(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedAt != nil {
		return ErrSessionNotFound
	}
	if s.presenterConnID != "" && s.presenterConnID != connectionID {
		return ErrPresenterConflict
	}
	s.presenterConnID = connectionID
	s.lastActivityAt = time.Now()
	return nil
}

// MarkDisconnected records a transport loss for the given connection.
// Participant state is preserved for the grace window so a reconnect with
// the same user ID resumes without re-counting as a new join.
func (s *Session) MarkDisconnected(connectionID string) (userID string, wasPresenter bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.presenterConnID == connectionID {
		s.presenterConnID = ""
		return "", true
	}

	now := time.Now()
	for _, p := range s.participants {
		if p.ConnectionID == connectionID {
			p.Connected = false
			p.DisconnectedAt = &now
			return p.ID, false
		}
	}
	return "", false
}

// RemoveParticipant drops a participant immediately (forced disconnect or
// explicit leave). Returns the new count and whether anything changed.
func (s *Session) RemoveParticipant(userID string) (count int, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.participants[userID]; !exists {
		return len(s.participants), false
	}
	delete(s.participants, userID)
	s.lastActivityAt = time.Now()
	return len(s.participants), true
}

// SweepDisconnected removes participants whose grace window expired.
// Returns the number removed and the resulting count.
func (s *Session) SweepDisconnected(grace time.Duration) (removed, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-grace)
	for id, p := range s.participants {
		if !p.Connected && p.DisconnectedAt != nil && p.DisconnectedAt.Before(cutoff) {
			delete(s.participants, id)
			removed++
		}
	}
	return removed, len(s.participants)
}

// ParticipantCount counts all participants still within the session,
// including those inside the disconnect grace window
func (s *Session) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// ParticipantConnectionIDs returns the connections of all currently
// connected participants, for fanout
func (s *Session) ParticipantConnectionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.participants))
	for _, p := range s.participants {
		if p.Connected {
			ids = append(ids, p.ConnectionID)
		}
	}
	return ids
}

// PresenterConnectionID returns the live presenter connection, or ""
func (s *Session) PresenterConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presenterConnID
}

// ActiveActivity returns the currently running activity, or nil
func (s *Session) ActiveActivity() *models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// End closes the session. The transition is one-way and idempotent; the
// active activity, if any, is ended with it.
func (s *Session) End() (alreadyEnded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedAt != nil {
		return true
	}
	now := time.Now()
	s.endedAt = &now
	if s.active != nil && s.active.EndedAt == nil {
		s.active.EndedAt = &now
	}
	return false
}

// EndedAt returns the end timestamp, or nil while the session is live
func (s *Session) EndedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

// IdleSince reports how long the session has had no presenter and no
// connected participants. Returns false while anyone is attached.
func (s *Session) IdleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.presenterConnID != "" {
		return time.Time{}, false
	}
	for _, p := range s.participants {
		if p.Connected {
			return time.Time{}, false
		}
	}
	return s.lastActivityAt, true
}

// Info builds the snapshot sent to a client on join or resume. The active
// activity is included in its participant-safe form for participants.
func (s *Session) Info(forPresenter bool) models.SessionInfoPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := models.SessionInfoPayload{
		SessionID:        s.ID,
		Code:             s.Code,
		Title:            s.Title,
		ParticipantCount: len(s.participants),
	}
	if s.active != nil && s.active.EndedAt == nil {
		if forPresenter {
			info.ActiveActivity = s.active.Clone()
		} else {
			info.ActiveActivity = participantView(s.active)
		}
	}
	return info
}

// Summary builds the read-only view used by REST handlers
func (s *Session) Summary() models.SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := models.SessionSummary{
		ID:               s.ID,
		Code:             s.Code,
		PresentationID:   s.PresentationID,
		Title:            s.Title,
		ParticipantCount: len(s.participants),
		CreatedAt:        s.CreatedAt,
		EndedAt:          s.endedAt,
	}
	if s.active != nil {
		summary.Activity = s.active.Clone()
	}
	return summary
}

// startActivity makes input the active activity with freshly seeded
// results, implicitly ending whatever was active before. Each activation
// starts from an empty result set, even for a previously-run activity ID.
// Returns a deep-copied snapshot taken under the lock; in-flight
// responses for the same activity ID may start folding into the live
// activity the moment the lock is released, so callers must marshal the
// snapshot, never the live pointer.
func (s *Session) startActivity(activity *models.Activity) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedAt != nil {
		return nil, ErrSessionNotFound
	}

	now := time.Now()
	if s.active != nil && s.active.EndedAt == nil {
		s.active.EndedAt = &now
	}
	activity.StartedAt = now
	s.active = activity
	s.lastActivityAt = now
	return activity.Clone(), nil
}

// endActivity closes the active activity. Idempotent; the final results
// snapshot stays retrievable by the presenter until the session is
// evicted. Returns a snapshot taken under the lock, like startActivity.
func (s *Session) endActivity() (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil, ErrActivityEnded
	}
	if s.active.EndedAt == nil {
		now := time.Now()
		s.active.EndedAt = &now
		s.lastActivityAt = now
	}
	return s.active.Clone(), nil
}

// applyToActivity runs fn against the active activity under the session
// lock and returns a deep-copied snapshot for broadcasting. In-flight
// responses that target an ended (or replaced) activity are rejected with
// ActivityEnded rather than silently dropped.
func (s *Session) applyToActivity(activityID string, fn func(a *models.Activity) error) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endedAt != nil {
		return nil, ErrActivityEnded
	}
	activity := s.active
	if activity == nil || activity.EndedAt != nil {
		return nil, ErrActivityEnded
	}
	if activityID != "" && activity.ID != activityID {
		return nil, ErrActivityEnded
	}

	if err := fn(activity); err != nil {
		return nil, err
	}
	s.lastActivityAt = time.Now()
	return activity.Clone(), nil
}

// participantView strips presenter-only fields from an activity before it
// goes to the audience: the quiz answer key always, and the running
// results for every type except word cloud, where the live map is part of
// the design. Poll and quiz tallies stay hidden until the activity ends to
// avoid bandwagon bias.
func participantView(a *models.Activity) *models.Activity {
	view := a.Clone()
	view.Config.CorrectIndex = -1
	view.Poll = nil
	view.Quiz = nil
	if a.Type != models.ActivityWordCloud {
		view.WordCloud = nil
	}
	return view
}
