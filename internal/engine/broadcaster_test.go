package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"audience-live/internal/models"
)

// fakeSender records every envelope per connection for assertions
type fakeSender struct {
	mu   sync.Mutex
	sent map[string][]models.Envelope
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]models.Envelope)}
}

func (f *fakeSender) Send(connectionID string, envelope models.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connectionID] = append(f.sent[connectionID], envelope)
}

func (f *fakeSender) byType(connectionID, eventType string) []models.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []models.Envelope
	for _, env := range f.sent[connectionID] {
		if env.Type == eventType {
			matched = append(matched, env)
		}
	}
	return matched
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	session := NewSession("sess-1", "AB12", "pres-1", "Quarterly review", "presenter-conn")
	if _, _, err := session.Join("u1", "Alice", "conn-u1"); err != nil {
		t.Fatalf("Failed to join u1: %v", err)
	}
	if _, _, err := session.Join("u2", "Bob", "conn-u2"); err != nil {
		t.Fatalf("Failed to join u2: %v", err)
	}
	return session
}

func pollInput(options ...string) models.ActivityInput {
	return models.ActivityInput{
		Type:   models.ActivityPoll,
		Config: models.ActivityConfig{Question: "Pick one", Options: options},
	}
}

func TestActivateSeedsResultsByType(t *testing.T) {
	tests := []struct {
		name  string
		input models.ActivityInput
		check func(t *testing.T, a *models.Activity)
	}{
		{
			name:  "poll counters parallel to options",
			input: pollInput("Red", "Blue"),
			check: func(t *testing.T, a *models.Activity) {
				if a.Poll == nil || len(a.Poll.Counts) != 2 {
					t.Fatalf("Expected 2 poll counters, got %+v", a.Poll)
				}
			},
		},
		{
			name:  "quiz entry map",
			input: models.ActivityInput{Type: models.ActivityQuiz, Config: models.ActivityConfig{Options: []string{"a", "b"}}},
			check: func(t *testing.T, a *models.Activity) {
				if a.Quiz == nil || a.Quiz.Entries == nil {
					t.Fatalf("Expected seeded quiz entries, got %+v", a.Quiz)
				}
			},
		},
		{
			name:  "word cloud frequency map",
			input: models.ActivityInput{Type: models.ActivityWordCloud},
			check: func(t *testing.T, a *models.Activity) {
				if a.WordCloud == nil || a.WordCloud.Frequencies == nil {
					t.Fatalf("Expected seeded word cloud, got %+v", a.WordCloud)
				}
			},
		},
		{
			name:  "qa question list",
			input: models.ActivityInput{Type: models.ActivityQA},
			check: func(t *testing.T, a *models.Activity) {
				if a.QA == nil || a.QA.Questions == nil {
					t.Fatalf("Expected seeded qa results, got %+v", a.QA)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newFakeSender()
			broadcaster := NewBroadcaster(sender, nil)
			session := newTestSession(t)

			activity, err := broadcaster.Activate(session, tt.input)
			if err != nil {
				t.Fatalf("Activate failed: %v", err)
			}
			if activity.ID == "" {
				t.Error("Expected a generated activity ID")
			}
			tt.check(t, activity)
		})
	}
}

func TestActivateImplicitlyEndsPrevious(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	session := newTestSession(t)

	first, err := broadcaster.Activate(session, pollInput("Red", "Blue"))
	if err != nil {
		t.Fatalf("First activate failed: %v", err)
	}
	second, err := broadcaster.Activate(session, pollInput("Yes", "No"))
	if err != nil {
		t.Fatalf("Second activate failed: %v", err)
	}

	if first.EndedAt == nil {
		t.Error("Expected first activity to be ended by the second activation")
	}
	if second.EndedAt != nil {
		t.Error("Expected second activity to be active")
	}
	if got := session.ActiveActivity(); got == nil || got.ID != second.ID {
		t.Errorf("Expected active activity %s, got %+v", second.ID, got)
	}
}

func TestActivateRestartClearsResults(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	aggregator := NewAggregator(broadcaster, nil)
	session := newTestSession(t)

	input := pollInput("Red", "Blue")
	input.ID = "poll-1"

	if _, err := broadcaster.Activate(session, input); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := aggregator.Apply(session, pollResponse("poll-1", "u1", 1)); err != nil {
		t.Fatalf("Vote failed: %v", err)
	}

	// Re-activating the same activity ID starts from an empty result set
	restarted, err := broadcaster.Activate(session, input)
	if err != nil {
		t.Fatalf("Re-activate failed: %v", err)
	}
	if restarted.Poll.Counts[1] != 0 || restarted.Poll.Total != 0 {
		t.Errorf("Expected fresh results on re-activation, got %+v", restarted.Poll)
	}
}

func TestActivityStartedFanout(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	session := newTestSession(t)

	if _, err := broadcaster.Activate(session, pollInput("Red", "Blue")); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	for _, conn := range []string{"conn-u1", "conn-u2", "presenter-conn"} {
		if got := sender.byType(conn, models.EventActivityStarted); len(got) != 1 {
			t.Errorf("Expected 1 activity-started on %s, got %d", conn, len(got))
		}
	}
}

func TestPushResultsUpdateVisibility(t *testing.T) {
	tests := []struct {
		name            string
		activityType    models.ActivityType
		wantParticipant bool
	}{
		{"poll tallies stay presenter-only", models.ActivityPoll, false},
		{"quiz tallies stay presenter-only", models.ActivityQuiz, false},
		{"word cloud is broadcast live", models.ActivityWordCloud, true},
		{"qa list is broadcast live", models.ActivityQA, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newFakeSender()
			broadcaster := NewBroadcaster(sender, nil)
			session := newTestSession(t)

			broadcaster.PushResultsUpdate(session, "act-1", tt.activityType, nil)

			if got := sender.byType("presenter-conn", models.EventResultsUpdate); len(got) != 1 {
				t.Fatalf("Expected presenter results update, got %d", len(got))
			}
			participantGot := len(sender.byType("conn-u1", models.EventResultsUpdate)) > 0
			if participantGot != tt.wantParticipant {
				t.Errorf("Participant visibility = %v, want %v", participantGot, tt.wantParticipant)
			}
		})
	}
}

// Activation marshals its snapshots while responses for the same activity
// ID may still be folding into the live results; run both concurrently so
// the race detector has a chance to object.
func TestActivateConcurrentWithResponses(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	aggregator := NewAggregator(broadcaster, nil)
	session := newTestSession(t)

	input := pollInput("Red", "Blue")
	input.ID = "poll-1"
	if _, err := broadcaster.Activate(session, input); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			// Rejections (replaced activity, duplicate vote) are expected here
			aggregator.Apply(session, pollResponse("poll-1", fmt.Sprintf("voter-%d", i), 1))
		}
	}()

	for i := 0; i < 50; i++ {
		if _, err := broadcaster.Activate(session, input); err != nil {
			t.Fatalf("Activate %d failed: %v", i, err)
		}
	}
	<-done

	if _, err := broadcaster.End(session); err != nil {
		t.Fatalf("End failed: %v", err)
	}
}

func TestEndRevealsLeaderboardNotEntries(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	aggregator := NewAggregator(broadcaster, nil)
	session := newTestSession(t)

	input := models.ActivityInput{
		ID:     "quiz-1",
		Type:   models.ActivityQuiz,
		Config: models.ActivityConfig{Options: []string{"a", "b"}, CorrectIndex: 1},
	}
	if _, err := broadcaster.Activate(session, input); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := aggregator.Apply(session, quizResponse("quiz-1", "u1", "Alice", 1)); err != nil {
		t.Fatalf("Alice's answer failed: %v", err)
	}
	if err := aggregator.Apply(session, quizResponse("quiz-1", "u2", "Bob", 0)); err != nil {
		t.Fatalf("Bob's answer failed: %v", err)
	}

	if _, err := broadcaster.End(session); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	got := sender.byType("conn-u1", models.EventActivityEnded)
	if len(got) != 1 {
		t.Fatalf("Expected 1 activity-ended on conn-u1, got %d", len(got))
	}
	var participantCopy models.Activity
	if err := json.Unmarshal(got[0].Payload, &participantCopy); err != nil {
		t.Fatalf("Failed to decode participant payload: %v", err)
	}
	if participantCopy.Config.CorrectIndex != 1 {
		t.Errorf("Expected answer key revealed after end, got %d", participantCopy.Config.CorrectIndex)
	}
	if participantCopy.Quiz == nil || len(participantCopy.Quiz.Leaderboard) != 2 {
		t.Fatalf("Expected 2 leaderboard rows for participants, got %+v", participantCopy.Quiz)
	}
	if len(participantCopy.Quiz.Entries) != 0 {
		t.Errorf("Expected per-user entries hidden from participants, got %d", len(participantCopy.Quiz.Entries))
	}

	got = sender.byType("presenter-conn", models.EventActivityEnded)
	if len(got) != 1 {
		t.Fatalf("Expected 1 activity-ended on presenter-conn, got %d", len(got))
	}
	var presenterCopy models.Activity
	if err := json.Unmarshal(got[0].Payload, &presenterCopy); err != nil {
		t.Fatalf("Failed to decode presenter payload: %v", err)
	}
	if len(presenterCopy.Quiz.Entries) != 2 {
		t.Errorf("Expected full entries for the presenter, got %d", len(presenterCopy.Quiz.Entries))
	}
}

func TestEndActivityIsIdempotent(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	session := newTestSession(t)

	if _, err := broadcaster.Activate(session, pollInput("Red", "Blue")); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	first, err := broadcaster.End(session)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	second, err := broadcaster.End(session)
	if err != nil {
		t.Fatalf("Second end failed: %v", err)
	}
	if !first.EndedAt.Equal(*second.EndedAt) {
		t.Error("Expected second end to be a no-op")
	}
}

func TestEndWithoutActivity(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	session := newTestSession(t)

	if _, err := broadcaster.End(session); err != ErrActivityEnded {
		t.Errorf("Expected ActivityEnded, got %v", err)
	}
}

func TestSessionEndedReachesEveryone(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)
	session := newTestSession(t)

	session.End()
	broadcaster.SessionEnded(session)

	for _, conn := range []string{"conn-u1", "conn-u2", "presenter-conn"} {
		if got := sender.byType(conn, models.EventSessionEnded); len(got) != 1 {
			t.Errorf("Expected session-ended on %s, got %d", conn, len(got))
		}
	}
}

func TestSendErrorCarriesWireCode(t *testing.T) {
	sender := newFakeSender()
	broadcaster := NewBroadcaster(sender, nil)

	broadcaster.SendError("conn-x", ErrDuplicateResponse)

	got := sender.byType("conn-x", models.EventSessionError)
	if len(got) != 1 {
		t.Fatalf("Expected 1 session-error, got %d", len(got))
	}
}
