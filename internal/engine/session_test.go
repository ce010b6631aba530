package engine

import (
	"testing"
	"time"

	"audience-live/internal/models"
)

func TestJoinCountsUniqueUsers(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")

	count, resumed, err := session.Join("u1", "Alice", "conn-1")
	if err != nil || count != 1 || resumed {
		t.Fatalf("First join: count=%d resumed=%v err=%v", count, resumed, err)
	}
	count, resumed, err = session.Join("u2", "Bob", "conn-2")
	if err != nil || count != 2 || resumed {
		t.Fatalf("Second join: count=%d resumed=%v err=%v", count, resumed, err)
	}

	// Rejoining with the same user ID replaces the connection, not the count
	count, resumed, err = session.Join("u1", "Alice", "conn-3")
	if err != nil || count != 2 || !resumed {
		t.Fatalf("Rejoin: count=%d resumed=%v err=%v", count, resumed, err)
	}
}

func TestJoinEndedSession(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")
	session.End()

	if _, _, err := session.Join("u1", "Alice", "conn-1"); err != ErrSessionNotFound {
		t.Errorf("Expected SessionNotFound on ended session, got %v", err)
	}
}

func TestDisconnectGraceResume(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")
	session.Join("u1", "Alice", "conn-1")

	userID, wasPresenter := session.MarkDisconnected("conn-1")
	if userID != "u1" || wasPresenter {
		t.Fatalf("MarkDisconnected returned userID=%s wasPresenter=%v", userID, wasPresenter)
	}

	// Still counted while inside the grace window, but no longer fanned out to
	if session.ParticipantCount() != 1 {
		t.Errorf("Expected count 1 during grace, got %d", session.ParticipantCount())
	}
	if ids := session.ParticipantConnectionIDs(); len(ids) != 0 {
		t.Errorf("Expected no fanout targets, got %v", ids)
	}

	// Resume with the same user ID reports the same count
	count, resumed, err := session.Join("u1", "Alice", "conn-2")
	if err != nil || count != 1 || !resumed {
		t.Fatalf("Resume: count=%d resumed=%v err=%v", count, resumed, err)
	}
	if ids := session.ParticipantConnectionIDs(); len(ids) != 1 || ids[0] != "conn-2" {
		t.Errorf("Expected fanout to conn-2, got %v", ids)
	}
}

func TestSweepDisconnected(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")
	session.Join("u1", "Alice", "conn-1")
	session.Join("u2", "Bob", "conn-2")

	session.MarkDisconnected("conn-1")

	// Grace has not passed yet
	if removed, count := session.SweepDisconnected(time.Minute); removed != 0 || count != 2 {
		t.Fatalf("Early sweep removed=%d count=%d", removed, count)
	}
	// A zero grace expires the dropped participant immediately
	if removed, count := session.SweepDisconnected(0); removed != 1 || count != 1 {
		t.Fatalf("Sweep removed=%d count=%d", removed, count)
	}

	// A swept user rejoining is a fresh join again
	count, resumed, err := session.Join("u1", "Alice", "conn-3")
	if err != nil || count != 2 || resumed {
		t.Fatalf("Rejoin after sweep: count=%d resumed=%v err=%v", count, resumed, err)
	}
}

func TestPresenterConflict(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")

	if err := session.AttachPresenter("other-conn"); err != ErrPresenterConflict {
		t.Errorf("Expected PresenterConflict, got %v", err)
	}

	// After the presenter drops, a new connection may take over
	if _, wasPresenter := session.MarkDisconnected("presenter-conn"); !wasPresenter {
		t.Fatal("Expected presenter disconnect")
	}
	if err := session.AttachPresenter("other-conn"); err != nil {
		t.Errorf("Expected takeover to succeed, got %v", err)
	}
	if got := session.PresenterConnectionID(); got != "other-conn" {
		t.Errorf("Expected presenter other-conn, got %s", got)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")

	if already := session.End(); already {
		t.Error("First End reported already ended")
	}
	first := *session.EndedAt()

	if already := session.End(); !already {
		t.Error("Second End did not report already ended")
	}
	if !session.EndedAt().Equal(first) {
		t.Error("Second End moved the timestamp")
	}
}

func TestEndKeepsPresenterBinding(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")

	session.End()

	// The presenter stays addressable so the session-ended broadcast can
	// reach the connection that requested the end
	if got := session.PresenterConnectionID(); got != "presenter-conn" {
		t.Errorf("Expected presenter binding to survive End, got %q", got)
	}
}

func TestEndClosesActiveActivity(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")
	activity := newActivity(models.ActivityInput{Type: models.ActivityPoll, Config: models.ActivityConfig{Options: []string{"a", "b"}}})
	if _, err := session.startActivity(activity); err != nil {
		t.Fatalf("startActivity failed: %v", err)
	}

	session.End()

	if activity.EndedAt == nil {
		t.Error("Expected active activity to end with the session")
	}
}

func TestIdleSince(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")

	if _, idle := session.IdleSince(); idle {
		t.Error("Session with a presenter must not be idle")
	}

	session.MarkDisconnected("presenter-conn")
	if _, idle := session.IdleSince(); !idle {
		t.Error("Presenterless empty session must be idle")
	}

	session.Join("u1", "Alice", "conn-1")
	if _, idle := session.IdleSince(); idle {
		t.Error("Session with a connected participant must not be idle")
	}

	session.MarkDisconnected("conn-1")
	if _, idle := session.IdleSince(); !idle {
		t.Error("Session with only dropped participants must be idle")
	}
}

func TestInfoHidesPresenterFields(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")
	activity := newActivity(models.ActivityInput{
		Type:   models.ActivityQuiz,
		Config: models.ActivityConfig{Options: []string{"a", "b"}, CorrectIndex: 1},
	})
	if _, err := session.startActivity(activity); err != nil {
		t.Fatalf("startActivity failed: %v", err)
	}

	presenterInfo := session.Info(true)
	if presenterInfo.ActiveActivity == nil || presenterInfo.ActiveActivity.Config.CorrectIndex != 1 {
		t.Errorf("Expected answer key for presenter, got %+v", presenterInfo.ActiveActivity)
	}

	participantInfo := session.Info(false)
	got := participantInfo.ActiveActivity
	if got == nil {
		t.Fatal("Expected active activity in participant info")
	}
	if got.Config.CorrectIndex != -1 {
		t.Errorf("Expected answer key stripped, got %d", got.Config.CorrectIndex)
	}
	if got.Quiz != nil {
		t.Error("Expected running quiz tallies stripped for participants")
	}
}

func TestInfoSnapshotIsDetached(t *testing.T) {
	session := NewSession("sess-1", "AB12", "pres-1", "Title", "presenter-conn")
	activity := newActivity(models.ActivityInput{Type: models.ActivityPoll, Config: models.ActivityConfig{Options: []string{"a", "b"}}})
	if _, err := session.startActivity(activity); err != nil {
		t.Fatalf("startActivity failed: %v", err)
	}

	info := session.Info(true)
	activity.Poll.Counts[0] = 99

	if info.ActiveActivity.Poll.Counts[0] == 99 {
		t.Error("Info snapshot shares state with the live activity")
	}
}
