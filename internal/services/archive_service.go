package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"audience-live/internal/models"
)

// ArchiveService keeps the durable record of sessions and poll votes.
// The engine writes behind it for record-keeping; live state never reads
// back out of it, so a write failure degrades reporting, not the session.
type ArchiveService struct {
	database *sql.DB
}

// NewArchiveService creates a new archive service
func NewArchiveService(database *sql.DB) *ArchiveService {
	return &ArchiveService{
		database: database,
	}
}

// CreateSession records a newly created session
func (as *ArchiveService) CreateSession(id, code, presentationID string, createdAt time.Time) error {
	query := `INSERT INTO sessions (id, code, presentation_id, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := as.database.Exec(query, id, code, presentationID, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	log.Printf("Session archived: id=%s, code=%s", id, code)
	return nil
}

// EndSession records the end timestamp of a session
func (as *ArchiveService) EndSession(id string, endedAt time.Time) error {
	query := `UPDATE sessions SET ended_at = ? WHERE id = ?`

	result, err := as.database.Exec(query, endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session not found: %s", id)
	}

	log.Printf("Session end archived: id=%s", id)
	return nil
}

// ListByPresentation returns all archived sessions for a presentation,
// newest first
func (as *ArchiveService) ListByPresentation(presentationID string) ([]*models.ArchivedSession, error) {
	query := `SELECT id, code, presentation_id, created_at, ended_at
		FROM sessions WHERE presentation_id = ? ORDER BY created_at DESC`

	rows, err := as.database.Query(query, presentationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ArchivedSession
	for rows.Next() {
		var session models.ArchivedSession
		var endedAt sql.NullTime

		err := rows.Scan(
			&session.ID,
			&session.Code,
			&session.PresentationID,
			&session.CreatedAt,
			&endedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		if endedAt.Valid {
			t := endedAt.Time
			session.EndedAt = &t
		}

		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}

// AddPollResponse records one accepted poll vote. The primary key covers
// (session, poll, option, user), so retried deliveries collapse into a
// single row.
func (as *ArchiveService) AddPollResponse(sessionID, pollID string, optionID int, userID string) error {
	query := `INSERT OR IGNORE INTO poll_responses (session_id, poll_id, option_id, user_id, received_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := as.database.Exec(query, sessionID, pollID, optionID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert poll response: %w", err)
	}
	return nil
}

// GetPollResults returns archived vote counts per option for one poll
func (as *ArchiveService) GetPollResults(sessionID, pollID string) (*models.ArchivedPollResults, error) {
	query := `SELECT option_id, COUNT(*) FROM poll_responses
		WHERE session_id = ? AND poll_id = ?
		GROUP BY option_id ORDER BY option_id`

	rows, err := as.database.Query(query, sessionID, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll results: %w", err)
	}
	defer rows.Close()

	results := &models.ArchivedPollResults{
		SessionID: sessionID,
		PollID:    pollID,
		Options:   []models.ArchivedOptionCount{},
	}
	for rows.Next() {
		var row models.ArchivedOptionCount
		if err := rows.Scan(&row.OptionID, &row.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan poll result: %w", err)
		}
		results.Options = append(results.Options, row)
		results.Total += row.Votes
	}

	return results, rows.Err()
}
