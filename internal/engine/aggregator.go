package engine

import (
	"encoding/json"
	"log"
	"math"
	"strings"
	"time"

	"audience-live/internal/models"

	"github.com/google/uuid"
)

// maxQuestionLength caps audience question text
const maxQuestionLength = 500

// timeNow is stubbed in tests that exercise timer scoring
var timeNow = time.Now

// Aggregator validates participant responses and folds them into the
// active activity's results. Every fold runs under the session lock, so
// per-type idempotence checks and counter updates are atomic; rejections
// never mutate results and are reported to the submitting client only.
type Aggregator struct {
	broadcaster *Broadcaster
	archive     Archive
}

// NewAggregator creates an aggregator pushing updates through the given
// broadcaster and recording poll votes in the archive, write-behind
func NewAggregator(broadcaster *Broadcaster, archive Archive) *Aggregator {
	return &Aggregator{broadcaster: broadcaster, archive: archive}
}

// Apply folds one participant response into the session's active
// activity. On acceptance the presenter gets an ack plus a results
// snapshot; word cloud and Q&A snapshots also go to the audience.
func (ag *Aggregator) Apply(session *Session, payload models.ActivityResponsePayload) error {
	var acceptedOptions []int

	snapshot, err := session.applyToActivity(payload.ActivityID, func(a *models.Activity) error {
		switch a.Type {
		case models.ActivityPoll:
			var data models.PollResponseData
			if err := json.Unmarshal(payload.ResponseData, &data); err != nil {
				return &Error{CodeInvalidOption, "malformed poll response"}
			}
			accepted, err := applyPoll(a, payload.UserID, data)
			if err != nil {
				return err
			}
			acceptedOptions = accepted
			return nil

		case models.ActivityQuiz:
			var data models.QuizResponseData
			if err := json.Unmarshal(payload.ResponseData, &data); err != nil {
				return &Error{CodeInvalidOption, "malformed quiz response"}
			}
			return applyQuiz(a, payload.UserID, payload.UserName, data)

		case models.ActivityWordCloud:
			var data models.WordCloudResponseData
			if err := json.Unmarshal(payload.ResponseData, &data); err != nil {
				return &Error{CodeInvalidOption, "malformed word cloud response"}
			}
			return applyWordCloud(a, payload.UserID, data)

		case models.ActivityQA:
			var data models.QAResponseData
			if err := json.Unmarshal(payload.ResponseData, &data); err != nil {
				return &Error{CodeInvalidOption, "malformed question"}
			}
			return applyQA(a, payload.UserID, payload.UserName, data)
		}
		return &Error{CodeInvalidOption, "unknown activity type"}
	})
	if err != nil {
		return err
	}

	ag.broadcaster.ResponseReceived(session, snapshot.ID, snapshot.Type, payload.UserID)
	ag.broadcaster.PushResultsUpdate(session, snapshot.ID, snapshot.Type, resultsView(snapshot))

	if ag.archive != nil && snapshot.Type == models.ActivityPoll {
		go ag.archivePollVote(session.ID, snapshot.ID, payload.UserID, acceptedOptions)
	}
	return nil
}

// Upvote records one user's vote for an audience question, deduplicated
// per (question, user)
func (ag *Aggregator) Upvote(session *Session, payload models.QuestionUpvotePayload) error {
	snapshot, err := session.applyToActivity("", func(a *models.Activity) error {
		if a.Type != models.ActivityQA || a.QA == nil {
			return ErrActivityEnded
		}
		question := findQuestion(a.QA, payload.QuestionID)
		if question == nil {
			return &Error{CodeInvalidOption, "question not found"}
		}
		if question.Voters[payload.UserID] {
			return ErrDuplicateResponse
		}
		question.Voters[payload.UserID] = true
		question.Votes++
		return nil
	})
	if err != nil {
		return err
	}

	ag.broadcaster.PushResultsUpdate(session, snapshot.ID, snapshot.Type, resultsView(snapshot))
	return nil
}

// Moderate applies a presenter action to one audience question. All
// actions are idempotent: re-approving, re-highlighting or re-removing a
// question is a no-op, not an error.
func (ag *Aggregator) Moderate(session *Session, payload models.QuestionModeratePayload) error {
	snapshot, err := session.applyToActivity("", func(a *models.Activity) error {
		if a.Type != models.ActivityQA || a.QA == nil {
			return ErrActivityEnded
		}

		switch payload.Action {
		case models.ModerateApprove, models.ModerateHighlight:
			question := findQuestion(a.QA, payload.QuestionID)
			if question == nil {
				return &Error{CodeInvalidOption, "question not found"}
			}
			if payload.Action == models.ModerateApprove {
				question.IsApproved = true
			} else {
				question.IsHighlighted = true
			}
			return nil

		case models.ModerateRemove:
			kept := a.QA.Questions[:0]
			for _, q := range a.QA.Questions {
				if q.ID != payload.QuestionID {
					kept = append(kept, q)
				}
			}
			a.QA.Questions = kept
			return nil
		}
		return &Error{CodeInvalidOption, "unknown moderation action"}
	})
	if err != nil {
		return err
	}

	ag.broadcaster.PushResultsUpdate(session, snapshot.ID, snapshot.Type, resultsView(snapshot))
	return nil
}

func (ag *Aggregator) archivePollVote(sessionID, activityID, userID string, options []int) {
	for _, option := range options {
		if err := ag.archive.AddPollResponse(sessionID, activityID, option, userID); err != nil {
			log.Printf("Failed to archive poll response: session=%s, activity=%s, err=%v", sessionID, activityID, err)
		}
	}
}

// applyPoll accepts at most one ballot per user. The whole ballot is
// validated before any counter moves, so a rejected ballot leaves results
// untouched.
func applyPoll(a *models.Activity, userID string, data models.PollResponseData) ([]int, error) {
	if a.Poll.Voters[userID] {
		return nil, ErrDuplicateResponse
	}

	var selected []int
	if a.Config.MultiSelect {
		selected = dedupeInts(data.Options)
	} else {
		selected = []int{data.Option}
	}
	if len(selected) == 0 {
		return nil, &Error{CodeInvalidOption, "no option selected"}
	}
	for _, idx := range selected {
		if idx < 0 || idx >= len(a.Poll.Counts) {
			return nil, ErrInvalidOption
		}
	}

	for _, idx := range selected {
		a.Poll.Counts[idx]++
	}
	a.Poll.Total++
	a.Poll.Voters[userID] = true
	return selected, nil
}

// applyQuiz accepts at most one answer per user, scoring it against the
// answer key. With timer scoring enabled the bonus scales with remaining
// countdown time, clamped to half the base score.
func applyQuiz(a *models.Activity, userID, userName string, data models.QuizResponseData) error {
	if _, exists := a.Quiz.Entries[userID]; exists {
		return ErrDuplicateResponse
	}
	if data.Option < 0 || data.Option >= len(a.Config.Options) {
		return ErrInvalidOption
	}

	now := timeNow()
	isCorrect := data.Option == a.Config.CorrectIndex

	base := a.Config.BaseScore
	if base <= 0 {
		base = models.DefaultBaseScore
	}

	bonus := 0
	score := 0
	if isCorrect {
		score = base
		if a.Config.TimerScoring && a.Config.TimerSeconds > 0 {
			remaining := float64(a.Config.TimerSeconds) - now.Sub(a.StartedAt).Seconds()
			fraction := remaining / float64(a.Config.TimerSeconds)
			if fraction < 0 {
				fraction = 0
			}
			if fraction > 1 {
				fraction = 1
			}
			bonus = int(math.Round(0.5 * float64(base) * fraction))
			score += bonus
		}
	}

	a.Quiz.Entries[userID] = &models.QuizEntry{
		UserID:         userID,
		UserName:       userName,
		SelectedOption: data.Option,
		IsCorrect:      isCorrect,
		TimeBonus:      bonus,
		Score:          score,
		Order:          len(a.Quiz.Entries),
		SubmittedAt:    now,
	}
	return nil
}

// applyWordCloud folds one case-normalized word into the frequency map,
// bounded per user by the configured submission cap
func applyWordCloud(a *models.Activity, userID string, data models.WordCloudResponseData) error {
	word := strings.ToLower(strings.TrimSpace(data.Word))
	if word == "" {
		return &Error{CodeInvalidOption, "word is empty"}
	}

	maxLength := a.Config.MaxWordLength
	if maxLength <= 0 {
		maxLength = models.DefaultMaxWordLength
	}
	if len([]rune(word)) > maxLength {
		return &Error{CodeInvalidOption, "word is too long"}
	}

	maxSubmissions := a.Config.MaxSubmissions
	if maxSubmissions <= 0 {
		maxSubmissions = 1
	}
	if a.WordCloud.PerUser[userID] >= maxSubmissions {
		return ErrDuplicateResponse
	}

	a.WordCloud.Frequencies[word]++
	a.WordCloud.Total++
	a.WordCloud.PerUser[userID]++
	return nil
}

// applyQA appends a new audience question. Submissions are unbounded;
// moderation only gates visibility, never acceptance.
func applyQA(a *models.Activity, userID, userName string, data models.QAResponseData) error {
	text := strings.TrimSpace(data.Text)
	if text == "" {
		return &Error{CodeInvalidOption, "question is empty"}
	}
	if len([]rune(text)) > maxQuestionLength {
		return &Error{CodeInvalidOption, "question is too long"}
	}

	a.QA.Questions = append(a.QA.Questions, &models.QAQuestion{
		ID:          uuid.NewString(),
		Text:        text,
		Author:      userName,
		AuthorID:    userID,
		Voters:      make(map[string]bool),
		IsApproved:  !a.Config.Moderation,
		SubmittedAt: timeNow(),
	})
	return nil
}

func findQuestion(results *models.QAResults, questionID string) *models.QAQuestion {
	for _, q := range results.Questions {
		if q.ID == questionID {
			return q
		}
	}
	return nil
}

// resultsView picks the wire form of an activity snapshot's results; quiz
// results carry the derived leaderboard, computed on read
func resultsView(activity *models.Activity) interface{} {
	switch activity.Type {
	case models.ActivityPoll:
		return activity.Poll
	case models.ActivityQuiz:
		return &models.QuizResults{
			Entries:     activity.Quiz.Entries,
			Leaderboard: activity.Quiz.Standings(),
		}
	case models.ActivityWordCloud:
		return activity.WordCloud
	case models.ActivityQA:
		return activity.QA
	}
	return nil
}

func dedupeInts(values []int) []int {
	seen := make(map[int]bool, len(values))
	result := make([]int, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}
