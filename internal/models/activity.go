package models

import (
	"sort"
	"time"
)

// ActivityType identifies the kind of interactive activity running in a session
type ActivityType string

const (
	ActivityPoll      ActivityType = "poll"
	ActivityQuiz      ActivityType = "quiz"
	ActivityWordCloud ActivityType = "wordcloud"
	ActivityQA        ActivityType = "qa"
)

// DefaultBaseScore is the quiz score for a correct answer when the
// activity config doesn't set one
const DefaultBaseScore = 100

// DefaultMaxWordLength caps word cloud submissions when the config doesn't
const DefaultMaxWordLength = 50

// ActivityConfig holds the presenter-authored configuration of an activity.
// The engine only reads the fields it needs for validation and scoring;
// everything else is passed through to clients untouched.
type ActivityConfig struct {
	Question       string   `json:"question,omitempty"`
	Options        []string `json:"options,omitempty"`
	MultiSelect    bool     `json:"multiSelect,omitempty"`
	CorrectIndex   int      `json:"correctIndex,omitempty"`
	TimerSeconds   int      `json:"timerSeconds,omitempty"`
	TimerScoring   bool     `json:"timerScoring,omitempty"`
	BaseScore      int      `json:"baseScore,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	MaxSubmissions int      `json:"maxSubmissions,omitempty"`
	MaxWordLength  int      `json:"maxWordLength,omitempty"`
	Moderation     bool     `json:"moderation,omitempty"`
}

// Activity represents one interactive unit within a session.
// Exactly one of the result fields is non-nil, matching Type.
type Activity struct {
	ID        string         `json:"id"`
	Type      ActivityType   `json:"type"`
	Config    ActivityConfig `json:"config"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt,omitempty"`

	Poll      *PollResults      `json:"pollResults,omitempty"`
	Quiz      *QuizResults      `json:"quizResults,omitempty"`
	WordCloud *WordCloudResults `json:"wordCloudResults,omitempty"`
	QA        *QAResults        `json:"qaResults,omitempty"`
}

// IsEnded returns true once the activity has been closed
func (a *Activity) IsEnded() bool {
	return a.EndedAt != nil
}

// PollResults holds vote counters parallel to Config.Options.
// Voters tracks which users already voted and is never sent to clients.
type PollResults struct {
	Counts []int           `json:"counts"`
	Total  int             `json:"total"`
	Voters map[string]bool `json:"-"`
}

// QuizEntry is one user's accepted quiz answer
type QuizEntry struct {
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	TimeBonus      int       `json:"timeBonus"`
	Score          int       `json:"score"`
	Order          int       `json:"-"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// QuizResults accumulates per-user quiz answers keyed by user ID.
// Leaderboard is only populated on wire views; the aggregator keeps it
// empty and derives it on read.
type QuizResults struct {
	Entries     map[string]*QuizEntry `json:"entries,omitempty"`
	Leaderboard []LeaderboardEntry    `json:"leaderboard,omitempty"`
}

// LeaderboardEntry is one row of the derived quiz ranking
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Score    int    `json:"score"`
}

// Standings projects the entries into a ranking sorted by descending
// score, ties broken by submission order. Computed on read, never stored.
func (r *QuizResults) Standings() []LeaderboardEntry {
	entries := make([]*QuizEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Order < entries[j].Order
	})

	leaderboard := make([]LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		leaderboard = append(leaderboard, LeaderboardEntry{
			Rank:     i + 1,
			UserID:   e.UserID,
			UserName: e.UserName,
			Score:    e.Score,
		})
	}
	return leaderboard
}

// WordCloudResults is a case-normalized word frequency map.
// PerUser tracks submission counts for the per-user cap.
type WordCloudResults struct {
	Frequencies map[string]int `json:"frequencies"`
	Total       int            `json:"total"`
	PerUser     map[string]int `json:"-"`
}

// QAQuestion is one audience question with its upvote state.
// Voters is the dedup set for upvotes and stays server-side.
type QAQuestion struct {
	ID            string          `json:"id"`
	Text          string          `json:"text"`
	Author        string          `json:"author"`
	AuthorID      string          `json:"-"`
	Votes         int             `json:"votes"`
	Voters        map[string]bool `json:"-"`
	IsApproved    bool            `json:"isApproved"`
	IsHighlighted bool            `json:"isHighlighted"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

// QAResults is the ordered list of submitted questions
type QAResults struct {
	Questions []*QAQuestion `json:"questions"`
}

// Clone deep-copies an activity so snapshots can be marshaled outside the
// session lock while aggregation keeps mutating the original
func (a *Activity) Clone() *Activity {
	clone := *a
	clone.Poll = a.Poll.Clone()
	clone.Quiz = a.Quiz.Clone()
	clone.WordCloud = a.WordCloud.Clone()
	clone.QA = a.QA.Clone()
	return &clone
}

// Clone deep-copies poll results
func (r *PollResults) Clone() *PollResults {
	if r == nil {
		return nil
	}
	clone := &PollResults{
		Counts: append([]int(nil), r.Counts...),
		Total:  r.Total,
		Voters: make(map[string]bool, len(r.Voters)),
	}
	for k, v := range r.Voters {
		clone.Voters[k] = v
	}
	return clone
}

// Clone deep-copies quiz results
func (r *QuizResults) Clone() *QuizResults {
	if r == nil {
		return nil
	}
	clone := &QuizResults{
		Entries:     make(map[string]*QuizEntry, len(r.Entries)),
		Leaderboard: append([]LeaderboardEntry(nil), r.Leaderboard...),
	}
	for k, v := range r.Entries {
		entry := *v
		clone.Entries[k] = &entry
	}
	return clone
}

// Clone deep-copies word cloud results
func (r *WordCloudResults) Clone() *WordCloudResults {
	if r == nil {
		return nil
	}
	clone := &WordCloudResults{
		Frequencies: make(map[string]int, len(r.Frequencies)),
		Total:       r.Total,
		PerUser:     make(map[string]int, len(r.PerUser)),
	}
	for k, v := range r.Frequencies {
		clone.Frequencies[k] = v
	}
	for k, v := range r.PerUser {
		clone.PerUser[k] = v
	}
	return clone
}

// Clone deep-copies Q&A results
func (r *QAResults) Clone() *QAResults {
	if r == nil {
		return nil
	}
	clone := &QAResults{Questions: make([]*QAQuestion, 0, len(r.Questions))}
	for _, q := range r.Questions {
		question := *q
		question.Voters = make(map[string]bool, len(q.Voters))
		for k, v := range q.Voters {
			question.Voters[k] = v
		}
		clone.Questions = append(clone.Questions, &question)
	}
	return clone
}
