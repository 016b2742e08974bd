package quizengine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// weightEpsilon is the tolerance used when checking that normalized
// topic weights sum to 1.0.
const weightEpsilon = 1e-6

// DefaultCopiesPerIncorrect is how many times a missed question is
// re-inserted into the active pool.
const DefaultCopiesPerIncorrect = 2

// Difficulty is the requested difficulty for generated questions.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyVeryHard Difficulty = "very_hard"
)

// ParseDifficulty converts a user-supplied string into a Difficulty.
// The empty string defaults to medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyVeryHard:
		return Difficulty(s), nil
	case "":
		return DifficultyMedium, nil
	}
	return "", configErrorf("unknown difficulty: %q", s)
}

// SessionMode selects how a session obtains its questions.
type SessionMode string

const (
	// ModeFresh generates a brand-new question set.
	ModeFresh SessionMode = "fresh"
	// ModeRetrySame replays a previous session's full question set in a new order.
	ModeRetrySame SessionMode = "retry_same"
	// ModeRetryFailed replays only the questions missed on first attempt.
	ModeRetryFailed SessionMode = "retry_failed"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusGenerating SessionStatus = "generating"
	StatusActive     SessionStatus = "active"
	StatusCompleted  SessionStatus = "completed"
	StatusPaused     SessionStatus = "paused"
)

// Topic is a subject area with a relative importance weight in [0,1].
type Topic struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// NormalizeTopics scales topic weights so they sum to 1.0. The input
// need not be pre-normalized but must have a positive total weight.
func NormalizeTopics(topics []Topic) ([]Topic, error) {
	if len(topics) == 0 {
		return nil, configErrorf("at least one topic is required")
	}
	var sum float64
	for _, t := range topics {
		if t.Name == "" {
			return nil, configErrorf("topic name must not be empty")
		}
		if t.Weight < 0 {
			return nil, configErrorf("topic %q has negative weight %v", t.Name, t.Weight)
		}
		sum += t.Weight
	}
	if sum <= 0 {
		return nil, configErrorf("topic weights must sum to a positive value")
	}
	normalized := make([]Topic, len(topics))
	for i, t := range topics {
		normalized[i] = Topic{Name: t.Name, Weight: t.Weight / sum}
	}
	return normalized, nil
}

// Choice is a single answer option of a question.
type Choice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// SourceRef attributes a question to the retrieved document chunk it
// was grounded on.
type SourceRef struct {
	Source  string `json:"source,omitempty"`
	Page    int    `json:"page,omitempty"`
	Slide   int    `json:"slide,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Question is a generated (or user-supplied) quiz question. Questions
// are immutable once the session starts, except for the one-time
// canonical ID assignment after generation.
type Question struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Text        string     `json:"text"`
	Choices     []Choice   `json:"choices"`
	Explanation string     `json:"explanation"`
	Difficulty  Difficulty `json:"difficulty"`
	MultiChoice bool       `json:"is_multi_choice"`
	Source      *SourceRef `json:"source,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CorrectIndices returns the sorted indices of the correct choices.
func (q *Question) CorrectIndices() []int {
	var correct []int
	for i, c := range q.Choices {
		if c.IsCorrect {
			correct = append(correct, i)
		}
	}
	return correct
}

// IsCorrectSelection reports whether the selected indices exactly match
// the question's correct choice set. The input must be deduplicated and
// sorted (see parseSelection).
func (q *Question) IsCorrectSelection(selected []int) bool {
	correct := q.CorrectIndices()
	if len(selected) != len(correct) {
		return false
	}
	for i := range selected {
		if selected[i] != correct[i] {
			return false
		}
	}
	return true
}

// Answer records one learner submission. Answers are append-only.
type Answer struct {
	QuestionID      string    `json:"question_id"`
	SelectedIndices []int     `json:"selected_choice_indices"`
	Correct         bool      `json:"is_correct"`
	AttemptNumber   int       `json:"attempt_number"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// SessionConfig is everything needed to construct a session. It is
// passed explicitly; the engine keeps no process-wide configuration.
type SessionConfig struct {
	Topics             []Topic     `json:"topics"`
	TotalQuestions     int         `json:"total_questions"`
	Difficulty         Difficulty  `json:"difficulty"`
	Mode               SessionMode `json:"mode"`
	CopiesPerIncorrect int         `json:"copies_per_incorrect"`
	// MaxRecyclesPerQuestion is carried for forward compatibility but is
	// not enforced: every incorrect answer re-inserts copies regardless
	// of how often the question has already recycled.
	MaxRecyclesPerQuestion int      `json:"max_recycles_per_question,omitempty"`
	UserQuestions          []string `json:"user_questions,omitempty"`
	UserID                 string   `json:"user_id,omitempty"`
}

func (c *SessionConfig) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeFresh
	}
	if c.Difficulty == "" {
		c.Difficulty = DifficultyMedium
	}
	if c.CopiesPerIncorrect == 0 {
		c.CopiesPerIncorrect = DefaultCopiesPerIncorrect
	}
}

func (c *SessionConfig) validate() error {
	if len(c.Topics) == 0 {
		return configErrorf("at least one topic is required")
	}
	if c.TotalQuestions <= 0 {
		return configErrorf("total question count must be positive, got %d", c.TotalQuestions)
	}
	if c.CopiesPerIncorrect < 0 {
		return configErrorf("copies per incorrect answer must not be negative")
	}
	switch c.Mode {
	case ModeFresh, ModeRetrySame, ModeRetryFailed:
	default:
		return configErrorf("unknown quiz mode: %q", c.Mode)
	}
	switch c.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyVeryHard:
	default:
		return configErrorf("unknown difficulty: %q", c.Difficulty)
	}
	return nil
}

// Session is the aggregate root owned by the state machine. A session
// must only ever be mutated by one caller at a time; the persisted
// snapshot is treated as a single-writer resource.
type Session struct {
	ID                     string      `json:"session_id"`
	Topics                 []Topic     `json:"topics"`
	TotalQuestions         int         `json:"total_questions"`
	Difficulty             Difficulty  `json:"difficulty"`
	Mode                   SessionMode `json:"mode"`
	CopiesPerIncorrect     int         `json:"copies_per_incorrect"`
	MaxRecyclesPerQuestion int         `json:"max_recycles_per_question,omitempty"`
	UserQuestions          []string    `json:"user_questions,omitempty"`

	// Questions is the master list. It grows monotonically and is never
	// reordered; only the active pool is reordered or extended.
	Questions []*Question `json:"all_questions"`

	// ActivePool holds the ordered question ids still to be served. The
	// same id may appear more than once due to recycling.
	ActivePool []string `json:"active_pool"`

	// Position indexes into ActivePool. Position == len(ActivePool)
	// means the session is complete.
	Position int `json:"current_position"`

	Answers       []Answer       `json:"answers"`
	RecycleCounts map[string]int `json:"recycle_counts"`

	Status       SessionStatus `json:"status"`
	Results      *Results      `json:"results,omitempty"`
	UserID       string        `json:"user_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
}

// NewSession constructs a fresh session from a configuration. Topic
// weights are normalized here so every later consumer can assume they
// sum to 1.0.
func NewSession(cfg SessionConfig) (*Session, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	topics, err := NormalizeTopics(cfg.Topics)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Session{
		ID:                     uuid.NewString(),
		Topics:                 topics,
		TotalQuestions:         cfg.TotalQuestions,
		Difficulty:             cfg.Difficulty,
		Mode:                   cfg.Mode,
		CopiesPerIncorrect:     cfg.CopiesPerIncorrect,
		MaxRecyclesPerQuestion: cfg.MaxRecyclesPerQuestion,
		UserQuestions:          cfg.UserQuestions,
		RecycleCounts:          make(map[string]int),
		Status:                 StatusGenerating,
		UserID:                 cfg.UserID,
		CreatedAt:              now,
		LastActivity:           now,
	}, nil
}

// QuestionByID looks up a question in the master list.
func (s *Session) QuestionByID(id string) *Question {
	for _, q := range s.Questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// CurrentQuestion returns the question at the current pool position, or
// nil if the pool is exhausted.
func (s *Session) CurrentQuestion() *Question {
	if s.Position >= len(s.ActivePool) {
		return nil
	}
	return s.QuestionByID(s.ActivePool[s.Position])
}

// Completed reports whether the active pool has been exhausted.
func (s *Session) Completed() bool {
	return s.Position >= len(s.ActivePool)
}

// AttemptNumber returns the attempt number the next answer for this
// question would carry: 1 + the count of prior answers for the id.
func (s *Session) AttemptNumber(questionID string) int {
	n := 1
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			n++
		}
	}
	return n
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = nowUTC()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// checkInvariants verifies the structural invariants of the session.
// It runs after restoration so a corrupt snapshot fails loudly instead
// of producing a partially usable session.
func (s *Session) checkInvariants() error {
	if s.ID == "" {
		return fmt.Errorf("missing session id")
	}
	if s.TotalQuestions <= 0 {
		return fmt.Errorf("total question count must be positive")
	}
	if len(s.Topics) == 0 {
		return fmt.Errorf("session has no topics")
	}
	var weightSum float64
	for _, t := range s.Topics {
		weightSum += t.Weight
	}
	if math.Abs(weightSum-1.0) > weightEpsilon {
		return fmt.Errorf("topic weights sum to %v, want 1.0", weightSum)
	}
	switch s.Status {
	case StatusGenerating, StatusActive, StatusCompleted, StatusPaused:
	default:
		return fmt.Errorf("unknown session status %q", s.Status)
	}
	ids := make(map[string]bool, len(s.Questions))
	for _, q := range s.Questions {
		if q == nil {
			return fmt.Errorf("nil question in master list")
		}
		if q.ID == "" {
			return fmt.Errorf("question without id in master list")
		}
		if ids[q.ID] {
			return fmt.Errorf("duplicate question id %q in master list", q.ID)
		}
		if len(q.Choices) < 2 {
			return fmt.Errorf("question %q has %d choices, need at least 2", q.ID, len(q.Choices))
		}
		ids[q.ID] = true
	}
	for _, id := range s.ActivePool {
		if !ids[id] {
			return fmt.Errorf("active pool references unknown question %q", id)
		}
	}
	if s.Position < 0 || s.Position > len(s.ActivePool) {
		return fmt.Errorf("position %d out of range for pool of %d", s.Position, len(s.ActivePool))
	}
	for _, a := range s.Answers {
		if !ids[a.QuestionID] {
			return fmt.Errorf("answer references unknown question %q", a.QuestionID)
		}
	}
	return nil
}

// parseSelection validates raw answer input against a question and
// returns a deduplicated, sorted copy. Out-of-range indices are a hard
// validation error rather than being silently dropped.
func parseSelection(q *Question, input []int) ([]int, error) {
	seen := make(map[int]bool, len(input))
	selected := make([]int, 0, len(input))
	for _, idx := range input {
		if idx < 0 || idx >= len(q.Choices) {
			return nil, validationErrorf("choice index %d out of range for question with %d choices", idx, len(q.Choices))
		}
		if !seen[idx] {
			seen[idx] = true
			selected = append(selected, idx)
		}
	}
	sort.Ints(selected)
	return selected, nil
}
