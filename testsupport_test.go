package quizengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// testQuestion builds a single-answer question whose first choice is
// correct.
func testQuestion(id, topic, text string) *Question {
	return &Question{
		ID:    id,
		Topic: topic,
		Text:  text,
		Choices: []Choice{
			{Text: "Right", IsCorrect: true},
			{Text: "Wrong", IsCorrect: false},
			{Text: "Also wrong", IsCorrect: false},
		},
		Explanation: "Because it is.",
		Difficulty:  DifficultyMedium,
		CreatedAt:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

// testSession builds an active session with n questions on one topic
// and an unshuffled pool, ready to answer from position 0.
func testSession(n int) *Session {
	s := &Session{
		ID:                 "sess-test",
		Topics:             []Topic{{Name: "Go", Weight: 1.0}},
		TotalQuestions:     n,
		Difficulty:         DifficultyMedium,
		Mode:               ModeFresh,
		CopiesPerIncorrect: 2,
		RecycleCounts:      make(map[string]int),
		Status:             StatusActive,
		CreatedAt:          time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		LastActivity:       time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q-%d", i)
		s.Questions = append(s.Questions, testQuestion(id, "Go", fmt.Sprintf("Question number %d about goroutines?", i)))
		s.ActivePool = append(s.ActivePool, id)
	}
	return s
}

// stubPhrases are pairwise dissimilar under SequenceRatio (all ratios
// well under DefaultSimilarityThreshold), so the default stub really
// does produce distinct questions.
var stubPhrases = []string{
	"Which scheduling primitive wakes a blocked goroutine?",
	"How does escape analysis decide stack versus heap?",
	"When is a deferred call evaluated, early or late?",
	"What happens if two selects race on one channel?",
	"Can an unbuffered send ever complete without a receiver?",
	"Why might copying a mutex by value corrupt state?",
	"Does closing a channel twice always panic at runtime?",
	"Where do finalizers run relative to garbage collection?",
	"Is map iteration order stable across program runs?",
	"Should context cancellation propagate through worker pools?",
}

// stubSource is an in-memory QuestionSource. The default behavior
// produces the requested number of distinct single-answer questions;
// tests override generate or interpret to exercise failure paths.
type stubSource struct {
	generate  func(ctx context.Context, req BatchRequest) ([]*Question, error)
	interpret func(ctx context.Context, text string, topics []string, difficulty Difficulty) (*InterpretedQuestion, error)

	generateCalls  atomic.Int64
	interpretCalls atomic.Int64
	counter        atomic.Int64
}

func (s *stubSource) Generate(ctx context.Context, req BatchRequest) ([]*Question, error) {
	s.generateCalls.Add(1)
	if s.generate != nil {
		return s.generate(ctx, req)
	}
	questions := make([]*Question, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		n := s.counter.Add(1)
		// Texts must stay pairwise below the orchestrator's 0.7
		// similarity threshold or the duplicate filter silently swaps
		// them for fallbacks.
		phrase := stubPhrases[int(n-1)%len(stubPhrases)]
		questions = append(questions, testQuestion("", req.Topic,
			fmt.Sprintf("%s [%s %d]", phrase, req.Topic, n)))
	}
	return questions, nil
}

func (s *stubSource) InterpretUserQuestion(ctx context.Context, text string, topics []string, difficulty Difficulty) (*InterpretedQuestion, error) {
	s.interpretCalls.Add(1)
	if s.interpret != nil {
		return s.interpret(ctx, text, topics, difficulty)
	}
	return &InterpretedQuestion{
		CorrectAnswers: []string{"Yes"},
		WrongOptions:   []string{"No", "Maybe"},
		Explanation:    "Interpreted answer.",
		AssignedTopic:  topics[0],
	}, nil
}

// stubRetriever returns a fixed result set for every query.
type stubRetriever struct {
	results []SearchResult
	err     error
}

func (r *stubRetriever) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	if limit < len(r.results) {
		return r.results[:limit], nil
	}
	return r.results, nil
}
