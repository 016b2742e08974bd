package quizengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreFirstAttemptOnly(t *testing.T) {
	sess := testSession(4)
	sess.Questions[2].Topic = "Channels"
	sess.Questions[3].Topic = "Channels"
	sess.Answers = []Answer{
		{QuestionID: "q-1", Correct: true, AttemptNumber: 1},
		{QuestionID: "q-2", Correct: false, AttemptNumber: 1},
		{QuestionID: "q-3", Correct: false, AttemptNumber: 1},
		{QuestionID: "q-4", Correct: true, AttemptNumber: 1},
		// Recycled attempts must never move the score.
		{QuestionID: "q-2", Correct: true, AttemptNumber: 2},
		{QuestionID: "q-3", Correct: true, AttemptNumber: 2},
	}

	results := Score(sess)

	assert.Equal(t, sess.ID, results.SessionID)
	assert.Equal(t, 4, results.TotalQuestions)
	assert.Equal(t, 2, results.CorrectAnswers)
	assert.InDelta(t, 50.0, results.ScorePercentage, 1e-9)

	require.Contains(t, results.TopicScores, "Go")
	require.Contains(t, results.TopicScores, "Channels")
	assert.Equal(t, TopicScore{Correct: 1, Total: 2, Percentage: 50.0}, results.TopicScores["Go"])
	assert.Equal(t, TopicScore{Correct: 1, Total: 2, Percentage: 50.0}, results.TopicScores["Channels"])
}

func TestScoreEmptySession(t *testing.T) {
	sess := testSession(3)

	results := Score(sess)

	assert.Equal(t, 0, results.TotalQuestions)
	assert.Equal(t, 0, results.CorrectAnswers)
	assert.Zero(t, results.ScorePercentage)
	assert.Empty(t, results.TopicScores)
}

func TestSummaryVerdicts(t *testing.T) {
	tests := []struct {
		percentage float64
		verdict    string
	}{
		{100, "Excellent work!"},
		{80, "Excellent work!"},
		{65, "Good job!"},
		{40, "Keep studying!"},
	}

	for _, tt := range tests {
		r := &Results{ScorePercentage: tt.percentage, TotalQuestions: 10}
		assert.Contains(t, r.Summary(), tt.verdict)
	}
}

func TestSummaryTopicBreakdownSorted(t *testing.T) {
	r := &Results{
		TotalQuestions:  4,
		CorrectAnswers:  3,
		ScorePercentage: 75,
		TopicScores: map[string]TopicScore{
			"Zebras":     {Correct: 1, Total: 2, Percentage: 50},
			"Algorithms": {Correct: 2, Total: 2, Percentage: 100},
		},
	}

	summary := r.Summary()
	assert.Contains(t, summary, "Overall Score: 3/4 (75.0%)")
	assert.Less(t, strings.Index(summary, "Algorithms"), strings.Index(summary, "Zebras"))
}

func TestFormatQuestion(t *testing.T) {
	q := testQuestion("q-1", "Go", "Which call starts a goroutine?")

	out := FormatQuestion(q, 2, 5)
	assert.Contains(t, out, "Question 2/5")
	assert.Contains(t, out, "Topic: Go")
	assert.Contains(t, out, "1. Right")
	assert.Contains(t, out, "2. Wrong")
	assert.Contains(t, out, "(Select one answer)")

	q.MultiChoice = true
	assert.Contains(t, FormatQuestion(q, 1, 5), "Multiple answers allowed")
}

func TestAnswerFeedback(t *testing.T) {
	q := testQuestion("q-1", "Go", "Which call starts a goroutine?")

	correct := AnswerFeedback(q, []int{0}, true)
	assert.Contains(t, correct, "Correct!")
	assert.Contains(t, correct, "Right")
	assert.Contains(t, correct, "Explanation: Because it is.")

	wrong := AnswerFeedback(q, []int{1}, false)
	assert.Contains(t, wrong, "Incorrect.")
	assert.Contains(t, wrong, "You selected: Wrong")
	assert.Contains(t, wrong, "Correct answer(s): Right")
}
