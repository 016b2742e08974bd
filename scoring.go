package quizengine

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TopicScore is per-topic first-attempt performance.
type TopicScore struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Results is the read-only outcome of a completed session. Only
// first-attempt answers count; recycled re-attempts never move the
// score.
type Results struct {
	SessionID       string                `json:"session_id"`
	TotalQuestions  int                   `json:"total_questions"`
	CorrectAnswers  int                   `json:"correct_answers"`
	ScorePercentage float64               `json:"score_percentage"`
	TopicScores     map[string]TopicScore `json:"topic_scores"`
	CompletedAt     time.Time             `json:"completed_at"`
}

// Score computes session results from first-attempt answers. Pure and
// read-only over the session. Topics with no first-attempt answers are
// omitted from the breakdown rather than reported as 0/0.
func Score(s *Session) *Results {
	topicOf := make(map[string]string, len(s.Questions))
	for _, q := range s.Questions {
		topicOf[q.ID] = q.Topic
	}

	var total, correct int
	perTopic := make(map[string]*TopicScore)
	for _, a := range s.Answers {
		if a.AttemptNumber != 1 {
			continue
		}
		total++
		ts := perTopic[topicOf[a.QuestionID]]
		if ts == nil {
			ts = &TopicScore{}
			perTopic[topicOf[a.QuestionID]] = ts
		}
		ts.Total++
		if a.Correct {
			correct++
			ts.Correct++
		}
	}

	var percentage float64
	if total > 0 {
		percentage = float64(correct) / float64(total) * 100
	}

	topicScores := make(map[string]TopicScore, len(perTopic))
	for topic, ts := range perTopic {
		ts.Percentage = float64(ts.Correct) / float64(ts.Total) * 100
		topicScores[topic] = *ts
	}

	return &Results{
		SessionID:       s.ID,
		TotalQuestions:  total,
		CorrectAnswers:  correct,
		ScorePercentage: percentage,
		TopicScores:     topicScores,
		CompletedAt:     nowUTC(),
	}
}

// Summary renders the results as a human-readable block.
func (r *Results) Summary() string {
	var sb strings.Builder

	sb.WriteString("Quiz Complete!\n\n")
	fmt.Fprintf(&sb, "Overall Score: %d/%d (%.1f%%)\n", r.CorrectAnswers, r.TotalQuestions, r.ScorePercentage)

	if len(r.TopicScores) > 0 {
		sb.WriteString("\nTopic Breakdown:\n")
		topics := make([]string, 0, len(r.TopicScores))
		for topic := range r.TopicScores {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
		for _, topic := range topics {
			ts := r.TopicScores[topic]
			fmt.Fprintf(&sb, "- %s: %d/%d (%.1f%%)\n", topic, ts.Correct, ts.Total, ts.Percentage)
		}
	}

	switch {
	case r.ScorePercentage >= 80:
		sb.WriteString("\nExcellent work!")
	case r.ScorePercentage >= 60:
		sb.WriteString("\nGood job!")
	default:
		sb.WriteString("\nKeep studying!")
	}

	return sb.String()
}

// FormatQuestion renders a question for presentation at the suspend
// point. Position is 1-based.
func FormatQuestion(q *Question, position, poolSize int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Question %d/%d | Topic: %s | Difficulty: %s\n\n", position, poolSize, q.Topic, strings.ToUpper(string(q.Difficulty)))
	sb.WriteString(q.Text)
	sb.WriteString("\n\n")
	for i, choice := range q.Choices {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, choice.Text)
	}
	if q.MultiChoice {
		sb.WriteString("\n(Multiple answers allowed - enter numbers separated by commas, e.g., 1,3)")
	} else {
		sb.WriteString("\n(Select one answer)")
	}

	return sb.String()
}

// AnswerFeedback renders per-answer feedback: the selection, the
// correct choices when missed, and the explanation.
func AnswerFeedback(q *Question, selected []int, correct bool) string {
	selectedTexts := make([]string, 0, len(selected))
	for _, idx := range selected {
		selectedTexts = append(selectedTexts, q.Choices[idx].Text)
	}

	var sb strings.Builder
	if correct {
		fmt.Fprintf(&sb, "Correct! You selected: %s", strings.Join(selectedTexts, ", "))
	} else {
		var correctTexts []string
		for _, idx := range q.CorrectIndices() {
			correctTexts = append(correctTexts, q.Choices[idx].Text)
		}
		fmt.Fprintf(&sb, "Incorrect. You selected: %s\nCorrect answer(s): %s",
			strings.Join(selectedTexts, ", "), strings.Join(correctTexts, ", "))
	}
	fmt.Fprintf(&sb, "\n\nExplanation: %s", q.Explanation)
	return sb.String()
}
