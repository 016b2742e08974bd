package quizengine

import (
	"context"
	"fmt"
	"time"
)

// BatchRequest asks a QuestionSource for one batch of questions.
type BatchRequest struct {
	Topic      string
	Count      int
	Difficulty Difficulty
	// Context carries retrieved document text to ground generation on.
	Context string
	// Avoid lists the texts of questions already generated for this
	// topic so the source does not re-cover the same ground.
	Avoid []string
}

// InterpretedQuestion is a QuestionSource's structured reading of a
// learner-supplied free-text question.
type InterpretedQuestion struct {
	CorrectAnswers []string
	WrongOptions   []string
	Explanation    string
	AssignedTopic  string
	MultiChoice    bool
}

// QuestionSource generates structured questions. Implementations may
// fail; callers recover with fallback questions rather than aborting.
type QuestionSource interface {
	// Generate produces up to req.Count questions for req.Topic.
	Generate(ctx context.Context, req BatchRequest) ([]*Question, error)

	// InterpretUserQuestion infers answers, wrong options and a best-fit
	// topic for a learner-written question.
	InterpretUserQuestion(ctx context.Context, text string, topics []string, difficulty Difficulty) (*InterpretedQuestion, error)
}

// SearchResult is one retrieved document chunk.
type SearchResult struct {
	Text   string
	Source string
	Page   int
	Slide  int
}

// Retriever searches indexed course material. It is optional: a nil
// retriever degrades generation gracefully (no grounding context, no
// source attribution).
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// FallbackQuestions builds deterministic placeholder questions for a
// topic so the generation pipeline never stalls on source failures.
// Every third question is a true/false, the rest are multi-answer.
func FallbackQuestions(topic string, count int, difficulty Difficulty) []*Question {
	questions := make([]*Question, 0, count)
	for i := 0; i < count; i++ {
		var q *Question
		if i%3 == 0 {
			q = &Question{
				Topic: topic,
				Text:  fmt.Sprintf("%s: placeholder true/false question %d", topic, i+1),
				Choices: []Choice{
					{Text: "True", IsCorrect: true},
					{Text: "False", IsCorrect: false},
				},
				Explanation: fmt.Sprintf("Placeholder question for %s; the generator was unavailable.", topic),
				Difficulty:  difficulty,
				MultiChoice: false,
				CreatedAt:   time.Now().UTC(),
			}
		} else {
			q = &Question{
				Topic: topic,
				Text:  fmt.Sprintf("%s: placeholder multi-choice question %d", topic, i+1),
				Choices: []Choice{
					{Text: "Statement A", IsCorrect: true},
					{Text: "Statement B", IsCorrect: true},
					{Text: "Statement C", IsCorrect: false},
					{Text: "Statement D", IsCorrect: false},
				},
				Explanation: fmt.Sprintf("Placeholder question for %s; the generator was unavailable.", topic),
				Difficulty:  difficulty,
				MultiChoice: true,
				CreatedAt:   time.Now().UTC(),
			}
		}
		questions = append(questions, q)
	}
	return questions
}

// fallbackUserQuestion wraps a learner-written question as a true/false
// placeholder when interpretation fails, so user input can never abort
// the pipeline.
func fallbackUserQuestion(text string, topics []Topic, difficulty Difficulty) *Question {
	topic := "General"
	if len(topics) > 0 {
		topic = topics[0].Name
	}
	return &Question{
		Topic: topic,
		Text:  text,
		Choices: []Choice{
			{Text: "True", IsCorrect: true},
			{Text: "False", IsCorrect: false},
		},
		Explanation: "This question was provided by the user. Please verify the answer.",
		Difficulty:  difficulty,
		MultiChoice: false,
		CreatedAt:   time.Now().UTC(),
	}
}

// questionFromInterpretation builds a Question from a source's
// structured reading of a user question.
func questionFromInterpretation(text string, in *InterpretedQuestion, topics []Topic, difficulty Difficulty) *Question {
	choices := make([]Choice, 0, len(in.CorrectAnswers)+len(in.WrongOptions))
	for _, answer := range in.CorrectAnswers {
		choices = append(choices, Choice{Text: answer, IsCorrect: true})
	}
	for _, wrong := range in.WrongOptions {
		choices = append(choices, Choice{Text: wrong, IsCorrect: false})
	}
	if len(choices) < 2 {
		choices = append(choices, Choice{Text: "False", IsCorrect: false})
	}
	topic := in.AssignedTopic
	if topic == "" && len(topics) > 0 {
		topic = topics[0].Name
	}
	return &Question{
		Topic:       topic,
		Text:        text,
		Choices:     choices,
		Explanation: in.Explanation,
		Difficulty:  difficulty,
		MultiChoice: in.MultiChoice,
		CreatedAt:   time.Now().UTC(),
	}
}
