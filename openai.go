package quizengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISource generates questions with an OpenAI chat model through
// forced tool calls, so responses always arrive as structured JSON.
type OpenAISource struct {
	client *openai.Client
	model  string
	trace  *GenerationTrace
}

// NewOpenAISource creates a question source backed by OpenAI. An empty
// model defaults to GPT-4o.
func NewOpenAISource(apiKey, model string) *OpenAISource {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAISource{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// SetTrace attaches a generation trace; requests and responses are
// recorded to it.
func (s *OpenAISource) SetTrace(trace *GenerationTrace) {
	s.trace = trace
}

// Generate implements QuestionSource.
func (s *OpenAISource) Generate(ctx context.Context, req BatchRequest) ([]*Question, error) {
	prompt := s.buildGeneratePrompt(req)
	if s.trace != nil {
		s.trace.LogRequest("Generate", prompt)
	}

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert assessment question generator. Generate high-quality multiple choice questions with 2-4 options each.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "submit_questions",
						Description: "Submit generated assessment questions",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"questions": map[string]interface{}{
									"type": "array",
									"items": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"text": map[string]interface{}{
												"type":        "string",
												"description": "The question text",
											},
											"choices": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "object",
													"properties": map[string]interface{}{
														"text": map[string]interface{}{
															"type":        "string",
															"description": "Choice text",
														},
														"is_correct": map[string]interface{}{
															"type":        "boolean",
															"description": "Whether this choice is correct",
														},
													},
													"required": []string{"text", "is_correct"},
												},
												"description": "2-4 answer choices; at least one must be correct",
											},
											"explanation": map[string]interface{}{
												"type":        "string",
												"description": "Brief explanation of the correct answer(s)",
											},
											"is_multi_choice": map[string]interface{}{
												"type":        "boolean",
												"description": "Whether more than one choice is correct",
											},
										},
										"required": []string{"text", "choices", "explanation", "is_multi_choice"},
									},
								},
							},
							"required": []string{"questions"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_questions",
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	args, err := toolArguments(resp, "submit_questions")
	if err != nil {
		return nil, err
	}
	if s.trace != nil {
		s.trace.LogResponse("Generate", args)
	}

	var toolArgs struct {
		Questions []struct {
			Text    string `json:"text"`
			Choices []struct {
				Text      string `json:"text"`
				IsCorrect bool   `json:"is_correct"`
			} `json:"choices"`
			Explanation string `json:"explanation"`
			MultiChoice bool   `json:"is_multi_choice"`
		} `json:"questions"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}

	questions := make([]*Question, 0, len(toolArgs.Questions))
	for _, q := range toolArgs.Questions {
		choices := make([]Choice, 0, len(q.Choices))
		for _, c := range q.Choices {
			choices = append(choices, Choice{Text: c.Text, IsCorrect: c.IsCorrect})
		}
		question := &Question{
			Topic:       req.Topic,
			Text:        q.Text,
			Choices:     choices,
			Explanation: q.Explanation,
			Difficulty:  req.Difficulty,
			MultiChoice: q.MultiChoice,
			CreatedAt:   time.Now().UTC(),
		}
		repairQuestion(question)
		questions = append(questions, question)
	}

	VerboseLog("Generated %d questions for topic %q", len(questions), req.Topic)
	return questions, nil
}

// InterpretUserQuestion implements QuestionSource.
func (s *OpenAISource) InterpretUserQuestion(ctx context.Context, text string, topics []string, difficulty Difficulty) (*InterpretedQuestion, error) {
	prompt := buildInterpretPrompt(text, topics, difficulty)
	if s.trace != nil {
		s.trace.LogRequest("InterpretUserQuestion", prompt)
	}

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert at turning a student's free-text question into a structured multiple choice question.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        "interpret_question",
						Description: "Submit the structured reading of the student's question",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"correct_answers": map[string]interface{}{
									"type":        "array",
									"items":       map[string]interface{}{"type": "string"},
									"description": "The correct answer(s), as a list even for a single answer",
								},
								"wrong_options": map[string]interface{}{
									"type":        "array",
									"items":       map[string]interface{}{"type": "string"},
									"description": "2-4 plausible but incorrect options",
								},
								"explanation": map[string]interface{}{
									"type":        "string",
									"description": "Why the answer(s) are correct",
								},
								"assigned_topic": map[string]interface{}{
									"type":        "string",
									"description": "The best-fit topic from the available list",
								},
								"is_multi_choice": map[string]interface{}{
									"type":        "boolean",
									"description": "Whether the question naturally allows multiple correct answers",
								},
							},
							"required": []string{"correct_answers", "wrong_options", "explanation", "assigned_topic", "is_multi_choice"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "interpret_question",
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to interpret user question: %w", err)
	}

	args, err := toolArguments(resp, "interpret_question")
	if err != nil {
		return nil, err
	}
	if s.trace != nil {
		s.trace.LogResponse("InterpretUserQuestion", args)
	}

	var toolArgs struct {
		CorrectAnswers []string `json:"correct_answers"`
		WrongOptions   []string `json:"wrong_options"`
		Explanation    string   `json:"explanation"`
		AssignedTopic  string   `json:"assigned_topic"`
		MultiChoice    bool     `json:"is_multi_choice"`
	}
	if err := json.Unmarshal([]byte(args), &toolArgs); err != nil {
		return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if len(toolArgs.CorrectAnswers) == 0 {
		return nil, fmt.Errorf("interpretation returned no correct answers")
	}

	return &InterpretedQuestion{
		CorrectAnswers: toolArgs.CorrectAnswers,
		WrongOptions:   toolArgs.WrongOptions,
		Explanation:    toolArgs.Explanation,
		AssignedTopic:  toolArgs.AssignedTopic,
		MultiChoice:    toolArgs.MultiChoice,
	}, nil
}

func (s *OpenAISource) buildGeneratePrompt(req BatchRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Create %d educational assessment questions for: %s\n\n", req.Count, req.Topic)
	fmt.Fprintf(&sb, "Purpose: Academic Assessment\nLevel: %s\n\n", req.Difficulty)

	sb.WriteString("Question format:\n")
	sb.WriteString("- Roughly 30% binary choice (2 options), 70% multiple choice (3-4 options)\n")
	sb.WriteString("- Mark multi-answer questions with is_multi_choice=true\n")
	sb.WriteString("- Include an answer explanation for every question\n\n")

	sb.WriteString("Quality standards:\n")
	sb.WriteString("- Questions must be specific, not general\n")
	sb.WriteString("- Test comprehension over memorization\n")
	sb.WriteString("- Incorrect options should be plausible but clearly wrong\n")
	sb.WriteString("- Cover different concepts, angles and question types\n")

	if len(req.Avoid) > 0 {
		sb.WriteString("\nAVOID THESE ALREADY CREATED QUESTIONS:\n")
		for _, text := range req.Avoid {
			fmt.Fprintf(&sb, "- %s\n", text)
		}
		sb.WriteString("Do not create questions similar to the above. Focus on different concepts, angles, and wording.\n")
	}

	if req.Context != "" {
		sb.WriteString("\nRELEVANT DOCUMENT CONTEXT:\n")
		sb.WriteString(req.Context)
		sb.WriteString("\n")
	}

	sb.WriteString("\nUse the submit_questions tool to return the questions.\n")
	return sb.String()
}

func buildInterpretPrompt(text string, topics []string, difficulty Difficulty) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Analyze this student question: %q\n\n", text)
	fmt.Fprintf(&sb, "Available topics: %s\n", strings.Join(topics, ", "))
	fmt.Fprintf(&sb, "Difficulty level: %s\n\n", difficulty)

	sb.WriteString("Determine:\n")
	sb.WriteString("1. The correct answer(s) - as a list even for a single answer\n")
	sb.WriteString("2. 2-4 plausible but incorrect options\n")
	sb.WriteString("3. Whether the question allows multiple correct answers\n")
	sb.WriteString("4. A detailed explanation of why the answer(s) are correct\n")
	sb.WriteString("5. Which topic from the available list fits best\n\n")
	sb.WriteString("For simple true/false questions provide exactly two options and set is_multi_choice to false.\n")
	sb.WriteString("Use the interpret_question tool to return the structured response.\n")

	return sb.String()
}

// toolArguments extracts the forced tool call's arguments from a chat
// completion response.
func toolArguments(resp openai.ChatCompletionResponse, name string) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in response")
	}
	toolCall := choice.Message.ToolCalls[0]
	if toolCall.Function.Name != name {
		return "", fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}
	return toolCall.Function.Arguments, nil
}

// repairQuestion enforces the structural minimums on a model-produced
// question: at least two choices and at least one correct choice.
func repairQuestion(q *Question) {
	if len(q.Choices) < 2 {
		VerboseLog("Question has fewer than 2 choices, adding fallback choices")
		q.Choices = append(q.Choices,
			Choice{Text: "True", IsCorrect: true},
			Choice{Text: "False", IsCorrect: false},
		)
	}
	hasCorrect := false
	for _, c := range q.Choices {
		if c.IsCorrect {
			hasCorrect = true
			break
		}
	}
	if !hasCorrect {
		VerboseLog("Question has no correct answer, marking first as correct")
		q.Choices[0].IsCorrect = true
	}
}
