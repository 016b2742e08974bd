package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"quizengine"
)

func main() {
	var userQuestions []string

	var (
		topicsFlag   = flag.String("topics", "", "Weighted topics, e.g. \"Algorithms:0.6,Data Structures:0.4\" (required)")
		numQuestions = flag.Int("questions", 10, "Number of questions to generate")
		difficulty   = flag.String("difficulty", "medium", "Difficulty level (easy, medium, hard, very_hard)")
		copies       = flag.Int("copies", 2, "Copies of a question re-queued after an incorrect answer")
		apiKey       = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		model        = flag.String("model", "", "OpenAI model (default gpt-4o)")
		traceDir     = flag.String("trace-dir", "", "Directory for generation trace logs")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Func("user-question", "Question text to include verbatim (repeatable)", func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("user question cannot be empty")
		}
		userQuestions = append(userQuestions, s)
		return nil
	})

	flag.Parse()

	quizengine.SetVerbose(*verbose)

	topics, err := parseTopics(*topicsFlag)
	if err != nil {
		log.Fatalf("Invalid -topics: %v", err)
	}

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}

	cfg := quizengine.SessionConfig{
		Topics:             topics,
		TotalQuestions:     *numQuestions,
		Difficulty:         quizengine.Difficulty(*difficulty),
		CopiesPerIncorrect: *copies,
		UserQuestions:      userQuestions,
	}

	source := quizengine.NewOpenAISource(*apiKey, *model)
	orch := quizengine.NewOrchestrator(source, nil, quizengine.DefaultGeneratorConfig())
	engine := quizengine.NewEngine(orch, quizengine.NewMemoryStore())

	if *traceDir != "" {
		trace, err := quizengine.NewGenerationTrace(*traceDir, "cli", cfg)
		if err != nil {
			log.Fatalf("Failed to open trace log: %v", err)
		}
		defer trace.Close()
		orch.SetTrace(trace)
	}

	fmt.Printf("Starting quiz: %d questions, difficulty %s\n", *numQuestions, *difficulty)
	for _, t := range topics {
		fmt.Printf("  %s (%.0f%%)\n", t.Name, t.Weight*100)
	}
	fmt.Println("Generating questions... (this may take a moment)")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	step, err := engine.Start(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start quiz: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for step.State == quizengine.StateAwaitAnswer {
		if step.Suspend.Feedback != "" {
			fmt.Println(step.Suspend.Feedback)
			fmt.Println()
		}
		fmt.Println(step.Suspend.Prompt)
		fmt.Print("Your answer (e.g. 1 or 1,3): ")

		if !scanner.Scan() {
			fmt.Println("\nQuiz interrupted.")
			return
		}

		input, err := parseAnswerInput(scanner.Text())
		if err != nil {
			fmt.Printf("Invalid input: %v\n\n", err)
			continue
		}

		step, err = engine.Resume(ctx, step.Session.ID, input)
		if err != nil {
			fmt.Printf("Invalid answer: %v\n\n", err)
			step, _ = engine.Current(ctx, step.Session.ID)
			continue
		}
		fmt.Println()
	}

	if step.Suspend != nil && step.Suspend.Feedback != "" {
		fmt.Println(step.Suspend.Feedback)
		fmt.Println()
	}
	if step.Results != nil {
		fmt.Println(step.Results.Summary())
	}
}

// parseTopics parses "Name:weight,Name:weight" into a topic list. A
// name without a weight gets an equal share of the remainder.
func parseTopics(s string) ([]quizengine.Topic, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("at least one topic is required")
	}

	parts := strings.Split(s, ",")
	topics := make([]quizengine.Topic, 0, len(parts))
	unweighted := 0
	assigned := 0.0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		weight := 0.0
		if idx := strings.LastIndex(part, ":"); idx >= 0 {
			w, err := strconv.ParseFloat(strings.TrimSpace(part[idx+1:]), 64)
			if err != nil {
				return nil, fmt.Errorf("bad weight in %q: %w", part, err)
			}
			name = strings.TrimSpace(part[:idx])
			weight = w
			assigned += w
		} else {
			unweighted++
		}
		if name == "" {
			return nil, fmt.Errorf("empty topic name in %q", part)
		}
		topics = append(topics, quizengine.Topic{Name: name, Weight: weight})
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	if unweighted > 0 {
		remainder := 1.0 - assigned
		if remainder <= 0 {
			return nil, fmt.Errorf("weights already sum to %.2f, no share left for unweighted topics", assigned)
		}
		share := remainder / float64(unweighted)
		for i := range topics {
			if topics[i].Weight == 0 {
				topics[i].Weight = share
			}
		}
	}
	return topics, nil
}

// parseAnswerInput converts "1,3" style 1-based input into 0-based
// choice indices. Empty input is returned as nil and re-presents the
// question.
func parseAnswerInput(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		if n < 1 {
			return nil, fmt.Errorf("choices are numbered from 1")
		}
		indices = append(indices, n-1)
	}
	return indices, nil
}
