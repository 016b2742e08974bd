package quizengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenerationTrace writes a per-session log of everything the
// Generation Orchestrator did: source requests and responses, duplicate
// drops and fallbacks. One file per session under dir.
type GenerationTrace struct {
	file      *os.File
	mu        sync.Mutex
	sessionID string
}

// NewGenerationTrace creates a trace file for a session.
func NewGenerationTrace(dir, sessionID string, cfg SessionConfig) (*GenerationTrace, error) {
	if dir == "" {
		dir = "log"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", sessionID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	t := &GenerationTrace{
		file:      file,
		sessionID: sessionID,
	}

	t.Logf("=== Quiz Generation Trace ===\n")
	t.Logf("Session ID: %s\n", sessionID)
	t.Logf("Topics: %d\n", len(cfg.Topics))
	for _, topic := range cfg.Topics {
		t.Logf("  - %s (weight %.3f)\n", topic.Name, topic.Weight)
	}
	t.Logf("Target Questions: %d\n", cfg.TotalQuestions)
	t.Logf("Difficulty: %s\n", cfg.Difficulty)
	t.Logf("Mode: %s\n", cfg.Mode)
	if len(cfg.UserQuestions) > 0 {
		t.Logf("User Questions: %d\n", len(cfg.UserQuestions))
	}
	t.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	t.Logf("=============================\n\n")

	return t, nil
}

// Logf writes a formatted trace entry with timestamp.
func (t *GenerationTrace) Logf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	message := fmt.Sprintf(format, args...)

	fmt.Fprintf(t.file, "[%s] %s", timestamp, message)
	t.file.Sync()
}

// LogRequest records a generator request.
func (t *GenerationTrace) LogRequest(stage, prompt string) {
	t.Logf("=== SOURCE REQUEST (%s) ===\n", stage)
	t.Logf("Prompt:\n%s\n", prompt)
	t.Logf("===========================\n\n")
}

// LogResponse records a generator response.
func (t *GenerationTrace) LogResponse(stage, response string) {
	t.Logf("=== SOURCE RESPONSE (%s) ===\n", stage)
	t.Logf("Response:\n%s\n", response)
	t.Logf("============================\n\n")
}

// LogBatch records the outcome of one generation batch for a topic.
func (t *GenerationTrace) LogBatch(topic string, requested, kept, dropped int) {
	t.Logf("Batch for %q: requested=%d kept=%d dropped-as-duplicate=%d\n", topic, requested, kept, dropped)
}

// LogFallback records that fallback questions were substituted.
func (t *GenerationTrace) LogFallback(topic string, count int, reason error) {
	t.Logf("Fallback for %q: %d placeholder questions (%v)\n", topic, count, reason)
}

// LogUserQuestion records the outcome of interpreting one user question.
func (t *GenerationTrace) LogUserQuestion(text string, interpreted bool) {
	outcome := "interpreted"
	if !interpreted {
		outcome = "fallback true/false"
	}
	if runes := []rune(text); len(runes) > 60 {
		text = string(runes[:60]) + "..."
	}
	t.Logf("User question %q: %s\n", text, outcome)
}

// Close finishes and closes the trace file.
func (t *GenerationTrace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		timestamp := time.Now().Format("15:04:05.000")
		fmt.Fprintf(t.file, "[%s] === Generation Complete: %s ===\n", timestamp, time.Now().Format(time.RFC3339))
		return t.file.Close()
	}
	return nil
}
