package quizengine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTrace(t *testing.T, dir, sessionID string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, sessionID+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestGenerationTraceWritesHeader(t *testing.T) {
	dir := t.TempDir()
	trace, err := NewGenerationTrace(dir, "sess-1", SessionConfig{
		Topics:         []Topic{{Name: "Go", Weight: 1}},
		TotalQuestions: 5,
		Difficulty:     DifficultyHard,
		Mode:           ModeFresh,
	})
	require.NoError(t, err)
	trace.LogBatch("Go", 5, 4, 1)
	require.NoError(t, trace.Close())

	content := readTrace(t, dir, "sess-1")
	assert.Contains(t, content, "Session ID: sess-1")
	assert.Contains(t, content, "Target Questions: 5")
	assert.Contains(t, content, "Difficulty: hard")
	assert.Contains(t, content, `Batch for "Go": requested=5 kept=4 dropped-as-duplicate=1`)
}

func TestLogUserQuestionTruncatesOnRuneBoundary(t *testing.T) {
	dir := t.TempDir()
	trace, err := NewGenerationTrace(dir, "sess-2", SessionConfig{
		Topics:         []Topic{{Name: "Historia", Weight: 1}},
		TotalQuestions: 3,
	})
	require.NoError(t, err)

	long := strings.Repeat("Które województwo leży nad Wisłą? ", 4)
	trace.LogUserQuestion(long, true)
	require.NoError(t, trace.Close())

	content := readTrace(t, dir, "sess-2")
	assert.True(t, utf8.ValidString(content))
	assert.Contains(t, content, "...")
	assert.NotContains(t, content, long)
}
