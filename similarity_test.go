package quizengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceRatio(t *testing.T) {
	var sim SequenceRatio

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "what is a goroutine", "what is a goroutine", 1.0},
		{"both empty", "", "", 1.0},
		{"disjoint", "abc", "xyz", 0.0},
		{"one empty", "abc", "", 0.0},
		{"classic overlap", "abcd", "bcde", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, sim.Ratio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, sim.Ratio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestDuplicateFilter(t *testing.T) {
	t.Run("exact repeat is a duplicate", func(t *testing.T) {
		f := NewDuplicateFilter(nil, 0)
		assert.False(t, f.IsDuplicate("What does the select statement do?"))
		assert.True(t, f.IsDuplicate("What does the select statement do?"))
	})

	t.Run("case and whitespace are normalized", func(t *testing.T) {
		f := NewDuplicateFilter(nil, 0)
		assert.False(t, f.IsDuplicate("What does the select statement do?"))
		assert.True(t, f.IsDuplicate("  WHAT DOES THE SELECT STATEMENT DO?  "))
	})

	t.Run("near-duplicate above threshold is dropped", func(t *testing.T) {
		f := NewDuplicateFilter(nil, 0)
		assert.False(t, f.IsDuplicate("What is the purpose of the sync.WaitGroup type in Go?"))
		assert.True(t, f.IsDuplicate("What is the purpose of the sync.WaitGroup type in Go??"))
	})

	t.Run("distinct questions pass", func(t *testing.T) {
		f := NewDuplicateFilter(nil, 0)
		assert.False(t, f.IsDuplicate("What is a channel?"))
		assert.False(t, f.IsDuplicate("How does garbage collection reclaim unreachable heap objects?"))
	})

	t.Run("observed texts count as accepted", func(t *testing.T) {
		f := NewDuplicateFilter(nil, 0)
		f.Observe("Explain how defer ordering works in Go functions.")
		assert.True(t, f.IsDuplicate("Explain how defer ordering works in Go functions."))
	})

	t.Run("custom threshold", func(t *testing.T) {
		f := NewDuplicateFilter(SequenceRatio{}, 0.995)
		assert.False(t, f.IsDuplicate("What is the purpose of the sync.WaitGroup type in Go?"))
		assert.False(t, f.IsDuplicate("What is the purpose of the sync.WaitGroup types in Go?"))
	})
}
