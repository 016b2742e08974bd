package quizengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionsPerTopic(t *testing.T) {
	tests := []struct {
		name   string
		topics []Topic
		total  int
		want   map[string]int
	}{
		{
			name:   "weighted split",
			topics: []Topic{{Name: "Algorithms", Weight: 0.6}, {Name: "Data Structures", Weight: 0.4}},
			total:  10,
			want:   map[string]int{"Algorithms": 6, "Data Structures": 4},
		},
		{
			name:   "single topic takes all",
			topics: []Topic{{Name: "Go", Weight: 1.0}},
			total:  7,
			want:   map[string]int{"Go": 7},
		},
		{
			name:   "low weight still gets one",
			topics: []Topic{{Name: "Main", Weight: 0.96}, {Name: "Side", Weight: 0.02}, {Name: "Other", Weight: 0.02}},
			total:  10,
			want:   map[string]int{"Main": 10, "Side": 1, "Other": 1},
		},
		{
			name:   "halves round to even",
			topics: []Topic{{Name: "A", Weight: 0.5}, {Name: "B", Weight: 0.5}},
			total:  5,
			want:   map[string]int{"A": 2, "B": 2},
		},
		{
			name:   "halves round up to even",
			topics: []Topic{{Name: "A", Weight: 0.5}, {Name: "B", Weight: 0.5}},
			total:  7,
			want:   map[string]int{"A": 4, "B": 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuestionsPerTopic(tt.topics, tt.total))
		})
	}
}

func TestQuestionsPerTopicDeterministic(t *testing.T) {
	topics := []Topic{{Name: "A", Weight: 0.3}, {Name: "B", Weight: 0.3}, {Name: "C", Weight: 0.4}}
	first := QuestionsPerTopic(topics, 17)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, QuestionsPerTopic(topics, 17))
	}
}

func TestNormalizeTopics(t *testing.T) {
	t.Run("scales to unit sum", func(t *testing.T) {
		topics, err := NormalizeTopics([]Topic{{Name: "A", Weight: 3}, {Name: "B", Weight: 1}})
		require.NoError(t, err)
		assert.InDelta(t, 0.75, topics[0].Weight, 1e-9)
		assert.InDelta(t, 0.25, topics[1].Weight, 1e-9)
	})

	t.Run("rejects zero total weight", func(t *testing.T) {
		_, err := NormalizeTopics([]Topic{{Name: "A", Weight: 0}})
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("rejects negative weight", func(t *testing.T) {
		_, err := NormalizeTopics([]Topic{{Name: "A", Weight: -0.5}, {Name: "B", Weight: 1.5}})
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("rejects empty list", func(t *testing.T) {
		_, err := NormalizeTopics(nil)
		require.ErrorIs(t, err, ErrConfiguration)
	})
}
