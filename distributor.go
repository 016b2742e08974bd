package quizengine

import "math"

// QuestionsPerTopic converts weighted topics and a target total into
// integer per-topic quotas: quota = max(1, round(total * weight)),
// rounding halves to even. Weights are assumed pre-normalized (see
// NormalizeTopics).
//
// The minimum-of-1 rule guarantees every topic is represented, which
// means the quota sum can exceed the requested total when many
// low-weight topics are present. That is accepted rounding behavior,
// not corrected here.
func QuestionsPerTopic(topics []Topic, total int) map[string]int {
	quotas := make(map[string]int, len(topics))
	for _, t := range topics {
		n := int(math.RoundToEven(float64(total) * t.Weight))
		if n < 1 {
			n = 1
		}
		quotas[t.Name] = n
	}
	return quotas
}
