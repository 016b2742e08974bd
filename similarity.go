package quizengine

import "strings"

// DefaultSimilarityThreshold is the ratio above which two question
// texts are considered near-duplicates. Tunable, not load-bearing.
const DefaultSimilarityThreshold = 0.7

// Similarity measures how alike two strings are, as a ratio in [0,1].
type Similarity interface {
	Ratio(a, b string) float64
}

// SequenceRatio is a Ratcliff/Obershelp sequence similarity: twice the
// number of matching characters over the total length of both strings,
// where matches are found by recursively taking the longest common
// substring.
type SequenceRatio struct{}

// Ratio returns the similarity of a and b in [0,1].
func (SequenceRatio) Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	start1, start2, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	matched := size
	matched += matchingRunes(a[:start1], b[:start2])
	matched += matchingRunes(a[start1+size:], b[start2+size:])
	return matched
}

func longestCommonSubstring(a, b []rune) (start1, start2, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// prev[j] holds the length of the common suffix ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					start1 = i - size
					start2 = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return start1, start2, size
}

// DuplicateFilter drops question texts that are too similar to a text
// it has already accepted. One filter instance covers one topic; the
// orchestrator creates a fresh filter per topic so questions on
// different topics never suppress each other.
type DuplicateFilter struct {
	sim       Similarity
	threshold float64
	accepted  []string
}

// NewDuplicateFilter builds a filter with the given similarity measure
// and threshold. A nil measure defaults to SequenceRatio, a zero
// threshold to DefaultSimilarityThreshold.
func NewDuplicateFilter(sim Similarity, threshold float64) *DuplicateFilter {
	if sim == nil {
		sim = SequenceRatio{}
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &DuplicateFilter{sim: sim, threshold: threshold}
}

// Observe records a text as accepted without checking it, so texts that
// entered the session through another path (user questions, earlier
// batches) count for later duplicate checks.
func (f *DuplicateFilter) Observe(text string) {
	f.accepted = append(f.accepted, normalizeQuestionText(text))
}

// IsDuplicate reports whether text is a near-duplicate of any accepted
// text. Non-duplicates are recorded as accepted.
func (f *DuplicateFilter) IsDuplicate(text string) bool {
	normalized := normalizeQuestionText(text)
	for _, seen := range f.accepted {
		if f.sim.Ratio(normalized, seen) > f.threshold {
			return true
		}
	}
	f.accepted = append(f.accepted, normalized)
	return false
}

func normalizeQuestionText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
