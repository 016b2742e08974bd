package quizengine

import "math/rand"

// buildActivePool sets the session's active pool to a shuffled
// permutation of every master-list question id and resets the position.
func buildActivePool(sess *Session, rng *rand.Rand) {
	pool := make([]string, len(sess.Questions))
	for i, q := range sess.Questions {
		pool[i] = q.ID
	}
	shuffle(pool, rng)
	sess.ActivePool = pool
	sess.Position = 0
}

// rebuildPoolFromIDs sets the active pool to a shuffled permutation of
// the given ids (used by retry modes, where the master list is reused
// but the serving order starts over).
func rebuildPoolFromIDs(sess *Session, ids []string, rng *rand.Rand) {
	pool := make([]string, len(ids))
	copy(pool, ids)
	shuffle(pool, rng)
	sess.ActivePool = pool
	sess.Position = 0
}

func shuffle(pool []string, rng *rand.Rand) {
	if rng != nil {
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		return
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
}

// recordAnswer appends an answer for the current question and applies
// the recycling rule: a correct answer leaves the pool untouched; an
// incorrect one appends the question id to the end of the pool
// CopiesPerIncorrect times and increments its recycle counter. There is
// no upper bound on recycles per question. The position always advances
// by exactly one.
func (s *Session) recordAnswer(q *Question, selected []int, correct bool) Answer {
	answer := Answer{
		QuestionID:      q.ID,
		SelectedIndices: selected,
		Correct:         correct,
		AttemptNumber:   s.AttemptNumber(q.ID),
		AnsweredAt:      nowUTC(),
	}
	s.Answers = append(s.Answers, answer)

	if !correct {
		for i := 0; i < s.CopiesPerIncorrect; i++ {
			s.ActivePool = append(s.ActivePool, q.ID)
		}
		if s.RecycleCounts == nil {
			s.RecycleCounts = make(map[string]int)
		}
		s.RecycleCounts[q.ID]++
	}

	s.Position++
	s.Touch()
	return answer
}

// firstAttemptIncorrectIDs returns, in master-list order, the ids of
// questions whose first attempt was answered incorrectly. Retry-failed
// sessions pool exactly these.
func (s *Session) firstAttemptIncorrectIDs() []string {
	missed := make(map[string]bool)
	for _, a := range s.Answers {
		if a.AttemptNumber == 1 && !a.Correct {
			missed[a.QuestionID] = true
		}
	}
	var ids []string
	for _, q := range s.Questions {
		if missed[q.ID] {
			ids = append(ids, q.ID)
		}
	}
	return ids
}
