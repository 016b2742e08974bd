package quizengine

import "encoding/json"

// Serialize produces the complete snapshot of a session: every field,
// including nested questions and answers, sufficient to resume the
// state machine at its last suspend point.
func Serialize(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, restorationErrorf("failed to serialize session %s: %v", s.ID, err)
	}
	return data, nil
}

// Restore reconstructs a session from a snapshot. Round-trip holds:
// Serialize(Restore(Serialize(s))) equals Serialize(s). Any structural
// problem fails loudly with ErrRestoration; no partially initialized
// session is ever returned.
func Restore(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, restorationErrorf("empty snapshot")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, restorationErrorf("malformed snapshot: %v", err)
	}
	if err := s.checkInvariants(); err != nil {
		return nil, restorationErrorf("invalid snapshot: %v", err)
	}
	return &s, nil
}

// ResumeState infers the machine state a restored session resumes
// into: Present while questions remain, Finalize once the pool is
// exhausted.
func (s *Session) ResumeState() State {
	if s.Completed() {
		return StateFinalize
	}
	return StatePresent
}
