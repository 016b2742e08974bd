package quizengine

import (
	"context"
	"fmt"
	"log"
)

// State names the session machine's states. Transitions run to
// completion synchronously; the single interrupt point is
// Present -> AwaitAnswer, where control returns to the caller until
// answer input arrives.
type State string

const (
	StateInitialize      State = "initialize"
	StateLoadOrGenerate  State = "load_or_generate"
	StateGenerate        State = "generate"
	StatePresent         State = "present"
	StateAwaitAnswer     State = "await_answer"
	StateProcessAnswer   State = "process_answer"
	StateCheckCompletion State = "check_completion"
	StateFinalize        State = "finalize"
)

// Progress summarizes how far a session has advanced, for display at
// the suspend point.
type Progress struct {
	// QuestionNumber is the 1-based position of the current question in
	// the active pool.
	QuestionNumber int `json:"question_number"`
	PoolSize       int `json:"pool_size"`
	Answered       int `json:"answered"`
	Remaining      int `json:"remaining"`
}

// SuspendState is what the caller receives at the interrupt point: the
// current question formatted for display, optional feedback on the
// previous answer, and progress counters.
type SuspendState struct {
	SessionID string    `json:"session_id"`
	Question  *Question `json:"question"`
	Prompt    string    `json:"prompt"`
	Feedback  string    `json:"feedback,omitempty"`
	Progress  Progress  `json:"progress"`
}

// StepResult is the outcome of driving the machine until it yields:
// either a suspend state awaiting input, or final results.
type StepResult struct {
	Session *Session      `json:"-"`
	State   State         `json:"state"`
	Suspend *SuspendState `json:"suspend,omitempty"`
	Results *Results      `json:"results,omitempty"`
}

// Engine drives quiz sessions from one suspend point to the next. It
// holds no per-session state itself: every call loads the snapshot,
// mutates one session, and checkpoints it back, so a stateless web
// tier can drive sessions across process restarts. The caller must
// serialize concurrent calls for the same session id.
type Engine struct {
	orch  *Orchestrator
	store SnapshotStore
}

// NewEngine creates an engine over an orchestrator and snapshot store.
func NewEngine(orch *Orchestrator, store SnapshotStore) *Engine {
	return &Engine{orch: orch, store: store}
}

// Create runs the Initialize state for a fresh configuration: it
// validates the config, constructs the session, and checkpoints it in
// status generating. Generation itself happens in Run, which the caller
// may execute in the background.
func (e *Engine) Create(ctx context.Context, cfg SessionConfig) (*Session, error) {
	return e.create(ctx, cfg, nil)
}

// CreateRetry runs Initialize for a retry mode, reusing the question
// set of the prior session identified by priorSessionID. Retry-same
// pools every prior question in a new shuffled order; retry-failed
// pools only the questions missed on first attempt.
func (e *Engine) CreateRetry(ctx context.Context, cfg SessionConfig, priorSessionID string) (*Session, error) {
	prior, err := e.loadSession(ctx, priorSessionID)
	if err != nil {
		return nil, err
	}
	return e.create(ctx, cfg, prior)
}

func (e *Engine) create(ctx context.Context, cfg SessionConfig, prior *Session) (*Session, error) {
	sess, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	if sess.Mode != ModeFresh {
		if prior == nil {
			return nil, configErrorf("mode %q requires a prior session", sess.Mode)
		}
		if len(prior.Questions) > 0 {
			sess.Questions = append([]*Question(nil), prior.Questions...)
			var ids []string
			switch sess.Mode {
			case ModeRetrySame:
				ids = make([]string, len(prior.Questions))
				for i, q := range prior.Questions {
					ids[i] = q.ID
				}
			case ModeRetryFailed:
				ids = prior.firstAttemptIncorrectIDs()
				if len(ids) == 0 {
					return nil, configErrorf("prior session %s has no incorrectly answered questions to retry", prior.ID)
				}
			}
			rebuildPoolFromIDs(sess, ids, e.orch.rng)
		}
	}

	log.Printf("Initialized session %s: %d topics, %d questions, difficulty %s, mode %s",
		sess.ID, len(sess.Topics), sess.TotalQuestions, sess.Difficulty, sess.Mode)

	if err := e.checkpoint(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Run drives a freshly created session from LoadOrGenerate to its first
// suspend point (or straight to Finalize for an empty pool). Generation
// may be long-running; callers that must answer quickly run this in the
// background and poll Current.
func (e *Engine) Run(ctx context.Context, sess *Session) (*StepResult, error) {
	return e.runFrom(ctx, sess, StateLoadOrGenerate, "")
}

// Start is the synchronous convenience for callers that can wait
// through generation: Create followed by Run.
func (e *Engine) Start(ctx context.Context, cfg SessionConfig) (*StepResult, error) {
	sess, err := e.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, sess)
}

// Resume feeds the learner's answer input into a suspended session and
// drives the machine to the next suspend point or to final results.
//
// Missing or empty input re-suspends at Present without touching any
// state; an out-of-range index is a hard validation error, also without
// mutation. Valid input appends exactly one answer, applies the
// recycling rule, and advances the position by exactly one.
func (e *Engine) Resume(ctx context.Context, sessionID string, input []int) (*StepResult, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case StatusCompleted:
		return &StepResult{Session: sess, State: StateFinalize, Results: sess.Results}, nil
	case StatusGenerating:
		return nil, validationErrorf("session %s is still generating questions", sessionID)
	case StatusPaused:
		return nil, validationErrorf("session %s is paused", sessionID)
	}

	if sess.Completed() {
		// Pool exhausted but not yet finalized; finish without input.
		return e.runFrom(ctx, sess, StateFinalize, "")
	}

	q := sess.CurrentQuestion()
	if len(input) == 0 {
		VerboseLog("No answer input for session %s, re-presenting", sessionID)
		return &StepResult{
			Session: sess,
			State:   StateAwaitAnswer,
			Suspend: e.suspendState(sess, "No valid answers provided"),
		}, nil
	}

	selected, err := parseSelection(q, input)
	if err != nil {
		return nil, err
	}

	correct := q.IsCorrectSelection(selected)
	answer := sess.recordAnswer(q, selected, correct)
	if err := e.checkpoint(ctx, sess); err != nil {
		return nil, err
	}

	mark := "incorrect"
	if correct {
		mark = "correct"
	}
	VerboseLog("Answer processed for session %s: question %s attempt %d %s (position %d/%d)",
		sess.ID, q.ID, answer.AttemptNumber, mark, sess.Position, len(sess.ActivePool))

	feedback := AnswerFeedback(q, selected, correct)
	return e.runFrom(ctx, sess, StateCheckCompletion, feedback)
}

// Current returns the session's present suspend state (or results)
// without mutating anything, for stateless callers re-fetching the
// question after a restart.
func (e *Engine) Current(ctx context.Context, sessionID string) (*StepResult, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusGenerating {
		return &StepResult{Session: sess, State: StateGenerate}, nil
	}
	if sess.Completed() {
		if sess.Results != nil {
			return &StepResult{Session: sess, State: StateFinalize, Results: sess.Results}, nil
		}
		return e.runFrom(ctx, sess, StateFinalize, "")
	}
	return &StepResult{
		Session: sess,
		State:   StateAwaitAnswer,
		Suspend: e.suspendState(sess, ""),
	}, nil
}

// Pause marks an in-flight session paused. All progress is already
// durable, so pausing is purely a status change.
func (e *Engine) Pause(ctx context.Context, sessionID string) error {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == StatusCompleted {
		return validationErrorf("session %s is already completed", sessionID)
	}
	sess.Status = StatusPaused
	sess.Touch()
	return e.checkpoint(ctx, sess)
}

// Unpause reactivates a paused session and returns its current suspend
// state.
func (e *Engine) Unpause(ctx context.Context, sessionID string) (*StepResult, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusPaused {
		return nil, validationErrorf("session %s is not paused", sessionID)
	}
	sess.Status = StatusActive
	sess.Touch()
	if err := e.checkpoint(ctx, sess); err != nil {
		return nil, err
	}
	return e.Current(ctx, sessionID)
}

// runFrom executes transitions until the machine yields: at the
// Present suspend point or at the terminal Finalize state. Every
// transition that mutated the session checkpoints before control
// returns, because the caller may not come back for an arbitrary time.
func (e *Engine) runFrom(ctx context.Context, sess *Session, state State, feedback string) (*StepResult, error) {
	for {
		switch state {
		case StateLoadOrGenerate:
			next, err := e.loadOrGenerate(sess)
			if err != nil {
				return nil, err
			}
			state = next

		case StateGenerate:
			if err := e.orch.Populate(ctx, sess); err != nil {
				return nil, err
			}
			sess.Touch()
			if err := e.checkpoint(ctx, sess); err != nil {
				return nil, err
			}
			state = StatePresent

		case StatePresent:
			if sess.Completed() {
				state = StateFinalize
				continue
			}
			sess.Status = StatusActive
			sess.Touch()
			if err := e.checkpoint(ctx, sess); err != nil {
				return nil, err
			}
			VerboseLog("Presenting question %d/%d for session %s", sess.Position+1, len(sess.ActivePool), sess.ID)
			return &StepResult{
				Session: sess,
				State:   StateAwaitAnswer,
				Suspend: e.suspendState(sess, feedback),
			}, nil

		case StateCheckCompletion:
			if sess.Completed() {
				state = StateFinalize
			} else {
				state = StatePresent
			}

		case StateFinalize:
			results := Score(sess)
			sess.Results = results
			sess.Status = StatusCompleted
			sess.Touch()
			if err := e.checkpoint(ctx, sess); err != nil {
				return nil, err
			}
			log.Printf("Session %s finalized: %d/%d (%.1f%%)",
				sess.ID, results.CorrectAnswers, results.TotalQuestions, results.ScorePercentage)
			return &StepResult{Session: sess, State: StateFinalize, Results: results}, nil

		default:
			return nil, fmt.Errorf("machine cannot run from state %q", state)
		}
	}
}

// loadOrGenerate branches on mode: fresh always generates; retry modes
// reuse the question set prepared at Create when present, else fall
// through to generation.
func (e *Engine) loadOrGenerate(sess *Session) (State, error) {
	switch sess.Mode {
	case ModeFresh:
		return StateGenerate, nil
	case ModeRetrySame, ModeRetryFailed:
		if len(sess.Questions) > 0 && len(sess.ActivePool) > 0 {
			return StatePresent, nil
		}
		return StateGenerate, nil
	default:
		return "", configErrorf("unknown quiz mode: %q", sess.Mode)
	}
}

func (e *Engine) suspendState(sess *Session, feedback string) *SuspendState {
	q := sess.CurrentQuestion()
	return &SuspendState{
		SessionID: sess.ID,
		Question:  q,
		Prompt:    FormatQuestion(q, sess.Position+1, len(sess.ActivePool)),
		Feedback:  feedback,
		Progress: Progress{
			QuestionNumber: sess.Position + 1,
			PoolSize:       len(sess.ActivePool),
			Answered:       len(sess.Answers),
			Remaining:      len(sess.ActivePool) - sess.Position,
		},
	}
}

func (e *Engine) loadSession(ctx context.Context, sessionID string) (*Session, error) {
	data, err := e.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return Restore(data)
}

func (e *Engine) checkpoint(ctx context.Context, sess *Session) error {
	data, err := Serialize(sess)
	if err != nil {
		return err
	}
	if err := e.store.Save(ctx, sess.ID, data); err != nil {
		return fmt.Errorf("failed to checkpoint session %s: %w", sess.ID, err)
	}
	return nil
}
