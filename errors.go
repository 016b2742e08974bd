package quizengine

import (
	"errors"
	"fmt"
)

// Error categories. Callers branch on these with errors.Is:
//
//   - ErrConfiguration: fatal, surfaced immediately, no partial session
//     is created.
//   - ErrValidation: recoverable answer-input failure; the session's
//     durable state is unchanged.
//   - ErrRestoration: the stored snapshot is corrupt or incomplete; the
//     session is unusable.
//
// Generation failures never surface as errors at all; they degrade to
// fallback questions inside the orchestrator.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrRestoration   = errors.New("restoration error")

	// ErrSessionNotFound is returned by snapshot stores when no snapshot
	// exists for the requested session id.
	ErrSessionNotFound = errors.New("session not found")
)

func configErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func restorationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRestoration, fmt.Sprintf(format, args...))
}
