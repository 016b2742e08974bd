package quizengine

import "log"

// Package-level verbose flag. The engine logs progress through the
// standard logger only when verbose mode is on; the per-session
// generation trace (gentrace.go) is independent of this flag.
var verboseMode bool

// SetVerbose toggles verbose engine logging process-wide.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// Verbose reports whether verbose logging is enabled.
func Verbose() bool {
	return verboseMode
}

// VerboseLog logs through the standard logger when verbose mode is on.
func VerboseLog(format string, v ...any) {
	if verboseMode {
		log.Printf(format, v...)
	}
}
