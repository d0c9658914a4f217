package quiz

import (
	"errors"
)

// Fixed user-safe messages. These are the only strings that may reach a
// client; upstream provider errors stay server-side.
const (
	MsgValidationFailed = "Validation failed"
	MsgNoTranscript     = "No transcript available"
	MsgRateLimited      = "Rate limit exceeded"
	MsgGenerationFailed = "Failed to generate questions"
)

var (
	// ErrNoTranscript means the transcript store had nothing for the
	// requested video/chapter scope.
	ErrNoTranscript = errors.New(MsgNoTranscript)

	// ErrRateLimited is the admission-control rejection, distinct from a
	// generation failure.
	ErrRateLimited = errors.New(MsgRateLimited)

	// ErrGenerationInFlight rejects a second StartQuiz/refill while one
	// generation call is outstanding.
	ErrGenerationInFlight = errors.New("a generation call is already in flight")
)

// ValidationError reports a malformed or out-of-range request with
// field-level detail.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return MsgValidationFailed
}

func newValidationError(field, problem string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: problem}}
}

// GenerationError wraps an upstream model, parsing or batch-validation
// failure. Error() is deliberately a fixed string: provider error text can
// embed credentials and must never be surfaced. The cause stays reachable
// through Unwrap for server-side logging only.
type GenerationError struct {
	cause error
}

func NewGenerationError(cause error) *GenerationError {
	return &GenerationError{cause: cause}
}

func (e *GenerationError) Error() string {
	return MsgGenerationFailed
}

func (e *GenerationError) Unwrap() error {
	return e.cause
}

// TransitionError rejects a session event that is invalid in the current
// phase. No state change accompanies it.
type TransitionError struct {
	Phase Phase
	Event string
}

func (e *TransitionError) Error() string {
	return "invalid event " + e.Event + " in phase " + string(e.Phase)
}
