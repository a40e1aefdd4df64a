package types

import "fmt"

// ErrorCode represents a unified error code across the substrate.
type ErrorCode string

// Bus error codes
const (
	ErrDuplicateAgent    ErrorCode = "DUPLICATE_AGENT"
	ErrUnknownAgent      ErrorCode = "UNKNOWN_AGENT"
	ErrRecipientNotFound ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrBusClosed         ErrorCode = "BUS_CLOSED"
	ErrUnknownKind       ErrorCode = "UNKNOWN_KIND"
)

// Debate error codes
const (
	ErrRoundClosed      ErrorCode = "ROUND_CLOSED"
	ErrInvalidVote      ErrorCode = "INVALID_VOTE"
	ErrDebateState      ErrorCode = "DEBATE_STATE"
	ErrNotParticipant   ErrorCode = "NOT_PARTICIPANT"
	ErrTooFewDebaters   ErrorCode = "TOO_FEW_DEBATERS"
	ErrUnknownDebate    ErrorCode = "UNKNOWN_DEBATE"
	ErrUnknownVoteKind  ErrorCode = "UNKNOWN_VOTE_KIND"
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED"
)

// Delegation error codes
const (
	ErrInvalidPlan    ErrorCode = "INVALID_PLAN"
	ErrUnknownProject ErrorCode = "UNKNOWN_PROJECT"
	ErrUnknownSubtask ErrorCode = "UNKNOWN_SUBTASK"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
