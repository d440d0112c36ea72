package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("restricted for deletion")
	ErrConflict            = errors.New("concurrent modification")

	// flow errors
	ErrAlreadyCompleted  = errors.New("response already completed")
	ErrQuestionRevisited = errors.New("question already answered in this response")
	ErrOutOfTurn         = errors.New("question is not the current question")
	ErrNotTerminated     = errors.New("survey flow has not reached its end")
	ErrUnknownOption     = errors.New("selected option not recognized for this question")
	ErrMalformedAnswer   = errors.New("malformed answer")
	ErrCycle             = errors.New("cycle detected")
	ErrSurveyInactive    = errors.New("survey is not active")
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
	// survey configuration defects, reported to the author at activation time.
	ErrStructural
	// answer rejected by a type rule, retryable by the respondent.
	ErrValidation
	// operation not allowed in the current response state.
	ErrOperation
	// runtime state contradicts a structure that was validated.
	ErrConsistency
)

type Fault struct {
	Type    ErrorType
	Field   string
	Message string
	Err     error
}

func (e *Fault) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.typeString(), msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.typeString(), msg)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *Fault) Unwrap() error {
	return e.Err
}

// typeString returns a human-readable representation of the error type.
func (e *Fault) typeString() string {
	switch e.Type {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	case ErrStructural:
		return "StructuralError"
	case ErrValidation:
		return "ValidationError"
	case ErrOperation:
		return "OperationError"
	case ErrConsistency:
		return "ConsistencyError"
	default:
		return "UnknownError"
	}
}

// NewClientError creates a new client error.
func NewClientError(msg string, err error) error {
	return &Fault{
		Type:    ErrClient,
		Message: msg,
		Err:     err,
	}
}

// NewInternalError creates a new internal server error.
func NewInternalError(msg string, err error) error {
	return &Fault{
		Type:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// NewStructuralError creates an error describing a defective survey graph.
func NewStructuralError(msg string, err error) error {
	return &Fault{
		Type:    ErrStructural,
		Message: msg,
		Err:     err,
	}
}

// NewValidationError creates an error for a rejected answer. Field names the
// offending part of the input, e.g. "latitude".
func NewValidationError(field, msg string, err error) error {
	return &Fault{
		Type:    ErrValidation,
		Field:   field,
		Message: msg,
		Err:     err,
	}
}

// NewOperationError creates a conflict error for a disallowed state transition.
func NewOperationError(msg string, err error) error {
	return &Fault{
		Type:    ErrOperation,
		Message: msg,
		Err:     err,
	}
}

// NewConsistencyError creates an error for runtime state that should have
// been impossible after structure validation.
func NewConsistencyError(msg string, err error) error {
	return &Fault{
		Type:    ErrConsistency,
		Message: msg,
		Err:     err,
	}
}

func isType(err error, t ErrorType) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// IsClientError checks if an error is a client error.
func IsClientError(err error) bool { return isType(err, ErrClient) }

// IsInternalError checks if an error is an internal error.
func IsInternalError(err error) bool { return isType(err, ErrInternal) }

func IsStructuralError(err error) bool { return isType(err, ErrStructural) }

func IsValidationError(err error) bool { return isType(err, ErrValidation) }

func IsOperationError(err error) bool { return isType(err, ErrOperation) }

func IsConsistencyError(err error) bool { return isType(err, ErrConsistency) }

// FieldOf returns the input field named by the outermost fault, if any.
func FieldOf(err error) string {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// IsMalformed checks if an answer could not be parsed at all.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedAnswer)
}
