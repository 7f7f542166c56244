package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/retroloop/internal/board"
)

// ErrorCode categorizes coordinator errors for callers that dispatch on
// category rather than concrete type (CLI output, scenario expectations).
type ErrorCode string

const (
	ErrCodeValidation    ErrorCode = "VALIDATION"
	ErrCodeClosedBoard   ErrorCode = "CLOSED_BOARD"
	ErrCodeRelationship  ErrorCode = "RELATIONSHIP_VIOLATION"
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeRemoteFailure ErrorCode = "REMOTE_FAILURE"
	ErrCodeLinkInFlight  ErrorCode = "LINK_IN_FLIGHT"
)

// ErrLinkInFlight is returned when a second link/unlink is attempted while
// one is already outstanding for the board. Relationship mutations are
// serialized per board from the local client's perspective.
var ErrLinkInFlight = errors.New("a relationship mutation is already in flight for this board")

// ValidationError rejects malformed input (empty or over-length content,
// unknown card kind). Raised by guards only; never follows a repository write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrCodeValidation, e.Field, e.Message)
}

// ClosedBoardError rejects any mutation once the board is read-only.
type ClosedBoardError struct {
	BoardID string
}

func (e *ClosedBoardError) Error() string {
	return fmt.Sprintf("%s: board %s is closed", ErrCodeClosedBoard, e.BoardID)
}

// RelationshipViolation rejects an illegal link or unlink: wrong card kind,
// would-create-cycle, depth exceeded, already-has-parent, or not-linked.
type RelationshipViolation struct {
	Reason   board.LinkDenial
	SourceID string
	TargetID string
}

// ReasonNotLinked is used for unlink attempts on edges that do not exist.
// It extends the checker's denial codes, which only cover proposed links.
const ReasonNotLinked board.LinkDenial = "NOT_LINKED"

func (e *RelationshipViolation) Error() string {
	return fmt.Sprintf("%s: %s (source=%s, target=%s)", ErrCodeRelationship, e.Reason, e.SourceID, e.TargetID)
}

// QuotaExceededError rejects a quota-gated operation (feedback-card creation
// or reaction) after the service denied the quota check. Raised before any
// repository mutation.
type QuotaExceededError struct {
	BoardID  string
	Resource string // "card" or "reaction"
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %s quota exhausted on board %s", ErrCodeQuotaExceeded, e.Resource, e.BoardID)
}

// NotFoundError rejects an operation whose operand card is not known locally.
type NotFoundError struct {
	CardID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: card %s not found", ErrCodeNotFound, e.CardID)
}

// RemoteFailure wraps a failed persistence call. It is only possible after
// apply-local and always follows a completed rollback: by the time the
// caller sees a RemoteFailure, the repository is back in its pre-operation
// state.
type RemoteFailure struct {
	Op  string
	Err error
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeRemoteFailure, e.Op, e.Err)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

// CodeOf maps an error to its ErrorCode. Unknown errors map to
// ErrCodeRemoteFailure only when they wrap one; otherwise the empty code.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLinkInFlight):
		return ErrCodeLinkInFlight
	case IsValidationError(err):
		return ErrCodeValidation
	case IsClosedBoardError(err):
		return ErrCodeClosedBoard
	case IsRelationshipViolation(err):
		return ErrCodeRelationship
	case IsQuotaExceeded(err):
		return ErrCodeQuotaExceeded
	case IsNotFound(err):
		return ErrCodeNotFound
	case IsRemoteFailure(err):
		return ErrCodeRemoteFailure
	default:
		return ""
	}
}

// IsValidationError reports whether err is a ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsClosedBoardError reports whether err is a ClosedBoardError.
func IsClosedBoardError(err error) bool {
	var e *ClosedBoardError
	return errors.As(err, &e)
}

// IsRelationshipViolation reports whether err is a RelationshipViolation.
func IsRelationshipViolation(err error) bool {
	var e *RelationshipViolation
	return errors.As(err, &e)
}

// IsQuotaExceeded reports whether err is a QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var e *QuotaExceededError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsRemoteFailure reports whether err is a RemoteFailure.
func IsRemoteFailure(err error) bool {
	var e *RemoteFailure
	return errors.As(err, &e)
}
