package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/retroloop/internal/board"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "content", Message: "empty"}, ErrCodeValidation},
		{"closed board", &ClosedBoardError{BoardID: "b"}, ErrCodeClosedBoard},
		{"relationship", &RelationshipViolation{Reason: board.DenialCycle}, ErrCodeRelationship},
		{"quota", &QuotaExceededError{BoardID: "b", Resource: "card"}, ErrCodeQuotaExceeded},
		{"not found", &NotFoundError{CardID: "x"}, ErrCodeNotFound},
		{"remote", &RemoteFailure{Op: "create card", Err: errors.New("boom")}, ErrCodeRemoteFailure},
		{"link in flight", ErrLinkInFlight, ErrCodeLinkInFlight},
		{"wrapped remote", fmt.Errorf("op: %w", &RemoteFailure{Op: "x", Err: errors.New("y")}), ErrCodeRemoteFailure},
		{"unrelated", errors.New("plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestRemoteFailure_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &RemoteFailure{Op: "move card", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "REMOTE_FAILURE")
	assert.Contains(t, err.Error(), "move card")
}

func TestErrorMessagesCarryCodes(t *testing.T) {
	assert.Contains(t, (&ValidationError{Field: "content", Message: "empty"}).Error(), "VALIDATION")
	assert.Contains(t, (&ClosedBoardError{BoardID: "b"}).Error(), "CLOSED_BOARD")
	assert.Contains(t, (&RelationshipViolation{Reason: board.DenialDepthExceeded}).Error(), "DEPTH_EXCEEDED")
	assert.Contains(t, (&QuotaExceededError{Resource: "reaction"}).Error(), "QUOTA_EXCEEDED")
	assert.Contains(t, (&NotFoundError{CardID: "x"}).Error(), "NOT_FOUND")
}
