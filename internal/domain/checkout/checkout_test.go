package checkout

import (
	"testing"

	"github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptHappyPath(t *testing.T) {
	a := NewAttempt()
	assert.Equal(t, PhaseIdle, a.Phase())

	require.NoError(t, a.MethodSelected(capture.MethodFace, 7))
	assert.Equal(t, PhaseAwaitingCapture, a.Phase())
	assert.Equal(t, capture.MethodFace, a.Method)
	assert.Equal(t, capture.SessionID(7), a.Session)

	require.NoError(t, a.CaptureSucceeded())
	assert.Equal(t, PhaseSubmitting, a.Phase())

	require.NoError(t, a.SubmissionResolved(settlement.Settled("R-1")))
	assert.Equal(t, PhasePresenting, a.Phase())
	require.NotNil(t, a.Outcome)
	assert.Equal(t, settlement.StatusSettled, a.Outcome.Status)

	require.NoError(t, a.Acknowledged())
	assert.Equal(t, PhaseIdle, a.Phase())
	assert.Empty(t, a.Method)
	assert.Zero(t, a.Session)
	assert.Nil(t, a.Outcome)
}

func TestAttemptDuplicateCaptureRejected(t *testing.T) {
	a := NewAttempt()
	require.NoError(t, a.MethodSelected(capture.MethodFace, 1))
	require.NoError(t, a.CaptureSucceeded())

	// a second confirmation for the same capture must not restart submission
	assert.ErrorIs(t, a.CaptureSucceeded(), ErrInvalidStateTransition)
	assert.Equal(t, PhaseSubmitting, a.Phase())
}

func TestAttemptRecoverableFailureStaysAwaiting(t *testing.T) {
	a := NewAttempt()
	require.NoError(t, a.MethodSelected(capture.MethodCode, 3))

	require.NoError(t, a.CaptureFailed("invalid_payload", true))
	assert.Equal(t, PhaseAwaitingCapture, a.Phase())
	assert.Equal(t, "invalid_payload", a.FailureReason)

	// the retried capture can still succeed
	require.NoError(t, a.CaptureSucceeded())
	assert.Equal(t, PhaseSubmitting, a.Phase())
	assert.Empty(t, a.FailureReason)
}

func TestAttemptTerminalFailurePresents(t *testing.T) {
	a := NewAttempt()
	require.NoError(t, a.MethodSelected(capture.MethodFace, 3))

	require.NoError(t, a.CaptureFailed("timeout", false))
	assert.Equal(t, PhasePresenting, a.Phase())
	assert.Equal(t, "timeout", a.FailureReason)

	require.NoError(t, a.Acknowledged())
	assert.Equal(t, PhaseIdle, a.Phase())
	assert.Empty(t, a.FailureReason)
}

func TestAttemptCancelReturnsToIdle(t *testing.T) {
	a := NewAttempt()
	require.NoError(t, a.MethodSelected(capture.MethodCode, 5))

	require.NoError(t, a.CaptureCancelled())
	assert.Equal(t, PhaseIdle, a.Phase())
	assert.Empty(t, a.Method)
}

func TestAttemptRejectedSubmissionKeepsReason(t *testing.T) {
	a := NewAttempt()
	require.NoError(t, a.MethodSelected(capture.MethodFace, 2))
	require.NoError(t, a.CaptureSucceeded())

	require.NoError(t, a.SubmissionResolved(settlement.Rejected("transport")))
	assert.Equal(t, PhasePresenting, a.Phase())
	assert.Equal(t, "transport", a.FailureReason)
}

func TestAttemptInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(a *Attempt) error
	}{
		{name: "capture succeeded while idle", run: func(a *Attempt) error {
			return a.CaptureSucceeded()
		}},
		{name: "submission resolved while idle", run: func(a *Attempt) error {
			return a.SubmissionResolved(settlement.Settled(""))
		}},
		{name: "acknowledged while idle", run: func(a *Attempt) error {
			return a.Acknowledged()
		}},
		{name: "method selected twice", run: func(a *Attempt) error {
			if err := a.MethodSelected(capture.MethodFace, 1); err != nil {
				return err
			}
			return a.MethodSelected(capture.MethodCode, 2)
		}},
		{name: "cancel while submitting", run: func(a *Attempt) error {
			if err := a.MethodSelected(capture.MethodFace, 1); err != nil {
				return err
			}
			if err := a.CaptureSucceeded(); err != nil {
				return err
			}
			return a.CaptureCancelled()
		}},
		{name: "capture failed while presenting", run: func(a *Attempt) error {
			if err := a.MethodSelected(capture.MethodFace, 1); err != nil {
				return err
			}
			if err := a.CaptureFailed("timeout", false); err != nil {
				return err
			}
			return a.CaptureFailed("timeout", false)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(NewAttempt()), ErrInvalidStateTransition)
		})
	}
}
