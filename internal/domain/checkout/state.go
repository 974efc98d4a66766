package checkout

import (
	"github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/settlement"
)

// State implements the state pattern for the payment attempt lifecycle.
// Transitioning through submitting exactly once per capture is what keeps
// the settlement endpoint from being hit twice for one confirmed capture.
type State interface {
	Phase() Phase
	OnMethodSelected(a *Attempt, m capture.Method, session capture.SessionID) (State, error)
	OnCaptureSucceeded(a *Attempt) (State, error)
	OnCaptureFailed(a *Attempt, reason string, recoverable bool) (State, error)
	OnCaptureCancelled(a *Attempt) (State, error)
	OnSubmissionResolved(a *Attempt, outcome settlement.Outcome) (State, error)
	OnAcknowledged(a *Attempt) (State, error)
}

type idleState struct{}

func (idleState) Phase() Phase { return PhaseIdle }

func (idleState) OnMethodSelected(a *Attempt, m capture.Method, session capture.SessionID) (State, error) {
	a.Method = m
	a.Session = session
	a.FailureReason = ""
	return awaitingCaptureState{}, nil
}

func (idleState) OnCaptureSucceeded(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (idleState) OnCaptureFailed(*Attempt, string, bool) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (idleState) OnCaptureCancelled(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (idleState) OnSubmissionResolved(*Attempt, settlement.Outcome) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (idleState) OnAcknowledged(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

type awaitingCaptureState struct{}

func (awaitingCaptureState) Phase() Phase { return PhaseAwaitingCapture }

func (awaitingCaptureState) OnMethodSelected(*Attempt, capture.Method, capture.SessionID) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingCaptureState) OnCaptureSucceeded(a *Attempt) (State, error) {
	a.FailureReason = ""
	return submittingState{}, nil
}

func (awaitingCaptureState) OnCaptureFailed(a *Attempt, reason string, recoverable bool) (State, error) {
	a.FailureReason = reason
	if recoverable {
		// The capture subsystem stays open; the user retries in place.
		return awaitingCaptureState{}, nil
	}
	return presentingState{}, nil
}

func (awaitingCaptureState) OnCaptureCancelled(a *Attempt) (State, error) {
	a.ResetTransient()
	return idleState{}, nil
}

func (awaitingCaptureState) OnSubmissionResolved(*Attempt, settlement.Outcome) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (awaitingCaptureState) OnAcknowledged(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

type submittingState struct{}

func (submittingState) Phase() Phase { return PhaseSubmitting }

func (submittingState) OnMethodSelected(*Attempt, capture.Method, capture.SessionID) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (submittingState) OnCaptureSucceeded(*Attempt) (State, error) {
	// A duplicate capture event while a submission is in flight must not
	// start a second submission.
	return nil, ErrInvalidStateTransition
}

func (submittingState) OnCaptureFailed(*Attempt, string, bool) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (submittingState) OnCaptureCancelled(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (submittingState) OnSubmissionResolved(a *Attempt, outcome settlement.Outcome) (State, error) {
	a.Outcome = &outcome
	if outcome.Status == settlement.StatusRejected {
		a.FailureReason = outcome.Reason
	}
	return presentingState{}, nil
}

func (submittingState) OnAcknowledged(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

type presentingState struct{}

func (presentingState) Phase() Phase { return PhasePresenting }

func (presentingState) OnMethodSelected(*Attempt, capture.Method, capture.SessionID) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (presentingState) OnCaptureSucceeded(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (presentingState) OnCaptureFailed(*Attempt, string, bool) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (presentingState) OnCaptureCancelled(*Attempt) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (presentingState) OnSubmissionResolved(*Attempt, settlement.Outcome) (State, error) {
	return nil, ErrInvalidStateTransition
}

func (presentingState) OnAcknowledged(a *Attempt) (State, error) {
	a.ResetTransient()
	return idleState{}, nil
}
