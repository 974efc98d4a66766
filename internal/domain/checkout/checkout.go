package checkout

import (
	"errors"

	"github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/settlement"
)

var (
	ErrInvalidStateTransition = errors.New("checkout: invalid state transition")
	ErrAmountRequired         = errors.New("checkout: a positive amount is required")
)

// Phase names the externally visible position in the attempt lifecycle.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseAwaitingCapture Phase = "awaiting_capture"
	PhaseSubmitting      Phase = "submitting"
	PhasePresenting      Phase = "presenting"
)

// Attempt is the single in-progress payment attempt. It carries the
// transient per-attempt fields that must be cleared before the next
// attempt starts, whatever the outcome.
type Attempt struct {
	state State

	Method        capture.Method
	Session       capture.SessionID
	IdentityToken string
	PayerID       string
	FailureReason string
	Outcome       *settlement.Outcome
}

func NewAttempt() *Attempt {
	return &Attempt{state: idleState{}}
}

func (a *Attempt) Phase() Phase { return a.state.Phase() }

// ResetTransient clears every per-attempt field so a fresh attempt starts
// clean regardless of how the previous one ended.
func (a *Attempt) ResetTransient() {
	a.Method = ""
	a.Session = 0
	a.IdentityToken = ""
	a.PayerID = ""
	a.FailureReason = ""
	a.Outcome = nil
}

func (a *Attempt) MethodSelected(m capture.Method, session capture.SessionID) error {
	next, err := a.state.OnMethodSelected(a, m, session)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}

func (a *Attempt) CaptureSucceeded() error {
	next, err := a.state.OnCaptureSucceeded(a)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}

func (a *Attempt) CaptureFailed(reason string, recoverable bool) error {
	next, err := a.state.OnCaptureFailed(a, reason, recoverable)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}

func (a *Attempt) CaptureCancelled() error {
	next, err := a.state.OnCaptureCancelled(a)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}

func (a *Attempt) SubmissionResolved(outcome settlement.Outcome) error {
	next, err := a.state.OnSubmissionResolved(a, outcome)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}

func (a *Attempt) Acknowledged() error {
	next, err := a.state.OnAcknowledged(a)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}
