package settlement

import (
	"errors"
	"fmt"

	"github.com/facebouk/salepoint/internal/domain/capture"
	"github.com/facebouk/salepoint/internal/domain/merchant"
)

var (
	ErrAmountRequired   = errors.New("settlement: amount is required")
	ErrContextRequired  = errors.New("settlement: merchant context is required")
	ErrIdentityRequired = errors.New("settlement: identity token is required")
	ErrPayerRequired    = errors.New("settlement: payer id is required")
)

// ReasonTransport is the rejection reason for any network-level failure:
// timeout, connection error, or a non-2xx response without a structured body.
const ReasonTransport = "transport"

// Request is the immutable submission value object. Exactly one of
// IdentityToken and PayerID is populated, matching Method. Build one fresh
// per attempt via the constructors; never reuse across attempts.
type Request struct {
	Method        capture.Method
	Amount        string
	ReceiverID    string
	AssociateID   string
	IdentityToken string
	PayerID       string
}

func NewFaceRequest(amount string, mc merchant.Context, identityToken string) (Request, error) {
	if amount == "" {
		return Request{}, ErrAmountRequired
	}
	if mc.IsZero() {
		return Request{}, ErrContextRequired
	}
	if identityToken == "" {
		return Request{}, ErrIdentityRequired
	}
	return Request{
		Method:        capture.MethodFace,
		Amount:        amount,
		ReceiverID:    mc.ReceiverID,
		AssociateID:   mc.AssociateID,
		IdentityToken: identityToken,
	}, nil
}

func NewCodeRequest(amount string, mc merchant.Context, payerID string) (Request, error) {
	if amount == "" {
		return Request{}, ErrAmountRequired
	}
	if mc.IsZero() {
		return Request{}, ErrContextRequired
	}
	if payerID == "" {
		return Request{}, ErrPayerRequired
	}
	return Request{
		Method:      capture.MethodCode,
		Amount:      amount,
		ReceiverID:  mc.ReceiverID,
		AssociateID: mc.AssociateID,
		PayerID:     payerID,
	}, nil
}

// Status is the classified outcome of one settlement submission.
type Status string

const (
	StatusSettled  Status = "settled"
	StatusRejected Status = "rejected"
)

// Outcome carries the settlement result back to the controller. Rejected
// outcomes hold the reason shown to the user.
type Outcome struct {
	Status  Status
	Receipt string
	Reason  string
}

func Settled(receipt string) Outcome {
	return Outcome{Status: StatusSettled, Receipt: receipt}
}

func Rejected(reason string) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

// TransportError marks a failure that never produced a structured service
// response. It always classifies as ReasonTransport.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("settlement transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError carries a structured business rejection from the
// settlement service; its message is surfaced verbatim.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("settlement rejected (%d): %s", e.StatusCode, e.Message)
}
