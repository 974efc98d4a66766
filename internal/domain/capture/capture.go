package capture

import (
	"context"
	"errors"
)

var (
	ErrNoActiveSession = errors.New("capture: no active session")
	ErrSessionBusy     = errors.New("capture: a session is already open")
)

// Method identifies how payer data is captured.
type Method string

const (
	MethodFace Method = "FACE"
	MethodCode Method = "CODE"
)

// Mode selects the biometric widget behaviour for a session.
type Mode string

const (
	ModeEnroll       Mode = "enroll"
	ModeAuthenticate Mode = "authenticate"
)

// SessionID tags a single capture session. IDs are monotonically
// increasing across the process so a late event from a closed session can
// never collide with the currently open one.
type SessionID uint64

// UserMetadata is forwarded to the biometric widget when a session opens.
type UserMetadata struct {
	Email    string
	Username string
	FullName string
}

// OpenConfig parameterises a capture session.
type OpenConfig struct {
	Mode     Mode
	Metadata UserMetadata
}

// Provider is the boundary to one capture subsystem. Terminal results are
// not returned from Open; they arrive asynchronously as events tagged with
// the session identifier.
type Provider interface {
	Open(ctx context.Context, cfg OpenConfig) (SessionID, error)
	Close(ctx context.Context, id SessionID)
}
