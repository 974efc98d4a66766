package capture

import "time"

// Raw provider events. These carry whatever the subsystem emitted; the
// bridge validates them before anything downstream reacts.

// BiometricTerminalEvent is the single terminal message of a biometric
// session, success or error.
type BiometricTerminalEvent struct {
	Session       SessionID
	Mode          Mode
	Success       bool
	IdentityToken string
	ErrorCode     int
	ErrorMessage  string
	OccurredAt    time.Time
}

func (BiometricTerminalEvent) EventName() string { return "capture.biometric_terminal" }

// ScanEvent carries one raw scanned payload.
type ScanEvent struct {
	Session    SessionID
	Payload    string
	OccurredAt time.Time
}

func (ScanEvent) EventName() string { return "capture.scan" }

// Normalized bridge results. Exactly one of these terminates a capture
// attempt (recoverable failures excepted, which keep the attempt open).

type SucceededEvent struct {
	Session       SessionID
	Method        Method
	IdentityToken string
	Code          *CodePayload
	OccurredAt    time.Time
}

func (SucceededEvent) EventName() string { return "capture.succeeded" }

type FailedEvent struct {
	Session SessionID
	Method  Method
	Reason  Reason
	Message string
	// Recoverable failures keep the capture session alive: the scanner
	// re-arms, or the user may switch an enrollment to authentication.
	Recoverable          bool
	SwitchToAuthenticate bool
	OccurredAt           time.Time
}

func (FailedEvent) EventName() string { return "capture.failed" }

type CancelledEvent struct {
	Session    SessionID
	Method     Method
	OccurredAt time.Time
}

func (CancelledEvent) EventName() string { return "capture.cancelled" }
