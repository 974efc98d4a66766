package capture

import "sync/atomic"

// SessionCounter hands out process-wide unique session identifiers. Both
// capture providers draw from the same counter so a stale event can never
// be mistaken for one belonging to a newer session of either subsystem.
type SessionCounter struct {
	n atomic.Uint64
}

func NewSessionCounter() *SessionCounter { return &SessionCounter{} }

func (c *SessionCounter) Next() SessionID {
	return SessionID(c.n.Add(1))
}
