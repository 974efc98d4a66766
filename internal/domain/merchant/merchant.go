package merchant

import (
	"context"
	"errors"
)

var ErrNotCached = errors.New("merchant: context not cached")

// Context identifies the business and the authenticated operator a
// transaction is attributed to. Resolved once per session and immutable
// afterwards; only logout invalidates it.
type Context struct {
	ReceiverID  string
	AssociateID string
}

func (c Context) IsZero() bool { return c.ReceiverID == "" || c.AssociateID == "" }

// Store persists one resolved context per session key.
type Store interface {
	Get(ctx context.Context, sessionKey string) (Context, error)
	Put(ctx context.Context, sessionKey string, mc Context) error
	Delete(ctx context.Context, sessionKey string) error
}
