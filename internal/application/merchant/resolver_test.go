package merchant

import (
	"context"
	"errors"
	"testing"

	dommerchant "github.com/facebouk/salepoint/internal/domain/merchant"
	"github.com/facebouk/salepoint/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	calls      int
	businessID string
	err        error
}

func (l *fakeLookup) BusinessID(context.Context, string) (string, error) {
	l.calls++
	return l.businessID, l.err
}

func staticDecoder(id string, err error) IdentityDecoder {
	return func(string) (string, error) { return id, err }
}

func TestResolveLooksUpAndCaches(t *testing.T) {
	store := memory.NewMerchantStore()
	lookup := &fakeLookup{businessID: "B1"}
	r := NewResolver(store, staticDecoder("A1", nil), lookup, nil)

	mc, err := r.Resolve(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, dommerchant.Context{ReceiverID: "B1", AssociateID: "A1"}, mc)
	assert.Equal(t, 1, lookup.calls)

	// second resolution is served from the cache
	mc, err = r.Resolve(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, "B1", mc.ReceiverID)
	assert.Equal(t, 1, lookup.calls)
}

func TestResolveRequiresToken(t *testing.T) {
	r := NewResolver(memory.NewMerchantStore(), staticDecoder("A1", nil), &fakeLookup{businessID: "B1"}, nil)

	_, err := r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSessionToken)
}

func TestResolveDecodeFailure(t *testing.T) {
	decodeErr := errors.New("not a token")
	lookup := &fakeLookup{businessID: "B1"}
	r := NewResolver(memory.NewMerchantStore(), staticDecoder("", decodeErr), lookup, nil)

	_, err := r.Resolve(context.Background(), "bad-token")
	assert.ErrorIs(t, err, decodeErr)
	assert.Zero(t, lookup.calls)
}

func TestResolveLookupFailure(t *testing.T) {
	lookupErr := errors.New("profile service down")
	r := NewResolver(memory.NewMerchantStore(), staticDecoder("A1", nil), &fakeLookup{err: lookupErr}, nil)

	_, err := r.Resolve(context.Background(), "token-1")
	assert.ErrorIs(t, err, lookupErr)
}

func TestInvalidateDropsCache(t *testing.T) {
	store := memory.NewMerchantStore()
	lookup := &fakeLookup{businessID: "B1"}
	r := NewResolver(store, staticDecoder("A1", nil), lookup, nil)

	_, err := r.Resolve(context.Background(), "token-1")
	require.NoError(t, err)

	require.NoError(t, r.Invalidate(context.Background(), "token-1"))

	_, err = r.Resolve(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lookup.calls, "invalidation forces a fresh lookup")
}

func TestInvalidateRequiresToken(t *testing.T) {
	r := NewResolver(memory.NewMerchantStore(), staticDecoder("A1", nil), &fakeLookup{}, nil)
	assert.ErrorIs(t, r.Invalidate(context.Background(), ""), ErrNoSessionToken)
}
