package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/facebouk/salepoint/internal/domain/merchant"
)

// MerchantStore holds the one cached merchant-context record per session
// key. It stands in for the terminal's local persisted storage; logout
// deletes the entry.
type MerchantStore struct {
	mu       sync.RWMutex
	contexts map[string]domain.Context
}

func NewMerchantStore() *MerchantStore {
	return &MerchantStore{
		contexts: make(map[string]domain.Context),
	}
}

func (s *MerchantStore) Get(ctx context.Context, sessionKey string) (domain.Context, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	mc, ok := s.contexts[sessionKey]
	if !ok {
		return domain.Context{}, domain.ErrNotCached
	}
	return mc, nil
}

func (s *MerchantStore) Put(ctx context.Context, sessionKey string, mc domain.Context) error {
	_ = ctx
	if sessionKey == "" {
		return fmt.Errorf("merchant store: session key is required")
	}
	if mc.IsZero() {
		return fmt.Errorf("merchant store: context is incomplete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts[sessionKey] = mc
	return nil
}

func (s *MerchantStore) Delete(ctx context.Context, sessionKey string) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, sessionKey)
	return nil
}
