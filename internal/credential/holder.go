// Package credential holds the bearer token used to authenticate
// submissions to the collector.
package credential

import (
	"context"
	"fmt"
	"sync"

	"github.com/channeltime/ctw/internal/domain"
	"github.com/channeltime/ctw/internal/store"
)

// Holder is the single owner of the collector credential. Absence of a
// credential suspends delivery but never accumulation.
type Holder struct {
	mu    sync.Mutex
	store store.Store
	token string
}

// New creates an empty holder persisting through st.
func New(st store.Store) *Holder {
	return &Holder{store: st}
}

// Restore loads the persisted credential, if any. A missing record is not
// an error; delivery simply stays disabled.
func (h *Holder) Restore(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok, err := h.store.Get(ctx, store.KeyCredential)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if !ok {
		h.token = ""
		return nil
	}
	h.token = string(b)
	return nil
}

// Set validates the token's shape, persists it, and holds it. A token that
// fails the shape check is rejected locally with ErrBadCredential.
func (h *Holder) Set(ctx context.Context, token string) error {
	if !domain.ValidCredential(token) {
		return domain.ErrBadCredential
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.store.Put(ctx, store.KeyCredential, []byte(token)); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	h.token = token
	return nil
}

// Clear drops the held credential and persists its removal. Called when
// the collector reports the credential invalid.
func (h *Holder) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.store.Delete(ctx, store.KeyCredential); err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	h.token = ""
	return nil
}

// Token returns the held token and whether one is held.
func (h *Holder) Token() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token, h.token != ""
}

// Held reports whether a credential is currently held.
func (h *Holder) Held() bool {
	_, ok := h.Token()
	return ok
}
