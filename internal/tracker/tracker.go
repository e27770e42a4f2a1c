// Package tracker owns the single active watch session and converts the
// heartbeat stream into session start/continue/rollover transitions.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/channeltime/ctw/internal/domain"
	"github.com/channeltime/ctw/internal/store"
)

// Tracker watches heartbeats for channel changes to detect viewing
// transitions. Every transition is persisted before the call returns, so a
// process restart resumes exactly where the stream left off.
type Tracker struct {
	mu     sync.Mutex
	store  store.Store
	active *domain.WatchSession
}

// New creates a tracker persisting through st.
func New(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// Restore loads the previously-active session, if any. Called on every
// process start so in-flight accumulation is not lost.
func (t *Tracker) Restore(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok, err := t.store.Get(ctx, store.KeySession)
	if err != nil {
		return fmt.Errorf("load active session: %w", err)
	}
	if !ok {
		t.active = nil
		return nil
	}
	var s domain.WatchSession
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode active session: %w", err)
	}
	t.active = &s
	return nil
}

// OnHeartbeat processes one heartbeat. When the channel changed and the
// prior session accumulated at least one heartbeat, that session is
// returned for flushing; otherwise the return is nil. An empty channelKey
// is a no-op.
func (t *Tracker) OnHeartbeat(ctx context.Context, channelKey string, observedAt time.Time) (*domain.WatchSession, error) {
	if strings.TrimSpace(channelKey) == "" {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Same channel - just increment the count.
	if t.active != nil && t.active.ChannelKey == channelKey {
		t.active.HeartbeatCount++
		if err := t.persistLocked(ctx); err != nil {
			t.active.HeartbeatCount--
			return nil, err
		}
		return nil, nil
	}

	var flushed *domain.WatchSession
	if t.active != nil && t.active.HeartbeatCount > 0 {
		flushed = t.active
	}

	// Park the outgoing session durably before the active slot is
	// overwritten; the delivery engine clears the record once the flush
	// resolves.
	if flushed != nil {
		if err := t.parkLocked(ctx, flushed); err != nil {
			return nil, err
		}
	}

	prev := t.active
	t.active = domain.NewWatchSession(channelKey, observedAt)
	if err := t.persistLocked(ctx); err != nil {
		t.active = prev
		if flushed != nil {
			t.store.Delete(ctx, store.KeyInFlight)
		}
		return nil, err
	}
	return flushed, nil
}

// DetachForFlush returns a copy of the active session for delivery and
// resets the live one to a fresh counting window on the same channel. The
// copy is parked in the in-flight record and the reset persisted before
// the copy is handed out: the window stays durable while delivery is in
// flight, and a delivery that later lands via the pending queue can never
// overlap a count still accumulating. Returns nil when there is nothing
// to flush.
func (t *Tracker) DetachForFlush(ctx context.Context, now time.Time) (*domain.WatchSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.active.HeartbeatCount == 0 {
		return nil, nil
	}
	detached := *t.active
	if err := t.parkLocked(ctx, &detached); err != nil {
		return nil, err
	}
	t.active.HeartbeatCount = 0
	t.active.StartedAt = now
	if err := t.persistLocked(ctx); err != nil {
		*t.active = detached
		t.store.Delete(ctx, store.KeyInFlight)
		return nil, err
	}
	return &detached, nil
}

// Active returns a snapshot of the active session, or nil.
func (t *Tracker) Active() *domain.WatchSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	cp := *t.active
	return &cp
}

// parkLocked writes a detached session to the in-flight record. A host
// kill between detach and delivery resolution leaves the window here,
// where bootstrap recovery moves it into the pending queue.
func (t *Tracker) parkLocked(ctx context.Context, s *domain.WatchSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := t.store.Put(ctx, store.KeyInFlight, b); err != nil {
		return fmt.Errorf("park in-flight session: %w", err)
	}
	return nil
}

func (t *Tracker) persistLocked(ctx context.Context) error {
	if t.active == nil {
		return t.store.Delete(ctx, store.KeySession)
	}
	b, err := json.Marshal(t.active)
	if err != nil {
		return err
	}
	return t.store.Put(ctx, store.KeySession, b)
}
