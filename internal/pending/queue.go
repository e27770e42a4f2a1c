// Package pending keeps the bounded, persisted backlog of sessions that
// could not be delivered immediately.
package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/channeltime/ctw/internal/credential"
	"github.com/channeltime/ctw/internal/domain"
	"github.com/channeltime/ctw/internal/store"
)

// DefaultCapacity bounds the queue; bounded memory takes priority over
// completeness, so the oldest entry is evicted when the bound is hit.
const DefaultCapacity = 100

// Deliverer is the single-attempt delivery path used while draining. No
// backoff happens here; backoff only lives inside one flush cycle.
type Deliverer interface {
	AttemptPending(ctx context.Context, sub domain.PendingSubmission) (domain.Outcome, error)
}

// Queue is the bounded persisted list of undelivered sessions. Enqueue is
// independently lockable so a flush backing off can never block it.
type Queue struct {
	mu       sync.Mutex
	store    store.Store
	creds    *credential.Holder
	log      *zap.SugaredLogger
	capacity int
	maxRetry int
	items    []domain.PendingSubmission
}

// New creates an empty queue. capacity and maxRetry fall back to the
// documented defaults when non-positive.
func New(st store.Store, creds *credential.Holder, log *zap.SugaredLogger, capacity, maxRetry int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxRetry <= 0 {
		maxRetry = 3
	}
	return &Queue{
		store:    st,
		creds:    creds,
		log:      log,
		capacity: capacity,
		maxRetry: maxRetry,
	}
}

// Restore loads the persisted queue. A missing record means empty.
func (q *Queue) Restore(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok, err := q.store.Get(ctx, store.KeyQueue)
	if err != nil {
		return fmt.Errorf("load pending queue: %w", err)
	}
	if !ok {
		q.items = nil
		return nil
	}
	var items []domain.PendingSubmission
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("decode pending queue: %w", err)
	}
	q.items = items
	return nil
}

// Enqueue appends sub, evicting the single oldest entry first when the
// queue is at capacity. The full queue is persisted before returning.
func (q *Queue) Enqueue(ctx context.Context, sub domain.PendingSubmission) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		evicted := q.items[0]
		q.items = q.items[1:]
		q.log.Warnw("pending queue full, evicting oldest",
			"channel", evicted.Session.ChannelKey,
			"heartbeats", evicted.Session.HeartbeatCount)
	}
	q.items = append(q.items, sub)
	return q.persistLocked(ctx)
}

// DrainIfPossible re-attempts queued entries in insertion order through the
// single-attempt delivery path. A no-op when no credential is held. The
// survivor set replaces the persisted queue wholesale.
func (q *Queue) DrainIfPossible(ctx context.Context, d Deliverer) error {
	if !q.creds.Held() {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	survivors := make([]domain.PendingSubmission, 0, len(q.items))
	for i, sub := range q.items {
		outcome, err := d.AttemptPending(ctx, sub)
		if err != nil && ctx.Err() != nil {
			// Shutdown mid-drain: keep everything not yet decided.
			survivors = append(survivors, q.items[i:]...)
			break
		}
		switch outcome {
		case domain.OutcomeAccepted:
			// Delivered; drop.
		case domain.OutcomeRejected:
			q.log.Warnw("pending submission permanently rejected, dropping",
				"channel", sub.Session.ChannelKey,
				"heartbeats", sub.Session.HeartbeatCount)
		case domain.OutcomeUnauthorized:
			// Credential just got invalidated; nothing further can land.
			survivors = append(survivors, q.items[i:]...)
			q.items = survivors
			return q.persistLocked(ctx)
		default:
			if sub.RetryCount+1 > q.maxRetry {
				q.log.Warnw("pending submission exhausted retries, dropping",
					"channel", sub.Session.ChannelKey,
					"retries", sub.RetryCount)
				continue
			}
			sub.RetryCount++
			survivors = append(survivors, sub)
		}
	}
	q.items = survivors
	return q.persistLocked(ctx)
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued entries in insertion order.
func (q *Queue) Snapshot() []domain.PendingSubmission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return lo.Map(q.items, func(sub domain.PendingSubmission, _ int) domain.PendingSubmission {
		return sub
	})
}

func (q *Queue) persistLocked(ctx context.Context) error {
	b, err := json.Marshal(q.items)
	if err != nil {
		return err
	}
	if err := q.store.Put(ctx, store.KeyQueue, b); err != nil {
		return fmt.Errorf("persist pending queue: %w", err)
	}
	return nil
}
