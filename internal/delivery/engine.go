// Package delivery submits flushed sessions to the collector, classifies
// outcomes, and retries transient failures with capped exponential backoff.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/channeltime/ctw/internal/collector"
	"github.com/channeltime/ctw/internal/credential"
	"github.com/channeltime/ctw/internal/domain"
	"github.com/channeltime/ctw/internal/store"
)

// DefaultMaxAttempts caps in-flush delivery attempts before a session is
// handed to the pending queue.
const DefaultMaxAttempts = 3

// Result describes how a flush resolved.
type Result int

const (
	// ResultSkipped means there was nothing to report (zero duration).
	ResultSkipped Result = iota
	// ResultDelivered means the collector accepted the session.
	ResultDelivered
	// ResultQueued means the session was handed to the pending queue.
	ResultQueued
	// ResultDropped means a permanent rejection discarded the session.
	ResultDropped
)

// Backlog receives sessions that could not be delivered.
type Backlog interface {
	Enqueue(ctx context.Context, sub domain.PendingSubmission) error
}

// Engine owns the delivery of flushed sessions. It is also the sole
// consumer of the in-flight record the tracker parks detached sessions
// under: the record is cleared when a flush resolves and recovered into
// the backlog at bootstrap.
type Engine struct {
	sender      collector.Sender
	creds       *credential.Holder
	backlog     Backlog
	store       store.Store
	clock       clock.Clock
	log         *zap.SugaredLogger
	maxAttempts int
}

// NewEngine creates a delivery engine. maxAttempts falls back to the
// documented default when non-positive.
func NewEngine(sender collector.Sender, creds *credential.Holder, backlog Backlog, st store.Store, clk clock.Clock, log *zap.SugaredLogger, maxAttempts int) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Engine{
		sender:      sender,
		creds:       creds,
		backlog:     backlog,
		store:       st,
		clock:       clk,
		log:         log,
		maxAttempts: maxAttempts,
	}
}

// Flush submits one detached session. Transient failures retry in-process
// with doubling backoff until maxAttempts is spent, then the session moves
// to the backlog with its accumulated attempt count. Without a credential
// no attempt is made at all. Whatever the resolution, the in-flight
// record is cleared only after the session is either accepted, durably in
// the backlog, or deliberately dropped.
func (e *Engine) Flush(ctx context.Context, session *domain.WatchSession) (Result, error) {
	if session == nil || session.DurationSeconds() == 0 {
		return ResultSkipped, nil
	}

	token, held := e.creds.Token()
	if !held {
		if err := e.backlog.Enqueue(ctx, domain.PendingSubmission{Session: *session}); err != nil {
			return ResultQueued, err
		}
		e.clearParked(ctx)
		return ResultQueued, nil
	}

	sub := domain.NewSubmission(session)
	bo := newBackOff()
	attempts := 0
	for {
		outcome := e.attempt(ctx, token, sub)
		attempts++

		switch outcome {
		case domain.OutcomeAccepted:
			e.clearParked(ctx)
			return ResultDelivered, nil

		case domain.OutcomeUnauthorized:
			// Stale credential: stop delivering until a fresh one arrives.
			if err := e.creds.Clear(ctx); err != nil {
				e.log.Errorw("failed to clear invalidated credential", "error", err)
			}
			if err := e.backlog.Enqueue(ctx, domain.PendingSubmission{Session: *session}); err != nil {
				return ResultQueued, err
			}
			e.clearParked(ctx)
			return ResultQueued, nil

		case domain.OutcomeRejected:
			e.log.Warnw("collector permanently rejected session, dropping",
				"channel", session.ChannelKey,
				"duration_seconds", session.DurationSeconds())
			e.clearParked(ctx)
			return ResultDropped, nil

		default: // transient, including transport failure
			if attempts >= e.maxAttempts || ctx.Err() != nil {
				if err := e.backlog.Enqueue(ctx, domain.PendingSubmission{Session: *session, RetryCount: attempts}); err != nil {
					return ResultQueued, err
				}
				e.clearParked(ctx)
				return ResultQueued, nil
			}
			if !e.wait(ctx, bo.NextBackOff()) {
				// Shutting down mid-backoff; move the work to the backlog.
				if err := e.backlog.Enqueue(ctx, domain.PendingSubmission{Session: *session, RetryCount: attempts}); err != nil {
					return ResultQueued, err
				}
				e.clearParked(ctx)
				return ResultQueued, nil
			}
		}
	}
}

// AttemptPending is the single-attempt path the pending queue drains
// through. No backoff here.
func (e *Engine) AttemptPending(ctx context.Context, sub domain.PendingSubmission) (domain.Outcome, error) {
	token, held := e.creds.Token()
	if !held {
		return domain.OutcomeUnauthorized, nil
	}
	outcome := e.attempt(ctx, token, domain.NewSubmission(&sub.Session))
	if outcome == domain.OutcomeUnauthorized {
		if err := e.creds.Clear(ctx); err != nil {
			e.log.Errorw("failed to clear invalidated credential", "error", err)
		}
	}
	return outcome, ctx.Err()
}

// clearParked removes the durable in-flight record once the window it
// covers has been delivered, queued, or deliberately dropped.
func (e *Engine) clearParked(ctx context.Context) {
	if err := e.store.Delete(ctx, store.KeyInFlight); err != nil {
		e.log.Errorw("failed to clear in-flight record", "error", err)
	}
}

// RecoverInFlight moves a window that was mid-delivery when the host
// destroyed the process into the pending queue. Run during bootstrap,
// before the queue drains.
func (e *Engine) RecoverInFlight(ctx context.Context) error {
	b, ok, err := e.store.Get(ctx, store.KeyInFlight)
	if err != nil {
		return fmt.Errorf("read in-flight record: %w", err)
	}
	if !ok {
		return nil
	}
	var s domain.WatchSession
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode in-flight record: %w", err)
	}
	if s.DurationSeconds() > 0 {
		if err := e.backlog.Enqueue(ctx, domain.PendingSubmission{Session: s}); err != nil {
			return err
		}
		e.log.Infow("recovered in-flight session",
			"channel", s.ChannelKey,
			"duration_seconds", s.DurationSeconds())
	}
	return e.store.Delete(ctx, store.KeyInFlight)
}

func (e *Engine) attempt(ctx context.Context, token string, sub domain.Submission) domain.Outcome {
	outcome, err := e.sender.Submit(ctx, token, sub)
	if err != nil {
		e.log.Debugw("submission attempt failed",
			"channel", sub.ChannelKey,
			"outcome", outcome.String(),
			"error", err)
	} else {
		e.log.Debugw("submission attempt",
			"channel", sub.ChannelKey,
			"duration_seconds", sub.DurationSeconds,
			"outcome", outcome.String())
	}
	return outcome
}

// wait sleeps on the injected clock; false means the context ended first.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// newBackOff yields 1s, 2s, 4s... with no jitter so the retry ceiling is
// exact and testable.
func newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
