// Package agent runs the background aggregation-and-delivery pipeline as a
// single-consumer actor: credential syncs, heartbeats, status queries, and
// scheduler ticks are all ordinary messages handled one at a time, which
// makes the no-concurrent-mutation invariant structural.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/channeltime/ctw/internal/credential"
	"github.com/channeltime/ctw/internal/delivery"
	"github.com/channeltime/ctw/internal/pending"
	"github.com/channeltime/ctw/internal/tracker"
)

// DefaultFlushInterval is the scheduler cadence; one minute is the minimum
// granularity most host schedulers support.
const DefaultFlushInterval = time.Minute

// Status is the read-only answer to a status query.
type Status struct {
	HasCredential  bool   `json:"has_credential"`
	ActiveChannel  string `json:"active_channel,omitempty"`
	HeartbeatCount int    `json:"heartbeat_count"`
	PendingCount   int    `json:"pending_count"`
}

type syncCredentialMsg struct {
	token string
	reply chan error
}

type heartbeatMsg struct {
	channel string
	at      time.Time
	reply   chan error
}

type statusMsg struct {
	reply chan Status
}

// Agent wires the tracker, delivery engine, and pending queue behind one
// message channel.
type Agent struct {
	tracker       *tracker.Tracker
	engine        *delivery.Engine
	queue         *pending.Queue
	creds         *credential.Holder
	clock         clock.Clock
	log           *zap.SugaredLogger
	flushInterval time.Duration

	msgs chan any
}

// New assembles an agent. flushInterval falls back to the default cadence
// when non-positive.
func New(tr *tracker.Tracker, eng *delivery.Engine, q *pending.Queue, creds *credential.Holder, clk clock.Clock, log *zap.SugaredLogger, flushInterval time.Duration) *Agent {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Agent{
		tracker:       tr,
		engine:        eng,
		queue:         q,
		creds:         creds,
		clock:         clk,
		log:           log,
		flushInterval: flushInterval,
		msgs:          make(chan any, 64),
	}
}

// Run bootstraps from the store and processes messages until ctx ends.
// Bootstrap runs on every start: the host may have destroyed the previous
// process between any two operations, so everything is reloaded.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	ticker := a.clock.Ticker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.handleTick(ctx)
		case m := <-a.msgs:
			a.handle(ctx, m)
		}
	}
}

func (a *Agent) bootstrap(ctx context.Context) error {
	if err := a.creds.Restore(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := a.tracker.Restore(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := a.queue.Restore(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := a.engine.RecoverInFlight(ctx); err != nil {
		a.log.Warnw("in-flight recovery failed", "error", err)
	}
	if err := a.queue.DrainIfPossible(ctx, a.engine); err != nil {
		a.log.Warnw("bootstrap drain failed", "error", err)
	}
	a.log.Infow("agent bootstrapped",
		"has_credential", a.creds.Held(),
		"pending", a.queue.Len())
	return nil
}

func (a *Agent) handle(ctx context.Context, m any) {
	switch msg := m.(type) {
	case syncCredentialMsg:
		msg.reply <- a.handleSyncCredential(ctx, msg.token)
	case heartbeatMsg:
		msg.reply <- a.handleHeartbeat(ctx, msg.channel, msg.at)
	case statusMsg:
		msg.reply <- a.handleStatus()
	}
}

func (a *Agent) handleSyncCredential(ctx context.Context, token string) error {
	if err := a.creds.Set(ctx, token); err != nil {
		return err
	}
	a.log.Infow("credential synced")
	if err := a.queue.DrainIfPossible(ctx, a.engine); err != nil {
		a.log.Warnw("post-sync drain failed", "error", err)
	}
	return nil
}

func (a *Agent) handleHeartbeat(ctx context.Context, channel string, at time.Time) error {
	if at.IsZero() {
		at = a.clock.Now()
	}
	flushed, err := a.tracker.OnHeartbeat(ctx, channel, at)
	if err != nil {
		return err
	}
	if flushed != nil {
		// Channel switch: ship the finished session before the new one
		// accumulates.
		if _, err := a.engine.Flush(ctx, flushed); err != nil {
			a.log.Warnw("flush on channel switch failed", "error", err)
		}
	}
	return nil
}

func (a *Agent) handleStatus() Status {
	st := Status{
		HasCredential: a.creds.Held(),
		PendingCount:  a.queue.Len(),
	}
	if s := a.tracker.Active(); s != nil {
		st.ActiveChannel = s.ChannelKey
		st.HeartbeatCount = s.HeartbeatCount
	}
	return st
}

// handleTick flushes the current counting window and retries the backlog.
// The drain runs regardless of how the flush resolved.
func (a *Agent) handleTick(ctx context.Context) {
	detached, err := a.tracker.DetachForFlush(ctx, a.clock.Now())
	if err != nil {
		a.log.Warnw("detach for flush failed", "error", err)
	}
	if detached != nil {
		if _, err := a.engine.Flush(ctx, detached); err != nil {
			a.log.Warnw("scheduled flush failed", "error", err)
		}
	}
	if err := a.queue.DrainIfPossible(ctx, a.engine); err != nil {
		a.log.Warnw("scheduled drain failed", "error", err)
	}
}

// SyncCredential validates and stores a fresh collector token, then
// retries the backlog.
func (a *Agent) SyncCredential(ctx context.Context, token string) error {
	reply := make(chan error, 1)
	return a.send(ctx, syncCredentialMsg{token: token, reply: reply}, reply)
}

// Heartbeat records one still-watching signal for channel.
func (a *Agent) Heartbeat(ctx context.Context, channel string, at time.Time) error {
	reply := make(chan error, 1)
	return a.send(ctx, heartbeatMsg{channel: channel, at: at, reply: reply}, reply)
}

// Status reports credential presence, the active channel, and the current
// heartbeat count. Read-only.
func (a *Agent) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case a.msgs <- statusMsg{reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (a *Agent) send(ctx context.Context, m any, reply chan error) error {
	select {
	case a.msgs <- m:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
