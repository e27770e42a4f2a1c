// Package store provides the durable key-value port the agent persists
// through. Every state change is written through before the triggering
// message is acknowledged, because the host may tear the process down
// immediately afterwards.
package store

import "context"

// Keys for the durable records the agent owns. KeyInFlight holds a
// detached session from the moment it leaves the active slot until its
// delivery resolves, so a host kill mid-delivery cannot lose it.
const (
	KeyCredential = "credential"
	KeySession    = "active_session"
	KeyQueue      = "pending_queue"
	KeyInFlight   = "inflight_session"
)

// Store is the durable key-value capability provided by the host.
type Store interface {
	// Get returns the value for key, with ok=false when the key is absent.
	// Absence is not an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put durably replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key; deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
