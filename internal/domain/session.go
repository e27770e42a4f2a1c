package domain

import "time"

// HeartbeatInterval is the nominal spacing of heartbeat signals from the
// page instrumentation. A session's duration is derived from its heartbeat
// count rather than wall-clock time, so precision is bounded by this value.
const HeartbeatInterval = 30 * time.Second

// WatchSession is one contiguous viewing period on one channel. At most one
// session is active per process; a channel change always replaces the
// session rather than mutating its channel in place.
type WatchSession struct {
	ChannelKey     string    `json:"channel_key"`
	StartedAt      time.Time `json:"started_at"`
	HeartbeatCount int       `json:"heartbeat_count"`
}

// NewWatchSession starts a session at its first heartbeat.
func NewWatchSession(channelKey string, observedAt time.Time) *WatchSession {
	return &WatchSession{
		ChannelKey:     channelKey,
		StartedAt:      observedAt,
		HeartbeatCount: 1,
	}
}

// DurationSeconds converts the heartbeat count into reported watch time.
func (s *WatchSession) DurationSeconds() int {
	return s.HeartbeatCount * int(HeartbeatInterval/time.Second)
}

// PendingSubmission is a flushed session that could not be delivered,
// together with the delivery attempts already spent on it.
type PendingSubmission struct {
	Session    WatchSession `json:"session"`
	RetryCount int          `json:"retry_count"`
}

// Submission is the wire payload sent to the remote collector for one
// flushed session.
type Submission struct {
	ChannelKey      string    `json:"channel_key"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// NewSubmission builds the collector payload for a session.
func NewSubmission(s *WatchSession) Submission {
	return Submission{
		ChannelKey:      s.ChannelKey,
		StartedAt:       s.StartedAt,
		DurationSeconds: s.DurationSeconds(),
	}
}
