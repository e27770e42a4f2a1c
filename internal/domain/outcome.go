package domain

// Outcome classifies one delivery attempt against the remote collector.
// Only the status class matters: the collector's body is never inspected.
type Outcome int

const (
	// OutcomeAccepted means the collector took the submission (2xx).
	OutcomeAccepted Outcome = iota
	// OutcomeUnauthorized means the credential is invalid or expired (401/403).
	OutcomeUnauthorized
	// OutcomeTransient means the collector or the network failed in a way
	// worth retrying (5xx or no response at all).
	OutcomeTransient
	// OutcomeRejected means a permanent rejection (other 4xx); the
	// submission is dropped rather than retried.
	OutcomeRejected
)

// String returns the classification name used in diagnostics.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeTransient:
		return "transient"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
