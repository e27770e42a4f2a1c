// Package collector talks to the remote watch-time collection endpoint.
package collector

import (
	"context"

	"github.com/channeltime/ctw/internal/domain"
)

// Sender is the transport capability for one submission attempt. The
// implementation owns the request timeout; callers only see the outcome
// classification. A transport failure with no response at all is reported
// as OutcomeTransient with the underlying error attached.
type Sender interface {
	Submit(ctx context.Context, token string, sub domain.Submission) (domain.Outcome, error)
}
