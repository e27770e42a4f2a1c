package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/channeltime/ctw/internal/domain"
)

// DefaultTimeout bounds one submission request end to end.
const DefaultTimeout = 10 * time.Second

// Client submits watch sessions to the collector over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client targeting the given base URL
// (e.g. "https://collector.channeltime.io").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit posts one session to /v1/watch and classifies the response by
// status class. The body is drained and discarded; only the class matters.
func (c *Client) Submit(ctx context.Context, token string, sub domain.Submission) (domain.Outcome, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return domain.OutcomeRejected, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/watch", bytes.NewReader(body))
	if err != nil {
		return domain.OutcomeRejected, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		// No response at all - indistinguishable from a server outage.
		return domain.OutcomeTransient, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return ClassifyStatus(resp.StatusCode), nil
}

// ClassifyStatus maps an HTTP status code onto the delivery outcome
// taxonomy: 2xx accepted, 401/403 unauthorized, 5xx transient, any other
// 4xx a permanent rejection.
func ClassifyStatus(code int) domain.Outcome {
	switch {
	case code >= 200 && code < 300:
		return domain.OutcomeAccepted
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.OutcomeUnauthorized
	case code >= 500:
		return domain.OutcomeTransient
	default:
		return domain.OutcomeRejected
	}
}
