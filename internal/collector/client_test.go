package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/channeltime/ctw/internal/domain"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		want domain.Outcome
	}{
		{200, domain.OutcomeAccepted},
		{201, domain.OutcomeAccepted},
		{204, domain.OutcomeAccepted},
		{401, domain.OutcomeUnauthorized},
		{403, domain.OutcomeUnauthorized},
		{500, domain.OutcomeTransient},
		{502, domain.OutcomeTransient},
		{503, domain.OutcomeTransient},
		{400, domain.OutcomeRejected},
		{404, domain.OutcomeRejected},
		{422, domain.OutcomeRejected},
		{429, domain.OutcomeRejected},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyStatus(tc.code), "status %d", tc.code)
	}
}

func TestSubmitSendsPayloadAndToken(t *testing.T) {
	var gotAuth string
	var gotSub domain.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/watch", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSub))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	started := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	outcome, err := c.Submit(context.Background(), "aaa.bbb.ccc", domain.Submission{
		ChannelKey:      "shroud",
		StartedAt:       started,
		DurationSeconds: 180,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAccepted, outcome)
	assert.Equal(t, "Bearer aaa.bbb.ccc", gotAuth)
	assert.Equal(t, "shroud", gotSub.ChannelKey)
	assert.Equal(t, 180, gotSub.DurationSeconds)
	assert.True(t, gotSub.StartedAt.Equal(started))
}

func TestSubmitClassifiesResponses(t *testing.T) {
	for _, code := range []int{401, 500, 422} {
		code := code
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := NewClient(srv.URL, time.Second)
		outcome, err := c.Submit(context.Background(), "aaa.bbb.ccc", domain.Submission{ChannelKey: "x", DurationSeconds: 30})
		require.NoError(t, err)
		assert.Equal(t, ClassifyStatus(code), outcome, "status %d", code)
		srv.Close()
	}
}

func TestSubmitTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	c := NewClient(srv.URL, time.Second)
	outcome, err := c.Submit(context.Background(), "aaa.bbb.ccc", domain.Submission{ChannelKey: "x", DurationSeconds: 30})
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeTransient, outcome)
}
