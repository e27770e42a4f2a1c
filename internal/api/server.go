// Package api exposes the local HTTP surface the page instrumentation
// talks to. Handlers translate JSON messages into agent calls and block on
// the reply; the agent serializes everything behind its message channel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/channeltime/ctw/internal/agent"
	"github.com/channeltime/ctw/internal/domain"
)

// DefaultListenAddr is loopback-only; the instrumentation runs on the same
// machine.
const DefaultListenAddr = "127.0.0.1:7381"

// Server is the inbound message listener.
type Server struct {
	agent *agent.Agent
	log   *zap.SugaredLogger
}

// NewServer wraps ag with the HTTP message surface.
func NewServer(ag *agent.Agent, log *zap.SugaredLogger) *Server {
	return &Server{agent: ag, log: log}
}

// SetupRoutes registers the message endpoints on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/credential", s.handleCredential)
	mux.HandleFunc("/v1/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/v1/status", s.handleStatus)
}

// ListenAndServe runs the listener until ctx ends, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultListenAddr
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type credentialRequest struct {
	Token string `json:"token"`
}

type heartbeatRequest struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ackResponse{Error: "method not allowed"})
		return
	}
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ackResponse{Error: "invalid JSON body"})
		return
	}
	if err := s.agent.SyncCredential(r.Context(), req.Token); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrBadCredential) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, ackResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ackResponse{Error: "method not allowed"})
		return
	}
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ackResponse{Error: "invalid JSON body"})
		return
	}
	// A zero timestamp means "now"; the agent fills it in from its own
	// clock so time stays consistent end to end.
	if err := s.agent.Heartbeat(r.Context(), req.Channel, req.Timestamp); err != nil {
		writeJSON(w, http.StatusInternalServerError, ackResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Success: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ackResponse{Error: "method not allowed"})
		return
	}
	st, err := s.agent.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ackResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
