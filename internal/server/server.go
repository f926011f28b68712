// Package server exposes the HTTP surface: the webhook intake endpoint, the
// hosted changelog reads, the connect management endpoints, and a health
// probe.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/logging"
	"github.com/shiplog/shiplog/internal/orchestrator"
	"github.com/shiplog/shiplog/internal/store"
)

// maxWebhookBody bounds how much of a webhook delivery is read. GitHub caps
// payloads at 25 MB; anything larger is hostile.
const maxWebhookBody = 25 << 20

// Pipeline is the slice of the orchestrator the HTTP surface drives.
type Pipeline interface {
	HandleWebhook(ctx context.Context, req orchestrator.WebhookRequest) (*orchestrator.WebhookResult, error)
	Connect(ctx context.Context, req orchestrator.ConnectRequest) (*store.Repo, error)
	Disconnect(ctx context.Context, fullName string) error
}

// NotesReader is the slice of the store backing the hosted changelog.
type NotesReader interface {
	GetRepoByFullName(ctx context.Context, fullName string) (*store.Repo, error)
	GetReleaseByTag(ctx context.Context, repoID, tagName string) (*store.Release, error)
	GetNotes(ctx context.Context, releaseID string) (*store.ReleaseNotes, error)
}

// StateStore issues and redeems the single-use tokens that protect the
// connect endpoints against replay.
type StateStore interface {
	Issue(ctx context.Context, value string) (string, error)
	Consume(ctx context.Context, token string) (string, error)
}

// Server is the HTTP front of the service.
type Server struct {
	pipeline Pipeline
	notes    NotesReader
	states   StateStore
	logger   *logging.Logger

	httpServer *http.Server
}

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a Server listening on opts.Addr.
func New(pipeline Pipeline, notes NotesReader, states StateStore, logger *logging.Logger, opts Options) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		// Webhook handling runs generation inline; give it room.
		opts.WriteTimeout = 5 * time.Minute
	}

	s := &Server{
		pipeline: pipeline,
		notes:    notes,
		states:   states,
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/github", s.handleWebhook)
	mux.HandleFunc("GET /changelog/{owner}/{repo}/{tag}", s.handleChangelog)
	mux.HandleFunc("POST /api/connect/state", s.handleConnectState)
	mux.HandleFunc("POST /api/repos/connect", s.handleConnect)
	mux.HandleFunc("POST /api/repos/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook is the intake endpoint for release deliveries. The body is
// passed through untouched so the signature is verified over the exact bytes
// received.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	result, err := s.pipeline.HandleWebhook(r.Context(), orchestrator.WebhookRequest{
		Body:      body,
		Signature: r.Header.Get("X-Hub-Signature-256"),
		Event:     r.Header.Get("X-GitHub-Event"),
	})
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	resp := map[string]any{"status": result.Status}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	if result.Reason == orchestrator.ReasonEventIgnored {
		resp["event"] = r.Header.Get("X-GitHub-Event")
	}
	if result.Status == "processed" {
		resp["release_id"] = result.ReleaseID
		resp["delivered"] = result.Delivered
		resp["failed"] = result.Failed
	}
	writeJSON(w, http.StatusOK, resp)
}
