package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/jfmyers9/boxd/internal/scrobbler"
)

// Config holds webhook server configuration
type Config struct {
	Listen          string        // Address to bind, e.g. ":8484"
	MaxConcurrent   int64         // Simultaneous pipeline runs (each owns a browser)
	RunTimeout      time.Duration // Wall-clock bound on one pipeline run
	ShutdownTimeout time.Duration // Grace period for in-flight runs on shutdown
}

// maxPayloadBytes caps the request body. Plex attaches a thumbnail to the
// multipart form, so this is well above the JSON payload size.
const maxPayloadBytes = 10 << 20

// runner is the slice of the pipeline the server drives.
type runner interface {
	Run(ctx context.Context, event scrobbler.Event) scrobbler.Outcome
}

// Server receives Plex webhooks and runs the scrobble pipeline for the
// eligible ones. At most MaxConcurrent runs are in flight at a time;
// beyond that, requests are turned away with 503 rather than queueing
// browser work behind a stale event.
type Server struct {
	config   Config
	pipeline runner
	sem      *semaphore.Weighted
	logger   zerolog.Logger
}

// NewServer creates a webhook server around the pipeline.
func NewServer(cfg Config, pipeline runner, logger zerolog.Logger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":8484"
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Server{
		config:   cfg,
		pipeline: pipeline,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:   logger.With().Str("component", "webhook").Logger(),
	}
}

// Run starts the server and blocks until a shutdown signal is received
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		s.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		s.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return s.run(ctx)
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("listen", s.config.Listen).Msg("Webhook server listening")

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Graceful shutdown timed out, closing")
		if err := srv.Close(); err != nil {
			return fmt.Errorf("failed to close server: %w", err)
		}
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// Handler returns the route table. Split out so tests can drive the
// server through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// response is the JSON body for every webhook reply.
type response struct {
	Status  string `json:"status"` // "ok", "skipped" or "failed"
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := s.logger.With().Str("request_id", uuid.New().String()).Logger()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read webhook body")
		writeJSON(w, http.StatusInternalServerError, response{
			Status:  "failed",
			Message: "failed to read request body",
		})
		return
	}

	payload, err := ParsePayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		logger.Warn().Err(err).Msg("Discarding undecodable webhook")
		writeJSON(w, http.StatusBadRequest, response{
			Status:  "failed",
			Message: "malformed webhook payload",
		})
		return
	}

	logger.Debug().
		Str("event", payload.Event).
		Str("account", payload.Account.Title).
		Str("title", payload.Metadata.Title).
		Msg("Webhook received")

	if !payload.Eligible() {
		writeJSON(w, http.StatusOK, response{
			Status:  "skipped",
			Reason:  string(scrobbler.ReasonEventDisabled),
			Message: fmt.Sprintf("ignoring %s events", payload.Event),
		})
		return
	}

	if !s.sem.TryAcquire(1) {
		logger.Warn().Str("title", payload.Metadata.Title).Msg("Scrobbler busy, turning webhook away")
		writeJSON(w, http.StatusServiceUnavailable, response{
			Status:  "failed",
			Message: "scrobbler is busy, try again later",
		})
		return
	}
	defer s.sem.Release(1)

	// The run is bounded by its own timeout, not the request context: Plex
	// gives up on slow webhooks, and a disconnect must not abort a login
	// that is already underway.
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	outcome := s.pipeline.Run(ctx, payload.ScrobbleEvent())
	writeJSON(w, statusFor(outcome), responseFor(outcome))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// statusFor maps a pipeline outcome to an HTTP status. Benign skips are
// 200: they are configuration working as intended, not errors.
func statusFor(out scrobbler.Outcome) int {
	if out.Success || out.Benign() {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

func responseFor(out scrobbler.Outcome) response {
	switch {
	case out.Success:
		return response{Status: "ok", Message: out.Message}
	case out.Benign():
		return response{Status: "skipped", Reason: string(out.Reason), Message: out.Message}
	default:
		return response{Status: "failed", Reason: string(out.Reason), Message: out.Message}
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
