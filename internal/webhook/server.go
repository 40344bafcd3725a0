package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodySize caps webhook request bodies. Provider payloads are small;
// anything bigger is not a message we want.
const maxBodySize = 1 << 20

// Handler processes a normalized inbound message. The webhook server has
// already acked the provider when this runs, so errors are logged, not
// returned upstream.
type Handler interface {
	HandleInbound(ctx context.Context, in *Inbound) error
}

// Pinger reports whether the server's backing dependencies are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server accepts provider webhooks over HTTP. Every syntactically valid
// request is acknowledged with 200 so the provider never retries; dropped
// payloads are only logged.
type Server struct {
	httpServer *http.Server
	handler    Handler
	pinger     Pinger
	logger     *slog.Logger
}

// NewServer builds the webhook HTTP server listening on addr. pinger may be
// nil, in which case the health endpoint only reports liveness.
func NewServer(addr string, handler Handler, pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		handler: handler,
		pinger:  pinger,
		logger:  logger.With("component", "webhook"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting webhook server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping webhook server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		s.logger.Warn("Failed to read webhook body", "error", err)
		ack(w)
		return
	}

	in, err := Normalize(body)
	if err != nil {
		var skip *SkipError
		if errors.As(err, &skip) {
			s.logger.Debug("Webhook skipped", "reason", skip.Reason)
		} else {
			s.logger.Warn("Malformed webhook payload", "error", err)
		}
		ack(w)
		return
	}

	if err := s.handler.HandleInbound(r.Context(), in); err != nil {
		s.logger.Error("Failed to handle inbound message",
			"phone", in.Phone, "kind", in.Kind, "error", err)
	}
	ack(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ack returns the unconditional 200 the provider expects.
func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
