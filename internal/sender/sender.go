// Package sender delivers outbound text messages through the WhatsApp
// provider's REST API with sanitization, bounded retries, and a circuit
// breaker around the transport.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// DeliveryResult reports the outcome of a send operation.
type DeliveryResult struct {
	Success   bool
	MessageID string
	Attempts  int
	Err       error
}

// Config holds the provider endpoint and delivery policy.
type Config struct {
	BaseURL        string
	Instance       string
	APIKey         string
	MaxAttempts    int
	BackoffBase    time.Duration
	RequestTimeout time.Duration
	MaxLength      int
}

// Sender sends text messages to a recipient through the provider API.
type Sender struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// sendRequest is the provider's sendText payload.
type sendRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// sendResponse carries the provider-assigned message id.
type sendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// sendError classifies a failed attempt.
type sendError struct {
	status    int
	retryable bool
	msg       string
}

func (e *sendError) Error() string {
	return fmt.Sprintf("send failed (status %d): %s", e.status, e.msg)
}

// New creates a Sender with the given config and logger. Zero-valued policy
// fields fall back to safe defaults.
func New(cfg Config, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 4096
	}

	log := logger.With("component", "sender")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "whatsapp_transport",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Sender{
		cfg:     cfg,
		client:  &http.Client{},
		breaker: breaker,
		logger:  log,
	}
}

// Send sanitizes and delivers text to the recipient with up to MaxAttempts
// attempts and linear backoff between them. Non-retryable provider failures
// (authentication, unknown destination, rejected payload) return immediately
// without consuming the remaining attempt budget.
func (s *Sender) Send(ctx context.Context, recipient, text string) DeliveryResult {
	if recipient == "" {
		return DeliveryResult{Err: fmt.Errorf("recipient cannot be empty")}
	}

	text = Truncate(Sanitize(text), s.cfg.MaxLength)
	if text == "" {
		return DeliveryResult{Err: fmt.Errorf("message text is empty after sanitization")}
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return DeliveryResult{Attempts: attempt - 1, Err: ctx.Err()}
		}

		messageID, err := s.attempt(ctx, recipient, text)
		if err == nil {
			s.logger.InfoContext(ctx, "Message delivered",
				"recipient", recipient, "message_id", messageID, "attempts", attempt)
			return DeliveryResult{Success: true, MessageID: messageID, Attempts: attempt}
		}

		lastErr = err

		var se *sendError
		if errors.As(err, &se) && !se.retryable {
			s.logger.ErrorContext(ctx, "Non-retryable delivery failure",
				"recipient", recipient, "status", se.status, "error", err)
			return DeliveryResult{Attempts: attempt, Err: err}
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.WarnContext(ctx, "Transport circuit open, aborting delivery",
				"recipient", recipient, "attempt", attempt)
			return DeliveryResult{Attempts: attempt, Err: err}
		}

		s.logger.WarnContext(ctx, "Delivery attempt failed",
			"recipient", recipient, "attempt", attempt, "max_attempts", s.cfg.MaxAttempts, "error", err)

		if attempt < s.cfg.MaxAttempts {
			backoff := time.Duration(attempt) * s.cfg.BackoffBase
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return DeliveryResult{Attempts: attempt, Err: ctx.Err()}
			case <-timer.C:
			}
		}
	}

	s.logger.ErrorContext(ctx, "Delivery failed after all attempts",
		"recipient", recipient, "attempts", s.cfg.MaxAttempts, "error", lastErr)
	return DeliveryResult{Attempts: s.cfg.MaxAttempts, Err: lastErr}
}

// SendWithFallback delivers primary, and if all attempts are exhausted,
// tries once more with the shorter fallback text before giving up.
func (s *Sender) SendWithFallback(ctx context.Context, recipient, primary, fallback string) DeliveryResult {
	result := s.Send(ctx, recipient, primary)
	if result.Success || fallback == "" {
		return result
	}

	var se *sendError
	if errors.As(result.Err, &se) && !se.retryable {
		// The fallback would hit the same authentication or destination
		// problem; don't burn another request.
		return result
	}

	s.logger.InfoContext(ctx, "Primary delivery exhausted, attempting fallback text",
		"recipient", recipient)

	text := Truncate(Sanitize(fallback), s.cfg.MaxLength)
	messageID, err := s.attempt(ctx, recipient, text)
	if err != nil {
		result.Attempts++
		result.Err = fmt.Errorf("fallback delivery failed: %w", err)
		return result
	}

	return DeliveryResult{Success: true, MessageID: messageID, Attempts: result.Attempts + 1}
}

// attempt performs one bounded transport request through the circuit breaker.
func (s *Sender) attempt(ctx context.Context, recipient, text string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	id, err := s.breaker.Execute(func() (any, error) {
		return s.post(attemptCtx, recipient, text)
	})
	if err != nil {
		return "", err
	}
	messageID, _ := id.(string)
	return messageID, nil
}

func (s *Sender) post(ctx context.Context, recipient, text string) (string, error) {
	body, err := json.Marshal(sendRequest{Number: recipient, Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", s.cfg.BaseURL, s.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		// Timeouts and connection errors are worth another attempt.
		return "", &sendError{status: 0, retryable: true, msg: err.Error()}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &sendError{
			status:    resp.StatusCode,
			retryable: retryableStatus(resp.StatusCode),
			msg:       string(snippet),
		}
	}

	var decoded sendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&decoded); err != nil {
		// Delivery succeeded even if the response body is unreadable.
		s.logger.DebugContext(ctx, "Could not decode provider response", "error", err)
		return "", nil
	}
	return decoded.Key.ID, nil
}

// retryableStatus reports whether an HTTP status from the provider is worth
// another attempt. Authentication failures and unknown destinations never are.
func retryableStatus(status int) bool {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return false
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}
