package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingHandler struct {
	inbound []*Inbound
	err     error
}

func (h *recordingHandler) HandleInbound(_ context.Context, in *Inbound) error {
	h.inbound = append(h.inbound, in)
	return h.err
}

func postWebhook(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAcksAndDispatches(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	s := NewServer(":0", h, nil, nil)

	rec := postWebhook(t, s, `{
		"event": "messages.upsert",
		"data": {
			"key": {"id": "m1", "remoteJid": "5511999998888@s.whatsapp.net"},
			"message": {"conversation": "oi"}
		}
	}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("body = %q, want ack", rec.Body.String())
	}
	if len(h.inbound) != 1 {
		t.Fatalf("handler called %d times, want 1", len(h.inbound))
	}
	if h.inbound[0].Phone != "5511999998888" {
		t.Errorf("Phone = %q", h.inbound[0].Phone)
	}
}

func TestWebhookAcksSkippedPayloads(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	s := NewServer(":0", h, nil, nil)

	rec := postWebhook(t, s, `{"event": "connection.update"}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even for skipped events", rec.Code)
	}
	if len(h.inbound) != 0 {
		t.Error("handler called for a skipped event")
	}
}

func TestWebhookAcksMalformedBody(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	s := NewServer(":0", h, nil, nil)

	rec := postWebhook(t, s, `{not json`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 so the provider never redelivers", rec.Code)
	}
}

func TestWebhookAcksDespiteHandlerError(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{err: errors.New("store down")}
	s := NewServer(":0", h, nil, nil)

	rec := postWebhook(t, s, `{
		"event": "messages.upsert",
		"data": {
			"key": {"id": "m2", "remoteJid": "5511999998888@s.whatsapp.net"},
			"message": {"conversation": "oi"}
		}
	}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite internal failure", rec.Code)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	getHealth := func(s *Server) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		s.httpServer.Handler.ServeHTTP(rec, req)
		return rec
	}

	s := NewServer(":0", &recordingHandler{}, nil, nil)
	if rec := getHealth(s); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("no pinger: status = %d, body = %q", rec.Code, rec.Body.String())
	}

	healthy := pingerFunc(func(context.Context) error { return nil })
	s = NewServer(":0", &recordingHandler{}, healthy, nil)
	if rec := getHealth(s); rec.Code != http.StatusOK {
		t.Errorf("healthy pinger: status = %d, want 200", rec.Code)
	}

	down := pingerFunc(func(context.Context) error { return errors.New("db gone") })
	s = NewServer(":0", &recordingHandler{}, down, nil)
	if rec := getHealth(s); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing pinger: status = %d, want 503", rec.Code)
	}
}
