package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-relay/internal/relay"
)

// fakeRouter records routed messages and returns a scripted result.
type fakeRouter struct {
	routed  []relay.PublishMessage
	relayID string // last requested relay id
	target  string
	err     error
	active  []string
}

func (f *fakeRouter) Route(relayID string, msg relay.PublishMessage) (string, error) {
	f.relayID = relayID
	if f.err != nil {
		return "", f.err
	}
	f.routed = append(f.routed, msg)
	if f.target != "" {
		return f.target, nil
	}
	return relayID, nil
}

func (f *fakeRouter) ActiveIDs() []string {
	return f.active
}

func testServer(t *testing.T, router PublishRouter) *Server {
	t.Helper()
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	s, err := New(Deps{
		Config:  config.APIConfig{Host: "127.0.0.1", Port: 3000},
		Logger:  logger,
		Router:  router,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

// doPublish sends a publish request through the full middleware chain.
func doPublish(s *Server, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/publish", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresDeps(t *testing.T) {
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	if _, err := New(Deps{Router: &fakeRouter{}}); err == nil {
		t.Error("New() expected error for missing logger")
	}
	if _, err := New(Deps{Logger: logger}); err == nil {
		t.Error("New() expected error for missing router")
	}
}

func TestPublishSuccess(t *testing.T) {
	router := &fakeRouter{target: "site-a"}
	s := testServer(t, router)

	rec := doPublish(s, "application/json",
		`{"relay_id": "site-a", "topic": "actuators/valve", "message": "open", "qos": 1, "retain": true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp PublishResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "message published" {
		t.Errorf("status = %q, want %q", resp.Status, "message published")
	}
	if resp.MessageID == "" {
		t.Error("message_id is empty, want a generated id")
	}
	if resp.RelayID != "site-a" {
		t.Errorf("relay_id = %q, want site-a", resp.RelayID)
	}

	if len(router.routed) != 1 {
		t.Fatalf("routed %d messages, want 1", len(router.routed))
	}
	msg := router.routed[0]
	if msg.Topic != "actuators/valve" || string(msg.Payload) != "open" {
		t.Errorf("routed message = %+v, want topic/payload carried through", msg)
	}
	if !msg.Retain {
		t.Error("retain flag not carried through")
	}
}

func TestPublishDefaultRelay(t *testing.T) {
	router := &fakeRouter{target: "site-a"}
	s := testServer(t, router)

	rec := doPublish(s, "application/json", `{"topic": "t", "message": "p"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if router.relayID != "" {
		t.Errorf("requested relay id = %q, want empty (default routing)", router.relayID)
	}

	var resp PublishResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.RelayID != "site-a" {
		t.Errorf("relay_id = %q, want the resolved default target", resp.RelayID)
	}
}

func TestPublishRejectsNonJSONContentType(t *testing.T) {
	s := testServer(t, &fakeRouter{})

	rec := doPublish(s, "text/plain", `{"topic": "t"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPublishMalformedJSON(t *testing.T) {
	s := testServer(t, &fakeRouter{})

	rec := doPublish(s, "application/json", `{"topic": "t"`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPublishWrongFieldType(t *testing.T) {
	s := testServer(t, &fakeRouter{})

	// Well-formed JSON with the wrong type is a validation failure, not a
	// malformed body.
	rec := doPublish(s, "application/json", `{"topic": 42}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty topic", `{"message": "p"}`},
		{"qos too high", `{"topic": "t", "qos": 3}`},
		{"qos negative", `{"topic": "t", "qos": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, &fakeRouter{})
			rec := doPublish(s, "application/json", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
		})
	}
}

func TestPublishRoutingErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no active relay", relay.ErrNoActiveRelay, http.StatusNotFound},
		{"unknown relay", relay.ErrUnknownRelay, http.StatusNotFound},
		{"queue full", relay.ErrQueueFull, http.StatusInternalServerError},
		{"worker stopped", relay.ErrWorkerStopped, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, &fakeRouter{err: tt.err})
			rec := doPublish(s, "application/json", `{"topic": "t", "message": "p"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var apiErr Error
			if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if apiErr.Status != tt.wantStatus {
				t.Errorf("error body status = %d, want %d", apiErr.Status, tt.wantStatus)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	s := testServer(t, &fakeRouter{active: []string{"site-a", "site-b"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status  string   `json:"status"`
		Version string   `json:"version"`
		Relays  []string `json:"relays"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.Version != "test" {
		t.Errorf("version = %q, want test", body.Version)
	}
	if len(body.Relays) != 2 || body.Relays[0] != "site-a" {
		t.Errorf("relays = %v, want [site-a site-b]", body.Relays)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := testServer(t, &fakeRouter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing, want generated id")
	}

	// A caller-supplied id is echoed back.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "caller-id" {
		t.Errorf("X-Request-ID = %q, want caller-id", got)
	}
}

func TestHealthCheckLifecycle(t *testing.T) {
	s := testServer(t, &fakeRouter{})

	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start expected error")
	}

	// Closing an unstarted server is a no-op.
	if err := s.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}
