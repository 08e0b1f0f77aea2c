package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-relay/internal/relay"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := New(config.PlatformConfig{URL: serverURL, Token: "test-token"}, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	logger := testLogger()

	if _, err := New(config.PlatformConfig{Token: "t"}, logger); err == nil {
		t.Error("New() expected error for missing URL")
	}
	if _, err := New(config.PlatformConfig{URL: "http://p"}, logger); err == nil {
		t.Error("New() expected error for missing token")
	}
	if _, err := New(config.PlatformConfig{URL: "http://p", Token: "t"}, nil); err == nil {
		t.Error("New() expected error for nil logger")
	}
}

func TestFetchRelays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/relay/list" {
			t.Errorf("path = %q, want /relay/list", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"relays": [
				{"id": "site-b", "address": "b.example.com", "port": 8883, "tls_enabled": true, "subscribe": ["sensors/#"]},
				{"id": "site-a", "address": "a.example.com", "port": 1883, "username": "u", "password": "p", "subscribe": []}
			]
		}`))
	}))
	defer srv.Close()

	relays, err := testClient(t, srv.URL).FetchRelays(context.Background())
	if err != nil {
		t.Fatalf("FetchRelays() error = %v", err)
	}

	if len(relays) != 2 {
		t.Fatalf("len(relays) = %d, want 2", len(relays))
	}
	if relays[0].ID != "site-b" || relays[0].Host != "b.example.com" || relays[0].Port != 8883 {
		t.Errorf("first relay = %+v, want site-b fields", relays[0])
	}
	if !relays[0].TLS {
		t.Error("site-b TLS = false, want true")
	}
	if len(relays[0].Topics) != 1 || relays[0].Topics[0] != "sensors/#" {
		t.Errorf("site-b topics = %v, want [sensors/#]", relays[0].Topics)
	}
	if relays[1].Username != "u" || relays[1].Password != "p" {
		t.Error("site-a credentials not carried through")
	}
}

func TestFetchRelaysRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"relays": [{"id": "site-a", "address": "a", "port": 1883, "subscribe": []}]}`))
	}))
	defer srv.Close()

	relays, err := testClient(t, srv.URL).FetchRelays(context.Background())
	if err != nil {
		t.Fatalf("FetchRelays() error = %v", err)
	}
	if len(relays) != 1 {
		t.Fatalf("len(relays) = %d, want 1", len(relays))
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("platform calls = %d, want 2 (one retry)", got)
	}
}

func TestFetchRelaysUnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchRelays(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("FetchRelays() error = %v, want ErrUnauthorized", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("platform calls = %d, want 1 (no retry on auth failure)", got)
	}
}

func TestVerifyToken(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"valid credentials", http.StatusOK, nil},
		{"rejected credentials", http.StatusUnauthorized, ErrUnauthorized},
		{"platform error", http.StatusInternalServerError, ErrRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %q, want POST", r.Method)
				}
				if r.URL.Path != "/relay/site-a/verify" {
					t.Errorf("path = %q, want /relay/site-a/verify", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := testClient(t, srv.URL).VerifyToken(context.Background(), &relay.Config{ID: "site-a"})
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("VerifyToken() error = %v, want nil", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestForward(t *testing.T) {
	var received forwardPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/relay/site-a/messages" {
			t.Errorf("path = %q, want /relay/site-a/messages", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding forward body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	rc := &relay.Config{ID: "site-a"}
	err := testClient(t, srv.URL).Forward(context.Background(), rc, "sensors/temp", []byte("21.5"))
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}

	if received.RelayID != "site-a" {
		t.Errorf("forwarded relay_id = %q, want site-a", received.RelayID)
	}
	if received.Topic != "sensors/temp" {
		t.Errorf("forwarded topic = %q, want sensors/temp", received.Topic)
	}
	if string(received.Payload) != "21.5" {
		t.Errorf("forwarded payload = %q, want 21.5", received.Payload)
	}
}

func TestForwardNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := testClient(t, srv.URL).Forward(context.Background(), &relay.Config{ID: "site-a"}, "t", nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("Forward() error = %v, want ErrRequestFailed", err)
	}
}
