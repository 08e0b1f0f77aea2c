package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/mqtt-relay/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-relay/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-relay/internal/relay"
)

// Retry tuning for the startup relay list fetch. Transient platform errors
// are retried a few times before startup fails.
const (
	fetchMaxRetries     = 3
	fetchInitialBackoff = 200 * time.Millisecond
	fetchMaxBackoff     = 5 * time.Second
)

// defaultRequestTimeout is used when the config does not set one.
const defaultRequestTimeout = 30 * time.Second

// Client talks to the cloud platform's relay API.
//
// It fetches the relay list at startup, verifies each relay's network token,
// and forwards broker-received messages upstream.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *logging.Logger
}

// New creates a platform client from configuration.
//
// Returns:
//   - *Client: Client ready for use
//   - error: If required configuration is missing
func New(cfg config.PlatformConfig, logger *logging.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("platform URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("platform token is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	timeout := defaultRequestTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.RequestTimeout()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger.With("component", "platform"),
	}, nil
}

// relayPayload is the wire format of one relay in the platform's list.
type relayPayload struct {
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Port     int      `json:"port"`
	TLS      bool     `json:"tls_enabled"`
	CACert   string   `json:"certificate,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	Topics   []string `json:"subscribe"`
}

// relayListResponse is the platform's relay list envelope.
type relayListResponse struct {
	Relays []relayPayload `json:"relays"`
}

// FetchRelays retrieves the configured relay list from the platform.
//
// Transient failures (network errors, 5xx responses) are retried with
// exponential backoff up to fetchMaxRetries times. An authorization failure
// is permanent and returned immediately.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - []*relay.Config: The relay configurations, ready for a registry
//   - error: If the list cannot be fetched or parsed
func (c *Client) FetchRelays(ctx context.Context) ([]*relay.Config, error) {
	var relays []*relay.Config

	operation := func() error {
		fetched, err := c.fetchRelayList(ctx)
		if err != nil {
			return err
		}
		relays = fetched
		return nil
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(fetchInitialBackoff),
				backoff.WithMaxInterval(fetchMaxBackoff),
			),
			fetchMaxRetries,
		),
		ctx,
	)

	err := backoff.RetryNotify(operation, strategy, func(opErr error, next time.Duration) {
		c.logger.Warn("relay list fetch failed, retrying", "error", opErr, "next_attempt_in", next)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching relay list: %w", err)
	}

	return relays, nil
}

// fetchRelayList performs one relay list request.
func (c *Client) fetchRelayList(ctx context.Context) ([]*relay.Config, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/relay/list", nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Retrying cannot fix a bad token.
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	var list relayListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parsing relay list: %w", err))
	}

	relays := make([]*relay.Config, 0, len(list.Relays))
	for _, rp := range list.Relays {
		relays = append(relays, &relay.Config{
			ID:       rp.ID,
			Host:     rp.Address,
			Port:     rp.Port,
			TLS:      rp.TLS,
			CACert:   []byte(rp.CACert),
			Username: rp.Username,
			Password: rp.Password,
			ClientID: rp.ClientID,
			Topics:   rp.Topics,
		})
	}

	return relays, nil
}

// VerifyToken asks the platform to validate a relay's network credentials.
//
// Called once per relay before serving begins; any failure is treated as
// startup-fatal by the caller.
//
// Returns:
//   - error: nil if the relay's credentials are valid; ErrUnauthorized if the
//     platform rejects them; ErrRequestFailed otherwise
func (c *Client) VerifyToken(ctx context.Context, rc *relay.Config) error {
	url := fmt.Sprintf("%s/relay/%s/verify", c.baseURL, rc.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: relay %q", ErrUnauthorized, rc.ID)
	default:
		return fmt.Errorf("%w: unexpected status %d for relay %q", ErrRequestFailed, resp.StatusCode, rc.ID)
	}
}

// forwardPayload is the wire format of an upstream message delivery.
// Payload is base64-encoded by the JSON marshaller.
type forwardPayload struct {
	RelayID string `json:"relay_id"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// Forward delivers one broker-received message upstream.
//
// The relay core treats forwarding as fire-and-forget: failures returned here
// are logged by the worker and never retried.
func (c *Client) Forward(ctx context.Context, rc *relay.Config, topic string, payload []byte) error {
	body, err := json.Marshal(forwardPayload{
		RelayID: rc.ID,
		Topic:   topic,
		Payload: payload,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/relay/%s/messages", c.baseURL, rc.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d forwarding to relay %q", ErrRequestFailed, resp.StatusCode, rc.ID)
	}

	return nil
}

// setHeaders applies the common platform request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}
