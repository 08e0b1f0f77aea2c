package relay

import (
	"fmt"
	"sort"
)

// Config holds one relay's broker connection settings.
//
// The relay list is fetched from the cloud platform once at startup and is
// immutable afterwards. A Config is shared read-only between the supervisor
// and the worker it spawns; nothing mutates it after load.
type Config struct {
	// ID uniquely identifies the relay. Used as the routing key for ingress
	// publish requests.
	ID string

	// Host and Port locate the MQTT broker.
	Host string
	Port int

	// TLS enables an ssl:// connection. CACert optionally carries a PEM
	// certificate to verify the broker against.
	TLS    bool
	CACert []byte

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// ClientID is the MQTT client identifier. When empty, a default derived
	// from the relay id is used.
	ClientID string

	// Topics is the ordered list of subscribe topics for inbound messages.
	Topics []string
}

// Registry is an immutable snapshot of the configured relays.
//
// It is built once at startup from the platform's relay list and never
// changes; picking up relay list changes requires a restart.
//
// Thread Safety:
//   - All methods are safe for concurrent use (the registry is read-only).
type Registry struct {
	relays []*Config
	byID   map[string]*Config
}

// NewRegistry builds a registry from the given relay configurations.
//
// Relays are sorted by id so that iteration order, and therefore default
// relay selection, is deterministic.
//
// Returns:
//   - *Registry: Immutable registry
//   - error: If any relay has an empty id or an id appears twice
func NewRegistry(relays []*Config) (*Registry, error) {
	byID := make(map[string]*Config, len(relays))
	sorted := make([]*Config, 0, len(relays))

	for _, rc := range relays {
		if rc.ID == "" {
			return nil, ErrEmptyRelayID
		}
		if _, exists := byID[rc.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRelay, rc.ID)
		}
		byID[rc.ID] = rc
		sorted = append(sorted, rc)
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	return &Registry{
		relays: sorted,
		byID:   byID,
	}, nil
}

// All returns the relay configurations sorted by id.
//
// The returned slice is a copy; callers cannot mutate the registry through it.
func (r *Registry) All() []*Config {
	out := make([]*Config, len(r.relays))
	copy(out, r.relays)
	return out
}

// Get returns the relay configuration for the given id.
func (r *Registry) Get(id string) (*Config, bool) {
	rc, ok := r.byID[id]
	return rc, ok
}

// Len returns the number of configured relays.
func (r *Registry) Len() int {
	return len(r.relays)
}
