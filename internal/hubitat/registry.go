package hubitat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry caches the most recent full device list fetched from the hub.
// The snapshot is only ever replaced by a successful fetch; a failed
// fetch leaves the previous one in place.
type Registry struct {
	gateway Getter
	baseURL string
	token   string
	logger  zerolog.Logger

	mu          sync.RWMutex
	snapshot    []Record
	lastRefresh time.Time
}

// NewRegistry creates a registry for the hub at baseURL.
func NewRegistry(gw Getter, baseURL, token string, logger zerolog.Logger) *Registry {
	return &Registry{
		gateway: gw,
		baseURL: baseURL,
		token:   token,
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// Refresh fetches the full device list and replaces the snapshot.
func (r *Registry) Refresh(ctx context.Context) bool {
	value := r.gateway.Get(ctx, devicesURL(r.baseURL, r.token))
	if value == nil {
		r.logger.Debug().Msg("refresh failed, keeping previous snapshot")
		return false
	}

	records, ok := recordsFrom(value)
	if !ok {
		r.logger.Warn().Msg("hub returned a non-list device payload, keeping previous snapshot")
		return false
	}

	r.mu.Lock()
	r.snapshot = records
	r.lastRefresh = time.Now()
	r.mu.Unlock()

	r.logger.Trace().Int("devices", len(records)).Msg("snapshot refreshed")
	return true
}

// Lookup finds a device in the current snapshot by id.
func (r *Registry) Lookup(deviceID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.snapshot {
		if rec.ID() == deviceID {
			return rec, true
		}
	}
	return nil, false
}

// Snapshot returns a copy of the cached device list.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Record, len(r.snapshot))
	copy(result, r.snapshot)
	return result
}

// LastRefresh returns when the snapshot was last replaced.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}
