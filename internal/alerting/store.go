package alerting

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRetention is how long an alert stays in the active set after creation.
const DefaultRetention = 24 * time.Hour

// Store holds the active-alert set. All access is serialized through one
// mutex; evaluators append on generation and readers purge-then-filter, and
// both can run concurrently under the surrounding service.
//
// Expiry is lazy: alerts older than the retention window are dropped on the
// next read, never by a background goroutine. The clock is injected so tests
// can advance time deterministically.
type Store struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	retention time.Duration
	alerts    []Alert
	seq       uint64
	sizeObs   func(int)
}

// NewStore creates a store with the default 24-hour retention window.
func NewStore(clock clockwork.Clock) *Store {
	return NewStoreWithRetention(clock, DefaultRetention)
}

// NewStoreWithRetention creates a store with a custom retention window.
func NewStoreWithRetention(clock clockwork.Clock, retention time.Duration) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{clock: clock, retention: retention}
}

// OnSizeChange registers a callback invoked with the active-set size after
// every append and purge, typically to feed a gauge. The callback runs under
// the store mutex and must not call back into the store.
func (s *Store) OnSizeChange(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizeObs = fn
}

func (s *Store) notifyLocked() {
	if s.sizeObs != nil {
		s.sizeObs(len(s.alerts))
	}
}

// record stamps the alert with its creation time and a unique ID, appends it
// to the active set, and returns the stamped copy. IDs embed a store-scoped
// sequence number so repeated violations of the same parameter within one
// second still get distinct IDs.
func (s *Store) record(alert Alert) Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	alert.CreatedAt = s.clock.Now()
	alert.ID = fmt.Sprintf("%s_%s_%s_%04d",
		alert.Type, alert.Parameter, alert.CreatedAt.UTC().Format("20060102150405"), s.seq)
	s.alerts = append(s.alerts, alert)
	s.notifyLocked()
	return alert
}

// Filter narrows an Active query. Zero-valued fields match everything;
// set fields are exact-match and AND-combined.
type Filter struct {
	Type     AlertType
	Location string
}

// Active purges alerts older than the retention window, then returns the
// remaining alerts matching the filter, oldest first.
func (s *Store) Active(filter Filter) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()

	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.Location != "" && a.Location != filter.Location {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Len reports the current size of the active set, after purging.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
	return len(s.alerts)
}

func (s *Store) purgeLocked() {
	cutoff := s.clock.Now().Add(-s.retention)
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if a.CreatedAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	s.alerts = kept
	s.notifyLocked()
}
