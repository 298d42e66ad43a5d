package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/sso-requester/internal/events"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	tokenEvents  map[events.EventType]int64
	lastAcquired time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests     map[string]int64 `json:"requests"`
	Errors       map[string]int64 `json:"errors"`
	TokenEvents  map[string]int64 `json:"token_events"`
	LastAcquired *time.Time       `json:"last_acquired,omitempty"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		tokenEvents:  make(map[events.EventType]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Observe subscribes the token counters to the cache's lifecycle events.
func (m *Metrics) Observe(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTokenAcquired,
		events.EventTokenRefreshed,
		events.EventLoginFailed,
		events.EventCacheHit,
	} {
		dispatcher.Subscribe(eventType, m.recordTokenEvent)
	}
}

func (m *Metrics) recordTokenEvent(_ context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenEvents[event.Type]++
	if event.Type == events.EventTokenAcquired || event.Type == events.EventTokenRefreshed {
		m.lastAcquired = event.Timestamp
	}
	return nil
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Requests:    make(map[string]int64, len(m.requestCount)),
		Errors:      make(map[string]int64, len(m.errorCount)),
		TokenEvents: make(map[string]int64, len(m.tokenEvents)),
	}
	for k, v := range m.requestCount {
		s.Requests[k] = v
	}
	for k, v := range m.errorCount {
		s.Errors[k] = v
	}
	for k, v := range m.tokenEvents {
		s.TokenEvents[string(k)] = v
	}
	if !m.lastAcquired.IsZero() {
		last := m.lastAcquired
		s.LastAcquired = &last
	}
	return s
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
