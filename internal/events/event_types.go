package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenAcquired  EventType = "sso.token_acquired"
	EventTokenRefreshed EventType = "sso.token_refreshed"
	EventLoginFailed    EventType = "sso.login_failed"
	EventCacheHit       EventType = "sso.cache_hit"
)

// Event represents a token lifecycle event emitted by the cache.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, email string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Email:     email,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TokenAcquiredPayload payload. The token value itself is never published.
type TokenAcquiredPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
	Forced    bool      `json:"forced"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	AuthExpiry bool   `json:"auth_expiry"`
}
