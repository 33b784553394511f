package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/taskflow/pkg/constants"
)

// Event is a domain event published after a state change.
type Event struct {
	ID         string              `json:"id"`
	Type       constants.EventType `json:"type"`
	UserID     string              `json:"userId"`
	ResourceID string              `json:"resourceId,omitempty"`
	Payload    map[string]string   `json:"payload,omitempty"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(eventType constants.EventType, userID, resourceID string, payload map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		ResourceID: resourceID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
