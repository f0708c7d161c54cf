package events

import (
	"encoding/json"
	"time"
)

// Actions mirror the mutation operations that emit events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Entity names used in published events.
const (
	EntityCategoryGroup = "category_group"
	EntityCategory      = "category"
	EntityAccount       = "account"
	EntityTransaction   = "transaction"
)

// EntityEvent is published after a mutation commits. Consumers fetch the
// row themselves if they need more than the identifiers.
type EntityEvent struct {
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntityEvent creates an event stamped with the current time.
func NewEntityEvent(entity, action string, id, userID int64) *EntityEvent {
	return &EntityEvent{
		Entity:    entity,
		Action:    action,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *EntityEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EntityEventFromJSON creates an event from JSON bytes.
func EntityEventFromJSON(data []byte) (*EntityEvent, error) {
	var event EntityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
