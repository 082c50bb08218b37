package events

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderUpdated       EventType = "order_updated"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventOrderAssigned      EventType = "order_assigned"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrderID   string      `json:"order_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	Title        string               `json:"title"`
	Priority     domain.OrderPriority `json:"priority"`
	AssignedToID *string              `json:"assigned_to_id,omitempty"`
	HasImage     bool                 `json:"has_image"`
}

// OrderUpdatedPayload payload.
type OrderUpdatedPayload struct {
	ChangedFields []string `json:"changed_fields"`
}

// OrderStatusChangedPayload payload.
type OrderStatusChangedPayload struct {
	OldStatus domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus `json:"new_status"`
}

// OrderAssignedPayload payload.
type OrderAssignedPayload struct {
	OldAssignedToID *string `json:"old_assigned_to_id,omitempty"`
	NewAssignedToID *string `json:"new_assigned_to_id,omitempty"`
}
