package domain

import "time"

// OrderStatus enumerates lifecycle states for work orders.
type OrderStatus string

const (
	OrderStatusOpen       OrderStatus = "OPEN"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// OrderPriority enumerates urgency levels.
type OrderPriority string

const (
	OrderPriorityLow    OrderPriority = "LOW"
	OrderPriorityMedium OrderPriority = "MED"
	OrderPriorityHigh   OrderPriority = "HIGH"
)

// ValidOrderStatus reports whether the value is one of the four statuses.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusOpen, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidOrderPriority reports whether the value is one of the three priorities.
func ValidOrderPriority(p OrderPriority) bool {
	switch p {
	case OrderPriorityLow, OrderPriorityMedium, OrderPriorityHigh:
		return true
	}
	return false
}

// WorkOrder is the aggregate for tracked work items.
// ImageURL and ImageName are set together or both nil.
type WorkOrder struct {
	ID           string
	Title        string
	Description  string
	Status       OrderStatus
	Priority     OrderPriority
	CreatedByID  string
	AssignedToID *string
	ImageURL     *string
	ImageName    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Resolved references, populated by list/get queries.
	CreatedBy  *User
	AssignedTo *User
}
