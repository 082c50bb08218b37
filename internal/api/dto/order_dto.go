package dto

import (
	"time"

	"github.com/spec-kit/workorder-service/internal/domain"
)

// OrderResponse is the wire view of a work order with references resolved.
type OrderResponse struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Status       domain.OrderStatus   `json:"status"`
	Priority     domain.OrderPriority `json:"priority"`
	CreatedByID  string               `json:"created_by_id"`
	AssignedToID *string              `json:"assigned_to_id"`
	CreatedBy    *UserResponse        `json:"created_by,omitempty"`
	AssignedTo   *UserResponse        `json:"assigned_to,omitempty"`
	ImageURL     *string              `json:"image_url"`
	ImageName    *string              `json:"image_name"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// PaginatedOrdersResponse is one listing page.
type PaginatedOrdersResponse struct {
	Orders      []OrderResponse `json:"orders"`
	TotalCount  int             `json:"total_count"`
	CurrentPage int             `json:"current_page"`
	TotalPages  int             `json:"total_pages"`
}

// NewOrderResponse maps a domain order.
func NewOrderResponse(order *domain.WorkOrder) OrderResponse {
	resp := OrderResponse{
		ID:           order.ID,
		Title:        order.Title,
		Description:  order.Description,
		Status:       order.Status,
		Priority:     order.Priority,
		CreatedByID:  order.CreatedByID,
		AssignedToID: order.AssignedToID,
		ImageURL:     order.ImageURL,
		ImageName:    order.ImageName,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	if order.CreatedBy != nil {
		createdBy := NewUserResponse(order.CreatedBy)
		resp.CreatedBy = &createdBy
	}
	if order.AssignedTo != nil {
		assignedTo := NewUserResponse(order.AssignedTo)
		resp.AssignedTo = &assignedTo
	}
	return resp
}
