package service

import "github.com/spec-kit/workorder-service/internal/domain"

// Field names an order attribute subject to role-based write rules.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPriority    Field = "priority"
	FieldImage       Field = "image"
	FieldStatus      Field = "status"
	FieldAssignedTo  Field = "assigned_to_id"
)

// FieldPermitted reports whether the role may write the field. Status and
// assignee are manager-only; everything else is writable by any role that
// already passed the ownership check. Unpermitted fields are dropped
// silently, never rejected.
func FieldPermitted(role domain.Role, field Field) bool {
	switch field {
	case FieldStatus, FieldAssignedTo:
		return role == domain.RoleManager
	case FieldTitle, FieldDescription, FieldPriority, FieldImage:
		return true
	}
	return false
}
