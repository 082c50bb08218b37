package service

import (
	"testing"

	"github.com/spec-kit/workorder-service/internal/domain"
)

func TestFieldPermitted(t *testing.T) {
	cases := []struct {
		role  domain.Role
		field Field
		want  bool
	}{
		{domain.RoleUser, FieldTitle, true},
		{domain.RoleUser, FieldDescription, true},
		{domain.RoleUser, FieldPriority, true},
		{domain.RoleUser, FieldImage, true},
		{domain.RoleUser, FieldStatus, false},
		{domain.RoleUser, FieldAssignedTo, false},
		{domain.RoleManager, FieldStatus, true},
		{domain.RoleManager, FieldAssignedTo, true},
		{domain.RoleManager, FieldTitle, true},
		{domain.RoleUser, Field("unknown"), false},
	}
	for _, tc := range cases {
		if got := FieldPermitted(tc.role, tc.field); got != tc.want {
			t.Errorf("FieldPermitted(%s, %s) = %v, want %v", tc.role, tc.field, got, tc.want)
		}
	}
}
