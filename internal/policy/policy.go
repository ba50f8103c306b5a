// Package policy evaluates role and ownership rules for mutating operations.
package policy

import (
	"github.com/google/uuid"

	apperrors "ticketing/internal/errors"
	"ticketing/internal/model"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   model.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// Rule declares who may perform an operation. An actor passes when their role is
// listed in Roles, or when AllowOwner is set and they own the target resource.
// An empty Roles list with AllowOwner unset admits any authenticated actor.
type Rule struct {
	Roles      []model.Role
	AllowOwner bool
}

// Rules used by the services.
var (
	Authenticated = Rule{}
	AdminOnly     = Rule{Roles: []model.Role{model.RoleAdmin}}
	AdminOrOwner  = Rule{Roles: []model.Role{model.RoleAdmin}, AllowOwner: true}
)

// Allows reports whether actor satisfies the rule for a resource owned by owner.
// Pass uuid.Nil as owner for operations without a target resource.
func (r Rule) Allows(actor Actor, owner uuid.UUID) bool {
	if actor.UserID == uuid.Nil {
		return false
	}
	if len(r.Roles) == 0 && !r.AllowOwner {
		return true
	}
	if r.HasRole(actor.Role) {
		return true
	}
	return r.AllowOwner && owner != uuid.Nil && actor.UserID == owner
}

// HasRole reports whether role is listed in the rule.
func (r Rule) HasRole(role model.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// Authorize returns a Forbidden error when actor does not satisfy the rule.
func (r Rule) Authorize(actor Actor, owner uuid.UUID) error {
	if r.Allows(actor, owner) {
		return nil
	}
	if r.AllowOwner {
		return apperrors.Forbidden("Not authorized to access this resource")
	}
	return apperrors.Forbidden("Access denied. Insufficient permissions")
}
