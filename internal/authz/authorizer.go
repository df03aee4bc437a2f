// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

var (
	// ErrForbidden is returned when the role does not allow the action.
	ErrForbidden = errors.New("forbidden")

	// ErrNotMember is returned when the actor has no membership in the business.
	ErrNotMember = fmt.Errorf("%w: not a member of this business", ErrForbidden)
)

// MembershipStore looks up business memberships.
type MembershipStore interface {
	GetMembership(ctx context.Context, businessID, userID string) (*models.Membership, error)
}

// Authorizer combines role policy with business membership.
type Authorizer struct {
	enforcer *Enforcer
	members  MembershipStore
}

// NewAuthorizer creates an authorizer.
func NewAuthorizer(enforcer *Enforcer, members MembershipStore) *Authorizer {
	return &Authorizer{enforcer: enforcer, members: members}
}

// Can reports whether role may perform action on object, ignoring membership.
func (a *Authorizer) Can(role models.Role, object, action string) bool {
	ok, err := a.enforcer.Enforce(role, object, action)
	return err == nil && ok
}

// AuthorizeBusiness checks that actor may perform action on object inside
// businessID. Admins pass everywhere; everyone else is judged by the role of
// their membership in that business, not by their platform role.
func (a *Authorizer) AuthorizeBusiness(ctx context.Context, actor models.Actor, businessID, object, action string) error {
	if actor.IsAdmin() {
		RecordAuthzDecision(string(models.RoleAdmin), object, action, true)
		return nil
	}

	m, err := a.members.GetMembership(ctx, businessID, actor.UserID)
	if errors.Is(err, database.ErrNotFound) {
		AuthzMembershipDenied.Inc()
		a.deny(ctx, actor, businessID, object, action, "no membership")
		return ErrNotMember
	}
	if err != nil {
		return fmt.Errorf("lookup membership: %w", err)
	}

	allowed, err := a.enforcer.Enforce(m.Role, object, action)
	if err != nil {
		return err
	}
	RecordAuthzDecision(string(m.Role), object, action, allowed)
	if !allowed {
		a.deny(ctx, actor, businessID, object, action, "role "+string(m.Role))
		return ErrForbidden
	}
	return nil
}

// BusinessRole returns the actor's effective role in businessID.
func (a *Authorizer) BusinessRole(ctx context.Context, actor models.Actor, businessID string) (models.Role, error) {
	if actor.IsAdmin() {
		return models.RoleAdmin, nil
	}
	m, err := a.members.GetMembership(ctx, businessID, actor.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", fmt.Errorf("lookup membership: %w", err)
	}
	return m.Role, nil
}

func (a *Authorizer) deny(ctx context.Context, actor models.Actor, businessID, object, action, reason string) {
	logging.Ctx(ctx).Debug().
		Str("user_id", actor.UserID).
		Str("business_id", businessID).
		Str("object", object).
		Str("action", action).
		Str("reason", reason).
		Msg("Access denied")
	logging.LogSecurityEvent(logging.SecurityAccessDenied, actor.UserID, "",
		fmt.Sprintf("%s %s on business %s: %s", action, object, businessID, reason))
}
