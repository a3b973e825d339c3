package auth

import (
	"context"
	"errors"
	"fmt"
)

// RequirePermission gates an action on the already-resolved identity. An
// empty action degrades to an authentication-only check. Pure over the
// identity; full-access tokens were expanded at identity-build time.
func RequirePermission(identity Identity, action string) error {
	if identity.UserID == 0 {
		return ErrUnauthenticated
	}
	if action == "" {
		return nil
	}
	if !identity.HasPermission(action) {
		return fmt.Errorf("%w: missing permission %s", ErrForbidden, action)
	}
	return nil
}

// CreatorResolver looks up the user id that owns a protected entity. The
// ownership authorizer is entity-agnostic; callers inject the lookup for
// whatever table they guard.
type CreatorResolver func(ctx context.Context, entityID int64) (int64, error)

// IsSuperAdmin reports whether the user holds the super-admin role.
func (s *Service) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.Name == RoleSuperAdmin {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizeCreator allows the request when the authenticated user created
// the entity, or holds the super-admin role. Authentication is checked
// strictly before the entity lookup so unauthenticated callers learn
// nothing about entity existence.
func (s *Service) AuthorizeCreator(ctx context.Context, identity Identity, entityID int64, resolve CreatorResolver) error {
	if identity.UserID == 0 {
		return ErrUnauthenticated
	}
	if resolve == nil {
		return errors.New("auth: creator resolver is required")
	}
	creatorID, err := resolve(ctx, entityID)
	if err != nil {
		return err
	}
	if creatorID == identity.UserID {
		return nil
	}
	admin, err := s.IsSuperAdmin(ctx, identity.UserID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return fmt.Errorf("%w: not the creator", ErrForbidden)
}
