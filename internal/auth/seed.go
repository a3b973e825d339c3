package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Seed brings the store to its bootstrap invariants: the "authenticated"
// and "super-admin" roles exist, the super-admin user exists holding both,
// and the super-admin role carries every registered permission. Idempotent;
// run on every boot.
func Seed(ctx context.Context, store Store, adminEmail, adminPassword string) error {
	adminEmail = normalizeEmail(adminEmail)
	if adminEmail == "" || strings.TrimSpace(adminPassword) == "" {
		return errors.New("auth: super-admin email and password are required for seeding")
	}

	superAdmin, err := store.EnsureRole(ctx, RoleSuperAdmin, "Super Admin Role")
	if err != nil {
		return fmt.Errorf("ensure %s role: %w", RoleSuperAdmin, err)
	}
	authenticated, err := store.EnsureRole(ctx, RoleAuthenticated, "Authenticated User Role")
	if err != nil {
		return fmt.Errorf("ensure %s role: %w", RoleAuthenticated, err)
	}

	if _, err := store.FindUserByEmail(ctx, adminEmail); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		hash, err := HashPassword(adminPassword)
		if err != nil {
			return err
		}
		if _, err := store.CreateUser(ctx, User{
			Email:        adminEmail,
			Provider:     ProviderLocal,
			PasswordHash: hash,
			Confirmed:    true,
		}, []int64{superAdmin.ID, authenticated.ID}); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("create super-admin user: %w", err)
		}
	}

	if err := store.GrantAllPermissionsToRole(ctx, superAdmin.ID); err != nil {
		return fmt.Errorf("grant permissions to %s: %w", RoleSuperAdmin, err)
	}
	return nil
}
