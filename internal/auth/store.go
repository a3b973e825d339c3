package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the auth subsystem consumes.
// Implementations return ErrNotFound / ErrConflict for expected misses and
// uniqueness violations; any other error is treated as infrastructure
// failure. Multi-statement sequences (reset-token replacement, password
// reset completion, user creation with role attachment) are atomic inside
// the implementation.
type Store interface {
	// Users.
	FindUserByID(ctx context.Context, id int64) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	// CreateUser inserts the user and attaches the given roles in one
	// transaction.
	CreateUser(ctx context.Context, u User, roleIDs []int64) (User, error)
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error

	// Roles.
	FindRoleByName(ctx context.Context, name string) (Role, error)
	EnsureRole(ctx context.Context, name, description string) (Role, error)
	UserRoles(ctx context.Context, userID int64) ([]Role, error)
	AssignRoleToUser(ctx context.Context, userID, roleID int64) error

	// Permissions.
	UpsertPermission(ctx context.Context, action string) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	// UserPermissions flattens the user's roles into the union of their
	// permission actions.
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
	GrantAllPermissionsToRole(ctx context.Context, roleID int64) error

	// API tokens.
	// FindAPITokenBySecret matches only tokens whose expiry is after now,
	// and loads their linked permissions.
	FindAPITokenBySecret(ctx context.Context, secret string, now time.Time) (APIToken, error)
	CreateAPIToken(ctx context.Context, t APIToken, permissionActions []string) (APIToken, error)
	FindAPITokenByID(ctx context.Context, id int64) (APIToken, error)
	ListAPITokensByUser(ctx context.Context, userID int64, limit, offset int) ([]APIToken, int64, error)
	// DeleteAPIToken removes the token and returns the deleted record.
	DeleteAPIToken(ctx context.Context, id int64) (APIToken, error)
	TouchAPIToken(ctx context.Context, id int64, usedAt time.Time) error

	// Password reset tokens.
	// ReplaceResetToken deletes every outstanding token for the user and
	// inserts the new one in a single transaction, so at most one live
	// token exists per user.
	ReplaceResetToken(ctx context.Context, userID int64, secret string, expiration time.Time) (PasswordResetToken, error)
	FindResetTokenBySecret(ctx context.Context, secret string) (PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, id int64) error
	// CompletePasswordReset updates the password hash and deletes all of
	// the user's reset tokens in a single transaction.
	CompletePasswordReset(ctx context.Context, userID int64, passwordHash string) error
}
