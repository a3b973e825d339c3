package httpapi

import (
	"context"
	"time"

	"mercata.dev/internal/auth"
)

// stubStore implements auth.Store with overridable function fields so
// handler tests can drive the real service over canned data.
type stubStore struct {
	findUserByID         func(ctx context.Context, id int64) (auth.User, error)
	findUserByEmail      func(ctx context.Context, email string) (auth.User, error)
	createUser           func(ctx context.Context, u auth.User, roleIDs []int64) (auth.User, error)
	findRoleByName       func(ctx context.Context, name string) (auth.Role, error)
	userRoles            func(ctx context.Context, userID int64) ([]auth.Role, error)
	userPermissions      func(ctx context.Context, userID int64) ([]string, error)
	findAPITokenBySecret func(ctx context.Context, secret string, now time.Time) (auth.APIToken, error)
	createAPIToken       func(ctx context.Context, t auth.APIToken, actions []string) (auth.APIToken, error)
	listAPITokensByUser  func(ctx context.Context, userID int64, limit, offset int) ([]auth.APIToken, int64, error)
	deleteAPIToken       func(ctx context.Context, id int64) (auth.APIToken, error)
	upsertPermission     func(ctx context.Context, action string) error
}

func (s *stubStore) FindUserByID(ctx context.Context, id int64) (auth.User, error) {
	if s.findUserByID != nil {
		return s.findUserByID(ctx, id)
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *stubStore) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.findUserByEmail != nil {
		return s.findUserByEmail(ctx, email)
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *stubStore) CreateUser(ctx context.Context, u auth.User, roleIDs []int64) (auth.User, error) {
	if s.createUser != nil {
		return s.createUser(ctx, u, roleIDs)
	}
	return u, nil
}

func (s *stubStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	return nil
}

func (s *stubStore) FindRoleByName(ctx context.Context, name string) (auth.Role, error) {
	if s.findRoleByName != nil {
		return s.findRoleByName(ctx, name)
	}
	return auth.Role{}, auth.ErrNotFound
}

func (s *stubStore) EnsureRole(ctx context.Context, name, description string) (auth.Role, error) {
	return auth.Role{Name: name}, nil
}

func (s *stubStore) UserRoles(ctx context.Context, userID int64) ([]auth.Role, error) {
	if s.userRoles != nil {
		return s.userRoles(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	return nil
}

func (s *stubStore) UpsertPermission(ctx context.Context, action string) error {
	if s.upsertPermission != nil {
		return s.upsertPermission(ctx, action)
	}
	return nil
}

func (s *stubStore) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	return nil, nil
}

func (s *stubStore) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.userPermissions != nil {
		return s.userPermissions(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) GrantAllPermissionsToRole(ctx context.Context, roleID int64) error { return nil }

func (s *stubStore) FindAPITokenBySecret(ctx context.Context, secret string, now time.Time) (auth.APIToken, error) {
	if s.findAPITokenBySecret != nil {
		return s.findAPITokenBySecret(ctx, secret, now)
	}
	return auth.APIToken{}, auth.ErrNotFound
}

func (s *stubStore) CreateAPIToken(ctx context.Context, t auth.APIToken, actions []string) (auth.APIToken, error) {
	if s.createAPIToken != nil {
		return s.createAPIToken(ctx, t, actions)
	}
	return t, nil
}

func (s *stubStore) FindAPITokenByID(ctx context.Context, id int64) (auth.APIToken, error) {
	return auth.APIToken{}, auth.ErrNotFound
}

func (s *stubStore) ListAPITokensByUser(ctx context.Context, userID int64, limit, offset int) ([]auth.APIToken, int64, error) {
	if s.listAPITokensByUser != nil {
		return s.listAPITokensByUser(ctx, userID, limit, offset)
	}
	return nil, 0, nil
}

func (s *stubStore) DeleteAPIToken(ctx context.Context, id int64) (auth.APIToken, error) {
	if s.deleteAPIToken != nil {
		return s.deleteAPIToken(ctx, id)
	}
	return auth.APIToken{}, auth.ErrNotFound
}

func (s *stubStore) TouchAPIToken(ctx context.Context, id int64, usedAt time.Time) error {
	return nil
}

func (s *stubStore) ReplaceResetToken(ctx context.Context, userID int64, secret string, expiration time.Time) (auth.PasswordResetToken, error) {
	return auth.PasswordResetToken{Secret: secret, Expiration: expiration, UserID: userID}, nil
}

func (s *stubStore) FindResetTokenBySecret(ctx context.Context, secret string) (auth.PasswordResetToken, error) {
	return auth.PasswordResetToken{}, auth.ErrNotFound
}

func (s *stubStore) DeleteResetToken(ctx context.Context, id int64) error { return nil }

func (s *stubStore) CompletePasswordReset(ctx context.Context, userID int64, passwordHash string) error {
	return nil
}

func newTestAPI(t interface{ Fatalf(string, ...any) }, store auth.Store) (*API, *auth.Codec) {
	codec, err := auth.NewCodec("access-secret-for-tests", "refresh-secret-for-tests")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(store, codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(svc, auth.NewRegistry(store), ReadyProbe{}, "test"), codec
}
