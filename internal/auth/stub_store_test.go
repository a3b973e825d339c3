package auth

import (
	"context"
	"time"
)

// stubStore implements Store with overridable function fields. Methods
// without an override return ErrNotFound or the zero value, whichever the
// interface promises.
type stubStore struct {
	findUserByID       func(ctx context.Context, id int64) (User, error)
	findUserByEmail    func(ctx context.Context, email string) (User, error)
	createUser         func(ctx context.Context, u User, roleIDs []int64) (User, error)
	updateUserPassword func(ctx context.Context, userID int64, passwordHash string) error

	findRoleByName   func(ctx context.Context, name string) (Role, error)
	ensureRole       func(ctx context.Context, name, description string) (Role, error)
	userRoles        func(ctx context.Context, userID int64) ([]Role, error)
	assignRoleToUser func(ctx context.Context, userID, roleID int64) error

	upsertPermission          func(ctx context.Context, action string) error
	listPermissions           func(ctx context.Context) ([]Permission, error)
	userPermissions           func(ctx context.Context, userID int64) ([]string, error)
	grantAllPermissionsToRole func(ctx context.Context, roleID int64) error

	findAPITokenBySecret func(ctx context.Context, secret string, now time.Time) (APIToken, error)
	createAPIToken       func(ctx context.Context, t APIToken, permissionActions []string) (APIToken, error)
	findAPITokenByID     func(ctx context.Context, id int64) (APIToken, error)
	listAPITokensByUser  func(ctx context.Context, userID int64, limit, offset int) ([]APIToken, int64, error)
	deleteAPIToken       func(ctx context.Context, id int64) (APIToken, error)
	touchAPIToken        func(ctx context.Context, id int64, usedAt time.Time) error

	replaceResetToken      func(ctx context.Context, userID int64, secret string, expiration time.Time) (PasswordResetToken, error)
	findResetTokenBySecret func(ctx context.Context, secret string) (PasswordResetToken, error)
	deleteResetToken       func(ctx context.Context, id int64) error
	completePasswordReset  func(ctx context.Context, userID int64, passwordHash string) error
}

func (s *stubStore) FindUserByID(ctx context.Context, id int64) (User, error) {
	if s.findUserByID != nil {
		return s.findUserByID(ctx, id)
	}
	return User{}, ErrNotFound
}

func (s *stubStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	if s.findUserByEmail != nil {
		return s.findUserByEmail(ctx, email)
	}
	return User{}, ErrNotFound
}

func (s *stubStore) CreateUser(ctx context.Context, u User, roleIDs []int64) (User, error) {
	if s.createUser != nil {
		return s.createUser(ctx, u, roleIDs)
	}
	return u, nil
}

func (s *stubStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	if s.updateUserPassword != nil {
		return s.updateUserPassword(ctx, userID, passwordHash)
	}
	return nil
}

func (s *stubStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	if s.findRoleByName != nil {
		return s.findRoleByName(ctx, name)
	}
	return Role{}, ErrNotFound
}

func (s *stubStore) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	if s.ensureRole != nil {
		return s.ensureRole(ctx, name, description)
	}
	return Role{Name: name, Description: description}, nil
}

func (s *stubStore) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	if s.userRoles != nil {
		return s.userRoles(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	if s.assignRoleToUser != nil {
		return s.assignRoleToUser(ctx, userID, roleID)
	}
	return nil
}

func (s *stubStore) UpsertPermission(ctx context.Context, action string) error {
	if s.upsertPermission != nil {
		return s.upsertPermission(ctx, action)
	}
	return nil
}

func (s *stubStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	if s.listPermissions != nil {
		return s.listPermissions(ctx)
	}
	return nil, nil
}

func (s *stubStore) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	if s.userPermissions != nil {
		return s.userPermissions(ctx, userID)
	}
	return nil, nil
}

func (s *stubStore) GrantAllPermissionsToRole(ctx context.Context, roleID int64) error {
	if s.grantAllPermissionsToRole != nil {
		return s.grantAllPermissionsToRole(ctx, roleID)
	}
	return nil
}

func (s *stubStore) FindAPITokenBySecret(ctx context.Context, secret string, now time.Time) (APIToken, error) {
	if s.findAPITokenBySecret != nil {
		return s.findAPITokenBySecret(ctx, secret, now)
	}
	return APIToken{}, ErrNotFound
}

func (s *stubStore) CreateAPIToken(ctx context.Context, t APIToken, permissionActions []string) (APIToken, error) {
	if s.createAPIToken != nil {
		return s.createAPIToken(ctx, t, permissionActions)
	}
	return t, nil
}

func (s *stubStore) FindAPITokenByID(ctx context.Context, id int64) (APIToken, error) {
	if s.findAPITokenByID != nil {
		return s.findAPITokenByID(ctx, id)
	}
	return APIToken{}, ErrNotFound
}

func (s *stubStore) ListAPITokensByUser(ctx context.Context, userID int64, limit, offset int) ([]APIToken, int64, error) {
	if s.listAPITokensByUser != nil {
		return s.listAPITokensByUser(ctx, userID, limit, offset)
	}
	return nil, 0, nil
}

func (s *stubStore) DeleteAPIToken(ctx context.Context, id int64) (APIToken, error) {
	if s.deleteAPIToken != nil {
		return s.deleteAPIToken(ctx, id)
	}
	return APIToken{}, ErrNotFound
}

func (s *stubStore) TouchAPIToken(ctx context.Context, id int64, usedAt time.Time) error {
	if s.touchAPIToken != nil {
		return s.touchAPIToken(ctx, id, usedAt)
	}
	return nil
}

func (s *stubStore) ReplaceResetToken(ctx context.Context, userID int64, secret string, expiration time.Time) (PasswordResetToken, error) {
	if s.replaceResetToken != nil {
		return s.replaceResetToken(ctx, userID, secret, expiration)
	}
	return PasswordResetToken{Secret: secret, Expiration: expiration, UserID: userID}, nil
}

func (s *stubStore) FindResetTokenBySecret(ctx context.Context, secret string) (PasswordResetToken, error) {
	if s.findResetTokenBySecret != nil {
		return s.findResetTokenBySecret(ctx, secret)
	}
	return PasswordResetToken{}, ErrNotFound
}

func (s *stubStore) DeleteResetToken(ctx context.Context, id int64) error {
	if s.deleteResetToken != nil {
		return s.deleteResetToken(ctx, id)
	}
	return nil
}

func (s *stubStore) CompletePasswordReset(ctx context.Context, userID int64, passwordHash string) error {
	if s.completePasswordReset != nil {
		return s.completePasswordReset(ctx, userID, passwordHash)
	}
	return nil
}

func testCodec(t interface{ Fatalf(string, ...any) }, now func() time.Time) *Codec {
	opts := []CodecOption{}
	if now != nil {
		opts = append(opts, WithCodecClock(now))
	}
	codec, err := NewCodec("access-secret-for-tests", "refresh-secret-for-tests", opts...)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func testService(t interface{ Fatalf(string, ...any) }, store Store, opts ...Option) *Service {
	codec := testCodec(t, nil)
	svc, err := NewService(store, codec, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}
