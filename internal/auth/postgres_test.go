package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var userRowColumns = []string{"id", "email", "provider", "password_hash", "confirmation_token", "confirmed", "blocked", "created_at", "updated_at"}

func userRow(mockTime time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userRowColumns).
		AddRow(int64(7), "user@example.com", "local", "hash", nil, true, false, mockTime, mockTime)
}

func TestPGStoreFindUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now()

	mock.ExpectQuery("select (.+) from users").
		WithArgs("user@example.com").
		WillReturnRows(userRow(now))

	user, err := store.FindUserByEmail(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if user.ID != 7 || user.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreFindUserByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select (.+) from users").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	if _, err := store.FindUserByID(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateUserAttachesRolesInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WithArgs("user@example.com", "local", sqlmock.AnyArg(), false).
		WillReturnRows(userRow(now))
	mock.ExpectExec("insert into user_roles").
		WithArgs(int64(7), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := store.CreateUser(context.Background(), User{
		Email:        "user@example.com",
		Provider:     "local",
		PasswordHash: "hash",
	}, []int64{2})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID != 7 {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreCreateUserDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err = store.CreateUser(context.Background(), User{Email: "taken@example.com"}, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreReplaceResetTokenDeletesThenInserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now()
	exp := now.Add(20 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec("delete from password_reset_tokens").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("insert into password_reset_tokens").
		WithArgs("secret", exp, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "expiration", "created_at", "updated_at", "user_id"}).
			AddRow(int64(3), "secret", exp, now, now, int64(7)))
	mock.ExpectCommit()

	token, err := store.ReplaceResetToken(context.Background(), 7, "secret", exp)
	if err != nil {
		t.Fatalf("ReplaceResetToken: %v", err)
	}
	if token.ID != 3 || token.UserID != 7 {
		t.Fatalf("unexpected token: %+v", token)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreCompletePasswordResetIsTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("update users set password_hash").
		WithArgs(int64(7), "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from password_reset_tokens").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.CompletePasswordReset(context.Background(), 7, "new-hash"); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreCompletePasswordResetUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("update users set password_hash").
		WithArgs(int64(7), "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := store.CompletePasswordReset(context.Background(), 7, "new-hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreFindAPITokenBySecretLoadsPermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now()
	exp := now.Add(time.Hour)

	mock.ExpectQuery("select (.+) from api_tokens").
		WithArgs("secret", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "full_access", "token", "last_used_at", "expires_at", "hide", "created_at", "updated_at", "user_id"}).
			AddRow(int64(5), "ci", nil, false, "secret", nil, exp, false, now, now, int64(7)))
	mock.ExpectQuery("select (.+) from api_token_permissions").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "description", "created_at", "updated_at"}).
			AddRow(int64(1), "products.read", nil, now, now))

	token, err := store.FindAPITokenBySecret(context.Background(), "secret", now)
	if err != nil {
		t.Fatalf("FindAPITokenBySecret: %v", err)
	}
	if token.ID != 5 || token.UserID != 7 {
		t.Fatalf("unexpected token: %+v", token)
	}
	if len(token.Permissions) != 1 || token.Permissions[0].Action != "products.read" {
		t.Fatalf("permissions not loaded: %+v", token.Permissions)
	}
	if token.LastUsedAt != nil {
		t.Fatalf("expected nil last-used: %v", token.LastUsedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreUpsertPermission(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("insert into permissions").
		WithArgs("products.read").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpsertPermission(context.Background(), "products.read"); err != nil {
		t.Fatalf("UpsertPermission: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreUserPermissionsFlattensRoles(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select distinct p.action").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"action"}).
			AddRow("products.read").
			AddRow("products.create"))

	actions, err := store.UserPermissions(context.Background(), 7)
	if err != nil {
		t.Fatalf("UserPermissions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("unexpected actions: %v", actions)
	}
}

func TestPGStoreDeleteAPITokenReturnsRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now()

	mock.ExpectQuery("delete from api_tokens").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "full_access", "token", "last_used_at", "expires_at", "hide", "created_at", "updated_at", "user_id"}).
			AddRow(int64(5), "ci", nil, false, "secret", now, now.Add(time.Hour), false, now, now, int64(7)))

	token, err := store.DeleteAPIToken(context.Background(), 5)
	if err != nil {
		t.Fatalf("DeleteAPIToken: %v", err)
	}
	if token.ID != 5 || token.LastUsedAt == nil {
		t.Fatalf("unexpected token: %+v", token)
	}
}
