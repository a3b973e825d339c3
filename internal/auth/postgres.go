package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL through database/sql.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Open connects to PostgreSQL with pool defaults tuned for request-scoped
// auth lookups.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

// Users ----------------------------------------------------------------

const userColumns = `id, email, provider, password_hash, confirmation_token, confirmed, blocked, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var (
		u            User
		passwordHash sql.NullString
		confirmation sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Provider, &passwordHash, &confirmation, &u.Confirmed, &u.Blocked, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = passwordHash.String
	u.ConfirmationToken = confirmation.String
	return u, nil
}

func (s *PGStore) FindUserByID(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id)
	return scanUser(row)
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1
	`, email)
	return scanUser(row)
}

func (s *PGStore) CreateUser(ctx context.Context, u User, roleIDs []int64) (User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into users (email, provider, password_hash, confirmed, blocked)
		values ($1, $2, $3, $4, false)
		returning `+userColumns+`
	`, u.Email, u.Provider, nullIfEmpty(u.PasswordHash), u.Confirmed)
	created, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return User{}, ErrConflict
		}
		return User{}, err
	}

	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id)
			values ($1, $2)
			on conflict do nothing
		`, created.ID, roleID); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return User{}, ErrNotFound
			}
			return User{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return User{}, err
	}
	return created, nil
}

func (s *PGStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now()
		where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

// Roles ----------------------------------------------------------------

func scanRole(row interface{ Scan(...any) error }) (Role, error) {
	var (
		r    Role
		desc sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &desc, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	if err != nil {
		return Role{}, err
	}
	r.Description = desc.String
	return r, nil
}

func (s *PGStore) FindRoleByName(ctx context.Context, name string) (Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, description, created_at, updated_at
		from roles
		where name = $1
	`, name)
	return scanRole(row)
}

func (s *PGStore) EnsureRole(ctx context.Context, name, description string) (Role, error) {
	// Upsert keyed by the unique name; description only set on first insert.
	row := s.db.QueryRowContext(ctx, `
		insert into roles (name, description)
		values ($1, $2)
		on conflict (name) do update set name = excluded.name
		returning id, name, description, created_at, updated_at
	`, name, nullIfEmpty(description))
	return scanRole(row)
}

func (s *PGStore) UserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.created_at, r.updated_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1
		order by r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *PGStore) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id)
		values ($1, $2)
		on conflict do nothing
	`, userID, roleID); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Permissions ----------------------------------------------------------

func (s *PGStore) UpsertPermission(ctx context.Context, action string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into permissions (action)
		values ($1)
		on conflict (action) do nothing
	`, action)
	return err
}

func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, action, description, created_at, updated_at
		from permissions
		order by action
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var (
			p    Permission
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Action, &desc, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *PGStore) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.action
		from user_roles ur
		join role_permissions rp on rp.role_id = ur.role_id
		join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

func (s *PGStore) GrantAllPermissionsToRole(ctx context.Context, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		select $1, p.id from permissions p
		on conflict do nothing
	`, roleID)
	return err
}

// API tokens -----------------------------------------------------------

const apiTokenColumns = `id, name, description, full_access, token, last_used_at, expires_at, hide, created_at, updated_at, user_id`

func scanAPIToken(row interface{ Scan(...any) error }) (APIToken, error) {
	var (
		t        APIToken
		desc     sql.NullString
		lastUsed sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &desc, &t.FullAccess, &t.Secret, &lastUsed, &t.ExpiresAt, &t.Hide, &t.CreatedAt, &t.UpdatedAt, &t.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return APIToken{}, ErrNotFound
	}
	if err != nil {
		return APIToken{}, err
	}
	t.Description = desc.String
	if lastUsed.Valid {
		when := lastUsed.Time
		t.LastUsedAt = &when
	}
	return t, nil
}

func (s *PGStore) FindAPITokenBySecret(ctx context.Context, secret string, now time.Time) (APIToken, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+apiTokenColumns+`
		from api_tokens
		where token = $1 and expires_at > $2
	`, secret, now)
	token, err := scanAPIToken(row)
	if err != nil {
		return APIToken{}, err
	}
	perms, err := s.tokenPermissions(ctx, token.ID)
	if err != nil {
		return APIToken{}, err
	}
	token.Permissions = perms
	return token, nil
}

func (s *PGStore) CreateAPIToken(ctx context.Context, t APIToken, permissionActions []string) (APIToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return APIToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into api_tokens (name, description, full_access, token, expires_at, hide, user_id)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+apiTokenColumns+`
	`, t.Name, nullIfEmpty(t.Description), t.FullAccess, t.Secret, t.ExpiresAt, t.Hide, t.UserID)
	created, err := scanAPIToken(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return APIToken{}, ErrConflict
			case pgErrForeignKeyViolation:
				return APIToken{}, ErrNotFound
			}
		}
		return APIToken{}, err
	}

	for _, action := range permissionActions {
		var permID int64
		err := tx.QueryRowContext(ctx, `select id from permissions where action = $1`, action).Scan(&permID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return APIToken{}, ErrNotFound
			}
			return APIToken{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into api_token_permissions (api_token_id, permission_id)
			values ($1, $2)
		`, created.ID, permID); err != nil {
			return APIToken{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return APIToken{}, err
	}
	return created, nil
}

func (s *PGStore) FindAPITokenByID(ctx context.Context, id int64) (APIToken, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+apiTokenColumns+`
		from api_tokens
		where id = $1
	`, id)
	token, err := scanAPIToken(row)
	if err != nil {
		return APIToken{}, err
	}
	perms, err := s.tokenPermissions(ctx, token.ID)
	if err != nil {
		return APIToken{}, err
	}
	token.Permissions = perms
	return token, nil
}

func (s *PGStore) ListAPITokensByUser(ctx context.Context, userID int64, limit, offset int) ([]APIToken, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+apiTokenColumns+`
		from api_tokens
		where user_id = $1
		order by id
		limit $2 offset $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tokens []APIToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			return nil, 0, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `
		select count(*) from api_tokens where user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return tokens, total, nil
}

func (s *PGStore) DeleteAPIToken(ctx context.Context, id int64) (APIToken, error) {
	row := s.db.QueryRowContext(ctx, `
		delete from api_tokens
		where id = $1
		returning `+apiTokenColumns+`
	`, id)
	return scanAPIToken(row)
}

func (s *PGStore) TouchAPIToken(ctx context.Context, id int64, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update api_tokens set last_used_at = $2
		where id = $1
	`, id, usedAt)
	return err
}

func (s *PGStore) tokenPermissions(ctx context.Context, tokenID int64) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.action, p.description, p.created_at, p.updated_at
		from api_token_permissions tp
		join permissions p on p.id = tp.permission_id
		where tp.api_token_id = $1
		order by p.action
	`, tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var (
			p    Permission
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Action, &desc, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// Password reset tokens ------------------------------------------------

func scanResetToken(row interface{ Scan(...any) error }) (PasswordResetToken, error) {
	var t PasswordResetToken
	err := row.Scan(&t.ID, &t.Secret, &t.Expiration, &t.CreatedAt, &t.UpdatedAt, &t.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return PasswordResetToken{}, ErrNotFound
	}
	if err != nil {
		return PasswordResetToken{}, err
	}
	return t, nil
}

func (s *PGStore) ReplaceResetToken(ctx context.Context, userID int64, secret string, expiration time.Time) (PasswordResetToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PasswordResetToken{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from password_reset_tokens where user_id = $1
	`, userID); err != nil {
		return PasswordResetToken{}, err
	}

	row := tx.QueryRowContext(ctx, `
		insert into password_reset_tokens (token, expiration, user_id)
		values ($1, $2, $3)
		returning id, token, expiration, created_at, updated_at, user_id
	`, secret, expiration, userID)
	token, err := scanResetToken(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return PasswordResetToken{}, ErrNotFound
		}
		return PasswordResetToken{}, err
	}

	if err := tx.Commit(); err != nil {
		return PasswordResetToken{}, err
	}
	return token, nil
}

func (s *PGStore) FindResetTokenBySecret(ctx context.Context, secret string) (PasswordResetToken, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, token, expiration, created_at, updated_at, user_id
		from password_reset_tokens
		where token = $1
	`, secret)
	return scanResetToken(row)
}

func (s *PGStore) DeleteResetToken(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		delete from password_reset_tokens where id = $1
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CompletePasswordReset(ctx context.Context, userID int64, passwordHash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update users set password_hash = $2, updated_at = now()
		where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		delete from password_reset_tokens where user_id = $1
	`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// helpers --------------------------------------------------------------

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
