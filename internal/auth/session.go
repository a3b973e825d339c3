package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TokenDetails describes one issued session token.
type TokenDetails struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponse is returned by login, register, and refresh.
type AuthResponse struct {
	User         UserView     `json:"user"`
	AccessToken  TokenDetails `json:"access_token"`
	RefreshToken TokenDetails `json:"refresh_token"`
}

// Login verifies email/password credentials and issues a token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AuthResponse{}, fmt.Errorf("%w: Bad Credentials", ErrBadRequest)
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResponse{}, fmt.Errorf("%w: Bad Credentials", ErrBadRequest)
		}
		return AuthResponse{}, err
	}
	if user.PasswordHash == "" || VerifyPassword(user.PasswordHash, password) != nil {
		return AuthResponse{}, fmt.Errorf("%w: Bad Credentials", ErrBadRequest)
	}
	return s.issueSession(user)
}

// Register creates a local-provider user holding the "authenticated" role
// and logs it in. Duplicate email is a BadRequest, matching the login
// path's taxonomy.
func (s *Service) Register(ctx context.Context, email, password string) (AuthResponse, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return AuthResponse{}, fmt.Errorf("%w: valid email is required", ErrBadRequest)
	}
	if strings.TrimSpace(password) == "" {
		return AuthResponse{}, fmt.Errorf("%w: password is required", ErrBadRequest)
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return AuthResponse{}, fmt.Errorf("%w: Email already in use", ErrBadRequest)
	} else if !errors.Is(err, ErrNotFound) {
		return AuthResponse{}, err
	}

	defaultRole, err := s.store.FindRoleByName(ctx, RoleAuthenticated)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("default %q role lookup: %w", RoleAuthenticated, err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return AuthResponse{}, err
	}
	user, err := s.store.CreateUser(ctx, User{
		Email:        email,
		Provider:     ProviderLocal,
		PasswordHash: hash,
	}, []int64{defaultRole.ID})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return AuthResponse{}, fmt.Errorf("%w: Email already in use", ErrBadRequest)
		}
		return AuthResponse{}, err
	}
	return s.issueSession(user)
}

// Refresh exchanges a valid refresh token for a fresh access token. The
// refresh token itself is returned unchanged; it stays valid until expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResponse, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("%w: invalid refresh token", ErrUnauthenticated)
	}
	userID, err := claims.UserID()
	if err != nil {
		return AuthResponse{}, fmt.Errorf("%w: invalid refresh token", ErrUnauthenticated)
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResponse{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
		}
		return AuthResponse{}, err
	}

	access, accessExp, err := s.codec.SignAccess(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	now := s.now().UTC()
	return AuthResponse{
		User:        user.View(),
		AccessToken: TokenDetails{Token: access, IssuedAt: now, ExpiresAt: accessExp},
		RefreshToken: TokenDetails{
			Token:     refreshToken,
			IssuedAt:  claims.IssuedAt.Time,
			ExpiresAt: claims.ExpiresAt.Time,
		},
	}, nil
}

// Me returns the sanitized record of the authenticated user.
func (s *Service) Me(ctx context.Context, userID int64) (UserView, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return user.View(), nil
}

func (s *Service) issueSession(user User) (AuthResponse, error) {
	access, accessExp, err := s.codec.SignAccess(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	refresh, refreshExp, err := s.codec.SignRefresh(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	now := s.now().UTC()
	return AuthResponse{
		User:         user.View(),
		AccessToken:  TokenDetails{Token: access, IssuedAt: now, ExpiresAt: accessExp},
		RefreshToken: TokenDetails{Token: refresh, IssuedAt: now, ExpiresAt: refreshExp},
	}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
