package auth

import (
	"context"
	"errors"
	"fmt"

	"mercata.dev/internal/obs"
)

// RequestReset starts the password-reset flow for the given email. When
// the email is unknown it returns nil with no observable difference from
// the found case, to prevent account enumeration. A new request
// supersedes any outstanding token: the store replaces them atomically,
// leaving exactly one live token.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrBadRequest)
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	secret, err := GenerateSecret(s.secretBytes)
	if err != nil {
		return err
	}
	token, err := s.store.ReplaceResetToken(ctx, user.ID, secret, s.now().UTC().Add(s.resetTTL))
	if err != nil {
		return err
	}

	if s.deliver != nil {
		s.deliver(user.Email, token.Secret, token.Expiration)
	} else {
		obs.LogEvent("info", "password reset token issued", map[string]any{
			"user_id":    user.ID,
			"expiration": token.Expiration,
		})
	}
	return nil
}

// ResetPassword consumes a reset token and installs the new password.
// Every terminal path removes the token: an expired token is deleted
// before failing, and success deletes all of the user's tokens alongside
// the password update in one transaction.
func (s *Service) ResetPassword(ctx context.Context, tokenSecret, newPassword string) (UserView, error) {
	if tokenSecret == "" {
		return UserView{}, fmt.Errorf("%w: Invalid Token", ErrBadRequest)
	}
	if newPassword == "" {
		return UserView{}, fmt.Errorf("%w: password is required", ErrBadRequest)
	}
	token, err := s.store.FindResetTokenBySecret(ctx, tokenSecret)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UserView{}, fmt.Errorf("%w: Invalid Token", ErrBadRequest)
		}
		return UserView{}, err
	}
	if token.Expiration.Before(s.now()) {
		if err := s.store.DeleteResetToken(ctx, token.ID); err != nil {
			return UserView{}, err
		}
		return UserView{}, fmt.Errorf("%w: Token Expired", ErrBadRequest)
	}

	user, err := s.store.FindUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UserView{}, fmt.Errorf("%w: Invalid Token", ErrBadRequest)
		}
		return UserView{}, err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return UserView{}, err
	}
	if err := s.store.CompletePasswordReset(ctx, user.ID, hash); err != nil {
		return UserView{}, err
	}
	return user.View(), nil
}
