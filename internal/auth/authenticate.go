package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mercata.dev/internal/obs"
)

const bearerPrefix = "Bearer "

type credentialKind int

const (
	credentialSigned credentialKind = iota
	credentialOpaque
)

// credential is the raw bearer token tagged with its shape, resolved once
// so the verification strategy is picked in exactly one place.
type credential struct {
	kind credentialKind
	raw  string
}

func classifyCredential(raw string) credential {
	if LooksLikeSignedToken(raw) {
		return credential{kind: credentialSigned, raw: raw}
	}
	return credential{kind: credentialOpaque, raw: raw}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Anything else is an unauthenticated request.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		return "", fmt.Errorf("%w: invalid authorization scheme", ErrUnauthenticated)
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	return token, nil
}

// Authenticate resolves the raw Authorization header into an Identity.
// Signed tokens verify offline and load the user with the union of its
// role permissions; opaque tokens resolve through a live, non-expired
// APIToken row. Every failure of either path is ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, authorizationHeader string) (Identity, error) {
	raw, err := bearerToken(authorizationHeader)
	if err != nil {
		return Identity{}, err
	}

	cred := classifyCredential(raw)
	switch cred.kind {
	case credentialSigned:
		return s.authenticateSigned(ctx, cred.raw)
	default:
		return s.authenticateOpaque(ctx, cred.raw)
	}
}

func (s *Service) authenticateSigned(ctx context.Context, raw string) (Identity, error) {
	claims, err := s.codec.VerifyAccess(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	userID, err := claims.UserID()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: invalid token subject", ErrUnauthenticated)
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
		}
		return Identity{}, err
	}
	actions, err := s.store.UserPermissions(ctx, user.ID)
	if err != nil {
		return Identity{}, err
	}
	return NewIdentity(user.ID, actions), nil
}

func (s *Service) authenticateOpaque(ctx context.Context, raw string) (Identity, error) {
	token, err := s.store.FindAPITokenBySecret(ctx, raw, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown or expired api token", ErrUnauthenticated)
		}
		return Identity{}, err
	}

	// Best effort; a last-used bookkeeping failure must not reject the
	// request.
	if err := s.store.TouchAPIToken(ctx, token.ID, s.now().UTC()); err != nil {
		obs.LogEvent("warn", "api token last-used update failed", map[string]any{
			"token_id": token.ID,
			"error":    err.Error(),
		})
	}

	identity := Identity{UserID: token.UserID, FullAccess: token.FullAccess}
	if !token.FullAccess {
		identity.Permissions = make(map[string]struct{}, len(token.Permissions))
		for _, p := range token.Permissions {
			identity.Permissions[p.Action] = struct{}{}
		}
	}
	return identity, nil
}
