package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const obscureMask = '*'

// APITokenSpec describes a token to issue.
type APITokenSpec struct {
	Name        string
	Description string
	FullAccess  bool
	ExpiresAt   time.Time
	// Permissions lists actions to link; ignored when FullAccess is set.
	Permissions []string
}

// IssueToken issues an opaque API token owned by ownerID. The acting
// identity, not the owner, must hold the super-admin role. The returned
// record carries the raw secret; this is the only time it is ever exposed.
func (s *Service) IssueToken(ctx context.Context, actor Identity, ownerID int64, spec APITokenSpec) (APIToken, error) {
	if err := s.requireActingSuperAdmin(ctx, actor); err != nil {
		return APIToken{}, err
	}
	if strings.TrimSpace(spec.Name) == "" {
		return APIToken{}, fmt.Errorf("%w: token name is required", ErrBadRequest)
	}
	if !spec.ExpiresAt.After(s.now()) {
		return APIToken{}, fmt.Errorf("%w: expiry must be in the future", ErrBadRequest)
	}

	secret, err := GenerateSecret(s.secretBytes)
	if err != nil {
		return APIToken{}, err
	}
	perms := spec.Permissions
	if spec.FullAccess {
		perms = nil
	}
	token, err := s.store.CreateAPIToken(ctx, APIToken{
		Name:        strings.TrimSpace(spec.Name),
		Description: strings.TrimSpace(spec.Description),
		FullAccess:  spec.FullAccess,
		Secret:      secret,
		ExpiresAt:   spec.ExpiresAt.UTC(),
		UserID:      ownerID,
	}, perms)
	if err != nil {
		return APIToken{}, err
	}
	return token, nil
}

// TokenPage is a page of obscured tokens plus the overall count.
type TokenPage struct {
	Tokens []APIToken `json:"data"`
	Total  int64      `json:"total"`
	Page   int        `json:"page"`
	Size   int        `json:"size"`
}

// ListTokensOfUser returns the owner's tokens with secrets obscured. The
// acting identity must hold the super-admin role, mirroring issuance.
func (s *Service) ListTokensOfUser(ctx context.Context, actor Identity, ownerID int64, page, size int) (TokenPage, error) {
	if err := s.requireActingSuperAdmin(ctx, actor); err != nil {
		return TokenPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	tokens, total, err := s.store.ListAPITokensByUser(ctx, ownerID, size, (page-1)*size)
	if err != nil {
		return TokenPage{}, err
	}
	for i := range tokens {
		tokens[i].Secret = ObscureSecret(tokens[i].Secret)
	}
	return TokenPage{Tokens: tokens, Total: total, Page: page, Size: size}, nil
}

// GetToken returns one token with its secret obscured.
func (s *Service) GetToken(ctx context.Context, id int64) (APIToken, error) {
	token, err := s.store.FindAPITokenByID(ctx, id)
	if err != nil {
		return APIToken{}, err
	}
	token.Secret = ObscureSecret(token.Secret)
	return token, nil
}

// RevokeToken hard-deletes the token and returns the obscured record for
// the audit trail.
func (s *Service) RevokeToken(ctx context.Context, id int64) (APIToken, error) {
	token, err := s.store.DeleteAPIToken(ctx, id)
	if err != nil {
		return APIToken{}, err
	}
	token.Secret = ObscureSecret(token.Secret)
	return token, nil
}

// requireActingSuperAdmin gates token lifecycle operations on the caller.
// The owner named in the request is irrelevant here; checking anyone but
// the actor would let a plain user mint tokens on an admin's behalf.
func (s *Service) requireActingSuperAdmin(ctx context.Context, actor Identity) error {
	if actor.UserID == 0 {
		return ErrUnauthenticated
	}
	admin, err := s.IsSuperAdmin(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !admin {
		return fmt.Errorf("%w: %s role required", ErrForbidden, RoleSuperAdmin)
	}
	return nil
}

// ObscureSecret keeps the first 3 and last 4 characters of a secret and
// masks the rest. Secrets too short to keep anything are fully masked.
func ObscureSecret(secret string) string {
	if len(secret) < 8 {
		return strings.Repeat(string(obscureMask), len(secret))
	}
	return secret[:3] + strings.Repeat(string(obscureMask), len(secret)-7) + secret[len(secret)-4:]
}
