package auth

import "time"

// Role names with hard-wired meaning. "authenticated" is attached to every
// new user; "super-admin" bypasses ownership checks.
const (
	RoleAuthenticated = "authenticated"
	RoleSuperAdmin    = "super-admin"
)

// ProviderLocal marks users registered with an email/password pair.
const ProviderLocal = "local"

// User is an identity record. PasswordHash and ConfirmationToken never leave
// the process; use View for anything serialized outward.
type User struct {
	ID                int64
	Email             string
	Provider          string
	PasswordHash      string
	ConfirmationToken string
	Confirmed         bool
	Blocked           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserView is the sanitized representation of a User.
type UserView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	Confirmed bool      `json:"confirmed"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View strips credential material from the user record.
func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Provider:  u.Provider,
		Confirmed: u.Confirmed,
		Blocked:   u.Blocked,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Role groups permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission names a guarded action, e.g. "products.create".
type Permission struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// APIToken is a long-lived opaque credential owned by a user. Secret holds
// the raw value only between generation and the issuance response; every
// later read goes through Obscured.
type APIToken struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	FullAccess  bool         `json:"full_access"`
	Secret      string       `json:"token"`
	LastUsedAt  *time.Time   `json:"last_used_at,omitempty"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Hide        bool         `json:"hide"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	UserID      int64        `json:"user_id"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// PasswordResetToken is a single-use, short-lived credential. At most one
// live token exists per user at any time.
type PasswordResetToken struct {
	ID         int64
	Secret     string
	Expiration time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	UserID     int64
}

// Identity is the outcome of successful authentication: the resolved user
// and the set of permission actions granted to it. FullAccess identities
// (full-access API tokens) hold every action implicitly.
type Identity struct {
	UserID      int64
	FullAccess  bool
	Permissions map[string]struct{}
}

// NewIdentity builds an identity from a flat list of permission actions.
func NewIdentity(userID int64, actions []string) Identity {
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return Identity{UserID: userID, Permissions: set}
}

// HasPermission reports whether the identity may execute the action.
func (id Identity) HasPermission(action string) bool {
	if id.FullAccess {
		return true
	}
	_, ok := id.Permissions[action]
	return ok
}
