package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercata.dev/internal/audit"
	"mercata.dev/internal/auth"
)

const (
	permTokensCreate = "api-tokens.create"
	permTokensRead   = "api-tokens.read"
	permTokensRevoke = "api-tokens.revoke"
)

type issueTokenRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FullAccess  bool     `json:"full_access"`
	ExpiresAt   string   `json:"expires_at"`
	Permissions []string `json:"permissions"`
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "api-tokens" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	ownerID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || ownerID <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPost:
		a.handleIssueToken(w, r, ownerID)
	case http.MethodGet:
		a.handleListTokens(w, r, ownerID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request, ownerID int64) {
	actor, ok := a.guard(w, r, permTokensCreate)
	if !ok {
		return
	}
	var req issueTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "expires_at must be an RFC 3339 timestamp")
		return
	}
	token, err := a.svc.IssueToken(r.Context(), actor, ownerID, auth.APITokenSpec{
		Name:        req.Name,
		Description: req.Description,
		FullAccess:  req.FullAccess,
		ExpiresAt:   expiresAt,
		Permissions: req.Permissions,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "api_token.issued", map[string]any{
		"token_id":    token.ID,
		"owner_id":    token.UserID,
		"actor_id":    actor.UserID,
		"name":        token.Name,
		"full_access": token.FullAccess,
		"expires_at":  token.ExpiresAt.Format(time.RFC3339),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/api-tokens/%d", token.ID))
	writeJSON(w, http.StatusCreated, token)
}

func (a *API) handleListTokens(w http.ResponseWriter, r *http.Request, ownerID int64) {
	actor, ok := a.guard(w, r, permTokensRead)
	if !ok {
		return
	}
	page, err := parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page "+err.Error())
		return
	}
	size, err := parsePositiveInt(r.URL.Query().Get("size"), 20, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "size "+err.Error())
		return
	}
	result, err := a.svc.ListTokensOfUser(r.Context(), actor, ownerID, page, size)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleAPIToken(w http.ResponseWriter, r *http.Request) {
	rawID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/api-tokens/"), "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := a.guard(w, r, permTokensRead); !ok {
			return
		}
		token, err := a.svc.GetToken(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, token)
	case http.MethodDelete:
		if _, ok := a.guard(w, r, permTokensRevoke); !ok {
			return
		}
		token, err := a.svc.RevokeToken(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "api_token.revoked", map[string]any{
			"token_id": token.ID,
			"owner_id": token.UserID,
		})
		writeJSON(w, http.StatusOK, token)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}
