package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/metrics":                   "/metrics",
		"/v1/users/7/api-tokens":     "/v1/users/:id/api-tokens",
		"/v1/api-tokens/5":           "/v1/api-tokens/:id",
		"/v1/api-tokens/5?page=2":    "/v1/api-tokens/:id",
		"/v1/auth/login":             "/v1/auth/login",
		"/v1/password-reset/request": "/v1/password-reset/request",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
