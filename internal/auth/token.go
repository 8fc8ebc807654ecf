package auth

import (
	"net/http"
	"strings"
)

// SessionCookie is the cookie Clerk stores the short-lived session JWT in.
const SessionCookie = "__session"

// ExtractSessionToken reads the Authorization bearer header, falling back to
// the Clerk session cookie for same-site browser calls.
func ExtractSessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok
		}
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}

	return ""
}
