package services

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// parseAdminToken splits a "user:pass" admin token.
func parseAdminToken(token string) (user, pass string) {
	idx := strings.Index(token, ":")
	if idx < 0 {
		return token, ""
	}
	return token[:idx], token[idx+1:]
}

// adminAuth returns middleware enforcing HTTP basic auth against the
// configured admin token. The password part of the token may be a bcrypt
// hash. An empty token leaves the wrapped routes unprotected.
func adminAuth(token string) func(http.Handler) http.Handler {
	wantUser, wantPass := parseAdminToken(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok || !credentialsMatch(user, pass, wantUser, wantPass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func credentialsMatch(user, pass, wantUser, wantPass string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) != 1 {
		return false
	}
	if strings.HasPrefix(wantPass, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(wantPass), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
}
