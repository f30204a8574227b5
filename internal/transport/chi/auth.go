package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerAuthMiddleware checks the shared bearer secret. A missing or
// malformed Authorization header is 401, a wrong token is 403.
func BearerAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="storaged"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			if len(auth) < len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="storaged"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := strings.TrimSpace(auth[len(bearerPrefix):])
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				writeError(w, http.StatusForbidden, codeForbidden, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
