package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware enforces the single shared bearer secret. A mismatch is
// reported as a bare 404 with no body, not 401: the server denies the
// API's existence rather than acknowledging it exists and rejecting the
// credential. That's also why it carries no error body, unlike the
// invalid-API-version 404. An empty configured password disables the
// check entirely.
func AuthMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if password == "" {
				next.ServeHTTP(w, req)
				return
			}

			header := req.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			supplied := header[len(prefix):]
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(password)) != 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
