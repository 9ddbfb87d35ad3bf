package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"lyricsync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// AdminTokenMiddleware guards admin endpoints with the Authorization header.
// Both the raw token and "Bearer <token>" are accepted. With no token
// configured every request is refused.
func AdminTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				log.Warnf("%s Admin token not configured, refusing %s", logcolors.LogAdmin, r.URL.Path)
				writeUnauthorized(w, "Admin endpoints are disabled")
				return
			}

			provided := strings.TrimSpace(r.Header.Get("Authorization"))
			provided = strings.TrimPrefix(provided, "Bearer ")
			if provided == "" {
				log.Warnf("%s Missing admin token from %s for %s", logcolors.LogAdmin, r.RemoteAddr, r.URL.Path)
				writeUnauthorized(w, "Provide the admin token via the Authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				log.Warnf("%s Invalid admin token from %s for %s", logcolors.LogAdmin, r.RemoteAddr, r.URL.Path)
				writeUnauthorized(w, "The provided admin token is not valid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
