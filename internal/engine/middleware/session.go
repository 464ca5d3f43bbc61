package middleware

import (
	"context"
	"net/http"

	"rentora/internal/engine/entity"
)

type sessionKeyType struct{}

var sessionKey sessionKeyType

// Session stamps the caller identity onto the request context. Requests
// without a session key are rejected; the engine has no anonymous surface
// besides health and metrics.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := entity.NewSession(
			r.Header.Get("X-Session-Key"),
			r.Header.Get("X-User-Id"),
			r.Header.Get("X-User-Role"),
		)
		if sess.Key == "" {
			http.Error(w, `{"error":"X-Session-Key header is required"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

// SessionFrom returns the caller identity stamped by Session.
func SessionFrom(ctx context.Context) entity.Session {
	sess, _ := ctx.Value(sessionKey).(entity.Session)
	return sess
}
