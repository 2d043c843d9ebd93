// pkg/middleware/actor.go
package middleware

import (
	"context"
	"net/http"
	"strings"
)

const CtxKeyActor ctxKey = "actor"

const defaultActor = "system"

// Actor resolves the acting admin user from the X-Admin-User header.
// The portal sits behind a trusted reverse proxy that authenticates
// admins; the header carries the identity forward for audit trails.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get("X-Admin-User"))
			if actor == "" {
				actor = defaultActor
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), CtxKeyActor, actor)))
		})
	}
}

// ActorFrom returns the acting admin recorded by Actor, or "system".
func ActorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyActor).(string); ok && v != "" {
		return v
	}
	return defaultActor
}
