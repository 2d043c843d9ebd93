package portal

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "hcmnotify/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID())
	r.Use(mw.Recover(a.log))
	r.Use(mw.Actor())

	r.Handle("/metrics", promhttp.Handler())

	allowed := []string{"http://localhost:3000"}
	if v := strings.TrimSpace(os.Getenv("PORTAL_CORS_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		tmp := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				tmp = append(tmp, s)
			}
		}
		if len(tmp) > 0 {
			allowed = tmp
		}
	}

	r.Route("/api", func(ar chi.Router) {
		ar.Use(cors(allowed))

		ar.Get("/health", a.getHealth)

		ar.Get("/tenants", a.listTenants)
		ar.Post("/tenants", a.createTenant)
		ar.Get("/tenants/{id}", a.getTenant)
		ar.Put("/tenants/{id}", a.updateTenant)
		ar.Delete("/tenants/{id}", a.deleteTenant)
		ar.Post("/tenants/{id}/test-auth", a.testAuth)
		ar.Post("/tenants/{id}/discover", a.discoverOIDC)

		ar.Post("/explorer/request", a.explorerRequest)
		ar.Get("/explorer/history/{tenantId}", a.explorerHistory)
		ar.Get("/explorer/presets", a.explorerPresets)

		ar.Get("/activity", a.listActivity)
		ar.Get("/activity/stats", a.getStats)

		ar.Get("/events", a.listEvents)
		ar.Get("/events/stats", a.getEventStats)
		ar.Post("/events/{id}/acknowledge", a.acknowledgeEvent)

		// Upstream webhook receiver; no admin auth, upstream cannot send it.
		ar.Post("/webhook/hcm", a.receiveWebhook)

		ar.Get("/analysis/patterns", a.getPatterns)
	})

	return r
}

func cors(allowed []string) func(http.Handler) http.Handler {
	match := func(origin string) (string, bool) {
		if origin == "" {
			return "", false
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || a == origin {
				return a, true
			}
		}
		return "", false
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if ao, ok := match(origin); ok {
				w.Header().Set("Access-Control-Allow-Origin", ao)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Admin-User")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *App) getHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{"ok": true, "tenants": stats.TotalTenants}, 200)
}
