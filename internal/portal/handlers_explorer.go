package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hcmnotify/internal/upstream"
	mw "hcmnotify/pkg/middleware"
	"hcmnotify/pkg/secrets"
	"hcmnotify/pkg/tenants"
)

const historyLimit = 50

type explorerBody struct {
	TenantID string            `json:"tenantId"`
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Headers  map[string]string `json:"headers"`
	Body     string            `json:"body"`
	Accept   string            `json:"accept"`
}

func (a *App) explorerRequest(w http.ResponseWriter, r *http.Request) {
	var b explorerBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		http.Error(w, "bad json", 400)
		return
	}
	if b.TenantID == "" || strings.TrimSpace(b.Path) == "" {
		http.Error(w, "tenantId and path are required", 400)
		return
	}
	method := strings.ToUpper(strings.TrimSpace(b.Method))
	if method == "" {
		method = http.MethodGet
	}

	res, err := a.proxy.Forward(r.Context(), upstream.ProxyRequest{
		TenantID: b.TenantID,
		Method:   method,
		Path:     b.Path,
		Headers:  b.Headers,
		Body:     b.Body,
		Accept:   b.Accept,
		Actor:    mw.ActorFrom(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, tenants.ErrNotFound):
			http.Error(w, "tenant not found", http.StatusNotFound)
		case errors.Is(err, secrets.ErrIntegrity):
			// Key mismatch or corrupted row; operator attention needed.
			a.log.Errorw("credential decryption failed", "tenant", b.TenantID, "err", err)
			writeJSON(w, map[string]any{"success": false, "error": "credential decryption failed"}, 500)
		case errors.Is(err, upstream.ErrAuthFailed):
			writeJSON(w, map[string]any{"success": false, "error": err.Error()}, 500)
		default:
			writeJSON(w, map[string]any{"success": false, "error": err.Error()}, 500)
		}
		return
	}
	writeJSON(w, res, 200)
}

func (a *App) explorerHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	recs, err := a.store.ListHistory(r.Context(), tenantID, historyLimit)
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	out := make([]map[string]any, 0, len(recs))
	for _, h := range recs {
		out = append(out, map[string]any{
			"id":               h.ID,
			"method":           h.Method,
			"path":             h.Path,
			"status_code":      h.StatusCode,
			"response_ms":      h.ResponseMs,
			"response_preview": h.ResponsePreview,
			"created_at":       h.CreatedAt.Format(time.RFC3339),
			"created_by":       h.CreatedBy,
		})
	}
	writeJSON(w, out, 200)
}

func (a *App) explorerPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"categories": presetCatalog()}, 200)
}
