package portal

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hcmnotify/internal/upstream"
	mw "hcmnotify/pkg/middleware"
	"hcmnotify/pkg/tenants"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// appendActivity writes an audit row; failures are logged, never surfaced.
func (a *App) appendActivity(r *http.Request, tenantID, action, detail, status string, ms int64) {
	rec := tenants.ActivityRecord{
		TenantID:   tenantID,
		Action:     action,
		Detail:     detail,
		Status:     status,
		ResponseMs: int(ms),
		CreatedBy:  mw.ActorFrom(r.Context()),
	}
	if err := a.store.AppendActivity(r.Context(), rec); err != nil {
		a.log.Errorw("append activity", "action", action, "tenant", tenantID, "err", err)
	}
}

// callElapsedMs pulls the measured latency out of an upstream call error.
func callElapsedMs(err error) int64 {
	var ce *upstream.CallError
	if errors.As(err, &ce) {
		return ce.Elapsed.Milliseconds()
	}
	return 0
}

// tenantView never includes ciphertext fields.
func tenantView(t tenants.Tenant) map[string]any {
	var lastTest any
	if t.LastAuthTest != nil {
		lastTest = t.LastAuthTest.Format(time.RFC3339)
	}
	return map[string]any{
		"id":             t.ID,
		"name":           t.Name,
		"company_short":  t.CompanyShort,
		"company_id":     t.CompanyID,
		"base_url":       t.BaseURL,
		"username":       t.Username,
		"auth_endpoint":  t.AuthEndpoint,
		"token_endpoint": t.TokenEndpoint,
		"status":         t.Status,
		"last_auth_test": lastTest,
		"last_error":     t.LastError,
		"created_at":     t.CreatedAt.Format(time.RFC3339),
		"updated_at":     t.UpdatedAt.Format(time.RFC3339),
		"created_by":     t.CreatedBy,
	}
}
