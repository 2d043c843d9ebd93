package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const statsCacheKey = "portal:stats"

type statsView struct {
	TotalTenants   int `json:"total_tenants"`
	ActiveTenants  int `json:"active_tenants"`
	ErrorTenants   int `json:"error_tenants"`
	PendingTenants int `json:"pending_tenants"`
	TotalAPICalls  int `json:"total_api_calls"`
	TodayAPICalls  int `json:"today_api_calls"`
}

func (a *App) listActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	recs, err := a.store.ListActivity(r.Context(), limit)
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, map[string]any{
			"id":          rec.ID,
			"tenant_id":   rec.TenantID,
			"tenant_name": rec.TenantName,
			"action":      rec.Action,
			"detail":      rec.Detail,
			"status":      rec.Status,
			"response_ms": rec.ResponseMs,
			"created_at":  rec.CreatedAt.Format(time.RFC3339),
			"created_by":  rec.CreatedBy,
		})
	}
	writeJSON(w, out, 200)
}

func (a *App) getStats(w http.ResponseWriter, r *http.Request) {
	if a.rdb != nil {
		if raw, err := a.rdb.Get(r.Context(), statsCacheKey).Bytes(); err == nil {
			var cached statsView
			if json.Unmarshal(raw, &cached) == nil {
				writeJSON(w, cached, 200)
				return
			}
		}
	}
	stats, err := a.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	view := statsView{
		TotalTenants:   stats.TotalTenants,
		ActiveTenants:  stats.ActiveTenants,
		ErrorTenants:   stats.ErrorTenants,
		PendingTenants: stats.PendingTenants,
		TotalAPICalls:  stats.TotalAPICalls,
		TodayAPICalls:  stats.TodayAPICalls,
	}
	if a.rdb != nil {
		a.cacheStats(r.Context(), view)
	}
	writeJSON(w, view, 200)
}

func (a *App) cacheStats(ctx context.Context, view statsView) {
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := a.rdb.Set(ctx, statsCacheKey, raw, a.cfg.StatsCacheTTL).Err(); err != nil {
		a.log.Warnw("stats cache write", "err", err)
	}
}
