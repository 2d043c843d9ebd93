package portal

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"hcmnotify/internal/events"
	mw "hcmnotify/pkg/middleware"
	"hcmnotify/pkg/tenants"
)

const maxWebhookBody = 1 << 20

func eventView(ev tenants.WebhookEvent) map[string]any {
	var processed any
	if ev.ProcessedAt != nil {
		processed = ev.ProcessedAt.Format(time.RFC3339)
	}
	return map[string]any{
		"id":              ev.ID,
		"tenant_id":       ev.TenantID,
		"tenant_name":     ev.TenantName,
		"event_type":      ev.EventType,
		"event_id":        ev.EventID,
		"employee_id":     ev.EmployeeID,
		"employee_name":   ev.EmployeeName,
		"company_id":      ev.CompanyID,
		"payload":         ev.Payload,
		"severity":        ev.Severity,
		"status":          ev.Status,
		"acknowledged_by": ev.AcknowledgedBy,
		"processed_at":    processed,
		"created_at":      ev.CreatedAt.Format(time.RFC3339),
	}
}

func (a *App) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := tenants.EventFilter{
		Severity: q.Get("severity"),
		Status:   q.Get("status"),
		Limit:    100,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}
	evs, err := a.store.ListEvents(r.Context(), f)
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	out := make([]map[string]any, 0, len(evs))
	for _, ev := range evs {
		out = append(out, eventView(ev))
	}
	writeJSON(w, out, 200)
}

func (a *App) getEventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.store.GetEventStats(r.Context())
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	writeJSON(w, map[string]any{
		"total":          stats.Total,
		"critical":       stats.Critical,
		"unacknowledged": stats.Unacknowledged,
		"today":          stats.Today,
	}, 200)
}

func (a *App) acknowledgeEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad event id", 400)
		return
	}
	if err := a.store.AcknowledgeEvent(r.Context(), id, mw.ActorFrom(r.Context())); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", 500)
		return
	}
	writeJSON(w, map[string]any{"ok": true}, 200)
}

// receiveWebhook ingests a raw upstream event. Ingestion never rejects a
// payload; classification degrades to UNKNOWN/info for anything odd.
func (a *App) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read failed", 400)
		return
	}
	ev := events.Classify(raw)
	ev.TenantID = a.matchTenant(r, ev.CompanyID)
	if err := a.store.InsertEvent(r.Context(), ev); err != nil {
		http.Error(w, "db error", 500)
		return
	}
	a.log.Infow("webhook event",
		"type", ev.EventType, "severity", ev.Severity,
		"employee", ev.EmployeeID, "company", ev.CompanyID)
	writeJSON(w, map[string]any{"received": true, "severity": ev.Severity}, 200)
}

// matchTenant resolves the owning tenant by company id when possible.
func (a *App) matchTenant(r *http.Request, companyID string) string {
	if companyID == "" {
		return ""
	}
	list, err := a.store.ListTenants(r.Context())
	if err != nil {
		return ""
	}
	for _, t := range list {
		if t.CompanyID == companyID {
			return t.ID
		}
	}
	return ""
}
