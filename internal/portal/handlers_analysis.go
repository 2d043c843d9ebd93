package portal

import (
	"net/http"

	"hcmnotify/internal/events"
)

const patternScanWindow = 100

func (a *App) getPatterns(w http.ResponseWriter, r *http.Request) {
	recent, err := a.store.ListRecentEvents(r.Context(), patternScanWindow)
	if err != nil {
		http.Error(w, "db error", 500)
		return
	}
	patterns := events.Detect(recent)
	writeJSON(w, map[string]any{
		"patterns":       patterns,
		"events_scanned": len(recent),
	}, 200)
}
