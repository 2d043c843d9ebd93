// pkg/tenants/memory.go
package tenants

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// memStore is the dev/test fallback when DATABASE_URL is unset. Single
// mutex over everything; fine at this scale.
type memStore struct {
	log *zap.SugaredLogger

	mu       sync.Mutex
	byID     map[string]Tenant
	history  []HistoryRecord
	activity []ActivityRecord
	events   []WebhookEvent
	nextID   int64
}

func NewMemoryStore(log *zap.SugaredLogger) Store {
	return &memStore{log: log, byID: map[string]Tenant{}, nextID: 1}
}

func (m *memStore) CreateTenant(_ context.Context, t Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	t.Status = StatusPending
	t.CreatedAt = now
	t.UpdatedAt = now
	m.byID[t.ID] = t
	return nil
}

func (m *memStore) GetTenant(_ context.Context, id string) (Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (m *memStore) ListTenants(_ context.Context) ([]Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Tenant, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UpdateTenant(_ context.Context, id string, upd TenantUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.CompanyShort != nil {
		t.CompanyShort = *upd.CompanyShort
	}
	if upd.BaseURL != nil {
		t.BaseURL = *upd.BaseURL
	}
	if upd.Username != nil {
		t.Username = *upd.Username
	}
	if upd.APIKeyEnc != nil {
		t.APIKeyEnc = *upd.APIKeyEnc
	}
	if upd.PasswordEnc != nil {
		t.PasswordEnc = *upd.PasswordEnc
	}
	t.UpdatedAt = time.Now().UTC()
	m.byID[id] = t
	return nil
}

func (m *memStore) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = StatusInactive
	t.UpdatedAt = time.Now().UTC()
	m.byID[id] = t
	return nil
}

func (m *memStore) SetAuthResult(_ context.Context, id string, success bool, companyID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	if success {
		t.Status = StatusActive
		if companyID != "" {
			t.CompanyID = companyID
		}
		t.LastAuthTest = &now
		t.LastError = ""
	} else {
		t.Status = StatusError
		t.LastError = errMsg
	}
	t.UpdatedAt = now
	m.byID[id] = t
	return nil
}

func (m *memStore) SetEndpoints(_ context.Context, id, authEndpoint, tokenEndpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.AuthEndpoint = authEndpoint
	t.TokenEndpoint = tokenEndpoint
	t.UpdatedAt = time.Now().UTC()
	m.byID[id] = t
	return nil
}

func (m *memStore) AppendHistory(_ context.Context, rec HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.history = append(m.history, rec)
	return nil
}

func (m *memStore) ListHistory(_ context.Context, tenantID string, limit int) ([]HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryRecord
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].TenantID == tenantID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memStore) AppendActivity(_ context.Context, rec ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.activity = append(m.activity, rec)
	return nil
}

func (m *memStore) ListActivity(_ context.Context, limit int) ([]ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ActivityRecord
	for i := len(m.activity) - 1; i >= 0 && len(out) < limit; i-- {
		a := m.activity[i]
		if t, ok := m.byID[a.TenantID]; ok {
			a.TenantName = t.Name
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) GetStats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s Stats
	for _, t := range m.byID {
		switch t.Status {
		case StatusActive:
			s.ActiveTenants++
		case StatusError:
			s.ErrorTenants++
		case StatusPending:
			s.PendingTenants++
		}
		if t.Status != StatusInactive {
			s.TotalTenants++
		}
	}
	s.TotalAPICalls = len(m.history)
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	for _, h := range m.history {
		if !h.CreatedAt.Before(midnight) {
			s.TodayAPICalls++
		}
	}
	return s, nil
}

func (m *memStore) InsertEvent(_ context.Context, ev WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.nextID
	m.nextID++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Status == "" {
		ev.Status = "new"
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) ListEvents(_ context.Context, f EventFilter) ([]WebhookEvent, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WebhookEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if f.Severity != "" && ev.Severity != f.Severity {
			continue
		}
		if f.Status != "" && ev.Status != f.Status {
			continue
		}
		if t, ok := m.byID[ev.TenantID]; ok {
			ev.TenantName = t.Name
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *memStore) ListRecentEvents(_ context.Context, limit int) ([]WebhookEvent, error) {
	return m.ListEvents(context.Background(), EventFilter{Limit: limit})
}

func (m *memStore) GetEventStats(_ context.Context) (EventStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s EventStats
	s.Total = len(m.events)
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	for _, ev := range m.events {
		if ev.Severity == "critical" {
			s.Critical++
		}
		if ev.Status == "new" {
			s.Unacknowledged++
		}
		if !ev.CreatedAt.Before(midnight) {
			s.Today++
		}
	}
	return s, nil
}

func (m *memStore) AcknowledgeEvent(_ context.Context, id int64, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			now := time.Now().UTC()
			m.events[i].Status = "acknowledged"
			m.events[i].AcknowledgedBy = strings.TrimSpace(actor)
			m.events[i].ProcessedAt = &now
			return nil
		}
	}
	return ErrNotFound
}
