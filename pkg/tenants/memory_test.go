package tenants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() Store {
	return NewMemoryStore(zap.NewNop().Sugar())
}

func seedTenant(t *testing.T, s Store, id, name string) {
	t.Helper()
	require.NoError(t, s.CreateTenant(context.Background(), Tenant{
		ID:           id,
		Name:         name,
		CompanyShort: "ACME",
		BaseURL:      "https://hcm.example.com",
		APIKeyEnc:    "enc-key",
		Username:     "api.user",
		PasswordEnc:  "enc-pass",
		CreatedBy:    "tester",
	}))
}

func TestCreateStartsPending(t *testing.T) {
	s := newTestStore()
	seedTenant(t, s, "t1", "Acme")

	got, err := s.GetTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.LastAuthTest)
	assert.Empty(t, got.CompanyID)
}

func TestGetTenantNotFound(t *testing.T) {
	s := newTestStore()
	_, err := s.GetTenant(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPartialUpdate(t *testing.T) {
	s := newTestStore()
	seedTenant(t, s, "t1", "Acme")

	name := "Acme Renamed"
	key := "new-enc-key"
	require.NoError(t, s.UpdateTenant(context.Background(), "t1", TenantUpdate{Name: &name, APIKeyEnc: &key}))

	got, err := s.GetTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", got.Name)
	assert.Equal(t, "new-enc-key", got.APIKeyEnc)
	// untouched fields keep their values
	assert.Equal(t, "ACME", got.CompanyShort)
	assert.Equal(t, "enc-pass", got.PasswordEnc)

	assert.ErrorIs(t, s.UpdateTenant(context.Background(), "missing", TenantUpdate{Name: &name}), ErrNotFound)
}

func TestAuthResultTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	seedTenant(t, s, "t1", "Acme")

	require.NoError(t, s.SetAuthResult(ctx, "t1", true, "12345", ""))
	got, _ := s.GetTenant(ctx, "t1")
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "12345", got.CompanyID)
	assert.NotNil(t, got.LastAuthTest)

	require.NoError(t, s.SetAuthResult(ctx, "t1", false, "", "HTTP 401: bad credentials"))
	got, _ = s.GetTenant(ctx, "t1")
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "HTTP 401: bad credentials", got.LastError)
	// company id discovered earlier survives a failed test
	assert.Equal(t, "12345", got.CompanyID)

	require.NoError(t, s.SetAuthResult(ctx, "t1", true, "", ""))
	got, _ = s.GetTenant(ctx, "t1")
	assert.Equal(t, StatusActive, got.Status)
	assert.Empty(t, got.LastError)
	assert.Equal(t, "12345", got.CompanyID)
}

func TestDeactivateExcludedFromStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	seedTenant(t, s, "t1", "Acme")
	seedTenant(t, s, "t2", "Globex")
	require.NoError(t, s.SetAuthResult(ctx, "t2", true, "99", ""))
	require.NoError(t, s.Deactivate(ctx, "t1"))

	got, _ := s.GetTenant(ctx, "t1")
	assert.Equal(t, StatusInactive, got.Status)

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTenants)
	assert.Equal(t, 1, stats.ActiveTenants)
	assert.Equal(t, 0, stats.PendingTenants)
}

func TestHistoryPerTenant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	seedTenant(t, s, "t1", "Acme")
	seedTenant(t, s, "t2", "Globex")

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendHistory(ctx, HistoryRecord{TenantID: "t1", Method: "GET", Path: "/v1/report/saved/1", StatusCode: 200}))
	}
	require.NoError(t, s.AppendHistory(ctx, HistoryRecord{TenantID: "t2", Method: "GET", Path: "/v2/companies/{cid}/employees", StatusCode: 403}))

	h1, err := s.ListHistory(ctx, "t1", 50)
	require.NoError(t, err)
	assert.Len(t, h1, 3)

	h2, err := s.ListHistory(ctx, "t2", 50)
	require.NoError(t, err)
	require.Len(t, h2, 1)
	assert.Equal(t, 403, h2[0].StatusCode)

	limited, err := s.ListHistory(ctx, "t1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestActivityJoinsTenantName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	seedTenant(t, s, "t1", "Acme")
	require.NoError(t, s.AppendActivity(ctx, ActivityRecord{TenantID: "t1", Action: "auth_test", Status: "success", CreatedBy: "alice"}))
	require.NoError(t, s.AppendActivity(ctx, ActivityRecord{Action: "system_start", Status: "success"}))

	acts, err := s.ListActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	// newest first
	assert.Equal(t, "system_start", acts[0].Action)
	assert.Empty(t, acts[0].TenantName)
	assert.Equal(t, "Acme", acts[1].TenantName)
}

func TestEventFiltersAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.InsertEvent(ctx, WebhookEvent{EventType: "ACCOUNT_UPDATED", Severity: "critical"}))
	require.NoError(t, s.InsertEvent(ctx, WebhookEvent{EventType: "ACCOUNT_CREATED", Severity: "warning"}))
	require.NoError(t, s.InsertEvent(ctx, WebhookEvent{EventType: "PUNCH_IN", Severity: "info"}))

	crit, err := s.ListEvents(ctx, EventFilter{Severity: "critical"})
	require.NoError(t, err)
	require.Len(t, crit, 1)

	stats, err := s.GetEventStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 3, stats.Unacknowledged)

	require.NoError(t, s.AcknowledgeEvent(ctx, crit[0].ID, "alice"))
	stats, _ = s.GetEventStats(ctx)
	assert.Equal(t, 2, stats.Unacknowledged)

	acked, err := s.ListEvents(ctx, EventFilter{Status: "acknowledged"})
	require.NoError(t, err)
	require.Len(t, acked, 1)
	assert.Equal(t, "alice", acked[0].AcknowledgedBy)
	assert.NotNil(t, acked[0].ProcessedAt)

	assert.ErrorIs(t, s.AcknowledgeEvent(ctx, 9999, "alice"), ErrNotFound)
}
