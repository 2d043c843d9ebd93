package tenants

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation references a tenant id (or
// event id) that does not exist.
var ErrNotFound = errors.New("tenant not found")

// Store owns tenant rows and the append-only history/activity/event logs.
// Tenants are never hard-deleted; Deactivate is a status change only.
// Implementations must keep per-row updates atomic so a simultaneous
// auth-test and edit cannot interleave partial writes.
type Store interface {
	CreateTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id string) (Tenant, error)
	// ListTenants returns all tenants ordered by name, including inactive
	// ones (callers filter for active-tenant views).
	ListTenants(ctx context.Context) ([]Tenant, error)
	UpdateTenant(ctx context.Context, id string, upd TenantUpdate) error
	Deactivate(ctx context.Context, id string) error

	// SetAuthResult records an auth-test outcome: success moves the tenant
	// to active, stamps last_auth_test, stores the discovered company id
	// and clears last_error; failure moves it to error with the message.
	SetAuthResult(ctx context.Context, id string, success bool, companyID, errMsg string) error
	// SetEndpoints persists OIDC discovery output.
	SetEndpoints(ctx context.Context, id, authEndpoint, tokenEndpoint string) error

	AppendHistory(ctx context.Context, rec HistoryRecord) error
	ListHistory(ctx context.Context, tenantID string, limit int) ([]HistoryRecord, error)
	AppendActivity(ctx context.Context, rec ActivityRecord) error
	ListActivity(ctx context.Context, limit int) ([]ActivityRecord, error)
	GetStats(ctx context.Context) (Stats, error)

	InsertEvent(ctx context.Context, ev WebhookEvent) error
	ListEvents(ctx context.Context, f EventFilter) ([]WebhookEvent, error)
	GetEventStats(ctx context.Context) (EventStats, error)
	AcknowledgeEvent(ctx context.Context, id int64, actor string) error
	// ListRecentEvents returns the newest events regardless of filter,
	// used by the pattern scan.
	ListRecentEvents(ctx context.Context, limit int) ([]WebhookEvent, error)
}
