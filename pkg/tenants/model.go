package tenants

import "time"

// Connection status values. Transitions are driven only by auth-test
// outcomes (success -> active, failure -> error) or explicit deactivation.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusError    = "error"
	StatusInactive = "inactive"
)

// Tenant is a configured upstream HCM account. APIKeyEnc and PasswordEnc
// hold Codec blobs and must never be exposed through read APIs.
type Tenant struct {
	ID            string // uuid
	Name          string
	CompanyShort  string // short company code sent on login
	CompanyID     string // upstream company id, empty until discovered
	BaseURL       string
	APIKeyEnc     string
	Username      string
	PasswordEnc   string
	AuthEndpoint  string // from OIDC discovery
	TokenEndpoint string
	Status        string
	LastAuthTest  *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CreatedBy     string
}

// TenantUpdate carries a partial edit; nil fields are left unchanged.
// APIKeyEnc/PasswordEnc arrive already encrypted.
type TenantUpdate struct {
	Name         *string
	CompanyShort *string
	BaseURL      *string
	Username     *string
	APIKeyEnc    *string
	PasswordEnc  *string
}

// HistoryRecord is one proxied upstream call.
type HistoryRecord struct {
	ID              int64
	TenantID        string
	Method          string
	Path            string
	StatusCode      int
	ResponseMs      int
	ResponsePreview string
	CreatedAt       time.Time
	CreatedBy       string
}

// ActivityRecord is one significant operator or system action.
// TenantID is empty for system-wide actions.
type ActivityRecord struct {
	ID         int64
	TenantID   string
	TenantName string // joined for display, not stored
	Action     string // tenant_created | auth_test | oidc_discovery | api_call
	Detail     string // free-form JSON payload
	Status     string // success | error
	ResponseMs int
	CreatedAt  time.Time
	CreatedBy  string
}

// WebhookEvent is an upstream platform event received on the webhook
// endpoint. Severity is classified at ingest from the event type.
type WebhookEvent struct {
	ID             int64
	TenantID       string
	TenantName     string
	EventType      string
	EventID        string
	EmployeeID     string
	EmployeeName   string
	CompanyID      string
	Payload        string
	Severity       string // info | warning | critical
	Status         string // new | acknowledged
	AcknowledgedBy string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
}

// EventFilter narrows ListEvents; zero values match everything.
type EventFilter struct {
	Severity string
	Status   string
	Limit    int
}

// Stats is the dashboard summary.
type Stats struct {
	TotalTenants   int
	ActiveTenants  int
	ErrorTenants   int
	PendingTenants int
	TotalAPICalls  int
	TodayAPICalls  int
}

// EventStats summarizes the webhook event table.
type EventStats struct {
	Total          int
	Critical       int
	Unacknowledged int
	Today          int
}
