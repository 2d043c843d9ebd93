// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates required tables if they do not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id             text PRIMARY KEY,
  name           text NOT NULL,
  company_short  text NOT NULL,
  company_id     text NOT NULL DEFAULT '',
  base_url       text NOT NULL,
  api_key_enc    text NOT NULL,
  username       text NOT NULL,
  password_enc   text NOT NULL,
  auth_endpoint  text NOT NULL DEFAULT '',
  token_endpoint text NOT NULL DEFAULT '',
  status         text NOT NULL DEFAULT 'pending',
  last_auth_test timestamptz,
  last_error     text NOT NULL DEFAULT '',
  created_at     timestamptz NOT NULL DEFAULT NOW(),
  updated_at     timestamptz NOT NULL DEFAULT NOW(),
  created_by     text NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS api_history (
  id               BIGSERIAL PRIMARY KEY,
  tenant_id        text NOT NULL REFERENCES tenants(id),
  method           text NOT NULL,
  path             text NOT NULL,
  status_code      int NOT NULL DEFAULT 0,
  response_ms      int NOT NULL DEFAULT 0,
  response_preview text NOT NULL DEFAULT '',
  created_at       timestamptz NOT NULL DEFAULT NOW(),
  created_by       text NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS activity_log (
  id          BIGSERIAL PRIMARY KEY,
  tenant_id   text REFERENCES tenants(id),
  action      text NOT NULL,
  detail      text NOT NULL DEFAULT '',
  status      text NOT NULL DEFAULT '',
  response_ms int NOT NULL DEFAULT 0,
  created_at  timestamptz NOT NULL DEFAULT NOW(),
  created_by  text NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS webhook_events (
  id              BIGSERIAL PRIMARY KEY,
  tenant_id       text REFERENCES tenants(id),
  event_type      text NOT NULL,
  event_id        text NOT NULL DEFAULT '',
  employee_id     text NOT NULL DEFAULT '',
  employee_name   text NOT NULL DEFAULT '',
  company_id      text NOT NULL DEFAULT '',
  payload         text NOT NULL DEFAULT '',
  severity        text NOT NULL DEFAULT 'info',
  status          text NOT NULL DEFAULT 'new',
  acknowledged_by text NOT NULL DEFAULT '',
  processed_at    timestamptz,
  created_at      timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS api_history_tenant_idx ON api_history(tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS activity_log_created_idx ON activity_log(created_at DESC);
CREATE INDEX IF NOT EXISTS webhook_events_created_idx ON webhook_events(created_at DESC);
`)
	return err
}

const tenantCols = `id,name,company_short,company_id,base_url,api_key_enc,username,password_enc,auth_endpoint,token_endpoint,status,last_auth_test,COALESCE(last_error,''),created_at,updated_at,created_by`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CompanyShort, &t.CompanyID, &t.BaseURL, &t.APIKeyEnc, &t.Username, &t.PasswordEnc,
		&t.AuthEndpoint, &t.TokenEndpoint, &t.Status, &t.LastAuthTest, &t.LastError, &t.CreatedAt, &t.UpdatedAt, &t.CreatedBy)
	return t, err
}

func (p *pgStore) CreateTenant(ctx context.Context, t Tenant) error {
	_, err := p.dbPool.Exec(ctx, `
INSERT INTO tenants(id,name,company_short,base_url,api_key_enc,username,password_enc,status,created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Name, t.CompanyShort, t.BaseURL, t.APIKeyEnc, t.Username, t.PasswordEnc, StatusPending, t.CreatedBy)
	return err
}

func (p *pgStore) GetTenant(ctx context.Context, id string) (Tenant, error) {
	row := p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=$1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (p *pgStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *pgStore) UpdateTenant(ctx context.Context, id string, upd TenantUpdate) error {
	tag, err := p.dbPool.Exec(ctx, `
UPDATE tenants SET
  name          = COALESCE($1, name),
  company_short = COALESCE($2, company_short),
  base_url      = COALESCE($3, base_url),
  username      = COALESCE($4, username),
  api_key_enc   = COALESCE($5, api_key_enc),
  password_enc  = COALESCE($6, password_enc),
  updated_at    = NOW()
WHERE id=$7`,
		upd.Name, upd.CompanyShort, upd.BaseURL, upd.Username, upd.APIKeyEnc, upd.PasswordEnc, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgStore) Deactivate(ctx context.Context, id string) error {
	tag, err := p.dbPool.Exec(ctx, `UPDATE tenants SET status=$1, updated_at=NOW() WHERE id=$2`, StatusInactive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgStore) SetAuthResult(ctx context.Context, id string, success bool, companyID, errMsg string) error {
	var tag pgconn.CommandTag
	var err error
	if success {
		tag, err = p.dbPool.Exec(ctx, `
UPDATE tenants SET status=$1, company_id=CASE WHEN $2<>'' THEN $2 ELSE company_id END,
  last_auth_test=NOW(), last_error='', updated_at=NOW() WHERE id=$3`,
			StatusActive, companyID, id)
	} else {
		tag, err = p.dbPool.Exec(ctx, `
UPDATE tenants SET status=$1, last_error=$2, updated_at=NOW() WHERE id=$3`,
			StatusError, errMsg, id)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgStore) SetEndpoints(ctx context.Context, id, authEndpoint, tokenEndpoint string) error {
	tag, err := p.dbPool.Exec(ctx, `
UPDATE tenants SET auth_endpoint=$1, token_endpoint=$2, updated_at=NOW() WHERE id=$3`,
		authEndpoint, tokenEndpoint, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgStore) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	_, err := p.dbPool.Exec(ctx, `
INSERT INTO api_history(tenant_id,method,path,status_code,response_ms,response_preview,created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.TenantID, rec.Method, rec.Path, rec.StatusCode, rec.ResponseMs, rec.ResponsePreview, rec.CreatedBy)
	return err
}

func (p *pgStore) ListHistory(ctx context.Context, tenantID string, limit int) ([]HistoryRecord, error) {
	rows, err := p.dbPool.Query(ctx, `
SELECT id,tenant_id,method,path,status_code,response_ms,response_preview,created_at,created_by
FROM api_history WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryRecord
	for rows.Next() {
		var h HistoryRecord
		if err := rows.Scan(&h.ID, &h.TenantID, &h.Method, &h.Path, &h.StatusCode, &h.ResponseMs, &h.ResponsePreview, &h.CreatedAt, &h.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *pgStore) AppendActivity(ctx context.Context, rec ActivityRecord) error {
	var tid any
	if rec.TenantID != "" {
		tid = rec.TenantID
	}
	_, err := p.dbPool.Exec(ctx, `
INSERT INTO activity_log(tenant_id,action,detail,status,response_ms,created_by)
VALUES ($1,$2,$3,$4,$5,$6)`,
		tid, rec.Action, rec.Detail, rec.Status, rec.ResponseMs, rec.CreatedBy)
	return err
}

func (p *pgStore) ListActivity(ctx context.Context, limit int) ([]ActivityRecord, error) {
	rows, err := p.dbPool.Query(ctx, `
SELECT a.id, COALESCE(a.tenant_id,''), COALESCE(t.name,''), a.action, a.detail, a.status, a.response_ms, a.created_at, a.created_by
FROM activity_log a LEFT JOIN tenants t ON a.tenant_id = t.id
ORDER BY a.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActivityRecord
	for rows.Next() {
		var a ActivityRecord
		if err := rows.Scan(&a.ID, &a.TenantID, &a.TenantName, &a.Action, &a.Detail, &a.Status, &a.ResponseMs, &a.CreatedAt, &a.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *pgStore) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.dbPool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM tenants WHERE status <> 'inactive'),
  (SELECT COUNT(*) FROM tenants WHERE status = 'active'),
  (SELECT COUNT(*) FROM tenants WHERE status = 'error'),
  (SELECT COUNT(*) FROM tenants WHERE status = 'pending'),
  (SELECT COUNT(*) FROM api_history),
  (SELECT COUNT(*) FROM api_history WHERE created_at >= date_trunc('day', NOW()))`).
		Scan(&s.TotalTenants, &s.ActiveTenants, &s.ErrorTenants, &s.PendingTenants, &s.TotalAPICalls, &s.TodayAPICalls)
	return s, err
}

func (p *pgStore) InsertEvent(ctx context.Context, ev WebhookEvent) error {
	var tid any
	if ev.TenantID != "" {
		tid = ev.TenantID
	}
	_, err := p.dbPool.Exec(ctx, `
INSERT INTO webhook_events(tenant_id,event_type,event_id,employee_id,employee_name,company_id,payload,severity,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'new')`,
		tid, ev.EventType, ev.EventID, ev.EmployeeID, ev.EmployeeName, ev.CompanyID, ev.Payload, ev.Severity)
	return err
}

const eventCols = `e.id, COALESCE(e.tenant_id,''), COALESCE(t.name,''), e.event_type, e.event_id, e.employee_id, e.employee_name, e.company_id, e.payload, e.severity, e.status, e.acknowledged_by, e.processed_at, e.created_at`

func (p *pgStore) scanEvents(rows pgx.Rows) ([]WebhookEvent, error) {
	defer rows.Close()
	var out []WebhookEvent
	for rows.Next() {
		var ev WebhookEvent
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.TenantName, &ev.EventType, &ev.EventID, &ev.EmployeeID, &ev.EmployeeName,
			&ev.CompanyID, &ev.Payload, &ev.Severity, &ev.Status, &ev.AcknowledgedBy, &ev.ProcessedAt, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *pgStore) ListEvents(ctx context.Context, f EventFilter) ([]WebhookEvent, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.dbPool.Query(ctx, `
SELECT `+eventCols+`
FROM webhook_events e LEFT JOIN tenants t ON e.tenant_id = t.id
WHERE ($1 = '' OR e.severity = $1) AND ($2 = '' OR e.status = $2)
ORDER BY e.created_at DESC LIMIT $3`, f.Severity, f.Status, limit)
	if err != nil {
		return nil, err
	}
	return p.scanEvents(rows)
}

func (p *pgStore) ListRecentEvents(ctx context.Context, limit int) ([]WebhookEvent, error) {
	rows, err := p.dbPool.Query(ctx, `
SELECT `+eventCols+`
FROM webhook_events e LEFT JOIN tenants t ON e.tenant_id = t.id
ORDER BY e.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return p.scanEvents(rows)
}

func (p *pgStore) GetEventStats(ctx context.Context) (EventStats, error) {
	var s EventStats
	err := p.dbPool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM webhook_events),
  (SELECT COUNT(*) FROM webhook_events WHERE severity = 'critical'),
  (SELECT COUNT(*) FROM webhook_events WHERE status = 'new'),
  (SELECT COUNT(*) FROM webhook_events WHERE created_at >= date_trunc('day', NOW()))`).
		Scan(&s.Total, &s.Critical, &s.Unacknowledged, &s.Today)
	return s, err
}

func (p *pgStore) AcknowledgeEvent(ctx context.Context, id int64, actor string) error {
	tag, err := p.dbPool.Exec(ctx, `
UPDATE webhook_events SET status='acknowledged', acknowledged_by=$1, processed_at=NOW() WHERE id=$2`, actor, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
