package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"hcmnotify/pkg/tenants"
)

const previewLen = 1000

// ProxyRequest is an operator-issued call to forward upstream. Path may
// contain a {cid} placeholder, rewritten to the tenant's company id.
type ProxyRequest struct {
	TenantID string
	Method   string
	Path     string
	Headers  map[string]string
	Body     string
	Accept   string // overrides the Accept header, e.g. "text/csv"
	Actor    string // operator identity for audit attribution
}

// ProxyResult always carries status, latency and error text so the
// operator sees real 4xx/5xx bodies instead of a translated exception.
// Transport failures use StatusCode 0.
type ProxyResult struct {
	Success     bool              `json:"success"`
	StatusCode  int               `json:"statusCode"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	ContentType string            `json:"contentType"`
	ResponseMs  int64             `json:"responseMs"`
	Error       string            `json:"error,omitempty"`
}

// Proxy forwards operator requests to the upstream API under the tenant's
// cached bearer token, and records every call in the history and activity
// logs. Credentials and tokens never leave this process.
type Proxy struct {
	store tenants.Store
	cache *TokenCache
	httpc *http.Client
	log   *zap.SugaredLogger
}

func NewProxy(store tenants.Store, cache *TokenCache, timeout time.Duration, log *zap.SugaredLogger) *Proxy {
	return &Proxy{
		store: store,
		cache: cache,
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

// RewritePath substitutes every {cid} placeholder with the company id.
// An unknown company id yields an empty substitution on purpose: the
// malformed upstream path surfaces to the operator instead of being
// silently blocked.
func RewritePath(path, companyID string) string {
	return strings.ReplaceAll(path, "{cid}", companyID)
}

// Forward resolves the tenant, obtains a token (refreshing at most once),
// issues the upstream call and logs the outcome. Returned errors are
// limited to tenant lookup, decryption and auth failures; upstream HTTP
// and transport outcomes are captured in the result instead.
func (p *Proxy) Forward(ctx context.Context, req ProxyRequest) (*ProxyResult, error) {
	t, err := p.store.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	token, err := p.cache.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	url := NormalizeBaseURL(t.BaseURL) + RewritePath(req.Path, t.CompanyID)
	start := time.Now()

	var bodyReader io.Reader
	if req.Body != "" && req.Method != http.MethodGet {
		bodyReader = strings.NewReader(req.Body)
	}
	upReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		res := &ProxyResult{StatusCode: 0, Headers: map[string]string{}, ContentType: "text/plain", ResponseMs: 0, Error: err.Error()}
		p.record(req, res)
		return res, nil
	}
	for k, v := range req.Headers {
		upReq.Header.Set(k, v)
	}
	upReq.Header.Set("Authentication", "Bearer "+token)
	accept := req.Accept
	if accept == "" {
		accept = upReq.Header.Get("Accept")
	}
	if accept == "" {
		accept = "application/json"
	}
	upReq.Header.Set("Accept", accept)
	if bodyReader != nil && upReq.Header.Get("Content-Type") == "" {
		upReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpc.Do(upReq)
	if err != nil {
		res := &ProxyResult{
			StatusCode:  0,
			Headers:     map[string]string{},
			ContentType: "text/plain",
			ResponseMs:  time.Since(start).Milliseconds(),
			Error:       err.Error(),
		}
		p.record(req, res)
		return res, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	res := &ProxyResult{
		Success:     resp.StatusCode >= 200 && resp.StatusCode <= 299,
		StatusCode:  resp.StatusCode,
		Headers:     headers,
		Body:        string(raw),
		ContentType: contentType,
		ResponseMs:  elapsed.Milliseconds(),
	}
	p.record(req, res)
	return res, nil
}

// record writes the history and activity rows after the upstream call has
// completed. Best-effort: a failed write is logged but never masks the
// proxied result.
func (p *Proxy) record(req ProxyRequest, res *ProxyResult) {
	// Detached from the request context so logging survives caller timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proxyRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(res.StatusCode)).Inc()
	proxyRequestDuration.WithLabelValues(req.Method).Observe(float64(res.ResponseMs) / 1000)

	preview := res.Body
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	if err := p.store.AppendHistory(ctx, tenants.HistoryRecord{
		TenantID:        req.TenantID,
		Method:          req.Method,
		Path:            req.Path, // original requested path, before {cid} rewrite
		StatusCode:      res.StatusCode,
		ResponseMs:      int(res.ResponseMs),
		ResponsePreview: preview,
		CreatedBy:       req.Actor,
	}); err != nil {
		p.log.Errorw("history write failed", "tenant", req.TenantID, "err", err)
	}

	status := "error"
	if res.Success {
		status = "success"
	}
	detail, _ := json.Marshal(map[string]string{"method": req.Method, "path": req.Path})
	if err := p.store.AppendActivity(ctx, tenants.ActivityRecord{
		TenantID:   req.TenantID,
		Action:     "api_call",
		Detail:     string(detail),
		Status:     status,
		ResponseMs: int(res.ResponseMs),
		CreatedBy:  req.Actor,
	}); err != nil {
		p.log.Errorw("activity write failed", "tenant", req.TenantID, "err", err)
	}
}
