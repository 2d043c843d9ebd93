// Package upstream holds the credential-protection core: the auth client
// that exchanges stored tenant credentials for short-lived bearer tokens,
// the per-tenant token cache, and the request proxy that forwards operator
// calls to the upstream HCM API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxErrorBody = 300

// CallError is a failed upstream exchange: the upstream rejected the call
// (HTTP status captured in Message) or it was unreachable. Elapsed is
// wall-clock time, reported for latency tracking on failures too.
type CallError struct {
	Message string
	Elapsed time.Duration
}

func (e *CallError) Error() string { return e.Message }

// Claims are the fields we read from the upstream bearer token. The token
// is decoded, NOT verified: the upstream's TLS channel is the trust
// boundary, and its signing keys are not available to this system.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	CompanyID string // tenant-scoped "cid" claim
}

// AuthResult is a successful login. Claims is nil when the returned token
// could not be decoded; that does not fail the login.
type AuthResult struct {
	Token   string
	Claims  *Claims
	Elapsed time.Duration
}

// Discovery is the OIDC discovery document the upstream publishes per company.
type Discovery struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	JWKSURI               string   `json:"jwks_uri"`
	ScopesSupported       []string `json:"scopes_supported"`
	GrantTypesSupported   []string `json:"grant_types_supported"`
}

// DiscoveryResult pairs the parsed document with the raw body (logged to
// the activity trail) and elapsed time.
type DiscoveryResult struct {
	Doc     Discovery
	Raw     json.RawMessage
	Elapsed time.Duration
}

// Client talks to the upstream HCM API's auth surface.
type Client struct {
	httpc *http.Client
	log   *zap.SugaredLogger
}

// NewClient builds an auth client. timeout bounds every upstream call so a
// hung upstream cannot wedge the process.
func NewClient(timeout time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

var versionSuffix = regexp.MustCompile(`/v[12]$`)

// NormalizeBaseURL strips trailing slashes and a trailing /v1 or /v2
// version suffix, so operator-entered base URLs with or without the
// version segment resolve to the same root. Idempotent.
func NormalizeBaseURL(raw string) string {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	return versionSuffix.ReplaceAllString(s, "")
}

type loginBody struct {
	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Company  string `json:"company"`
	} `json:"credentials"`
}

// Authenticate performs the v1 login exchange. The API key travels in the
// Api-Key header, credentials in the JSON body.
func (c *Client) Authenticate(ctx context.Context, baseURL, apiKey, username, password, company string) (*AuthResult, error) {
	var body loginBody
	body.Credentials.Username = username
	body.Credentials.Password = password
	body.Credentials.Company = company
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := NormalizeBaseURL(baseURL) + "/v1/login"
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &CallError{Message: "Connection failed: " + err.Error(), Elapsed: time.Since(start)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &CallError{Message: "Connection failed: " + err.Error(), Elapsed: time.Since(start)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{Message: httpError(resp.StatusCode, raw), Elapsed: elapsed}
	}

	var parsed struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(raw, &parsed)
	if parsed.Token == "" {
		return nil, &CallError{Message: "No token in response", Elapsed: elapsed}
	}

	claims := decodeClaims(parsed.Token)
	if claims == nil {
		c.log.Debugw("upstream token not decodable", "base", baseURL)
	}
	return &AuthResult{Token: parsed.Token, Claims: claims, Elapsed: elapsed}, nil
}

// Discover fetches the per-company OIDC discovery document. The upstream
// expects the bearer token in a nonstandard Authentication header.
func (c *Client) Discover(ctx context.Context, baseURL, companyID, token string) (*DiscoveryResult, error) {
	url := fmt.Sprintf("%s/v2/companies/%s/oauth2/.well-known/openid-configuration", NormalizeBaseURL(baseURL), companyID)
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &CallError{Message: err.Error(), Elapsed: time.Since(start)}
	}
	req.Header.Set("Authentication", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &CallError{Message: err.Error(), Elapsed: time.Since(start)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{Message: httpError(resp.StatusCode, raw), Elapsed: elapsed}
	}

	var doc Discovery
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &CallError{Message: "invalid discovery document: " + err.Error(), Elapsed: elapsed}
	}
	return &DiscoveryResult{Doc: doc, Raw: raw, Elapsed: elapsed}, nil
}

func httpError(status int, body []byte) string {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return fmt.Sprintf("HTTP %d: %s", status, text)
}

// decodeClaims parses the token payload without signature verification.
// Any malformed token yields nil rather than an error.
func decodeClaims(token string) *Claims {
	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return nil
	}
	c := &Claims{
		Subject:   tok.Subject(),
		Issuer:    tok.Issuer(),
		IssuedAt:  tok.IssuedAt(),
		ExpiresAt: tok.Expiration(),
	}
	if v, ok := tok.Get("cid"); ok {
		switch cid := v.(type) {
		case string:
			c.CompanyID = cid
		case float64:
			c.CompanyID = fmt.Sprintf("%.0f", cid)
		case json.Number:
			c.CompanyID = cid.String()
		}
	}
	return c
}
