package upstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// mintToken builds a compact three-segment token with the given claims.
// The signature segment is garbage; nothing here verifies it.
func mintToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := enc(map[string]any{"alg": "HS256", "typ": "JWT"})
	payload := enc(claims)
	sig := base64.RawURLEncoding.EncodeToString([]byte("unsigned"))
	return header + "." + payload + "." + sig
}

func defaultClaims(cid string) map[string]any {
	now := time.Now().Unix()
	return map[string]any{
		"sub": "api.user",
		"iss": "https://hcm.example.com",
		"iat": now,
		"exp": now + 3600,
		"cid": cid,
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	for in, want := range map[string]string{
		"https://host/v1/":      "https://host",
		"https://host/v1":       "https://host",
		"https://host/v2":       "https://host",
		"https://host":          "https://host",
		"https://host/":         "https://host",
		"https://host///":       "https://host",
		"https://host/api/v2/":  "https://host/api",
		"https://host/v3":       "https://host/v3",
		" https://host/v1 ":     "https://host",
		"https://host/v1/extra": "https://host/v1/extra",
	} {
		assert.Equal(t, want, NormalizeBaseURL(in), "input %q", in)
	}
	// idempotent
	assert.Equal(t, "https://host", NormalizeBaseURL(NormalizeBaseURL("https://host/v1/")))
}

func TestAuthenticateSuccess(t *testing.T) {
	token := mintToken(t, defaultClaims("33629692"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/login", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("Api-Key"))
		var body loginBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "api.user", body.Credentials.Username)
		assert.Equal(t, "s3cret", body.Credentials.Password)
		assert.Equal(t, "ACME", body.Credentials.Company)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, testLogger())
	res, err := c.Authenticate(context.Background(), srv.URL+"/v1/", "key-123", "api.user", "s3cret", "ACME")
	require.NoError(t, err)
	assert.Equal(t, token, res.Token)
	require.NotNil(t, res.Claims)
	assert.Equal(t, "33629692", res.Claims.CompanyID)
	assert.Equal(t, "api.user", res.Claims.Subject)
	assert.Equal(t, "https://hcm.example.com", res.Claims.Issuer)
	assert.False(t, res.Claims.ExpiresAt.IsZero())
	assert.GreaterOrEqual(t, res.Elapsed, time.Duration(0))
}

func TestAuthenticateNumericCompanyClaim(t *testing.T) {
	claims := defaultClaims("")
	claims["cid"] = 33629692
	token := mintToken(t, claims)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}))
	defer srv.Close()

	res, err := NewClient(5*time.Second, testLogger()).Authenticate(context.Background(), srv.URL, "k", "u", "p", "c")
	require.NoError(t, err)
	require.NotNil(t, res.Claims)
	assert.Equal(t, "33629692", res.Claims.CompanyID)
}

func TestAuthenticateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, strings.Repeat("x", 500))
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second, testLogger()).Authenticate(context.Background(), srv.URL, "k", "u", "p", "c")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.True(t, strings.HasPrefix(ce.Message, "HTTP 401: "), ce.Message)
	// body truncated to 300 chars
	assert.Len(t, ce.Message, len("HTTP 401: ")+300)
	assert.GreaterOrEqual(t, ce.Elapsed, time.Duration(0))
}

func TestAuthenticateNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second, testLogger()).Authenticate(context.Background(), srv.URL, "k", "u", "p", "c")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "No token in response", ce.Message)
}

func TestAuthenticateTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewClient(5*time.Second, testLogger()).Authenticate(context.Background(), srv.URL, "k", "u", "p", "c")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.True(t, strings.HasPrefix(ce.Message, "Connection failed: "), ce.Message)
}

func TestAuthenticateHungUpstreamBounded(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer func() { close(block); srv.Close() }()

	start := time.Now()
	_, err := NewClient(150*time.Millisecond, testLogger()).Authenticate(context.Background(), srv.URL, "k", "u", "p", "c")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.True(t, strings.HasPrefix(ce.Message, "Connection failed: "), ce.Message)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAuthenticateUndecodableToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "not-a-jwt"})
	}))
	defer srv.Close()

	res, err := NewClient(5*time.Second, testLogger()).Authenticate(context.Background(), srv.URL, "k", "u", "p", "c")
	require.NoError(t, err)
	assert.Equal(t, "not-a-jwt", res.Token)
	assert.Nil(t, res.Claims)
}

func TestDiscoverSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/companies/33629692/oauth2/.well-known/openid-configuration", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authentication"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 "https://hcm.example.com",
			"authorization_endpoint": "https://hcm.example.com/oauth2/authorize",
			"token_endpoint":         "https://hcm.example.com/oauth2/token",
			"scopes_supported":       []string{"openid"},
		})
	}))
	defer srv.Close()

	res, err := NewClient(5*time.Second, testLogger()).Discover(context.Background(), srv.URL+"/v2", "33629692", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "https://hcm.example.com/oauth2/authorize", res.Doc.AuthorizationEndpoint)
	assert.Equal(t, "https://hcm.example.com/oauth2/token", res.Doc.TokenEndpoint)
	assert.NotEmpty(t, res.Raw)
}

func TestDiscoverHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such company", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second, testLogger()).Discover(context.Background(), srv.URL, "1", "tok")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	assert.True(t, strings.HasPrefix(ce.Message, "HTTP 404: "), ce.Message)
}
