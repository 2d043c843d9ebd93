package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hcmnotify/pkg/secrets"
	"hcmnotify/pkg/tenants"
)

// ErrAuthFailed wraps an upstream credential rejection during a cache
// refresh. Failures are never cached; every call retries, at most once.
var ErrAuthFailed = errors.New("authentication failed")

const (
	// fallbackTTL is used when the token carries no usable exp claim.
	// Conservative: shorter than the upstream's real token lifetime so
	// refresh happens proactively.
	fallbackTTL = 58 * time.Minute
	// expiryMargin is shaved off the decoded exp claim so we never hand
	// out a token about to lapse mid-request.
	expiryMargin = 2 * time.Minute
)

type cacheEntry struct {
	token     string
	expiresAt time.Time
}

// TokenCache holds the most recent valid bearer token per tenant, in
// process memory only. Tokens are never persisted or returned to the
// browser; isolation between tenants is structural (map keyed by tenant
// id). Concurrent misses for the same tenant may each refresh; the last
// write wins, which at worst duplicates one login call.
type TokenCache struct {
	store  tenants.Store
	codec  *secrets.Codec
	client *Client
	log    *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewTokenCache(store tenants.Store, codec *secrets.Codec, client *Client, log *zap.SugaredLogger) *TokenCache {
	return &TokenCache{
		store:   store,
		codec:   codec,
		client:  client,
		log:     log,
		entries: map[string]cacheEntry{},
		now:     time.Now,
	}
}

// Get returns a valid token for the tenant, refreshing through the auth
// client on miss or expiry.
func (tc *TokenCache) Get(ctx context.Context, tenantID string) (string, error) {
	tc.mu.Lock()
	if e, ok := tc.entries[tenantID]; ok && tc.now().Before(e.expiresAt) {
		tc.mu.Unlock()
		return e.token, nil
	}
	tc.mu.Unlock()

	t, err := tc.store.GetTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	apiKey, err := tc.codec.Decrypt(t.APIKeyEnc)
	if err != nil {
		return "", fmt.Errorf("api key for tenant %s: %w", tenantID, err)
	}
	password, err := tc.codec.Decrypt(t.PasswordEnc)
	if err != nil {
		return "", fmt.Errorf("password for tenant %s: %w", tenantID, err)
	}

	res, err := tc.client.Authenticate(ctx, t.BaseURL, apiKey, t.Username, password, t.CompanyShort)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrAuthFailed, err.Error())
	}

	expiresAt := tc.expiry(res.Claims)
	tc.mu.Lock()
	tc.entries[tenantID] = cacheEntry{token: res.Token, expiresAt: expiresAt}
	tc.mu.Unlock()
	tc.log.Debugw("token refreshed", "tenant", tenantID, "expires_at", expiresAt)
	return res.Token, nil
}

// Invalidate drops a tenant's cached token, e.g. after credentials change.
func (tc *TokenCache) Invalidate(tenantID string) {
	tc.mu.Lock()
	delete(tc.entries, tenantID)
	tc.mu.Unlock()
}

// expiry prefers the token's own exp claim minus a safety margin and falls
// back to the fixed TTL when the claim is absent or already too close.
func (tc *TokenCache) expiry(claims *Claims) time.Time {
	now := tc.now()
	if claims != nil && !claims.ExpiresAt.IsZero() {
		if at := claims.ExpiresAt.Add(-expiryMargin); at.After(now) {
			return at
		}
	}
	return now.Add(fallbackTTL)
}
