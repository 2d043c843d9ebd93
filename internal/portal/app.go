// Package portal is the admin HTTP surface: tenant management, the API
// explorer, activity and webhook event dashboards.
package portal

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hcmnotify/internal/upstream"
	"hcmnotify/pkg/config"
	"hcmnotify/pkg/secrets"
	"hcmnotify/pkg/tenants"
)

// App is the portal application container.
// Handlers are methods on this type; shared deps and config only.
// Request-scoped work should use context.
type App struct {
	log   *zap.SugaredLogger
	cfg   config.Config
	store tenants.Store
	codec *secrets.Codec
	auth  *upstream.Client
	cache *upstream.TokenCache
	proxy *upstream.Proxy

	// rdb is optional; when nil dashboard stats are computed per request.
	rdb *redis.Client
}

// New wires the portal around an already-constructed store. Schema setup
// belongs to the caller (main ensures it for postgres).
func New(log *zap.SugaredLogger, cfg config.Config, store tenants.Store, rdb *redis.Client) *App {
	codec := secrets.NewCodec(cfg.EncryptionKey)
	auth := upstream.NewClient(cfg.UpstreamTimeout, log)
	cache := upstream.NewTokenCache(store, codec, auth, log)
	return &App{
		log:   log,
		cfg:   cfg,
		store: store,
		codec: codec,
		auth:  auth,
		cache: cache,
		proxy: upstream.NewProxy(store, cache, cfg.UpstreamTimeout, log),
		rdb:   rdb,
	}
}
