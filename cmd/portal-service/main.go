// cmd/portal-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hcmnotify/internal/portal"
	"hcmnotify/pkg/config"
	"hcmnotify/pkg/db"
	"hcmnotify/pkg/logger"
	"hcmnotify/pkg/middleware"
	"hcmnotify/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	if cfg.EncryptionKey == "" {
		log.Fatalw("ENCRYPTION_KEY is required")
	}

	pool := db.MustConnect(cfg, log)

	var store tenants.Store
	if pool != nil {
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = tenants.NewPostgresStore(pool, log)
	} else {
		store = tenants.NewMemoryStore(log)
	}

	rdb := db.MustRedis(cfg, log)

	app := portal.New(log, cfg, store, rdb)
	handler := middleware.Tracing(cfg)(app.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	go func() {
		log.Infow("portal-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("portal-service stopped")
}
