// Command docstore serves the in-memory JSON document store the storefront
// syncs against over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/config"
	"github.com/benjaminabbitt/gainlabz/docstore"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

func main() {
	cfg, err := config.LoadDocstore(os.Args[1:])
	if err != nil {
		panic(err)
	}

	logger, err := storefront.NewLogger(cfg.LogLevel, cfg.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := docstore.NewStore()
	if err != nil {
		logger.Fatal("failed to create store", zap.Error(err))
	}
	if cfg.SeedFile != "" {
		seed, err := docstore.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			logger.Fatal("failed to load seed", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
		if err := store.Apply(seed); err != nil {
			logger.Fatal("failed to apply seed", zap.Error(err))
		}
		logger.Info("store seeded",
			zap.Int("products", len(seed.Products)),
			zap.Int("users", len(seed.Users)),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var healthErr <-chan error
	if cfg.HealthPort != "" {
		_, errc, err := storefront.RunHealthServer(ctx, storefront.HealthConfig{Service: "docstore", Port: cfg.HealthPort}, logger)
		if err != nil {
			logger.Fatal("failed to start health server", zap.Error(err))
		}
		healthErr = errc
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: docstore.NewRouter(store, docstore.RouterConfig{Token: cfg.Token}, logger),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info("docstore started",
		zap.String("port", cfg.Port),
		zap.Bool("token_required", cfg.Token != ""),
	)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	if err := storefront.AwaitServers(serveErr, healthErr, stop); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("docstore stopped")
}
