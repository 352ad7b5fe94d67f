// Command storefront serves the storefront HTTP API, reconciling carts,
// stock and orders against the configured remote store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/benjaminabbitt/gainlabz/api"
	"github.com/benjaminabbitt/gainlabz/config"
	"github.com/benjaminabbitt/gainlabz/docstore"
	"github.com/benjaminabbitt/gainlabz/inventory"
	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/remote"
	"github.com/benjaminabbitt/gainlabz/remote/dynamo"
	"github.com/benjaminabbitt/gainlabz/remote/firestore"
	"github.com/benjaminabbitt/gainlabz/session"
	"github.com/benjaminabbitt/gainlabz/storefront"
	"github.com/benjaminabbitt/gainlabz/syncqueue"
)

// seedable gateways accept whole-record writes.
type seedable interface {
	remote.Gateway
	docstore.Writer
}

func openGateway(ctx context.Context, cfg config.Storefront, logger *zap.Logger) (remote.Gateway, func(), error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		g, err := firestore.Dial(ctx, cfg.FirestoreProject, logger)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	case config.BackendDynamo:
		g, err := dynamo.Dial(ctx, cfg.DynamoRegion, logger, dynamo.WithTables(cfg.ProductsTable, cfg.UsersTable))
		if err != nil {
			return nil, nil, err
		}
		return g, func() {}, nil
	default:
		c, err := remote.NewClient(cfg.DocstoreURL, remote.WithToken(cfg.DocstoreToken), remote.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}
}

func main() {
	cfg, err := config.LoadStorefront(os.Args[1:])
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, closeGateway, err := openGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open remote store", zap.String("backend", string(cfg.Backend)), zap.Error(err))
	}
	defer closeGateway()

	if cfg.SeedFile != "" {
		w, ok := gateway.(seedable)
		if !ok {
			logger.Fatal("backend cannot be seeded; seed the document store instead", zap.String("backend", string(cfg.Backend)))
		}
		seed, err := docstore.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			logger.Fatal("failed to load seed", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
		if err := seed.WriteTo(ctx, w); err != nil {
			logger.Fatal("failed to write seed", zap.Error(err))
		}
	}

	verifier, err := session.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		logger.Fatal("failed to create token verifier", zap.Error(err))
	}

	snapshot := product.NewSnapshot(gateway, logger)
	if err := snapshot.Refresh(ctx); err != nil {
		logger.Warn("starting with an empty product snapshot", zap.Error(err))
	}

	queue := syncqueue.New(syncqueue.Config{
		Workers:   cfg.SyncWorkers,
		Retryable: storefront.IsRetryable,
		Logger:    logger,
	})

	fee := cfg.DeliveryFee
	server, err := api.NewServer(api.Config{
		Verifier: verifier,
		Deps: session.Deps{
			Users:       gateway,
			Stock:       inventory.NewAdjuster(gateway, logger),
			Snapshot:    snapshot,
			Queue:       queue,
			DeliveryFee: &fee,
			Logger:      logger,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create api server", zap.Error(err))
	}

	var healthErr <-chan error
	if cfg.HealthPort != "" {
		_, errc, err := storefront.RunHealthServer(ctx, storefront.HealthConfig{Service: "storefront", Port: cfg.HealthPort}, logger)
		if err != nil {
			logger.Fatal("failed to start health server", zap.Error(err))
		}
		healthErr = errc
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: server.Router()}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown incomplete", zap.Error(err))
		}
		if err := server.Close(shutdownCtx); err != nil {
			logger.Warn("sessions ended with cart writes outstanding", zap.Error(err))
		}
		if err := queue.Close(shutdownCtx); err != nil {
			logger.Warn("sync queue closed before draining", zap.Error(err))
		}
	}()

	logger.Info("storefront started",
		zap.String("port", cfg.Port),
		zap.String("backend", string(cfg.Backend)),
		zap.String("delivery_fee", fee.String()),
		zap.Int("products", snapshot.Len()),
	)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	if err := storefront.AwaitServers(serveErr, healthErr, stop); err != nil {
		stop()
		<-stopped
		logger.Fatal("server failed", zap.Error(err))
	}
	<-stopped
	logger.Info("storefront stopped")
}
