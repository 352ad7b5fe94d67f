// Package config loads binary configuration from environment variables,
// overridable by command-line flags.
//
// Environment variables:
//   - PORT: HTTP port (storefront default 8080, docstore default 8090)
//   - HEALTH_PORT: gRPC health port; empty disables the health server
//   - LOG_LEVEL: zap level (default info)
//   - LOG_DEV: "true" selects the development console logger
//   - DOCSTORE_URL: base URL of the HTTP document store
//   - DOCSTORE_TOKEN: bearer token shared with the document store
//   - JWT_SECRET: HS256 secret for session tokens
//   - JWT_ISSUER: expected token issuer (default gainlabz)
//   - DELIVERY_FEE: flat fee added to every order (default 50)
//   - STORE_BACKEND: http (default), firestore or dynamo
//   - FIRESTORE_PROJECT: Google Cloud project for the firestore backend
//   - DYNAMO_REGION: AWS region for the dynamo backend (default us-east-1)
//   - DYNAMO_PRODUCTS_TABLE, DYNAMO_USERS_TABLE: table names
//   - SYNC_WORKERS: cart sync workers (default 2)
//   - SEED_FILE: JSON seed loaded into the store at start
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// Backend selects the Remote Sync Gateway implementation.
type Backend string

const (
	BackendHTTP      Backend = "http"
	BackendFirestore Backend = "firestore"
	BackendDynamo    Backend = "dynamo"
)

// Valid reports whether b is a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendHTTP, BackendFirestore, BackendDynamo:
		return true
	}
	return false
}

// Common is shared by every binary.
type Common struct {
	Port            string
	HealthPort      string
	LogLevel        string
	Development     bool
	ShutdownTimeout time.Duration
}

// Storefront configures cmd/storefront.
type Storefront struct {
	Common

	Backend          Backend
	DocstoreURL      string
	DocstoreToken    string
	FirestoreProject string
	DynamoRegion     string
	ProductsTable    string
	UsersTable       string

	JWTSecret   string
	JWTIssuer   string
	DeliveryFee decimal.Decimal
	SyncWorkers int
	// SeedFile is written into the firestore or dynamo backend at start.
	SeedFile string
}

// Docstore configures cmd/docstore.
type Docstore struct {
	Common

	Token    string
	SeedFile string
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(env(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(env(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func commonFlags(fs *pflag.FlagSet, c *Common, defaultPort string) {
	fs.StringVar(&c.Port, "port", env("PORT", defaultPort), "HTTP listen port")
	fs.StringVar(&c.HealthPort, "health-port", env("HEALTH_PORT", ""), "gRPC health port (empty disables)")
	fs.StringVar(&c.LogLevel, "log-level", env("LOG_LEVEL", "info"), "log level")
	fs.BoolVar(&c.Development, "log-dev", envBool("LOG_DEV", false), "development console logging")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown budget")
}

// LoadStorefront reads the storefront configuration from the environment
// and then args.
func LoadStorefront(args []string) (Storefront, error) {
	var cfg Storefront
	var backend, fee string

	fs := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	commonFlags(fs, &cfg.Common, "8080")
	fs.StringVar(&backend, "backend", env("STORE_BACKEND", string(BackendHTTP)), "remote store: http, firestore or dynamo")
	fs.StringVar(&cfg.DocstoreURL, "docstore-url", env("DOCSTORE_URL", "http://localhost:8090"), "document store base URL")
	fs.StringVar(&cfg.DocstoreToken, "docstore-token", env("DOCSTORE_TOKEN", ""), "document store bearer token")
	fs.StringVar(&cfg.FirestoreProject, "firestore-project", env("FIRESTORE_PROJECT", ""), "Firestore project id")
	fs.StringVar(&cfg.DynamoRegion, "dynamo-region", env("DYNAMO_REGION", "us-east-1"), "DynamoDB region")
	fs.StringVar(&cfg.ProductsTable, "products-table", env("DYNAMO_PRODUCTS_TABLE", "products"), "DynamoDB products table")
	fs.StringVar(&cfg.UsersTable, "users-table", env("DYNAMO_USERS_TABLE", "users"), "DynamoDB users table")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "HS256 session token secret")
	fs.StringVar(&cfg.JWTIssuer, "jwt-issuer", env("JWT_ISSUER", "gainlabz"), "expected token issuer")
	fs.StringVar(&fee, "delivery-fee", env("DELIVERY_FEE", "50"), "flat delivery fee")
	fs.IntVar(&cfg.SyncWorkers, "sync-workers", envInt("SYNC_WORKERS", 2), "cart sync workers")
	fs.StringVar(&cfg.SeedFile, "seed", env("SEED_FILE", ""), "JSON seed written to the backend at start")
	if err := fs.Parse(args); err != nil {
		return Storefront{}, err
	}

	cfg.Backend = Backend(strings.ToLower(strings.TrimSpace(backend)))
	if !cfg.Backend.Valid() {
		return Storefront{}, fmt.Errorf("unknown store backend %q", backend)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(fee))
	if err != nil {
		return Storefront{}, fmt.Errorf("invalid delivery fee %q: %w", fee, err)
	}
	if d.IsNegative() {
		return Storefront{}, fmt.Errorf("delivery fee cannot be negative: %s", d)
	}
	cfg.DeliveryFee = d

	if cfg.JWTSecret == "" {
		return Storefront{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.Backend {
	case BackendHTTP:
		if cfg.DocstoreURL == "" {
			return Storefront{}, fmt.Errorf("DOCSTORE_URL is required for the http backend")
		}
	case BackendFirestore:
		if cfg.FirestoreProject == "" {
			return Storefront{}, fmt.Errorf("FIRESTORE_PROJECT is required for the firestore backend")
		}
	}
	if cfg.SyncWorkers < 1 {
		cfg.SyncWorkers = 1
	}
	return cfg, nil
}

// LoadDocstore reads the document store configuration from the environment
// and then args.
func LoadDocstore(args []string) (Docstore, error) {
	var cfg Docstore

	fs := pflag.NewFlagSet("docstore", pflag.ContinueOnError)
	commonFlags(fs, &cfg.Common, "8090")
	fs.StringVar(&cfg.Token, "token", env("DOCSTORE_TOKEN", ""), "required bearer token (empty disables)")
	fs.StringVar(&cfg.SeedFile, "seed", env("SEED_FILE", ""), "JSON seed file")
	if err := fs.Parse(args); err != nil {
		return Docstore{}, err
	}
	return cfg, nil
}
