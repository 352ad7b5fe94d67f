package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "STORE_BACKEND", "DOCSTORE_URL", "DELIVERY_FEE", "SYNC_WORKERS", "JWT_ISSUER", "FIRESTORE_PROJECT"} {
		t.Setenv(key, "")
	}
}

func TestLoadStorefront_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadStorefront(nil)

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendHTTP, cfg.Backend)
	assert.Equal(t, "http://localhost:8090", cfg.DocstoreURL)
	assert.True(t, decimal.NewFromInt(50).Equal(cfg.DeliveryFee))
	assert.Equal(t, 2, cfg.SyncWorkers)
	assert.Equal(t, "gainlabz", cfg.JWTIssuer)
}

func TestLoadStorefront_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")
	t.Setenv("DELIVERY_FEE", "40")

	cfg, err := LoadStorefront([]string{"--port", "9100", "--delivery-fee", "12.50"})

	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.True(t, decimal.RequireFromString("12.5").Equal(cfg.DeliveryFee))
}

func TestLoadStorefront_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadStorefront(nil)

	assert.Error(t, err)
}

func TestLoadStorefront_UnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "postgres")

	_, err := LoadStorefront(nil)

	assert.ErrorContains(t, err, "postgres")
}

func TestLoadStorefront_FirestoreNeedsProject(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_BACKEND", "Firestore")

	_, err := LoadStorefront(nil)
	assert.ErrorContains(t, err, "FIRESTORE_PROJECT")

	t.Setenv("FIRESTORE_PROJECT", "gainlabz-prod")
	cfg, err := LoadStorefront(nil)
	require.NoError(t, err)
	assert.Equal(t, BackendFirestore, cfg.Backend)
}

func TestLoadStorefront_NegativeFee(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := LoadStorefront([]string{"--delivery-fee=-1"})

	assert.Error(t, err)
}

func TestLoadDocstore(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEED_FILE", "/etc/gainlabz/seed.json")

	cfg, err := LoadDocstore([]string{"--token", "abc"})

	require.NoError(t, err)
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, "/etc/gainlabz/seed.json", cfg.SeedFile)
}
