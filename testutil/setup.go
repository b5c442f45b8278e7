package testutil

import (
	"path/filepath"
	"testing"

	"github.com/heropets/server/cache"
	"github.com/heropets/server/config"
	dbadapter "github.com/heropets/server/db"
	"github.com/heropets/server/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates a SQLite database in the test's temp dir and runs AutoMigrate.
// Each test gets its own file, so tests may run in parallel.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := config.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// TestSecurity is the security config shared by handler and integration tests.
func TestSecurity() config.SecurityConfig {
	return config.SecurityConfig{
		JWTSecret:      "test-secret",
		BcryptCost:     4,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}
}
