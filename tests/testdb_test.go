package gormasync_test

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// openIntegrationDB opens a database for integration tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// creates a unique file-based SQLite database (removed on cleanup).
// PostgreSQL connections are pool-limited and closed on test cleanup to
// avoid exceeding max_connections.
func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "open postgres integration db")

		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(2)

		cleanupIntegrationTables(t, db)
		t.Cleanup(func() {
			cleanupIntegrationTables(t, db)
			_ = sqlDB.Close()
		})
		return db
	}

	n := dbCounter.Add(1)
	dbPath := fmt.Sprintf("/tmp/gormasync_test_%d_%d.db", os.Getpid(), n)
	t.Cleanup(func() { _ = os.Remove(dbPath) })

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open sqlite integration db")

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	return db
}

// cleanupIntegrationTables deletes all rows so tests are isolated.
func cleanupIntegrationTables(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, tbl := range []string{"accounts", "entries"} {
		db.Exec("DELETE FROM " + tbl)
	}
}
