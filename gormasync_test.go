package gormasync_test

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gormasync "github.com/asyncpool/gorm-async"
)

var dbCounter atomic.Int64

// Task is the model shared by the package tests.
type Task struct {
	ID    uint   `gorm:"primarykey"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// setupDB opens a uniquely named shared in-memory SQLite database so every
// connection checked out by a dispatcher sees the same data.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:gormasync_test_%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db.Exec("PRAGMA busy_timeout=5000;")

	require.NoError(t, db.AutoMigrate(&Task{}))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// strategyOptions enumerates both dispatch strategies so behavioral tests run
// under each. The choice is made at construction only.
func strategyOptions() map[string][]gormasync.Option {
	return map[string][]gormasync.Option{
		"off-thread": nil,
		"in-place":   {gormasync.WithInPlaceDispatch()},
	}
}

func seedTasks(t *testing.T, db *gorm.DB, tasks ...Task) {
	t.Helper()
	for i := range tasks {
		require.NoError(t, db.Create(&tasks[i]).Error)
	}
}

func countTasks(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&Task{}).Count(&n).Error)
	return n
}
