package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"court-watch-backend/config"
)

func TestInit_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbinit?mode=memory&cache=shared", MaxOpenConns: 1}

	gormDB, err := Init(cfg, false, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	for _, table := range []string{"locations", "courts", "slots", "saved_searches", "notification_records", "fetch_records", "search_tasks", "push_subscriptions"} {
		assert.True(t, gormDB.Migrator().HasTable(table), table)
	}
	assert.True(t, gormDB.Migrator().HasIndex("slots", "idx_slot_natural_key"))
}
