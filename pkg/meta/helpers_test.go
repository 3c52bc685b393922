package meta

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// -----------------------------------------------------------------------------

// setupTestRepo 构建隔离的测试环境 (每个测试一个内存库)
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(Models()...))

	return NewRepository(metaDB)
}

// mustRecordRun 写入 Run，失败直接终止测试
func mustRecordRun(t *testing.T, repo *Repository, run *Run, msgAndArgs ...any) {
	t.Helper()
	require.NoError(t, repo.RecordRun(context.Background(), run), msgAndArgs...)
}

// at 返回一个固定的时间点，保证排序确定
func at(sec int64) time.Time {
	return time.Unix(1700000000+sec, 0).UTC()
}
