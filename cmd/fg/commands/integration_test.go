package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"fontguard/pkg/app"
	"fontguard/pkg/fetch"
	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/storage/disk"
	"fontguard/pkg/types"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	roboto = types.AssetID{Family: "Roboto", Weight: "400", File: "roboto.woff2"}
	slab   = types.AssetID{Family: "Roboto Slab", Weight: "700"}
)

// fontBytes 生成一个能通过头部校验的 woff2
func fontBytes(tag string) []byte {
	data := make([]byte, 2048)
	copy(data, "wOF2OTTO")
	copy(data[8:], tag)
	return data
}

// setupIntegrationEnv 搭建一个使用 真实文件系统 + 内存数据库 的集成环境
func setupIntegrationEnv(t *testing.T, fetcher fetch.Fetcher) *app.App {
	t.Helper()
	root := filepath.Join(t.TempDir(), "public", "fonts")

	store, err := disk.NewAdapter(root, "")
	require.NoError(t, err)

	// 内存 SQLite 代替 Postgres
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(meta.Models()...))

	application := &app.App{
		Store:   store,
		Fetcher: fetcher,
		Catalog: []types.AssetID{roboto, slab},
		History: meta.NewRepository(metaDB),
		Options: pipeline.Options{Workers: 2},
	}

	// cmd 包依赖全局变量 FG，测试里临时覆盖
	FG = application
	t.Cleanup(func() { FG = nil })
	return application
}

// run 直接调用 RunE，绕过 PersistentPreRunE 对 FG 的初始化
func run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetContext(context.Background())
	return cmd.RunE(cmd, args)
}

// staticFetcher 按文件名返回预设内容；没有预设的返回 404
func staticFetcher(files map[string][]byte) fetch.Fetcher {
	return fetch.FetcherFunc(func(ctx context.Context, id types.AssetID) ([]byte, error) {
		data, ok := files[id.FileName()]
		if !ok {
			return nil, fmt.Errorf("%w: %w", fetch.ErrFetch, &fetch.HTTPError{URL: id.String(), StatusCode: 404})
		}
		return data, nil
	})
}

func readFile(t *testing.T, a *app.App, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(a.Store.Location(), name))
	require.NoError(t, err)
	return data
}

func TestIntegration_RefreshVerifyRestore(t *testing.T) {
	ctx := context.Background()
	v1 := map[string][]byte{"roboto.woff2": fontBytes("v1"), "roboto-slab-700.woff2": fontBytes("v1")}
	a := setupIntegrationEnv(t, staticFetcher(v1))

	// 1. 第一次刷新：全部提交
	require.NoError(t, run(t, refreshCmd))
	assert.Equal(t, v1["roboto.woff2"], readFile(t, a, "roboto.woff2"))
	require.NoError(t, run(t, verifyCmd))

	// 2. 第二次刷新：roboto 拿到坏文件，slab 更新成功
	a.Fetcher = staticFetcher(map[string][]byte{
		"roboto.woff2":          bytes.Repeat([]byte{0}, 2048),
		"roboto-slab-700.woff2": fontBytes("v2"),
	})
	err := run(t, refreshCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 font(s) not committed")

	// 坏文件没有覆盖已有资产
	assert.Equal(t, v1["roboto.woff2"], readFile(t, a, "roboto.woff2"))
	assert.Equal(t, fontBytes("v2"), readFile(t, a, "roboto-slab-700.woff2"))

	// 3. 回滚到第二次刷新前的备份
	require.NoError(t, run(t, restoreCmd))
	assert.Equal(t, v1["roboto-slab-700.woff2"], readFile(t, a, "roboto-slab-700.woff2"))

	// 4. 历史：refresh, verify, refresh, restore
	runs, err := a.History.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "restore", runs[0].Command)

	out, err := a.History.LastCommitted(ctx, "roboto.woff2")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), out.Size)

	require.NoError(t, run(t, historyCmd))
	require.NoError(t, run(t, listCmd))
}

func TestIntegration_RefreshSelection(t *testing.T) {
	a := setupIntegrationEnv(t, staticFetcher(map[string][]byte{"roboto.woff2": fontBytes("v1")}))

	// 只刷新 Roboto，slab 的 404 不参与
	require.NoError(t, run(t, refreshCmd, "Roboto"))
	has, err := a.Store.Has(context.Background(), "roboto-slab-700.woff2")
	require.NoError(t, err)
	assert.False(t, has)

	assert.ErrorContains(t, run(t, refreshCmd, "Comic Sans"), "no font matches")
}

func TestIntegration_VerifyEmptyStore(t *testing.T) {
	setupIntegrationEnv(t, staticFetcher(nil))
	assert.ErrorContains(t, run(t, verifyCmd), "is empty")
}

func TestIntegration_RestoreWithoutBackup(t *testing.T) {
	setupIntegrationEnv(t, staticFetcher(nil))
	assert.ErrorContains(t, run(t, restoreCmd), "nothing to restore")
}

func TestIntegration_HistoryDisabled(t *testing.T) {
	a := setupIntegrationEnv(t, staticFetcher(nil))
	a.History = nil
	assert.ErrorContains(t, run(t, historyCmd), "history is disabled")
}
