package storage

import (
	"context"
	"errors"
	"io"
	"iter"

	"fontguard/pkg/asset"
)

var (
	ErrNotFound = errors.New("asset not found")
	// ErrNoBackup 表示还没有任何一次运行产生过备份
	ErrNoBackup = errors.New("no backup available")
	// ErrStore 标记存储层 (IO) 故障，便于上层用 errors.Is 区分
	ErrStore = errors.New("store failure")
)

// Store defines the interface for an asset store backend.
// Implementations can be local disk or an S3-compatible bucket.
type Store interface {
	// Location 返回面向用户的存储位置描述 (目录或 s3://bucket/prefix)
	Location() string

	// EnsureReady 创建 store 根位置 (幂等)
	// 失败意味着本次运行无法继续
	EnsureReady(ctx context.Context) error

	// BackupExisting 在任何写入之前，把当前所有资产复制到备份位置
	// store 为空时不创建备份，返回 (nil, nil)
	// 新备份整体取代旧备份，而不是合并
	BackupExisting(ctx context.Context) (*BackupSet, error)

	// Commit 原子地写入一个已校验的资产
	// 读者只能看到旧的完整内容或新的完整内容
	Commit(ctx context.Context, rec *asset.Record) error

	// List 惰性枚举当前已提交的资产文件名
	// 每次调用都重新扫描存储，不缓存
	List(ctx context.Context) iter.Seq2[string, error]

	// Get 读取一个已提交资产的内容
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Has 检查资产是否存在
	Has(ctx context.Context, name string) (bool, error)

	// LoadBackup 读取最近一次备份的清单
	LoadBackup(ctx context.Context) (*BackupSet, error)

	// OpenBackup 读取备份中的某个文件
	OpenBackup(ctx context.Context, name string) (io.ReadCloser, error)
}
