package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fontguard/pkg/asset"
	"fontguard/pkg/ignore"
	"fontguard/pkg/storage"
	"fontguard/pkg/types"
)

const (
	filePerm = 0o644
	dirPerm  = 0o755
	// 每次 ReadDir 的批大小，List 借此保持惰性
	listBatch = 64
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath   string // 比如: public/fonts
	backupPath string // 比如: public/fonts-backup
	matcher    *ignore.Matcher
	logger     *slog.Logger
}

var _ storage.Store = (*Adapter)(nil)

// NewAdapter 创建一个新的磁盘存储适配器
// 不创建任何目录：这是 EnsureReady 的职责
// backup 为空时使用 root 的同级目录 "<root>-backup"
func NewAdapter(root, backup string) (*Adapter, error) {
	if root == "" {
		return nil, fmt.Errorf("store root is empty")
	}
	root = filepath.Clean(root)
	if backup == "" {
		backup = root + "-backup"
	}
	backup = filepath.Clean(backup)
	if backup == root {
		return nil, fmt.Errorf("backup path must differ from store root %q", root)
	}

	matcher, err := ignore.NewMatcher(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore rules: %w", err)
	}

	return &Adapter{
		rootPath:   root,
		backupPath: backup,
		matcher:    matcher,
		logger:     slog.Default().With("store", "disk"),
	}, nil
}

func (s *Adapter) Root() string       { return s.rootPath }
func (s *Adapter) BackupPath() string { return s.backupPath }
func (s *Adapter) Location() string   { return s.rootPath }

// layout 返回文件名对应的物理路径 (扁平布局，一个资产一个文件)
func (s *Adapter) layout(name string) (string, error) {
	if err := types.ValidateFileName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, name), nil
}

// EnsureReady 确保根目录存在
func (s *Adapter) EnsureReady(ctx context.Context) error {
	if err := os.MkdirAll(s.rootPath, dirPerm); err != nil {
		return fmt.Errorf("%w: failed to create store dir: %w", storage.ErrStore, err)
	}
	return nil
}

// Commit 原子写入 (Atomic Write)
// 技巧：先写到同目录的临时文件，fsync，然后 Rename。
// 这样读者要么看到旧的完整文件，要么看到新的完整文件。
func (s *Adapter) Commit(ctx context.Context, rec *asset.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || !rec.Validated() {
		return fmt.Errorf("refusing to commit an unvalidated asset")
	}

	targetPath, err := s.layout(rec.FileName())
	if err != nil {
		return err
	}
	if err := writeAtomic(targetPath, rec.Bytes()); err != nil {
		return fmt.Errorf("%w: commit %s: %w", storage.ErrStore, rec.FileName(), err)
	}
	return nil
}

func writeAtomic(targetPath string, data []byte) error {
	dir := filepath.Dir(targetPath)
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tempFile.Name()
	// 成功 Rename 之后这个删除会失败，无害
	defer os.Remove(tmpName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil { // 必须先关闭才能 Rename
		return err
	}
	// CreateTemp 默认 0600
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}

	if err := os.Rename(tmpName, targetPath); err != nil {
		return err
	}
	// 尽力而为：持久化目录项
	_ = syncDir(dir)
	return nil
}

// List 惰性枚举根目录下的资产
func (s *Adapter) List(ctx context.Context) iter.Seq2[string, error] {
	return listDir(ctx, s.rootPath, s.matcher)
}

// listDir 分批读取目录，只产出普通文件且不被忽略的名字
// 目录不存在视为空
func listDir(ctx context.Context, dir string, matcher *ignore.Matcher) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f, err := os.Open(dir)
		if os.IsNotExist(err) {
			return
		}
		if err != nil {
			yield("", err)
			return
		}
		defer f.Close()

		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			entries, err := f.ReadDir(listBatch)
			for _, e := range entries {
				if !e.Type().IsRegular() || matcher.Matches(e.Name()) {
					continue
				}
				if !yield(e.Name(), nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}

func (s *Adapter) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	targetPath, err := s.layout(name)
	if err != nil {
		return nil, err
	}
	return openFile(targetPath)
}

func (s *Adapter) Has(ctx context.Context, name string) (bool, error) {
	targetPath, err := s.layout(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(targetPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// -----------------------------------------------------------------------------
// Backup
// -----------------------------------------------------------------------------

// BackupExisting 把当前所有资产复制到备份目录
// 1. 先在备份目录旁边的临时目录里完整地组装新备份 (含清单)
// 2. 再整体替换旧备份，所以旧备份被取代而不是被合并
func (s *Adapter) BackupExisting(ctx context.Context) (*storage.BackupSet, error) {
	var names []string
	for name, err := range s.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%w: scan store: %w", storage.ErrStore, err)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return s.backupNames(ctx, names)
}

// backupNames 备份给定的文件列表
func (s *Adapter) backupNames(ctx context.Context, names []string) (*storage.BackupSet, error) {
	parent := filepath.Dir(s.backupPath)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create backup parent: %w", storage.ErrStore, err)
	}
	staging, err := os.MkdirTemp(parent, ".backup-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create backup staging dir: %w", storage.ErrStore, err)
	}
	// 成功 Rename 之后 staging 已不存在，RemoveAll 无害
	defer os.RemoveAll(staging)

	var entries []storage.BackupEntry
	var skipped []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := copyFile(filepath.Join(s.rootPath, name), filepath.Join(staging, name))
		if errors.Is(err, fs.ErrNotExist) {
			// 文件在扫描后被外部删除：上报，继续备份其余文件
			s.logger.Warn("asset vanished during backup", "file", name)
			skipped = append(skipped, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: backup %s: %w", storage.ErrStore, name, err)
		}
		entry.Name = name
		entries = append(entries, entry)
	}

	set := storage.NewBackupSet(s.backupPath, time.Now(), entries, skipped)
	manifest, err := set.EncodeManifest()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(staging, storage.ManifestName), manifest, filePerm); err != nil {
		return nil, fmt.Errorf("%w: write backup manifest: %w", storage.ErrStore, err)
	}
	if err := os.Chmod(staging, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStore, err)
	}

	if err := s.swapBackup(staging); err != nil {
		return nil, fmt.Errorf("%w: install backup: %w", storage.ErrStore, err)
	}
	s.logger.Info("backup created", "location", s.backupPath, "files", set.Len(), "skipped", len(skipped))
	return set, nil
}

// swapBackup 用 staging 整体替换 backupPath
// 旧备份先挪开，新备份就位后再删除旧备份
func (s *Adapter) swapBackup(staging string) error {
	old := ""
	if _, err := os.Stat(s.backupPath); err == nil {
		old = fmt.Sprintf("%s.old-%d", s.backupPath, time.Now().UnixNano())
		if err := os.Rename(s.backupPath, old); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.Rename(staging, s.backupPath); err != nil {
		if old != "" {
			_ = os.Rename(old, s.backupPath) // 回滚
		}
		return err
	}
	_ = syncDir(filepath.Dir(s.backupPath))

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			s.logger.Warn("failed to remove superseded backup", "path", old, "err", err)
		}
	}
	return nil
}

// copyFile 复制文件，同时计算 SHA-256 并保留修改时间
func copyFile(src, dst string) (storage.BackupEntry, error) {
	in, err := os.Open(src)
	if err != nil {
		return storage.BackupEntry{}, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return storage.BackupEntry{}, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return storage.BackupEntry{}, err
	}

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, hasher), in)
	if err != nil {
		out.Close()
		return storage.BackupEntry{}, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return storage.BackupEntry{}, err
	}
	if err := out.Close(); err != nil {
		return storage.BackupEntry{}, err
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	return storage.BackupEntry{
		Size:    n,
		Hash:    types.Hash(hex.EncodeToString(hasher.Sum(nil))),
		ModTime: info.ModTime().Unix(),
	}, nil
}

// LoadBackup 读取备份清单
func (s *Adapter) LoadBackup(ctx context.Context) (*storage.BackupSet, error) {
	data, err := os.ReadFile(filepath.Join(s.backupPath, storage.ManifestName))
	if os.IsNotExist(err) {
		return nil, storage.ErrNoBackup
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read backup manifest: %w", storage.ErrStore, err)
	}
	return storage.DecodeManifest(s.backupPath, data)
}

// OpenBackup 读取备份中的某个文件
func (s *Adapter) OpenBackup(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := types.ValidateFileName(name); err != nil {
		return nil, err
	}
	return openFile(filepath.Join(s.backupPath, name))
}
