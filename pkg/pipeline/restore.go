package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fontguard/pkg/asset"
	"fontguard/pkg/storage"
	"fontguard/pkg/types"
)

// ErrChecksum 表示备份文件的内容与清单中的 SHA-256 不一致
var ErrChecksum = errors.New("backup checksum mismatch")

// RestoreSkip 记录一个没有被恢复的备份文件
type RestoreSkip struct {
	Name string
	Err  error
}

// RestoreReport 是一次回滚的汇总
type RestoreReport struct {
	Backup   *storage.BackupSet
	Restored []string
	Skipped  []RestoreSkip
}

func (r *RestoreReport) OK() bool { return len(r.Skipped) == 0 }

// Restore 把最近一次备份写回 store
// 每个文件都要先通过清单校验和格式校验，才会被原子地提交
// 回滚本身不产生新备份，否则会取代正在恢复的那份
func Restore(ctx context.Context, store storage.Store) (*RestoreReport, error) {
	if err := store.EnsureReady(ctx); err != nil {
		return nil, fmt.Errorf("prepare store: %w", err)
	}
	set, err := store.LoadBackup(ctx)
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{Backup: set}
	for _, name := range set.Names() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry, _ := set.Entry(name)
		if err := restoreOne(ctx, store, entry); err != nil {
			slog.Warn("backup file not restored", "file", name, "err", err)
			report.Skipped = append(report.Skipped, RestoreSkip{Name: name, Err: err})
			continue
		}
		report.Restored = append(report.Restored, name)
	}
	return report, nil
}

func restoreOne(ctx context.Context, store storage.Store, entry storage.BackupEntry) error {
	rc, err := store.OpenBackup(ctx, entry.Name)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return err
	}

	if got := storage.HashBytes(data); got != entry.Hash {
		return fmt.Errorf("%w: %s has %s, manifest says %s", ErrChecksum, entry.Name, got.Short(), entry.Hash.Short())
	}

	rec, _, err := asset.New(types.AssetID{File: entry.Name}, data)
	if err != nil {
		return err
	}
	return store.Commit(ctx, rec)
}
