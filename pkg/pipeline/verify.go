package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"fontguard/pkg/storage"
	"fontguard/pkg/woff2"
)

// FileVerdict 是 store 中单个文件的校验结论
type FileVerdict struct {
	Name    string
	Verdict woff2.Verdict
}

// VerifyReport 是一次只校验不下载的汇总
type VerifyReport struct {
	Files   []FileVerdict // 按文件名排序
	Valid   int
	Invalid int
}

// Empty 报告 store 中是否没有任何资产
func (r *VerifyReport) Empty() bool { return len(r.Files) == 0 }

// OK 当且仅当 store 非空且所有文件都合法
func (r *VerifyReport) OK() bool { return !r.Empty() && r.Invalid == 0 }

// Verify 对 store 中所有已提交文件重新执行格式校验
// 读取失败记为 IOError，不中止其余文件
func Verify(ctx context.Context, store storage.Store) (*VerifyReport, error) {
	var names []string
	for name, err := range store.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list store: %w", err)
		}
		names = append(names, name)
	}
	slices.SortFunc(names, strings.Compare)

	report := &VerifyReport{Files: make([]FileVerdict, 0, len(names))}
	for _, name := range names {
		v := verifyOne(ctx, store, name)
		if v.OK() {
			report.Valid++
		} else {
			report.Invalid++
		}
		report.Files = append(report.Files, FileVerdict{Name: name, Verdict: v})
	}
	return report, nil
}

func verifyOne(ctx context.Context, store storage.Store, name string) woff2.Verdict {
	rc, err := store.Get(ctx, name)
	if err != nil {
		return woff2.Verdict{Kind: woff2.IOError, Cause: err}
	}
	defer rc.Close()
	return woff2.ValidateReader(rc)
}
