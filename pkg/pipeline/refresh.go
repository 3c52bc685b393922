package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fontguard/pkg/asset"
	"fontguard/pkg/fetch"
	"fontguard/pkg/storage"
	"fontguard/pkg/types"
	"fontguard/pkg/woff2"

	"golang.org/x/sync/errgroup"
)

// Stage 表示一个资产在流水线中到达 (或失败于) 的阶段
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageValidate  Stage = "validate"
	StageCommit    Stage = "commit"
	StageCommitted Stage = "committed"
)

// Result 是单个资产的结局
type Result struct {
	ID       types.AssetID
	File     string
	Stage    Stage
	Verdict  woff2.Verdict // 未进入校验阶段时为零值
	Size     int64         // 下载到的字节数
	Err      error
	Duration time.Duration
}

// OK 报告该资产是否已校验并提交
func (r Result) OK() bool { return r.Stage == StageCommitted && r.Err == nil }

// Summary 是一次 refresh 运行的汇总
type Summary struct {
	Results    []Result // 与请求顺序一致
	Succeeded  int
	Failed     int
	Backup     *storage.BackupSet // store 为空时为 nil
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK 当且仅当所有请求的资产都已校验并提交
func (s *Summary) OK() bool { return s.Failed == 0 }

type Options struct {
	// Workers 是并发的 fetch/validate/commit 数量，<= 0 时为 1
	Workers int
	// Timeout 限制单次 Fetch (含重试) 的耗时，0 表示不限
	Timeout time.Duration
	// OnResult 在每个资产完成时被调用 (串行调用，可直接打印)
	OnResult func(Result)
}

// Refresher 编排 fetch -> validate -> commit
type Refresher struct {
	store   storage.Store
	fetcher fetch.Fetcher
	opts    Options
	logger  *slog.Logger
}

func NewRefresher(store storage.Store, fetcher fetch.Fetcher, opts Options) *Refresher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Refresher{
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		logger:  slog.Default().With("component", "refresh"),
	}
}

// Run 执行一次完整的刷新
// 只有准备 store 或备份失败时才返回 error；单个资产的失败记录在 Summary 里
func (r *Refresher) Run(ctx context.Context, ids []types.AssetID) (*Summary, error) {
	if err := checkRequest(ids); err != nil {
		return nil, err
	}

	sum := &Summary{
		Results:   make([]Result, len(ids)),
		StartedAt: time.Now(),
	}

	// 1. 准备 store：失败即中止，此时还没有任何写入
	if err := r.store.EnsureReady(ctx); err != nil {
		return nil, fmt.Errorf("prepare store: %w", err)
	}

	// 2. 备份：每次运行恰好一次，且在第一个 Commit 之前完成
	backup, err := r.store.BackupExisting(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup existing assets: %w", err)
	}
	sum.Backup = backup
	if backup != nil {
		r.logger.Info("existing assets backed up", "location", backup.Location(), "files", backup.Len())
	}

	// 3. 有界并发处理每个资产
	// 单个资产的失败不返回 error，避免 errgroup 取消其余任务
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			res := r.process(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			sum.Results[i] = res
			if res.OK() {
				sum.Succeeded++
			} else {
				sum.Failed++
			}
			if r.opts.OnResult != nil {
				r.opts.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.FinishedAt = time.Now()
	r.logger.Info("refresh finished", "succeeded", sum.Succeeded, "failed", sum.Failed,
		"elapsed", sum.FinishedAt.Sub(sum.StartedAt))
	return sum, nil
}

// process 处理单个资产，所有失败都记录在 Result 里
func (r *Refresher) process(ctx context.Context, id types.AssetID) (res Result) {
	start := time.Now()
	res = Result{ID: id, File: id.FileName(), Stage: StageFetch}
	defer func() { res.Duration = time.Since(start) }()

	data, err := r.fetch(ctx, id)
	if err != nil {
		res.Err = err
		r.logger.Warn("fetch failed", "file", res.File, "err", err)
		return res
	}

	res.Stage = StageValidate
	res.Size = int64(len(data))
	rec, verdict, err := asset.New(id, data)
	res.Verdict = verdict
	if err != nil {
		res.Err = err
		r.logger.Warn("validation failed", "file", res.File, "verdict", verdict.Kind, "diagnostic", verdict.Diagnostic())
		return res
	}

	res.Stage = StageCommit
	if err := r.store.Commit(ctx, rec); err != nil {
		res.Err = err
		r.logger.Error("commit failed", "file", res.File, "err", err)
		return res
	}

	res.Stage = StageCommitted
	return res
}

func (r *Refresher) fetch(ctx context.Context, id types.AssetID) ([]byte, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	data, err := r.fetcher.Fetch(ctx, id)
	if err != nil && !errors.Is(err, fetch.ErrFetch) {
		err = fmt.Errorf("%w: %s: %w", fetch.ErrFetch, id, err)
	}
	return data, err
}

// checkRequest 拒绝非法或重复的资产
// 两个资产映射到同一个文件会让并发的 Commit 互相覆盖
func checkRequest(ids []types.AssetID) error {
	seenKey := make(map[string]bool, len(ids))
	seenFile := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return err
		}
		if seenKey[id.Key()] {
			return fmt.Errorf("asset %s requested twice", id)
		}
		if seenFile[id.FileName()] {
			return fmt.Errorf("asset %s: file %s requested twice", id, id.FileName())
		}
		seenKey[id.Key()] = true
		seenFile[id.FileName()] = true
	}
	return nil
}
