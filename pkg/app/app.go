// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fontguard/pkg/catalog"
	"fontguard/pkg/fetch"
	"fontguard/pkg/fetch/cache"
	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/storage"
	"fontguard/pkg/storage/disk"
	"fontguard/pkg/storage/s3"
	"fontguard/pkg/types"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有"单例"服务
type App struct {
	Store   storage.Store
	Fetcher fetch.Fetcher
	Catalog []types.AssetID
	// History 为 nil 表示未启用运行历史 (meta.driver = none)
	History *meta.Repository
	Options pipeline.Options

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	a := &App{
		Options: pipeline.Options{
			Workers: viper.GetInt("fetch.workers"),
			Timeout: viper.GetDuration("fetch.timeout"),
		},
	}

	// 1. 存储层 (Dependency Injection)
	store, err := initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	a.Store = store

	// 2. 字体清单
	a.Catalog, err = catalog.Load()
	if err != nil {
		return nil, err
	}

	// 3. 下载器 (+ 可选的 Redis 解析缓存 + 重试策略)
	a.Fetcher, err = a.initFetcher()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init fetcher: %w", err)
	}

	// 4. 运行历史：打不开只告警，不影响主流程
	a.History, err = a.initHistory(ctx)
	if err != nil {
		slog.Warn("run history disabled", "err", err)
	}

	return a, nil
}

// initStore 根据 store.type 选择存储后端
func initStore(ctx context.Context) (storage.Store, error) {
	storeType := viper.GetString("store.type")

	switch storeType {
	case "s3":
		bucket := viper.GetString("s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required when store.type is s3")
		}
		adapter, err := s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          bucket,
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
			Prefix:          viper.GetString("s3.prefix"),
			BackupPrefix:    viper.GetString("s3.backup_prefix"),
		})
		if err != nil {
			return nil, err
		}
		return adapter, nil

	case "disk", "":
		path := viper.GetString("store.path")
		if path == "" {
			return nil, fmt.Errorf("store path not set")
		}
		adapter, err := disk.NewAdapter(path, viper.GetString("store.backup_path"))
		if err != nil {
			return nil, err
		}
		return adapter, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}
}

func (a *App) initFetcher() (fetch.Fetcher, error) {
	google := fetch.NewGoogleFonts(fetch.Options{
		CSSEndpoint: viper.GetString("fetch.css_endpoint"),
		UserAgent:   viper.GetString("fetch.user_agent"),
	})

	var f fetch.Fetcher = google
	if url := viper.GetString("cache.redis_url"); url != "" {
		resolver, err := cache.NewResolver(google, cache.Config{
			RedisURL: url,
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, resolver)
		f = fetch.Chain(resolver, google)
	}

	return fetch.Retry(f, viper.GetInt("fetch.retries"), viper.GetDuration("fetch.retry_interval")), nil
}

func (a *App) initHistory(ctx context.Context) (*meta.Repository, error) {
	driver := viper.GetString("meta.driver")
	if driver == meta.DriverNone {
		return nil, nil
	}
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:  driver,
		DSN:     viper.GetString("meta.dsn"),
		Verbose: viper.GetString("log.level") == "debug",
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	return meta.NewRepository(db), nil
}

// Refresher 按配置创建一次运行的编排器
func (a *App) Refresher(onResult func(pipeline.Result)) *pipeline.Refresher {
	opts := a.Options
	opts.OnResult = onResult
	return pipeline.NewRefresher(a.Store, a.Fetcher, opts)
}

// Record 把一次运行写入历史；历史未启用时什么都不做
// 写入失败只告警：资产已经落盘，历史只是辅助信息
func (a *App) Record(ctx context.Context, run *meta.Run) {
	if a.History == nil || run == nil {
		return
	}
	if err := a.History.RecordRun(ctx, run); err != nil {
		slog.Warn("failed to record run history", "command", run.Command, "err", err)
	}
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
