package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fontguard/pkg/fetch"
	"fontguard/pkg/types"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fg:css:"

// Resolver 是一个装饰器，它为底层的 fetch.Resolver 添加 Redis 缓存层
// 只缓存 "资产 -> 字体 URL" 的解析结果，字体字节本身每次都重新下载并校验
type Resolver struct {
	backend fetch.Resolver // 被装饰的解析器 (如 GoogleFonts)
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
}

var _ fetch.Resolver = (*Resolver)(nil)

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewResolver(backend fetch.Resolver, cfg Config) (*Resolver, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewResolverWithClient(backend, client, cfg.TTL), nil
}

// NewResolverWithClient 复用已有的 Redis 客户端
func NewResolverWithClient(backend fetch.Resolver, client *redis.Client, ttl time.Duration) *Resolver {
	return &Resolver{
		backend: backend,
		client:  client,
		ttl:     ttl,
		logger:  slog.Default().With("component", "css-cache"),
	}
}

// Key 生成 Redis Key
// Example: {"Roboto Slab", "700"} -> "fg:css:roboto-slab:700"
func Key(id types.AssetID) string {
	return keyPrefix + id.Key()
}

// Resolve 优先查 Redis；未命中时穿透到底层并回填
func (r *Resolver) Resolve(ctx context.Context, id types.AssetID) (string, error) {
	key := Key(id)

	u, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil && u != "":
		return u, nil
	case err != nil && !errors.Is(err, redis.Nil):
		// 缓存故障降级：Redis 挂了就直接走底层解析
		r.logger.Warn("redis get failed, falling back", "key", key, "err", err)
	}

	u, err = r.backend.Resolve(ctx, id)
	if err != nil {
		return "", err
	}

	// 回填失败不影响主流程
	if err := r.client.Set(ctx, key, u, r.ttl).Err(); err != nil {
		r.logger.Warn("redis set failed", "key", key, "err", err)
	}
	return u, nil
}

// Invalidate 删除某个资产的缓存 (缓存的 URL 下载失败时调用)
func (r *Resolver) Invalidate(ctx context.Context, id types.AssetID) error {
	return r.client.Del(ctx, Key(id)).Err()
}

func (r *Resolver) Close() error {
	return r.client.Close()
}
