package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"fontguard/pkg/fetch"
	"fontguard/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpyResolver (间谍解析器)
// 统计底层 Resolve 的调用次数，验证请求是否穿透了缓存
// -----------------------------------------------------------------------------
type SpyResolver struct {
	calls atomic.Int32
	url   string
	err   error
}

func (s *SpyResolver) Resolve(ctx context.Context, id types.AssetID) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.url + "/" + id.FileName(), nil
}

func newTestID(t *testing.T) types.AssetID {
	// 每个测试使用独立的 family，避免 Key 冲突
	return types.AssetID{Family: fmt.Sprintf("Test %d", time.Now().UnixNano()), Weight: "400"}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "fg:css:roboto-slab:700", Key(types.AssetID{Family: "Roboto+Slab", Weight: "700"}))
}

// Redis 不可用时降级为直接解析，不报错
func TestResolver_RedisDownFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1", // 没有任何服务监听
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	spy := &SpyResolver{url: "https://fonts.example"}
	r := NewResolverWithClient(spy, client, time.Minute)
	id := newTestID(t)

	u, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://fonts.example/"+id.FileName(), u)

	_, err = r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), spy.calls.Load(), "without redis every call reaches the backend")
}

func TestNewResolver_InvalidURL(t *testing.T) {
	_, err := NewResolver(&SpyResolver{}, Config{RedisURL: "not-a-url"})
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestResolver_Integration(t *testing.T) {
	// A. 环境检查: 确保 Redis 在运行
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	// B. 初始化
	ctx := context.Background()
	spy := &SpyResolver{url: "https://fonts.example"}
	r, err := NewResolver(spy, Config{RedisURL: fmt.Sprintf("redis://%s/0", redisAddr), TTL: time.Minute})
	require.NoError(t, err)
	defer r.Close()

	id := newTestID(t)
	t.Cleanup(func() { _ = r.Invalidate(context.Background(), id) })

	t.Run("MissThenHit", func(t *testing.T) {
		u1, err := r.Resolve(ctx, id)
		require.NoError(t, err)
		u2, err := r.Resolve(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, u1, u2)
		assert.Equal(t, int32(1), spy.calls.Load(), "second resolve must be served by redis")
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, r.Invalidate(ctx, id))
		_, err := r.Resolve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int32(2), spy.calls.Load())
	})

	t.Run("ChainInvalidatesOnDownloadFailure", func(t *testing.T) {
		before := spy.calls.Load()
		broken := errors.New("gone")
		d := downloader(func(ctx context.Context, u string) ([]byte, error) { return nil, broken })

		_, err := fetch.Chain(r, d).Fetch(ctx, id)
		assert.ErrorIs(t, err, broken)

		// 缓存已被清掉，下一次会重新解析
		_, err = r.Resolve(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before+1, spy.calls.Load())
	})

	t.Run("BackendErrorNotCached", func(t *testing.T) {
		failing := &SpyResolver{err: errors.New("css down")}
		fr := NewResolverWithClient(failing, r.client, time.Minute)
		other := newTestID(t)

		_, err := fr.Resolve(ctx, other)
		assert.Error(t, err)
		exists, err := r.client.Exists(ctx, Key(other)).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(0), exists)
	})
}

type downloader func(ctx context.Context, u string) ([]byte, error)

func (f downloader) Download(ctx context.Context, u string) ([]byte, error) { return f(ctx, u) }
