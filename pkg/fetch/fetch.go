package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fontguard/pkg/types"
)

// ErrFetch 标记一次获取失败 (网络、超时、非 2xx)
// 失败只影响当前资产，不会中止整次运行
var ErrFetch = errors.New("fetch failed")

// Fetcher 根据资产标识返回原始字节
// 实现可以阻塞 (网络 I/O)，必须尊重 ctx 的取消与超时
type Fetcher interface {
	Fetch(ctx context.Context, id types.AssetID) ([]byte, error)
}

// FetcherFunc 让普通函数满足 Fetcher 接口
type FetcherFunc func(ctx context.Context, id types.AssetID) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, id types.AssetID) ([]byte, error) {
	return f(ctx, id)
}

// Resolver 把资产标识解析为可下载的字体 URL
type Resolver interface {
	Resolve(ctx context.Context, id types.AssetID) (string, error)
}

// Downloader 下载一个 URL 的全部内容
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Invalidator 由带缓存的 Resolver 实现
type Invalidator interface {
	Invalidate(ctx context.Context, id types.AssetID) error
}

// Chain 组合 Resolver 和 Downloader
// 缓存层只需要包装 Resolver，下载路径保持不变
// 下载失败时，若 r 是 Invalidator，则丢弃该资产的解析结果
func Chain(r Resolver, d Downloader) Fetcher {
	return FetcherFunc(func(ctx context.Context, id types.AssetID) ([]byte, error) {
		u, err := r.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		data, err := d.Download(ctx, u)
		if err != nil {
			if inv, ok := r.(Invalidator); ok {
				_ = inv.Invalidate(context.WithoutCancel(ctx), id)
			}
			return nil, err
		}
		return data, nil
	})
}

// HTTPError 表示远端返回了非 2xx 状态码
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Temporary 报告该状态码是否值得重试 (429 与 5xx)
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
