package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fontguard/pkg/types"

	"github.com/cenkalti/backoff/v4"
)

// Retry 为任意 Fetcher 加上重试策略
// 重试是编排层的策略，核心流程本身从不重试
// retries <= 0 时原样返回 f
func Retry(f Fetcher, retries int, interval time.Duration) Fetcher {
	if retries <= 0 {
		return f
	}
	return FetcherFunc(func(ctx context.Context, id types.AssetID) ([]byte, error) {
		var data []byte
		op := func() error {
			var err error
			data, err = f.Fetch(ctx, id)
			if err != nil && !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(retries)),
			ctx,
		)
		notify := func(err error, wait time.Duration) {
			slog.Warn("fetch failed, retrying", "asset", id.String(), "err", err, "wait", wait)
		}
		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			return nil, err
		}
		return data, nil
	})
}

// retryable 判断错误是否可能因重试而消失
// 4xx (429 除外) 与 ctx 取消不重试
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}
