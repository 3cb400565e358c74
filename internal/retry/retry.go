package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// Policy は再試行の方針です
type Policy struct {
	// MaxAttempts は初回を含めた最大試行回数です。1未満は1として扱います
	MaxAttempts int
	// Backoff はattempt回目の失敗後に待つ時間を返します。nilの場合は待ちません
	Backoff func(attempt int) time.Duration
	// Retryable がfalseを返したエラーは再試行しません。nilの場合はすべて再試行します
	Retryable func(err error) bool
}

// Fixed は毎回同じ時間待つバックオフです
func Fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Linear は試行回数に比例して待ち時間を増やすバックオフです
func Linear(d time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration { return time.Duration(attempt) * d }
}

// Do はfnが成功するか、再試行できないエラーが返るか、試行回数の上限に達するまでfnを実行します
// 返すエラーは最後の試行のエラーです
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if wait <= 0 {
			if ctx.Err() != nil {
				return fmt.Errorf("%w (retry aborted: %v)", err, ctx.Err())
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (retry aborted: %v)", err, ctx.Err())
		case <-timer.C:
		}
	}
}

// IsNetworkError は接続断やタイムアウトなど、再試行で回復しうるネットワークエラーかどうかを判定します
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED,
			syscall.ECONNRESET,
			syscall.ECONNABORTED,
			syscall.ENETUNREACH,
			syscall.ENETRESET,
			syscall.ETIMEDOUT:
			return true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "unexpected eof")
}
