package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout はバッチ処理が制限時間内に終わらなかったことを表します
var ErrTimeout = errors.New("batch process timed out")

// RunWithTimeout は制限時間付きでfnを実行します
// 制限時間を超えた場合はfnの終了を待たずにErrTimeoutを返します。親のコンテキストが先に終わった場合はその理由を返します
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, fmt.Errorf("%w after %v", ErrTimeout, timeout))
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
