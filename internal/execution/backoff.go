package execution

import (
	"time"
)

// 重连退避参数
const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// calculateBackoff 返回第retryCount次重试的指数退避时长
// baseDelay * 2^retryCount，封顶maxDelay
func calculateBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return baseDelay
	}

	// 2^30 已远超封顶值，提前截断避免位移溢出
	if retryCount > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<retryCount)
	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}
