package signal

import (
	"context"

	"github.com/life2you_mini/binopt/internal/model"
)

// Producer 信号源接口
// 核心将信号生成视为外部协作方：返回nil表示本轮无交易机会
// 实现不得持有账本锁，也不得阻塞控制循环之外的资源
type Producer interface {
	NextSignal(ctx context.Context, instrument string) (*model.CandidateSignal, error)
}

// QuoteSource 行情来源接口，按时间升序返回最近count个报价
type QuoteSource interface {
	LatestQuotes(ctx context.Context, instrument string, count int) ([]float64, error)
}
