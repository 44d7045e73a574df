package signal

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/model"
)

// 动量信号参数
const (
	defaultWindow     = 20  // 报价窗口大小
	minMomentumRatio  = 0.6 // 同向报价占比低于此值不出信号
	defaultConfidence = 0.5 // 基础置信度
)

// MomentumProducer 简单动量信号源
// 统计最近一段报价中上涨/下跌的占比，占比足够高时给出同向信号
// 更复杂的指标组合属于信号源自身的职责，核心不感知
type MomentumProducer struct {
	logger *zap.Logger
	quotes QuoteSource
	window int
	expiry time.Duration
}

// NewMomentumProducer 创建动量信号源
func NewMomentumProducer(logger *zap.Logger, quotes QuoteSource, expiry time.Duration) *MomentumProducer {
	return &MomentumProducer{
		logger: logger.With(zap.String("component", "momentum_producer")),
		quotes: quotes,
		window: defaultWindow,
		expiry: expiry,
	}
}

// NextSignal 生成下一个候选信号，无机会时返回nil
func (p *MomentumProducer) NextSignal(ctx context.Context, instrument string) (*model.CandidateSignal, error) {
	prices, err := p.quotes.LatestQuotes(ctx, instrument, p.window)
	if err != nil {
		return nil, fmt.Errorf("获取行情失败: %w", err)
	}

	if len(prices) < 2 {
		return nil, nil
	}

	// 统计逐笔涨跌方向
	ups, downs := 0, 0
	for i := 1; i < len(prices); i++ {
		switch {
		case prices[i] > prices[i-1]:
			ups++
		case prices[i] < prices[i-1]:
			downs++
		}
	}

	moves := ups + downs
	if moves == 0 {
		return nil, nil
	}

	upRatio := float64(ups) / float64(moves)
	downRatio := float64(downs) / float64(moves)

	var direction string
	var ratio float64
	switch {
	case upRatio >= minMomentumRatio:
		direction = model.DirectionCall
		ratio = upRatio
	case downRatio >= minMomentumRatio:
		direction = model.DirectionPut
		ratio = downRatio
	default:
		// 方向不明确，无信号
		return nil, nil
	}

	// 占比越高置信度越高，封顶1.0
	confidence := math.Min(defaultConfidence+(ratio-minMomentumRatio), 1.0)

	sig := &model.CandidateSignal{
		Instrument: instrument,
		Direction:  direction,
		Confidence: confidence,
		Expiry:     p.expiry,
		Timestamp:  time.Now(),
	}

	p.logger.Debug("生成候选信号",
		zap.String("instrument", instrument),
		zap.String("direction", direction),
		zap.Float64("confidence", confidence))

	return sig, nil
}
