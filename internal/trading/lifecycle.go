package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/execution"
	"github.com/life2you_mini/binopt/internal/model"
)

// Lifecycle 管理所有在途合约的状态机
// PENDING → ACTIVE → SETTLED / REJECTED / EXPIRED_UNKNOWN
// 已终结的合约ID进入finalized集合，同一ID不允许再次跟踪或再次结算
type Lifecycle struct {
	logger *zap.Logger
	grace  time.Duration // 到期后等待结算的宽限期

	mu        sync.Mutex
	open      map[string]*model.TradeRecord
	finalized map[string]struct{}

	now func() time.Time // 可注入时钟，便于测试
}

// NewLifecycle 创建合约生命周期管理器
func NewLifecycle(logger *zap.Logger, grace time.Duration) *Lifecycle {
	return &Lifecycle{
		logger:    logger.With(zap.String("component", "lifecycle")),
		grace:     grace,
		open:      make(map[string]*model.TradeRecord),
		finalized: make(map[string]struct{}),
		now:       time.Now,
	}
}

// Track 跟踪一笔新提交的合约，状态必须为PENDING
// 已终结或正在跟踪的ID不允许复用
func (l *Lifecycle) Track(trade *model.TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, done := l.finalized[trade.ID]; done {
		return fmt.Errorf("合约ID已终结，不允许复用: %s", trade.ID)
	}
	if _, exists := l.open[trade.ID]; exists {
		return fmt.Errorf("合约已在跟踪中: %s", trade.ID)
	}
	if trade.Status != model.StatusPending {
		return fmt.Errorf("只能跟踪PENDING状态的合约: %s (%s)", trade.ID, trade.Status)
	}

	l.open[trade.ID] = trade
	return nil
}

// Activate 券商确认后将合约置为ACTIVE
func (l *Lifecycle) Activate(tradeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	trade, exists := l.open[tradeID]
	if !exists {
		return fmt.Errorf("合约不在跟踪中: %s", tradeID)
	}
	if trade.Status != model.StatusPending {
		return fmt.Errorf("只有PENDING合约可以激活: %s (%s)", tradeID, trade.Status)
	}

	trade.Status = model.StatusActive
	return nil
}

// Restore 重启后恢复持久化的在途合约，继续对账
// 快照中的PENDING合约已发往券商，按ACTIVE恢复并向券商查询真实状态
func (l *Lifecycle) Restore(trades []*model.TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, trade := range trades {
		if trade.IsTerminal() {
			l.finalized[trade.ID] = struct{}{}
			continue
		}

		trade.Status = model.StatusActive
		l.open[trade.ID] = trade

		l.logger.Info("恢复在途合约",
			zap.String("trade_id", trade.ID),
			zap.String("instrument", trade.Instrument))
	}
}

// OpenCount 返回在途合约数量
func (l *Lifecycle) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open)
}

// OpenTrades 返回在途合约的副本列表
func (l *Lifecycle) OpenTrades() []*model.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	trades := make([]*model.TradeRecord, 0, len(l.open))
	for _, trade := range l.open {
		copied := *trade
		trades = append(trades, &copied)
	}
	return trades
}

// Reconcile 对所有在途合约向券商查询结算状态，返回本轮新终结的合约
// 每笔合约只会终结一次；查询期间不持有锁，网络等待不阻塞其他操作
func (l *Lifecycle) Reconcile(ctx context.Context, port execution.ExecutionPort) []*model.TradeRecord {
	l.mu.Lock()
	pending := make([]*model.TradeRecord, 0, len(l.open))
	for _, trade := range l.open {
		pending = append(pending, trade)
	}
	l.mu.Unlock()

	terminal := make([]*model.TradeRecord, 0)

	for _, trade := range pending {
		outcome, err := port.PollOutcome(ctx, trade.ID)
		if err != nil {
			// 本轮已取消（超时或关停），合约保持在途，重启后重新对账
			if ctx.Err() != nil {
				return terminal
			}

			// 查询失败不改变状态，但到期超过宽限期后不再无限等待
			if l.pastGrace(trade) {
				if done := l.finalize(trade.ID, func(t *model.TradeRecord) {
					t.Status = model.StatusExpiredUnknown
					t.FailReason = fmt.Sprintf("结算结果无法确认: %v", err)
				}); done != nil {
					l.logger.Error("合约结算结果无法确认",
						zap.String("trade_id", trade.ID),
						zap.Error(err))
					terminal = append(terminal, done)
				}
				continue
			}

			l.logger.Warn("查询合约状态失败，下轮重试",
				zap.String("trade_id", trade.ID),
				zap.Error(err))
			continue
		}

		switch outcome.Status {
		case execution.OutcomeSettled:
			result := outcome.Result
			if done := l.finalize(trade.ID, func(t *model.TradeRecord) {
				settledAt := l.now()
				t.Status = model.StatusSettled
				t.Result = &result
				t.SettledAt = &settledAt
			}); done != nil {
				terminal = append(terminal, done)
			}

		case execution.OutcomeRejected:
			if done := l.finalize(trade.ID, func(t *model.TradeRecord) {
				t.Status = model.StatusRejected
				t.FailReason = outcome.Reason
			}); done != nil {
				l.logger.Warn("合约被券商拒绝",
					zap.String("trade_id", trade.ID),
					zap.String("reason", outcome.Reason))
				terminal = append(terminal, done)
			}

		case execution.OutcomePending:
			// 到期且超过宽限期仍未结算，终结为结果未知，绝不猜测盈亏
			if l.pastGrace(trade) {
				if done := l.finalize(trade.ID, func(t *model.TradeRecord) {
					t.Status = model.StatusExpiredUnknown
					t.FailReason = "到期后宽限期内未收到结算结果"
				}); done != nil {
					l.logger.Error("合约超时未结算",
						zap.String("trade_id", trade.ID),
						zap.Time("submitted_at", trade.SubmittedAt))
					terminal = append(terminal, done)
				}
			}
		}
	}

	return terminal
}

// pastGrace 判断合约是否已超过到期时间加宽限期
func (l *Lifecycle) pastGrace(trade *model.TradeRecord) bool {
	deadline := trade.SubmittedAt.Add(trade.Expiry).Add(l.grace)
	return l.now().After(deadline)
}

// finalize 原子地将合约移入终态，重复终结返回nil
func (l *Lifecycle) finalize(tradeID string, apply func(*model.TradeRecord)) *model.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	trade, exists := l.open[tradeID]
	if !exists {
		return nil
	}
	if _, done := l.finalized[tradeID]; done {
		return nil
	}

	apply(trade)
	delete(l.open, tradeID)
	l.finalized[tradeID] = struct{}{}
	return trade
}
