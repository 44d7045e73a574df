package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/config"
	"github.com/life2you_mini/binopt/internal/execution"
	"github.com/life2you_mini/binopt/internal/model"
	"github.com/life2you_mini/binopt/internal/risk"
	"github.com/life2you_mini/binopt/internal/signal"
	"github.com/life2you_mini/binopt/internal/storage"
)

// EventSink 每轮事件的消费方（告警、报表）
type EventSink interface {
	Publish(event *model.TickEvent)
}

// 连接持续不可用达到该轮数后视为不可恢复，终止调度
const maxUnhealthyTicks = 10

// Trader 交易主循环
// 账本只有一个写入方：主循环自身。各标的在一轮内顺序处理，
// 账本的读写只发生在换日与对账两个点，不跨网络调用持锁
type Trader struct {
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.Logger
	config    *config.Config
	limits    *risk.Limits
	ledger    *risk.Ledger
	lifecycle *Lifecycle
	port      execution.ExecutionPort
	producer  signal.Producer
	store     storage.Storage
	events    EventSink
	veto      risk.MarketVeto

	wg             sync.WaitGroup
	isRunning      bool
	halted         bool
	unhealthyTicks int
	mutex          sync.Mutex

	now func() time.Time // 可注入时钟，便于测试
}

// NewTrader 创建交易主循环
func NewTrader(
	parentCtx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	port execution.ExecutionPort,
	producer signal.Producer,
	store storage.Storage,
	events EventSink,
	veto risk.MarketVeto,
) *Trader {
	ctx, cancel := context.WithCancel(parentCtx)

	grace := time.Duration(cfg.RiskManagement.SettlementGraceSeconds) * time.Second

	return &Trader{
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(zap.String("component", "trader")),
		config:    cfg,
		limits:    risk.NewLimits(&cfg.RiskManagement),
		lifecycle: NewLifecycle(logger, grace),
		port:      port,
		producer:  producer,
		store:     store,
		events:    events,
		veto:      veto,
		now:       time.Now,
	}
}

// Start 启动交易主循环
// 先从存储恢复账本快照与在途合约，再开始调度
func (t *Trader) Start() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.isRunning {
		return fmt.Errorf("交易主循环已在运行")
	}

	if err := t.restore(); err != nil {
		return fmt.Errorf("恢复交易状态失败: %w", err)
	}

	t.logger.Info("启动交易主循环",
		zap.Strings("instruments", t.config.Trading.Instruments),
		zap.Int("check_interval_seconds", t.config.Trading.CheckIntervalSeconds),
		zap.String("balance", t.ledger.Balance().String()))
	t.isRunning = true

	t.wg.Add(1)
	go t.runLoop()

	return nil
}

// Stop 停止交易主循环
// 在途合约保持ACTIVE不动，重启后向券商重新查询，绝不凭内存结算
func (t *Trader) Stop() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.isRunning {
		return nil
	}

	t.logger.Info("停止交易主循环",
		zap.Int("open_trades", t.lifecycle.OpenCount()))
	t.cancel()

	// 等待所有协程结束
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	// 等待最多5秒钟
	select {
	case <-done:
		t.logger.Info("交易主循环已停止")
	case <-time.After(5 * time.Second):
		t.logger.Warn("交易主循环停止超时")
	}

	t.isRunning = false
	return nil
}

// Halted 返回是否已触发硬性止损
func (t *Trader) Halted() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.halted
}

// restore 从存储恢复账本快照与在途合约
func (t *Trader) restore() error {
	ctx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
	defer cancel()

	snapshot, err := t.store.LoadLedgerSnapshot(ctx)
	if err != nil {
		return err
	}

	if snapshot != nil {
		t.ledger = risk.NewLedgerFromSnapshot(snapshot)
		t.logger.Info("从快照恢复账本",
			zap.String("balance", t.ledger.Balance().String()),
			zap.String("session_date", t.ledger.SessionDate()))
	} else {
		initial := decimal.NewFromFloat(t.config.RiskManagement.InitialBalance)
		t.ledger = risk.NewLedger(initial, t.now())
		t.logger.Info("初始化新账本", zap.String("balance", initial.String()))
	}

	openTrades, err := t.store.ListOpenTrades(ctx)
	if err != nil {
		return err
	}

	if len(openTrades) > 0 {
		t.lifecycle.Restore(openTrades)
		t.logger.Info("恢复在途合约等待对账", zap.Int("count", len(openTrades)))
	}

	return nil
}

// runLoop 按固定间隔调度交易轮次
func (t *Trader) runLoop() {
	defer t.wg.Done()

	interval := time.Duration(t.config.Trading.CheckIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动后立即执行一轮
	if !t.tick() {
		return
	}

	for {
		select {
		case <-t.ctx.Done():
			t.logger.Info("结束交易调度")
			return
		case <-ticker.C:
			if !t.tick() {
				return
			}
		}
	}
}

// tick 执行一轮处理，返回false表示触发硬性止损需要终止调度
// 整轮受超时约束，超时的轮次放弃处理、不动账本，等待下一轮
func (t *Trader) tick() bool {
	timeout := time.Duration(t.config.Trading.TickTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	// 券商连接不可用时整轮跳过，不动账本；持续不可用视为不可恢复
	if !t.port.Healthy() {
		t.unhealthyTicks++
		t.logger.Warn("券商连接不可用，本轮跳过",
			zap.Int("unhealthy_ticks", t.unhealthyTicks))

		if t.unhealthyTicks >= maxUnhealthyTicks {
			t.logger.Error("券商连接持续不可用，停止交易")

			t.mutex.Lock()
			t.halted = true
			t.mutex.Unlock()

			t.emit(&model.TickEvent{
				Kind:    model.EventHalted,
				Reasons: []string{"券商连接持续不可用"},
			})
			return false
		}
		return true
	}
	t.unhealthyTicks = 0

	// 1. 换日检查，必须先于任何风控判断
	if t.ledger.RolloverIfNewDay(t.now()) {
		t.logger.Info("新交易日，当日统计已重置",
			zap.String("session_date", t.ledger.SessionDate()))
	}

	// 2. 各标的顺序处理，绝不并发动账本
	for _, instrument := range t.config.Trading.Instruments {
		if ctx.Err() != nil {
			t.logger.Warn("本轮处理超时，剩余标的跳过")
			break
		}
		t.processInstrument(ctx, instrument)
	}

	// 3. 在途合约对账，结算结果是唯一的账本变动来源
	t.reconcile(ctx)

	// 4. 持久化账本快照，失败只告警不中断
	if err := t.store.SaveLedgerSnapshot(ctx, t.ledger.Snapshot()); err != nil {
		t.logger.Warn("保存账本快照失败", zap.Error(err))
	}

	// 5. 硬性止损检查，触发后终止调度，重启需要外部介入
	if stop, reasons := risk.ShouldStopTrading(t.ledger, t.limits); stop {
		t.logger.Error("触发硬性止损，停止交易",
			zap.Strings("reasons", reasons),
			zap.String("balance", t.ledger.Balance().String()))

		t.mutex.Lock()
		t.halted = true
		t.mutex.Unlock()

		t.emit(&model.TickEvent{
			Kind:    model.EventHalted,
			Reasons: reasons,
		})
		return false
	}

	return true
}

// processInstrument 单标的处理：信号 → 投入计算 → 风控 → 下单
func (t *Trader) processInstrument(ctx context.Context, instrument string) {
	sig, err := t.producer.NextSignal(ctx, instrument)
	if err != nil {
		t.logger.Warn("获取信号失败",
			zap.String("instrument", instrument),
			zap.Error(err))
		t.emit(&model.TickEvent{
			Kind:       model.EventTickFailed,
			Instrument: instrument,
			Message:    err.Error(),
		})
		return
	}

	// 无信号直接跳过，不算失败
	if sig == nil {
		t.emit(&model.TickEvent{
			Kind:       model.EventNoSignal,
			Instrument: instrument,
		})
		return
	}

	stake := risk.CalculateStake(t.ledger, t.limits)

	decision := risk.Evaluate(t.ledger, t.limits, stake, instrument, t.now(), t.veto)
	if !decision.Allowed {
		t.logger.Info("风控拒绝交易",
			zap.String("instrument", instrument),
			zap.String("stake", stake.String()),
			zap.Strings("reasons", decision.Reasons))
		t.emit(&model.TickEvent{
			Kind:       model.EventDenied,
			Instrument: instrument,
			Stake:      stake,
			Reasons:    decision.Reasons,
		})
		return
	}

	t.submit(ctx, sig, stake)
}

// submit 提交订单并纳入生命周期管理
func (t *Trader) submit(ctx context.Context, sig *model.CandidateSignal, stake decimal.Decimal) {
	expiry := sig.Expiry
	if expiry <= 0 {
		expiry = time.Duration(t.config.Trading.ExpiryMinutes) * time.Minute
	}

	req := &execution.OrderRequest{
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Stake:      stake,
		Expiry:     expiry,
	}

	tradeID, err := t.port.Submit(ctx, req)
	if err != nil {
		// 下单失败按单笔拒绝处理，账本不动，不影响后续交易
		t.logger.Warn("下单失败",
			zap.String("instrument", sig.Instrument),
			zap.Error(err))

		rejected := &model.TradeRecord{
			Instrument:  sig.Instrument,
			Direction:   sig.Direction,
			Stake:       stake,
			SubmittedAt: t.now(),
			Expiry:      expiry,
			Status:      model.StatusRejected,
			FailReason:  err.Error(),
		}
		t.emit(&model.TickEvent{
			Kind:       model.EventRejected,
			Instrument: sig.Instrument,
			Stake:      stake,
			Message:    rejected.FailReason,
		})
		return
	}

	trade := &model.TradeRecord{
		ID:          tradeID,
		Instrument:  sig.Instrument,
		Direction:   sig.Direction,
		Stake:       stake,
		SubmittedAt: t.now(),
		Expiry:      expiry,
		Status:      model.StatusPending,
	}

	if err := t.lifecycle.Track(trade); err != nil {
		t.logger.Error("跟踪合约失败", zap.String("trade_id", tradeID), zap.Error(err))
		return
	}

	// 同步确认即激活
	if err := t.lifecycle.Activate(tradeID); err != nil {
		t.logger.Error("激活合约失败", zap.String("trade_id", tradeID), zap.Error(err))
	}

	if err := t.store.SaveOpenTrade(ctx, trade); err != nil {
		t.logger.Warn("持久化在途合约失败",
			zap.String("trade_id", tradeID),
			zap.Error(err))
	}

	t.logger.Info("下单成功",
		zap.String("trade_id", tradeID),
		zap.String("instrument", sig.Instrument),
		zap.String("direction", sig.Direction),
		zap.String("stake", stake.String()))

	t.emit(&model.TickEvent{
		Kind:       model.EventSubmitted,
		Instrument: sig.Instrument,
		Allowed:    true,
		Stake:      stake,
		TradeID:    tradeID,
	})
}

// reconcile 对账：查询在途合约，结算的交易写入账本并归档
func (t *Trader) reconcile(ctx context.Context) {
	terminal := t.lifecycle.Reconcile(ctx, t.port)

	for _, trade := range terminal {
		switch trade.Status {
		case model.StatusSettled:
			// 唯一的账本变动路径
			t.ledger.ApplyResult(trade.Stake, *trade.Result)

			t.logger.Info("交易已结算",
				zap.String("trade_id", trade.ID),
				zap.String("result", trade.Result.String()),
				zap.String("balance", t.ledger.Balance().String()))
			t.emit(&model.TickEvent{
				Kind:       model.EventSettled,
				Instrument: trade.Instrument,
				TradeID:    trade.ID,
				Stake:      trade.Stake,
				Result:     trade.Result,
			})

		case model.StatusRejected:
			t.emit(&model.TickEvent{
				Kind:       model.EventRejected,
				Instrument: trade.Instrument,
				TradeID:    trade.ID,
				Stake:      trade.Stake,
				Message:    trade.FailReason,
			})

		case model.StatusExpiredUnknown:
			// 结果未知绝不动账本，只告警
			t.emit(&model.TickEvent{
				Kind:       model.EventUnknown,
				Instrument: trade.Instrument,
				TradeID:    trade.ID,
				Stake:      trade.Stake,
				Message:    trade.FailReason,
			})
		}

		if err := t.store.ArchiveTrade(ctx, trade); err != nil {
			t.logger.Warn("归档交易记录失败",
				zap.String("trade_id", trade.ID),
				zap.Error(err))
		}
		if err := t.store.RemoveOpenTrade(ctx, trade.ID); err != nil {
			t.logger.Warn("移除在途合约失败",
				zap.String("trade_id", trade.ID),
				zap.Error(err))
		}
	}
}

// emit 补全账本快照与风险等级后发布事件
func (t *Trader) emit(event *model.TickEvent) {
	if t.events == nil {
		return
	}

	event.Timestamp = t.now()
	event.Ledger = t.ledger.Snapshot()
	event.RiskLevel = risk.ComputeMetrics(t.ledger, t.limits).RiskLevel
	t.events.Publish(event)
}
