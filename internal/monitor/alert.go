package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/model"
	"github.com/life2you_mini/binopt/internal/risk"
)

// 告警阈值
const (
	alertDrawdownPercent   = 15.0 // 回撤超过该百分比告警
	alertConsecutiveLosses = 3    // 连续亏损达到该次数告警
	alertLargeLoss         = 50.0 // 单笔亏损超过该金额告警

	// 事件缓冲区大小，满时丢弃新事件，绝不阻塞交易主循环
	eventBufferSize = 256
)

// Monitor 消费交易事件并按条件发送告警
type Monitor struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	notifier Notifier
	reporter *Reporter

	events chan *model.TickEvent

	wg        sync.WaitGroup
	isRunning bool
	mutex     sync.Mutex
}

// NewMonitor 创建监控器，notifier可为nil（只记录日志不外发）
func NewMonitor(parentCtx context.Context, logger *zap.Logger, notifier Notifier, reporter *Reporter) *Monitor {
	ctx, cancel := context.WithCancel(parentCtx)

	return &Monitor{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(zap.String("component", "monitor")),
		notifier: notifier,
		reporter: reporter,
		events:   make(chan *model.TickEvent, eventBufferSize),
	}
}

// Publish 接收交易事件，缓冲区满时丢弃并记录
func (m *Monitor) Publish(event *model.TickEvent) {
	select {
	case m.events <- event:
	default:
		m.logger.Warn("事件缓冲区已满，丢弃事件", zap.String("kind", event.Kind))
	}
}

// Start 启动事件消费协程
func (m *Monitor) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.isRunning {
		return fmt.Errorf("监控器已在运行")
	}

	m.logger.Info("启动监控器")
	m.isRunning = true

	m.wg.Add(1)
	go m.consumeEvents()

	return nil
}

// Stop 停止监控器
func (m *Monitor) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.isRunning {
		return nil
	}

	m.logger.Info("停止监控器")
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("监控器已停止")
	case <-time.After(5 * time.Second):
		m.logger.Warn("监控器停止超时")
	}

	m.isRunning = false
	return nil
}

// consumeEvents 事件消费主循环
func (m *Monitor) consumeEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("结束事件消费")
			return
		case event := <-m.events:
			m.handleEvent(event)
		}
	}
}

// handleEvent 按事件类型检查告警条件
func (m *Monitor) handleEvent(event *model.TickEvent) {
	if m.reporter != nil {
		m.reporter.Record(event)
	}

	switch event.Kind {
	case model.EventSettled:
		m.checkRiskAlerts(event)

	case model.EventUnknown:
		m.alert(fmt.Sprintf("⚠️ 合约结算结果无法确认\n合约: %s\n标的: %s\n投入: %s\n%s\n请人工核对券商流水",
			event.TradeID, event.Instrument, event.Stake.String(), event.Message))

	case model.EventHalted:
		m.alert(fmt.Sprintf("🔴 触发硬性止损，交易已停止\n原因:\n- %s\n当前余额: %s\n恢复交易需要人工介入",
			strings.Join(event.Reasons, "\n- "), event.Ledger.Balance.String()))
	}
}

// checkRiskAlerts 结算后的风险状态告警
func (m *Monitor) checkRiskAlerts(event *model.TickEvent) {
	ledger := event.Ledger
	if ledger == nil {
		return
	}

	// 大额单笔亏损
	if event.Result != nil && event.Result.IsNegative() {
		loss, _ := event.Result.Abs().Float64()
		if loss > alertLargeLoss {
			m.alert(fmt.Sprintf("📉 单笔大额亏损\n合约: %s\n标的: %s\n亏损: %s",
				event.TradeID, event.Instrument, event.Result.Abs().String()))
		}
	}

	// 回撤过高
	if !ledger.PeakBalance.IsZero() {
		drawdown := ledger.PeakBalance.Sub(ledger.Balance).
			Div(ledger.PeakBalance).Mul(hundred())
		if dd, _ := drawdown.Float64(); dd > alertDrawdownPercent {
			m.alert(fmt.Sprintf("⚠️ 回撤告警\n当前回撤: %s%%\n当前余额: %s",
				drawdown.StringFixed(2), ledger.Balance.String()))
		}
	}

	// 连续亏损
	if ledger.ConsecutiveLosses >= alertConsecutiveLosses {
		m.alert(fmt.Sprintf("🚨 连续亏损告警\n连续亏损次数: %d\n建议检查策略或暂停交易",
			ledger.ConsecutiveLosses))
	}

	// 风险等级CRITICAL
	if event.RiskLevel == risk.RiskLevelCritical {
		m.alert(fmt.Sprintf("🔴 风险等级CRITICAL\n当前余额: %s\n交易将自动停止",
			ledger.Balance.String()))
	}
}

// alert 发送告警，发送失败只记录日志
func (m *Monitor) alert(text string) {
	m.logger.Warn("触发告警", zap.String("text", text))

	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(text); err != nil {
		m.logger.Error("发送告警失败", zap.Error(err))
	}
}
