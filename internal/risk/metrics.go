package risk

import (
	"github.com/shopspring/decimal"
)

// 风险等级常量
const (
	RiskLevelLow      = "LOW"
	RiskLevelMedium   = "MEDIUM"
	RiskLevelHigh     = "HIGH"
	RiskLevelCritical = "CRITICAL"
)

// 风险等级划分阈值
const (
	highDrawdownPercent   = 15.0 // 回撤超过此值为高风险
	mediumDrawdownPercent = 10.0 // 回撤超过此值为中风险
	highConsecutiveLosses = 3    // 连续亏损超过此值为高风险
	medConsecutiveLosses  = 2    // 连续亏损超过此值为中风险
)

// Metrics 风险指标，按需从账本推导，不做存储
type Metrics struct {
	DailyLoss         decimal.Decimal `json:"daily_loss"`
	DailyProfit       decimal.Decimal `json:"daily_profit"`
	DailyTrades       int             `json:"daily_trades"`
	ConsecutiveWins   int             `json:"consecutive_wins"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	CurrentDrawdown   decimal.Decimal `json:"current_drawdown"` // 百分比
	WinRate           float64         `json:"win_rate"`
	RiskLevel         string          `json:"risk_level"`
}

// ComputeMetrics 计算当前风险指标
func ComputeMetrics(l *Ledger, limits *Limits) *Metrics {
	drawdown := l.DrawdownPercent()

	// 根据回撤和连续亏损划分风险等级
	level := RiskLevelLow
	ddFloat, _ := drawdown.Float64()
	switch {
	case ddFloat > highDrawdownPercent || l.ConsecutiveLosses() > highConsecutiveLosses:
		level = RiskLevelHigh
	case ddFloat > mediumDrawdownPercent || l.ConsecutiveLosses() > medConsecutiveLosses:
		level = RiskLevelMedium
	}

	// 余额触及下限时无条件升级为CRITICAL
	if l.Balance().LessThanOrEqual(limits.MinBalance) {
		level = RiskLevelCritical
	}

	return &Metrics{
		DailyLoss:         l.DailyLoss(),
		DailyProfit:       l.DailyProfit(),
		DailyTrades:       l.DailyTrades(),
		ConsecutiveWins:   l.ConsecutiveWins(),
		ConsecutiveLosses: l.ConsecutiveLosses(),
		CurrentDrawdown:   drawdown,
		WinRate:           l.WinRate(),
		RiskLevel:         level,
	}
}

// ShouldStopTrading 判断是否触发硬性止损条件
// 与单笔投入无关的检查（每日亏损、连续亏损、余额下限、回撤）
// 任意一条成立，或风险等级为CRITICAL，控制循环必须终止
// 返回触发的全部原因，供停机日志记录
func ShouldStopTrading(l *Ledger, limits *Limits) (bool, []string) {
	var reasons []string

	metrics := ComputeMetrics(l, limits)
	if metrics.RiskLevel == RiskLevelCritical {
		reasons = append(reasons, "风险等级为CRITICAL")
	}

	if l.DailyLoss().GreaterThanOrEqual(limits.MaxDailyLoss) {
		reasons = append(reasons, ReasonDailyLossLimit)
	}

	if l.ConsecutiveLosses() >= limits.MaxConsecutiveLosses {
		reasons = append(reasons, ReasonConsecutiveLosses)
	}

	if l.Balance().LessThanOrEqual(limits.MinBalance) {
		reasons = append(reasons, ReasonBalanceFloor)
	}

	if !l.PeakBalance().IsZero() && l.DrawdownPercent().GreaterThanOrEqual(limits.MaxDrawdownPercent) {
		reasons = append(reasons, ReasonDrawdownLimit)
	}

	return len(reasons) > 0, reasons
}
