package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/life2you_mini/binopt/internal/model"
)

// 交易日日期格式
const sessionDateLayout = "2006-01-02"

// Ledger 资金账本，进程内唯一的持久状态
// 仅由控制循环持有，只能通过 RolloverIfNewDay 和 ApplyResult 修改
type Ledger struct {
	balance     decimal.Decimal // 当前余额，只随已结算交易变动
	peakBalance decimal.Decimal // 历史最高余额，单调不减
	sessionDate string          // 当日统计对应的交易日

	dailyTrades int
	dailyWins   int
	dailyLosses int
	dailyProfit decimal.Decimal
	dailyLoss   decimal.Decimal // 按正数累计

	consecutiveWins   int
	consecutiveLosses int
}

// NewLedger 按初始余额创建账本
func NewLedger(initialBalance decimal.Decimal, now time.Time) *Ledger {
	return &Ledger{
		balance:     initialBalance,
		peakBalance: initialBalance,
		sessionDate: now.Format(sessionDateLayout),
		dailyProfit: decimal.Zero,
		dailyLoss:   decimal.Zero,
	}
}

// NewLedgerFromSnapshot 从快照完整恢复账本
// 快照必须包含全部字段，部分快照无效
func NewLedgerFromSnapshot(snap *model.LedgerSnapshot) *Ledger {
	return &Ledger{
		balance:           snap.Balance,
		peakBalance:       snap.PeakBalance,
		sessionDate:       snap.SessionDate,
		dailyTrades:       snap.DailyTrades,
		dailyWins:         snap.DailyWins,
		dailyLosses:       snap.DailyLosses,
		dailyProfit:       snap.DailyProfit,
		dailyLoss:         snap.DailyLoss,
		consecutiveWins:   snap.ConsecutiveWins,
		consecutiveLosses: snap.ConsecutiveLosses,
	}
}

// RolloverIfNewDay 跨日时重置当日统计，幂等
// 通过比较交易日与当前日期判断，而不是依赖定时器
func (l *Ledger) RolloverIfNewDay(now time.Time) bool {
	currentDate := now.Format(sessionDateLayout)
	if l.sessionDate == currentDate {
		return false
	}

	l.sessionDate = currentDate
	l.dailyTrades = 0
	l.dailyWins = 0
	l.dailyLosses = 0
	l.dailyProfit = decimal.Zero
	l.dailyLoss = decimal.Zero
	l.consecutiveWins = 0
	l.consecutiveLosses = 0
	return true
}

// ApplyResult 将一笔已结算交易的结果记入账本
// signedResult 为带符号盈亏；大于0记为盈利，否则记为亏损
// 调用方必须保证同一笔交易只结算一次（由生命周期管理器保证）
func (l *Ledger) ApplyResult(stake, signedResult decimal.Decimal) {
	l.balance = l.balance.Add(signedResult)

	// 先抬高峰值，再计算回撤
	if l.balance.GreaterThan(l.peakBalance) {
		l.peakBalance = l.balance
	}

	l.dailyTrades++

	if signedResult.GreaterThan(decimal.Zero) {
		l.dailyWins++
		l.dailyProfit = l.dailyProfit.Add(signedResult)
		l.consecutiveWins++
		l.consecutiveLosses = 0
	} else {
		l.dailyLosses++
		l.dailyLoss = l.dailyLoss.Add(signedResult.Abs())
		l.consecutiveLosses++
		l.consecutiveWins = 0
	}
}

// Balance 当前余额
func (l *Ledger) Balance() decimal.Decimal { return l.balance }

// PeakBalance 历史最高余额
func (l *Ledger) PeakBalance() decimal.Decimal { return l.peakBalance }

// SessionDate 当日统计对应的交易日
func (l *Ledger) SessionDate() string { return l.sessionDate }

// DailyTrades 当日已结算交易数
func (l *Ledger) DailyTrades() int { return l.dailyTrades }

// DailyWins 当日盈利次数
func (l *Ledger) DailyWins() int { return l.dailyWins }

// DailyLosses 当日亏损次数
func (l *Ledger) DailyLosses() int { return l.dailyLosses }

// DailyProfit 当日累计盈利
func (l *Ledger) DailyProfit() decimal.Decimal { return l.dailyProfit }

// DailyLoss 当日累计亏损（正数）
func (l *Ledger) DailyLoss() decimal.Decimal { return l.dailyLoss }

// ConsecutiveWins 连续盈利次数
func (l *Ledger) ConsecutiveWins() int { return l.consecutiveWins }

// ConsecutiveLosses 连续亏损次数
func (l *Ledger) ConsecutiveLosses() int { return l.consecutiveLosses }

// WinRate 当日胜率，无已结算交易时返回0
func (l *Ledger) WinRate() float64 {
	total := l.dailyWins + l.dailyLosses
	if total == 0 {
		return 0
	}
	return float64(l.dailyWins) / float64(total)
}

// DrawdownPercent 当前回撤百分比
func (l *Ledger) DrawdownPercent() decimal.Decimal {
	if l.peakBalance.IsZero() {
		return decimal.Zero
	}
	return l.peakBalance.Sub(l.balance).
		Div(l.peakBalance).
		Mul(decimal.NewFromInt(100))
}

// Snapshot 导出账本全部字段
func (l *Ledger) Snapshot() *model.LedgerSnapshot {
	return &model.LedgerSnapshot{
		Balance:           l.balance,
		PeakBalance:       l.peakBalance,
		SessionDate:       l.sessionDate,
		DailyTrades:       l.dailyTrades,
		DailyWins:         l.dailyWins,
		DailyLosses:       l.dailyLosses,
		DailyProfit:       l.dailyProfit,
		DailyLoss:         l.dailyLoss,
		ConsecutiveWins:   l.consecutiveWins,
		ConsecutiveLosses: l.consecutiveLosses,
	}
}
