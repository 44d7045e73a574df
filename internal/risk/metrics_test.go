package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMetrics_风险等级划分(t *testing.T) {
	limits := testLimits()

	tests := []struct {
		name          string
		setup         func() *Ledger
		expectedLevel string
	}{
		{
			name: "低风险-初始状态",
			setup: func() *Ledger {
				return NewLedger(d(1000), testNow)
			},
			expectedLevel: RiskLevelLow,
		},
		{
			name: "中风险-回撤超过10%",
			setup: func() *Ledger {
				l := NewLedger(d(1000), testNow)
				l.ApplyResult(d(50), d(-120))
				l.ApplyResult(d(50), d(10))
				return l
			},
			expectedLevel: RiskLevelMedium,
		},
		{
			name: "中风险-连亏超过2次",
			setup: func() *Ledger {
				l := NewLedger(d(10000), testNow)
				l.ApplyResult(d(10), d(-10))
				l.ApplyResult(d(10), d(-10))
				l.ApplyResult(d(10), d(-10))
				return l
			},
			expectedLevel: RiskLevelMedium,
		},
		{
			name: "高风险-回撤超过15%",
			setup: func() *Ledger {
				l := NewLedger(d(1000), testNow)
				l.ApplyResult(d(50), d(-170))
				l.ApplyResult(d(50), d(10))
				return l
			},
			expectedLevel: RiskLevelHigh,
		},
		{
			name: "高风险-连亏超过3次",
			setup: func() *Ledger {
				l := NewLedger(d(10000), testNow)
				for i := 0; i < 4; i++ {
					l.ApplyResult(d(10), d(-10))
				}
				return l
			},
			expectedLevel: RiskLevelHigh,
		},
		{
			name: "CRITICAL-余额触及下限时覆盖其他等级",
			setup: func() *Ledger {
				l := NewLedger(d(1000), testNow)
				l.ApplyResult(d(100), d(-950))
				return l
			},
			expectedLevel: RiskLevelCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := ComputeMetrics(tt.setup(), limits)
			assert.Equal(t, tt.expectedLevel, metrics.RiskLevel)
		})
	}
}

func TestShouldStopTrading_硬性止损条件(t *testing.T) {
	limits := testLimits()

	// 初始状态不停机
	l := NewLedger(d(1000), testNow)
	stop, reasons := ShouldStopTrading(l, limits)
	assert.False(t, stop)
	assert.Empty(t, reasons)

	// 每日亏损触顶后必须停机
	l.ApplyResult(d(100), d(-100))
	stop, reasons = ShouldStopTrading(l, limits)
	assert.True(t, stop)
	assert.Contains(t, reasons, ReasonDailyLossLimit)
}

func TestShouldStopTrading_停机原因齐全(t *testing.T) {
	limits := testLimits()

	// 把账本打到所有条件同时触发
	l := NewLedger(d(1000), testNow)
	for i := 0; i < 5; i++ {
		l.ApplyResult(d(100), d(-180))
	}
	// 余额100、每日亏损900、连亏5、回撤90%

	stop, reasons := ShouldStopTrading(l, limits)
	assert.True(t, stop)
	assert.Contains(t, reasons, ReasonDailyLossLimit)
	assert.Contains(t, reasons, ReasonConsecutiveLosses)
	assert.Contains(t, reasons, ReasonBalanceFloor)
	assert.Contains(t, reasons, ReasonDrawdownLimit)
	assert.Contains(t, reasons, "风险等级为CRITICAL")
}

func TestComputeMetrics_指标取值(t *testing.T) {
	limits := testLimits()

	l := NewLedger(d(1000), testNow)
	l.ApplyResult(d(50), d(40))
	l.ApplyResult(d(50), d(-50))

	metrics := ComputeMetrics(l, limits)

	assert.True(t, metrics.DailyProfit.Equal(d(40)))
	assert.True(t, metrics.DailyLoss.Equal(d(50)))
	assert.Equal(t, 2, metrics.DailyTrades)
	assert.Equal(t, 1, metrics.ConsecutiveLosses)
	assert.InDelta(t, 0.5, metrics.WinRate, 1e-9)
	// 峰值1040，余额990 → 回撤约4.8%
	dd, _ := metrics.CurrentDrawdown.Float64()
	assert.InDelta(t, 4.807, dd, 0.01)
}
