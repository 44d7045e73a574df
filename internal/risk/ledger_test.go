package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestLedger_ApplyResult_余额与峰值(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l := NewLedger(d(1000), now)

	// 余额等于初始余额加所有带符号结果之和，峰值为余额序列的滚动最大值
	results := []float64{80, -100, 50, -10, 120}
	expectedBalance := 1000.0
	expectedPeak := 1000.0

	for _, r := range results {
		l.ApplyResult(d(100), d(r))
		expectedBalance += r
		if expectedBalance > expectedPeak {
			expectedPeak = expectedBalance
		}

		assert.True(t, l.Balance().Equal(d(expectedBalance)),
			"余额应为 %v, 实际 %v", expectedBalance, l.Balance())
		assert.True(t, l.PeakBalance().Equal(d(expectedPeak)),
			"峰值应为 %v, 实际 %v", expectedPeak, l.PeakBalance())
	}

	assert.Equal(t, len(results), l.DailyTrades())
}

func TestLedger_ApplyResult_连胜连亏互斥(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l := NewLedger(d(1000), now)

	// 任意结果序列后，连胜与连亏至多一个非零
	results := []float64{10, 10, -10, -10, -10, 10, 0, -5, 20}
	for _, r := range results {
		l.ApplyResult(d(10), d(r))
		assert.False(t, l.ConsecutiveWins() > 0 && l.ConsecutiveLosses() > 0,
			"连胜(%d)与连亏(%d)不能同时非零", l.ConsecutiveWins(), l.ConsecutiveLosses())
	}

	// 结果为0按亏损处理
	assert.Equal(t, 0, l.ConsecutiveLosses())
	assert.Equal(t, 1, l.ConsecutiveWins())
}

func TestLedger_ApplyResult_盈亏统计(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l := NewLedger(d(1000), now)

	l.ApplyResult(d(50), d(40))
	l.ApplyResult(d(50), d(-50))
	l.ApplyResult(d(50), d(-50))

	assert.Equal(t, 1, l.DailyWins())
	assert.Equal(t, 2, l.DailyLosses())
	assert.True(t, l.DailyProfit().Equal(d(40)))
	// 亏损按正数累计
	assert.True(t, l.DailyLoss().Equal(d(100)))
	assert.Equal(t, 2, l.ConsecutiveLosses())
	assert.Equal(t, 0, l.ConsecutiveWins())
}

func TestLedger_RolloverIfNewDay_幂等(t *testing.T) {
	day1 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l := NewLedger(d(1000), day1)

	l.ApplyResult(d(50), d(-50))
	require.Equal(t, 1, l.DailyTrades())

	// 同一天内调用不产生任何变化
	assert.False(t, l.RolloverIfNewDay(day1.Add(2*time.Hour)))
	assert.Equal(t, 1, l.DailyTrades())

	// 跨日后重置当日统计，余额与峰值保留
	day2 := day1.Add(24 * time.Hour)
	assert.True(t, l.RolloverIfNewDay(day2))
	assert.Equal(t, 0, l.DailyTrades())
	assert.Equal(t, 0, l.ConsecutiveLosses())
	assert.True(t, l.DailyLoss().IsZero())
	assert.True(t, l.Balance().Equal(d(950)))
	assert.True(t, l.PeakBalance().Equal(d(1000)))

	// 第二次调用不再变化
	assert.False(t, l.RolloverIfNewDay(day2.Add(time.Hour)))
}

func TestLedger_Snapshot_完整恢复(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l := NewLedger(d(1000), now)
	l.ApplyResult(d(20), d(17))
	l.ApplyResult(d(20), d(-20))

	snap := l.Snapshot()
	restored := NewLedgerFromSnapshot(snap)

	assert.True(t, restored.Balance().Equal(l.Balance()))
	assert.True(t, restored.PeakBalance().Equal(l.PeakBalance()))
	assert.Equal(t, l.SessionDate(), restored.SessionDate())
	assert.Equal(t, l.DailyTrades(), restored.DailyTrades())
	assert.Equal(t, l.DailyWins(), restored.DailyWins())
	assert.Equal(t, l.DailyLosses(), restored.DailyLosses())
	assert.True(t, restored.DailyProfit().Equal(l.DailyProfit()))
	assert.True(t, restored.DailyLoss().Equal(l.DailyLoss()))
	assert.Equal(t, l.ConsecutiveWins(), restored.ConsecutiveWins())
	assert.Equal(t, l.ConsecutiveLosses(), restored.ConsecutiveLosses())
}

func TestLedger_WinRate_无交易为零(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	l := NewLedger(d(1000), now)

	assert.Equal(t, 0.0, l.WinRate())

	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(-10))

	assert.InDelta(t, 0.75, l.WinRate(), 1e-9)
}
