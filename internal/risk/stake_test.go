package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateStake_胜率加成(t *testing.T) {
	// 场景：基础投入2%、余额1000、胜率0.75、无连亏 → 1000×0.02×1.2 = 24
	l := NewLedger(d(1000), testNow)
	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(-10))
	// 余额变动后重新构造一个余额恰好为1000的账本以匹配场景
	snap := l.Snapshot()
	snap.Balance = d(1000)
	snap.PeakBalance = d(1000)
	l = NewLedgerFromSnapshot(snap)

	stake := CalculateStake(l, testLimits())

	assert.True(t, stake.Equal(d(24)), "期望24, 实际 %s", stake)
}

func TestCalculateStake_当日无交易为中性(t *testing.T) {
	// 胜率未定义（当日零交易）时乘数保持1.0
	l := NewLedger(d(1000), testNow)

	stake := CalculateStake(l, testLimits())

	assert.True(t, stake.Equal(d(20)), "期望20, 实际 %s", stake)
}

func TestCalculateStake_低胜率缩减(t *testing.T) {
	l := NewLedger(d(1000), testNow)
	l.ApplyResult(d(10), d(8))
	l.ApplyResult(d(10), d(-10))
	l.ApplyResult(d(10), d(-10))
	// 胜率 1/3 < 0.5 → ×0.8；连亏2不触发减半
	snap := l.Snapshot()
	snap.Balance = d(1000)
	l = NewLedgerFromSnapshot(snap)

	stake := CalculateStake(l, testLimits())

	assert.True(t, stake.Equal(d(16)), "期望16, 实际 %s", stake)
}

func TestCalculateStake_连亏减半叠加(t *testing.T) {
	l := NewLedger(d(1000), testNow)
	l.ApplyResult(d(10), d(-10))
	l.ApplyResult(d(10), d(-10))
	l.ApplyResult(d(10), d(-10))
	// 胜率0 < 0.5 → ×0.8；连亏3 > 2 → 再×0.5
	snap := l.Snapshot()
	snap.Balance = d(1000)
	l = NewLedgerFromSnapshot(snap)

	stake := CalculateStake(l, testLimits())

	// 1000×0.02×0.8×0.5 = 8
	assert.True(t, stake.Equal(d(8)), "期望8, 实际 %s", stake)
}

func TestCalculateStake_输出总在边界内(t *testing.T) {
	limits := testLimits()

	// 属性：任意账本状态下输出都落在 [MinStake, MaxStake]
	balances := []float64{0.5, 1, 50, 100, 1000, 100000, 1000000}
	for _, b := range balances {
		// 零交易账本
		l := NewLedger(d(b), testNow)
		stake := CalculateStake(l, limits)
		assert.True(t, stake.GreaterThanOrEqual(limits.MinStake),
			"余额%v时投入%v低于下限", b, stake)
		assert.True(t, stake.LessThanOrEqual(limits.MaxStake),
			"余额%v时投入%v高于上限", b, stake)

		// 连亏账本
		for i := 0; i < 4; i++ {
			l.ApplyResult(d(1), d(-1))
		}
		stake = CalculateStake(l, limits)
		assert.True(t, stake.GreaterThanOrEqual(limits.MinStake))
		assert.True(t, stake.LessThanOrEqual(limits.MaxStake))
	}
}

func TestCalculateStake_截断到最小货币单位(t *testing.T) {
	limits := testLimits()

	l := NewLedger(d(1234.56), testNow)
	stake := CalculateStake(l, limits)

	// 1234.56×0.02 = 24.6912 → 截断到0.01 → 24.69
	assert.True(t, stake.Equal(decimal.NewFromFloat(24.69)), "期望24.69, 实际 %s", stake)
}
