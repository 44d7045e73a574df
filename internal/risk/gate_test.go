package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life2you_mini/binopt/internal/config"
)

func testLimits() *Limits {
	return NewLimits(&config.RiskManagementConfig{
		InitialBalance:       1000,
		MaxDailyLoss:         100,
		MaxDailyTrades:       50,
		MaxConsecutiveLosses: 5,
		MaxDrawdownPercent:   20,
		MinBalance:           100,
		BaseStakePercent:     2,
		MaxStakePercent:      5,
		MinStake:             1,
		MaxStake:             100,
		StakeIncrement:       0.01,
	})
}

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func TestEvaluate_全部检查通过(t *testing.T) {
	l := NewLedger(d(1000), testNow)

	decision := Evaluate(l, testLimits(), d(20), "R_50", testNow, nil)

	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reasons)
}

func TestEvaluate_每日亏损上限(t *testing.T) {
	// 场景：初始余额1000，单笔亏损100后，下一次风控判定必须拒绝
	l := NewLedger(d(1000), testNow)
	l.ApplyResult(d(100), d(-100))

	require.True(t, l.DailyLoss().Equal(d(100)))

	decision := Evaluate(l, testLimits(), d(20), "R_50", testNow, nil)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, ReasonDailyLossLimit)
}

func TestEvaluate_连续亏损上限(t *testing.T) {
	// 场景：连续亏损5笔（上限5），第6个候选信号被拒绝
	l := NewLedger(d(10000), testNow)
	for i := 0; i < 5; i++ {
		l.ApplyResult(d(10), d(-10))
	}

	limits := testLimits()
	limits.MaxDailyLoss = d(1000) // 不让每日亏损先触发

	decision := Evaluate(l, limits, d(20), "R_50", testNow, nil)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, ReasonConsecutiveLosses)

	// 一笔盈利后连亏归零，重新放行
	l.ApplyResult(d(10), d(8))
	assert.Equal(t, 0, l.ConsecutiveLosses())

	decision = Evaluate(l, limits, d(20), "R_50", testNow, nil)
	assert.True(t, decision.Allowed, "原因: %v", decision.Reasons)
}

func TestEvaluate_回撤上限(t *testing.T) {
	// 场景：峰值1000跌至790，回撤21%，上限20%时拒绝
	l := NewLedger(d(1000), testNow)
	l.ApplyResult(d(100), d(-210))

	limits := testLimits()
	limits.MaxDailyLoss = d(1000) // 隔离回撤检查

	decision := Evaluate(l, limits, d(20), "R_50", testNow, nil)

	assert.False(t, decision.Allowed)
	found := false
	for _, r := range decision.Reasons {
		if strings.HasPrefix(r, ReasonDrawdownLimit) {
			found = true
		}
	}
	assert.True(t, found, "应包含回撤原因, 实际: %v", decision.Reasons)
}

func TestEvaluate_余额下限(t *testing.T) {
	l := NewLedger(d(150), testNow)
	l.ApplyResult(d(50), d(-50))

	decision := Evaluate(l, testLimits(), d(1), "R_50", testNow, nil)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, ReasonBalanceFloor)
}

func TestEvaluate_投入边界(t *testing.T) {
	l := NewLedger(d(1000), testNow)
	limits := testLimits()

	tests := []struct {
		name   string
		stake  decimal.Decimal
		reason string
	}{
		{
			name:   "低于最小投入",
			stake:  d(0.5),
			reason: ReasonStakeBelowMin,
		},
		{
			name:   "高于最大投入",
			stake:  d(150),
			reason: ReasonStakeAboveMax,
		},
		{
			name:   "占余额比例超限",
			stake:  d(60), // 6% > 5%
			reason: ReasonStakePercent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Evaluate(l, limits, tt.stake, "R_50", testNow, nil)
			assert.False(t, decision.Allowed)
			assert.Contains(t, decision.Reasons, tt.reason)
		})
	}

	// 负数投入属于不变量违规，必然被投入下界拒绝，不会进入下单流程
	decision := Evaluate(l, limits, d(-10), "R_50", testNow, nil)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, ReasonStakeBelowMin)
}

func TestEvaluate_市场条件否决(t *testing.T) {
	l := NewLedger(d(1000), testNow)

	veto := func(instrument string, now time.Time) (bool, string) {
		return false, "重要新闻发布期间禁止交易"
	}

	decision := Evaluate(l, testLimits(), d(20), "R_50", testNow, veto)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, "重要新闻发布期间禁止交易")
}

func TestEvaluate_收集全部原因不短路(t *testing.T) {
	// 同时触发多条限制时，全部原因都要出现在结果中
	l := NewLedger(d(1000), testNow)
	for i := 0; i < 6; i++ {
		l.ApplyResult(d(100), d(-100))
	}
	// 此时：每日亏损600、连亏6、余额400、回撤60%

	decision := Evaluate(l, testLimits(), d(200), "R_50", testNow, nil)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reasons, ReasonDailyLossLimit)
	assert.Contains(t, decision.Reasons, ReasonConsecutiveLosses)
	assert.Contains(t, decision.Reasons, ReasonStakeAboveMax)
	assert.GreaterOrEqual(t, len(decision.Reasons), 4)
}

func TestEvaluate_放行蕴含全部条件满足(t *testing.T) {
	// 属性：allowed == true 蕴含六项检查全部未触发
	limits := testLimits()

	ledgers := []*Ledger{
		NewLedger(d(1000), testNow),
		NewLedger(d(500), testNow),
		NewLedger(d(101), testNow),
	}
	for _, l := range ledgers {
		for _, stake := range []decimal.Decimal{d(1), d(5), d(25), d(100)} {
			decision := Evaluate(l, limits, stake, "R_50", testNow, nil)
			if decision.Allowed {
				assert.True(t, l.DailyLoss().LessThan(limits.MaxDailyLoss))
				assert.Less(t, l.DailyTrades(), limits.MaxDailyTrades)
				assert.Less(t, l.ConsecutiveLosses(), limits.MaxConsecutiveLosses)
				assert.True(t, l.Balance().GreaterThan(limits.MinBalance))
				assert.True(t, l.DrawdownPercent().LessThan(limits.MaxDrawdownPercent))
				assert.True(t, stake.GreaterThanOrEqual(limits.MinStake))
				assert.True(t, stake.LessThanOrEqual(limits.MaxStake))
			}
		}
	}
}
