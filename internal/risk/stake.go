package risk

import (
	"github.com/shopspring/decimal"
)

// 胜率调整阈值
const (
	goodWinRate = 0.7 // 高于此胜率加大投入
	poorWinRate = 0.5 // 低于此胜率缩减投入
)

var hundred = decimal.NewFromInt(100)

// CalculateStake 根据资金管理规则计算单笔投入金额
// 基础投入为余额的固定百分比，并按当日表现调整：
// 胜率高于0.7乘1.2，低于0.5乘0.8（当日无已结算交易视为中性），
// 连续亏损超过2次再减半（与胜率调整叠加）
// 结果截断到券商最小货币单位并收敛到 [MinStake, MaxStake]
// 输出总是会再经过风控的投入边界检查，这里的收敛并非唯一防线
func CalculateStake(l *Ledger, limits *Limits) decimal.Decimal {
	baseStake := l.Balance().Mul(limits.BaseStakePercent).Div(hundred)

	multiplier := decimal.NewFromFloat(1.0)
	if l.DailyTrades() > 0 {
		winRate := l.WinRate()
		if winRate > goodWinRate {
			multiplier = decimal.NewFromFloat(1.2)
		} else if winRate < poorWinRate {
			multiplier = decimal.NewFromFloat(0.8)
		}
	}

	// 连续亏损后缩减投入
	if l.ConsecutiveLosses() > 2 {
		multiplier = multiplier.Mul(decimal.NewFromFloat(0.5))
	}

	stake := baseStake.Mul(multiplier)

	// 收敛到硬性边界
	if stake.LessThan(limits.MinStake) {
		stake = limits.MinStake
	}
	if stake.GreaterThan(limits.MaxStake) {
		stake = limits.MaxStake
	}

	// 截断到券商最小货币单位，截断后不得低于最小投入
	stake = stake.Div(limits.StakeIncrement).Floor().Mul(limits.StakeIncrement)
	if stake.LessThan(limits.MinStake) {
		stake = limits.MinStake
	}

	return stake
}
