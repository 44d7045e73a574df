package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/life2you_mini/binopt/internal/config"
)

// 拒绝原因常量，每条硬性限制对应一条人类可读的原因
const (
	ReasonDailyLossLimit    = "达到每日亏损上限"
	ReasonDailyTradeLimit   = "达到每日交易次数上限"
	ReasonConsecutiveLosses = "连续亏损次数过多"
	ReasonBalanceFloor      = "余额低于允许的下限"
	ReasonDrawdownLimit     = "达到最大回撤上限"
	ReasonStakeBelowMin     = "投入金额低于最小值"
	ReasonStakeAboveMax     = "投入金额高于最大值"
	ReasonStakePercent      = "投入金额占余额比例超限"
)

// Limits 风险限制，启动时由配置构建，运行期间只读
type Limits struct {
	MaxDailyLoss         decimal.Decimal // 每日最大亏损
	MaxDailyTrades       int             // 每日最大交易次数
	MaxConsecutiveLosses int             // 最大连续亏损次数
	MaxDrawdownPercent   decimal.Decimal // 最大回撤百分比
	MinBalance           decimal.Decimal // 余额下限
	BaseStakePercent     decimal.Decimal // 基础投入占余额百分比
	MaxStakePercent      decimal.Decimal // 单笔投入占余额上限百分比
	MinStake             decimal.Decimal // 单笔最小投入
	MaxStake             decimal.Decimal // 单笔最大投入
	StakeIncrement       decimal.Decimal // 券商最小货币单位
}

// NewLimits 从配置构建风险限制
func NewLimits(cfg *config.RiskManagementConfig) *Limits {
	return &Limits{
		MaxDailyLoss:         decimal.NewFromFloat(cfg.MaxDailyLoss),
		MaxDailyTrades:       cfg.MaxDailyTrades,
		MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		MaxDrawdownPercent:   decimal.NewFromFloat(cfg.MaxDrawdownPercent),
		MinBalance:           decimal.NewFromFloat(cfg.MinBalance),
		BaseStakePercent:     decimal.NewFromFloat(cfg.BaseStakePercent),
		MaxStakePercent:      decimal.NewFromFloat(cfg.MaxStakePercent),
		MinStake:             decimal.NewFromFloat(cfg.MinStake),
		MaxStake:             decimal.NewFromFloat(cfg.MaxStake),
		StakeIncrement:       decimal.NewFromFloat(cfg.StakeIncrement),
	}
}

// Decision 风控评估结果
// Reasons 为空时才允许执行交易
type Decision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

// MarketVeto 市场条件否决器，由调用方注入（如新闻封锁期、波动率过滤）
// 返回 false 时给出对应原因
type MarketVeto func(instrument string, now time.Time) (bool, string)

// Evaluate 原子评估全部风控检查
// 所有检查独立运行且不短路，收集每一条违反的限制，
// 便于调用方一次性记录/告警全部违规项
// 调用前必须先执行 RolloverIfNewDay，避免跨日重置与风控判定竞争
func Evaluate(l *Ledger, limits *Limits, proposedStake decimal.Decimal, instrument string, now time.Time, veto MarketVeto) Decision {
	var reasons []string

	// 1. 每日亏损上限
	if l.DailyLoss().GreaterThanOrEqual(limits.MaxDailyLoss) {
		reasons = append(reasons, ReasonDailyLossLimit)
	}

	// 2. 每日交易次数上限
	if l.DailyTrades() >= limits.MaxDailyTrades {
		reasons = append(reasons, ReasonDailyTradeLimit)
	}

	// 3. 连续亏损上限
	if l.ConsecutiveLosses() >= limits.MaxConsecutiveLosses {
		reasons = append(reasons, ReasonConsecutiveLosses)
	}

	// 4. 余额下限
	if l.Balance().LessThanOrEqual(limits.MinBalance) {
		reasons = append(reasons, ReasonBalanceFloor)
	}

	// 5. 回撤上限（峰值为0时跳过，实际不可达：峰值从非零初始余额开始）
	if !l.PeakBalance().IsZero() {
		if l.DrawdownPercent().GreaterThanOrEqual(limits.MaxDrawdownPercent) {
			reasons = append(reasons,
				fmt.Sprintf("%s (当前回撤 %s%%)", ReasonDrawdownLimit, l.DrawdownPercent().StringFixed(1)))
		}
	}

	// 6. 投入金额边界
	if proposedStake.LessThan(limits.MinStake) {
		reasons = append(reasons, ReasonStakeBelowMin)
	}
	if proposedStake.GreaterThan(limits.MaxStake) {
		reasons = append(reasons, ReasonStakeAboveMax)
	}
	if !l.Balance().IsZero() {
		stakePercent := proposedStake.Div(l.Balance()).Mul(decimal.NewFromInt(100))
		if stakePercent.GreaterThan(limits.MaxStakePercent) {
			reasons = append(reasons, ReasonStakePercent)
		}
	}

	// 7. 市场条件否决（黑盒）
	if veto != nil {
		if ok, reason := veto(instrument, now); !ok {
			reasons = append(reasons, reason)
		}
	}

	return Decision{
		Allowed: len(reasons) == 0,
		Reasons: reasons,
	}
}
