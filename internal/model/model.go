package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 交易方向常量
const (
	DirectionCall = "CALL"
	DirectionPut  = "PUT"
)

// 交易状态常量
const (
	StatusPending        = "PENDING"         // 已提交，等待券商确认
	StatusActive         = "ACTIVE"          // 券商已确认，合约进行中
	StatusSettled        = "SETTLED"         // 终态：已结算，结果已知
	StatusRejected       = "REJECTED"        // 终态：券商拒绝或提交失败
	StatusExpiredUnknown = "EXPIRED_UNKNOWN" // 终态：超时仍无法确认结算结果
)

// CandidateSignal 候选交易信号，由外部信号源生成，接收后不可变
type CandidateSignal struct {
	Instrument string        `json:"instrument"` // 标的资产
	Direction  string        `json:"direction"`  // "CALL" 或 "PUT"
	Confidence float64       `json:"confidence"` // 信号置信度 [0,1]
	Expiry     time.Duration `json:"expiry"`     // 建议的合约到期时长
	Timestamp  time.Time     `json:"timestamp"`  // 信号生成时间
}

// TradeRecord 代表一笔已提交的交易
// 从提交到结算由生命周期管理器持有，结算后归档且不再修改
type TradeRecord struct {
	ID          string           `json:"id"`                    // 券商返回的合约ID
	Instrument  string           `json:"instrument"`            // 标的资产
	Direction   string           `json:"direction"`             // "CALL" 或 "PUT"
	Stake       decimal.Decimal  `json:"stake"`                 // 投入本金
	SubmittedAt time.Time        `json:"submitted_at"`          // 提交时间
	Expiry      time.Duration    `json:"expiry"`                // 合约时长
	Status      string           `json:"status"`                // 当前状态
	Result      *decimal.Decimal `json:"result,omitempty"`      // 带符号的盈亏，结算前为空
	FailReason  string           `json:"fail_reason,omitempty"` // 拒绝原因
	SettledAt   *time.Time       `json:"settled_at,omitempty"`  // 结算时间
}

// IsTerminal 判断交易是否已进入终态
func (r *TradeRecord) IsTerminal() bool {
	switch r.Status {
	case StatusSettled, StatusRejected, StatusExpiredUnknown:
		return true
	}
	return false
}

// 事件类型常量
const (
	EventSubmitted  = "SUBMITTED"   // 订单已提交
	EventDenied     = "DENIED"      // 风控拒绝
	EventSettled    = "SETTLED"     // 交易已结算
	EventRejected   = "REJECTED"    // 券商拒绝
	EventUnknown    = "UNKNOWN"     // 结算结果无法确认
	EventHalted     = "HALTED"      // 触发硬性止损，停止交易
	EventNoSignal   = "NO_SIGNAL"   // 本轮无信号
	EventTickFailed = "TICK_FAILED" // 本轮处理失败（不影响账本）
)

// TickEvent 每轮处理后发出的结构化事件，供日志/告警/报表消费
type TickEvent struct {
	Kind       string           `json:"kind"`                // 事件类型
	Timestamp  time.Time        `json:"timestamp"`           // 事件时间
	Instrument string           `json:"instrument"`          // 标的资产
	Allowed    bool             `json:"allowed"`             // 风控是否放行
	Reasons    []string         `json:"reasons,omitempty"`   // 拒绝原因列表
	Stake      decimal.Decimal  `json:"stake"`               // 本轮计算的投入金额
	TradeID    string           `json:"trade_id,omitempty"`  // 关联的合约ID
	Result     *decimal.Decimal `json:"result,omitempty"`    // 结算盈亏（仅结算事件）
	Ledger     *LedgerSnapshot  `json:"ledger"`              // 账本快照
	RiskLevel  string           `json:"risk_level"`          // 当前风险等级
	Message    string           `json:"message,omitempty"`   // 附加说明
}

// LedgerSnapshot 账本快照，逐字段序列化账本全部状态
// 持久化恢复时必须完整回填，部分快照无效
type LedgerSnapshot struct {
	Balance           decimal.Decimal `json:"balance"`            // 当前余额
	PeakBalance       decimal.Decimal `json:"peak_balance"`       // 历史最高余额
	SessionDate       string          `json:"session_date"`       // 当日统计对应的交易日 (YYYY-MM-DD)
	DailyTrades       int             `json:"daily_trades"`       // 当日已结算交易数
	DailyWins         int             `json:"daily_wins"`         // 当日盈利次数
	DailyLosses       int             `json:"daily_losses"`       // 当日亏损次数
	DailyProfit       decimal.Decimal `json:"daily_profit"`       // 当日累计盈利
	DailyLoss         decimal.Decimal `json:"daily_loss"`         // 当日累计亏损（正数）
	ConsecutiveWins   int             `json:"consecutive_wins"`   // 连续盈利次数
	ConsecutiveLosses int             `json:"consecutive_losses"` // 连续亏损次数
}
