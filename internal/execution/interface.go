package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/config"
)

// 结算状态常量
const (
	OutcomePending  = "PENDING"  // 合约仍在进行中
	OutcomeSettled  = "SETTLED"  // 合约已结算，结果已知
	OutcomeRejected = "REJECTED" // 券商拒绝该合约
)

// OrderRequest 下单请求
type OrderRequest struct {
	Instrument string          `json:"instrument"` // 标的资产
	Direction  string          `json:"direction"`  // "CALL" 或 "PUT"
	Stake      decimal.Decimal `json:"stake"`      // 投入本金
	Expiry     time.Duration   `json:"expiry"`     // 合约时长
}

// Outcome 合约结算查询结果
type Outcome struct {
	Status string          `json:"status"`           // PENDING / SETTLED / REJECTED
	Result decimal.Decimal `json:"result"`           // 带符号盈亏，仅SETTLED有效
	Reason string          `json:"reason,omitempty"` // 拒绝原因，仅REJECTED有效
}

// ConnectionError 券商连接错误，可通过退避重连恢复
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("券商连接错误: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("券商连接错误: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SubmissionError 下单被券商拒绝，按单笔处理，不影响后续交易
type SubmissionError struct {
	Code    string
	Message string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("下单被拒绝 [%s]: %s", e.Code, e.Message)
}

// ExecutionPort 券商执行接口
// 提交订单与结算对账是两个独立操作：重连后只恢复对账轮询，
// 绝不允许重复提交已在途的合约
type ExecutionPort interface {
	// Name 返回实现名称
	Name() string

	// Connect 建立券商连接，失败返回 *ConnectionError
	Connect(ctx context.Context) error

	// Submit 提交订单，成功返回券商确认的合约ID
	// 下单被拒返回 *SubmissionError，连接问题返回 *ConnectionError
	Submit(ctx context.Context, req *OrderRequest) (string, error)

	// PollOutcome 查询合约结算状态
	PollOutcome(ctx context.Context, tradeID string) (*Outcome, error)

	// Healthy 返回连接健康状态
	Healthy() bool

	// Close 关闭连接
	Close() error
}

// CreateExecutionPort 按配置组装执行端口，模拟盘或实盘在此处一次性选定
func CreateExecutionPort(logger *zap.Logger, cfg *config.Config) (ExecutionPort, error) {
	switch cfg.Broker.Mode {
	case config.BrokerModeSimulated:
		return NewSimulatedPort(logger, &cfg.Simulation), nil
	case config.BrokerModeDeriv:
		return NewDerivPort(logger, &cfg.Broker), nil
	default:
		return nil, fmt.Errorf("不支持的券商模式: %s", cfg.Broker.Mode)
	}
}
