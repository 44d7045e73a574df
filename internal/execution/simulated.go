package execution

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/config"
)

// 模拟行情随机游走步长
const simQuoteStep = 0.1

// simContract 模拟盘内部合约记录
type simContract struct {
	req      *OrderRequest
	expireAt time.Time
	settled  bool
	result   decimal.Decimal
}

// SimulatedPort 模拟执行端口
// 按配置的胜率与赔付比例在到期后给出结果，到期前保持PENDING
// 同一合约只做一次胜负判定，之后结果固定
type SimulatedPort struct {
	logger *zap.Logger
	payout decimal.Decimal
	winP   float64

	mu        sync.Mutex
	connected bool
	contracts map[string]*simContract
	lastQuote map[string]float64

	rng *mathrand.Rand
	now func() time.Time // 可注入时钟，便于测试
}

// NewSimulatedPort 创建模拟执行端口
func NewSimulatedPort(logger *zap.Logger, cfg *config.SimulationConfig) *SimulatedPort {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &SimulatedPort{
		logger:    logger.With(zap.String("component", "simulated_port")),
		payout:    decimal.NewFromFloat(cfg.PayoutRatio),
		winP:      cfg.WinProbability,
		contracts: make(map[string]*simContract),
		lastQuote: make(map[string]float64),
		rng:       mathrand.New(mathrand.NewSource(seed)),
		now:       time.Now,
	}
}

// Name 实现名称
func (s *SimulatedPort) Name() string { return "simulated" }

// Connect 模拟连接，总是成功
func (s *SimulatedPort) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = true
	s.logger.Info("已连接券商（模拟盘）")
	return nil
}

// Submit 提交模拟订单
func (s *SimulatedPort) Submit(ctx context.Context, req *OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return "", &ConnectionError{Message: "模拟盘未连接"}
	}

	if req.Stake.LessThanOrEqual(decimal.Zero) {
		return "", &SubmissionError{Code: "InvalidStake", Message: "投入金额必须大于0"}
	}

	id, err := generateContractID()
	if err != nil {
		return "", fmt.Errorf("生成合约ID失败: %w", err)
	}

	s.contracts[id] = &simContract{
		req:      req,
		expireAt: s.now().Add(req.Expiry),
	}

	s.logger.Info("模拟下单成功",
		zap.String("trade_id", id),
		zap.String("instrument", req.Instrument),
		zap.String("direction", req.Direction),
		zap.String("stake", req.Stake.String()))

	return id, nil
}

// PollOutcome 查询模拟合约结算状态
func (s *SimulatedPort) PollOutcome(ctx context.Context, tradeID string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.contracts[tradeID]
	if !exists {
		return nil, fmt.Errorf("合约不存在: %s", tradeID)
	}

	// 未到期保持PENDING
	if s.now().Before(c.expireAt) {
		return &Outcome{Status: OutcomePending}, nil
	}

	// 到期后只判定一次胜负
	if !c.settled {
		c.settled = true
		if s.rng.Float64() < s.winP {
			c.result = c.req.Stake.Mul(s.payout)
		} else {
			c.result = c.req.Stake.Neg()
		}

		s.logger.Info("模拟合约结算",
			zap.String("trade_id", tradeID),
			zap.String("result", c.result.String()))
	}

	return &Outcome{Status: OutcomeSettled, Result: c.result}, nil
}

// Healthy 模拟盘始终健康
func (s *SimulatedPort) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close 关闭模拟连接
func (s *SimulatedPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	s.logger.Info("模拟盘连接已关闭")
	return nil
}

// LatestQuotes 随机游走行情，供信号源消费
func (s *SimulatedPort) LatestQuotes(ctx context.Context, instrument string, count int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.lastQuote[instrument]
	if !ok {
		price = 100.0
	}

	quotes := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		price += (s.rng.Float64()*2 - 1) * simQuoteStep
		quotes = append(quotes, price)
	}
	s.lastQuote[instrument] = price

	return quotes, nil
}

// generateContractID 生成模拟合约ID
func generateContractID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "sim-" + hex.EncodeToString(bytes), nil
}
