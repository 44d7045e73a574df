package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/config"
)

const (
	// Deriv WebSocket默认地址，实际地址拼接app_id
	derivDefaultEndpoint = "wss://ws.derivws.com/websockets/v3"

	// 单次请求默认超时
	derivRequestTimeout = 10 * time.Second

	// 重连次数上限，超过后连接视为不可恢复
	derivMaxReconnects = 10
)

// derivEnvelope 响应路由用的最小包络
type derivEnvelope struct {
	ReqID   int64       `json:"req_id"`
	MsgType string      `json:"msg_type"`
	Error   *derivError `json:"error,omitempty"`
}

// derivError Deriv错误结构
type derivError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// derivBuyResponse 买入合约响应
type derivBuyResponse struct {
	Error *derivError `json:"error,omitempty"`
	Buy   *struct {
		ContractID int64 `json:"contract_id"`
	} `json:"buy,omitempty"`
}

// derivContractResponse 合约状态查询响应
type derivContractResponse struct {
	Error                *derivError `json:"error,omitempty"`
	ProposalOpenContract *struct {
		IsSold int     `json:"is_sold"`
		Profit float64 `json:"profit"`
		Status string  `json:"status"` // open / won / lost / sold
	} `json:"proposal_open_contract,omitempty"`
}

// derivHistoryResponse 历史报价响应
type derivHistoryResponse struct {
	Error   *derivError `json:"error,omitempty"`
	History *struct {
		Prices []float64 `json:"prices"`
	} `json:"history,omitempty"`
}

// DerivPort Deriv实盘执行端口
// 连接断开后按指数退避重连；重连只恢复请求通道，
// 在途合约由调用方通过 PollOutcome 重新查询，绝不重复下单
type DerivPort struct {
	logger   *zap.Logger
	appID    string
	apiToken string
	endpoint string

	connMu    sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	writeMu sync.Mutex

	pendingMu sync.Mutex
	reqSeq    int64
	pending   map[int64]chan json.RawMessage
}

// NewDerivPort 创建Deriv执行端口
func NewDerivPort(logger *zap.Logger, cfg *config.BrokerConfig) *DerivPort {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = derivDefaultEndpoint
	}

	return &DerivPort{
		logger:   logger.With(zap.String("component", "deriv_port")),
		appID:    cfg.AppID,
		apiToken: cfg.APIToken,
		endpoint: endpoint,
		pending:  make(map[int64]chan json.RawMessage),
	}
}

// Name 实现名称
func (p *DerivPort) Name() string { return "deriv" }

// Connect 建立WebSocket连接并完成鉴权
func (p *DerivPort) Connect(ctx context.Context) error {
	if err := p.dial(ctx); err != nil {
		return &ConnectionError{Message: "连接Deriv失败", Err: err}
	}

	// 鉴权
	if _, err := p.request(ctx, map[string]interface{}{"authorize": p.apiToken}); err != nil {
		return &ConnectionError{Message: "Deriv鉴权失败", Err: err}
	}

	p.logger.Info("已连接并鉴权Deriv", zap.String("endpoint", p.endpoint))
	return nil
}

// dial 建立底层连接并启动读协程
func (p *DerivPort) dial(ctx context.Context) error {
	url := fmt.Sprintf("%s?app_id=%s", p.endpoint, p.appID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	p.connMu.Lock()
	p.conn = conn
	p.connected = true
	p.connMu.Unlock()

	go p.readPump(conn)
	return nil
}

// readPump 持续读取响应并按req_id分发
func (p *DerivPort) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.connMu.Lock()
			closed := p.closed
			p.connected = false
			p.connMu.Unlock()

			if closed {
				return
			}

			p.logger.Warn("Deriv连接断开，开始重连", zap.Error(err))
			p.reconnect()
			return
		}

		var envelope derivEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			p.logger.Error("解析Deriv响应失败", zap.Error(err), zap.ByteString("data", data))
			continue
		}

		// 无req_id的推送消息（tick订阅等）直接忽略
		if envelope.ReqID == 0 {
			continue
		}

		p.pendingMu.Lock()
		ch, exists := p.pending[envelope.ReqID]
		if exists {
			delete(p.pending, envelope.ReqID)
		}
		p.pendingMu.Unlock()

		if exists {
			ch <- json.RawMessage(data)
		}
	}
}

// reconnect 指数退避重连，重连成功后重新鉴权
// 只恢复请求通道，不重放任何历史下单请求
func (p *DerivPort) reconnect() {
	for attempt := 0; attempt < derivMaxReconnects; attempt++ {
		time.Sleep(calculateBackoff(attempt))

		p.connMu.Lock()
		if p.closed {
			p.connMu.Unlock()
			return
		}
		p.connMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), derivRequestTimeout)
		err := p.dial(ctx)
		if err == nil {
			_, err = p.request(ctx, map[string]interface{}{"authorize": p.apiToken})
		}
		cancel()

		if err == nil {
			p.logger.Info("Deriv重连成功", zap.Int("attempt", attempt+1))
			return
		}

		p.logger.Warn("Deriv重连失败",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	p.logger.Error("Deriv重连次数耗尽，连接不可恢复")
}

// request 发送请求并等待对应req_id的响应
func (p *DerivPort) request(ctx context.Context, payload map[string]interface{}) (json.RawMessage, error) {
	p.connMu.Lock()
	if !p.connected || p.conn == nil {
		p.connMu.Unlock()
		return nil, &ConnectionError{Message: "WebSocket未连接"}
	}
	conn := p.conn
	p.connMu.Unlock()

	p.pendingMu.Lock()
	p.reqSeq++
	reqID := p.reqSeq
	ch := make(chan json.RawMessage, 1)
	p.pending[reqID] = ch
	p.pendingMu.Unlock()

	payload["req_id"] = reqID

	p.writeMu.Lock()
	err := conn.WriteJSON(payload)
	p.writeMu.Unlock()
	if err != nil {
		p.pendingMu.Lock()
		delete(p.pending, reqID)
		p.pendingMu.Unlock()
		return nil, &ConnectionError{Message: "发送请求失败", Err: err}
	}

	select {
	case data := <-ch:
		return data, nil
	case <-ctx.Done():
		p.pendingMu.Lock()
		delete(p.pending, reqID)
		p.pendingMu.Unlock()
		return nil, fmt.Errorf("等待Deriv响应超时: %w", ctx.Err())
	}
}

// Submit 买入二元期权合约，成功返回合约ID
func (p *DerivPort) Submit(ctx context.Context, req *OrderRequest) (string, error) {
	stake, _ := req.Stake.Float64()
	durationMinutes := int(req.Expiry / time.Minute)

	payload := map[string]interface{}{
		"buy":   1,
		"price": stake,
		"parameters": map[string]interface{}{
			"amount":        stake,
			"basis":         "stake",
			"contract_type": req.Direction,
			"currency":      "USD",
			"duration":      durationMinutes,
			"duration_unit": "m",
			"symbol":        req.Instrument,
		},
	}

	data, err := p.request(ctx, payload)
	if err != nil {
		return "", err
	}

	var resp derivBuyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("解析买入响应失败: %w", err)
	}

	if resp.Error != nil {
		return "", &SubmissionError{Code: resp.Error.Code, Message: resp.Error.Message}
	}

	if resp.Buy == nil || resp.Buy.ContractID == 0 {
		return "", &SubmissionError{Code: "EmptyResponse", Message: "买入响应缺少合约ID"}
	}

	tradeID := strconv.FormatInt(resp.Buy.ContractID, 10)
	p.logger.Info("Deriv下单成功",
		zap.String("trade_id", tradeID),
		zap.String("instrument", req.Instrument),
		zap.String("direction", req.Direction),
		zap.Float64("stake", stake))

	return tradeID, nil
}

// PollOutcome 查询合约结算状态
func (p *DerivPort) PollOutcome(ctx context.Context, tradeID string) (*Outcome, error) {
	contractID, err := strconv.ParseInt(tradeID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("非法的合约ID: %s", tradeID)
	}

	data, err := p.request(ctx, map[string]interface{}{
		"proposal_open_contract": 1,
		"contract_id":            contractID,
	})
	if err != nil {
		return nil, err
	}

	var resp derivContractResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析合约状态失败: %w", err)
	}

	if resp.Error != nil {
		// 券商侧找不到合约视为拒绝
		return &Outcome{Status: OutcomeRejected, Reason: resp.Error.Message}, nil
	}

	if resp.ProposalOpenContract == nil {
		return nil, fmt.Errorf("合约状态响应为空: %s", tradeID)
	}

	poc := resp.ProposalOpenContract
	if poc.IsSold == 0 {
		return &Outcome{Status: OutcomePending}, nil
	}

	return &Outcome{
		Status: OutcomeSettled,
		Result: decimal.NewFromFloat(poc.Profit),
	}, nil
}

// LatestQuotes 拉取最近的历史报价，供信号源消费
func (p *DerivPort) LatestQuotes(ctx context.Context, instrument string, count int) ([]float64, error) {
	data, err := p.request(ctx, map[string]interface{}{
		"ticks_history": instrument,
		"count":         count,
		"end":           "latest",
		"style":         "ticks",
	})
	if err != nil {
		return nil, err
	}

	var resp derivHistoryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析历史报价失败: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("获取历史报价失败: %s", resp.Error.Message)
	}

	if resp.History == nil {
		return nil, fmt.Errorf("历史报价响应为空: %s", instrument)
	}

	return resp.History.Prices, nil
}

// Healthy 返回连接健康状态
func (p *DerivPort) Healthy() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.connected
}

// Close 关闭连接
func (p *DerivPort) Close() error {
	p.connMu.Lock()
	defer p.connMu.Unlock()

	p.closed = true
	p.connected = false

	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
