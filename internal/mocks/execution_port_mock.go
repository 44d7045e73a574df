package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/binopt/internal/execution"
)

// MockExecutionPort 券商执行接口的模拟实现
type MockExecutionPort struct {
	mock.Mock
}

// Name 实现名称的模拟实现
func (m *MockExecutionPort) Name() string {
	args := m.Called()
	return args.String(0)
}

// Connect 建立连接的模拟实现
func (m *MockExecutionPort) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Submit 提交订单的模拟实现
func (m *MockExecutionPort) Submit(ctx context.Context, req *execution.OrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// PollOutcome 查询结算状态的模拟实现
func (m *MockExecutionPort) PollOutcome(ctx context.Context, tradeID string) (*execution.Outcome, error) {
	args := m.Called(ctx, tradeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*execution.Outcome), args.Error(1)
}

// Healthy 连接健康状态的模拟实现
func (m *MockExecutionPort) Healthy() bool {
	args := m.Called()
	return args.Bool(0)
}

// Close 关闭连接的模拟实现
func (m *MockExecutionPort) Close() error {
	args := m.Called()
	return args.Error(0)
}
