package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/binopt/internal/model"
)

// MockStorage 存储层接口的模拟实现
type MockStorage struct {
	mock.Mock
}

// Initialize 初始化的模拟实现
func (m *MockStorage) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close 关闭的模拟实现
func (m *MockStorage) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Health 健康检查的模拟实现
func (m *MockStorage) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// SaveLedgerSnapshot 保存账本快照的模拟实现
func (m *MockStorage) SaveLedgerSnapshot(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// LoadLedgerSnapshot 读取账本快照的模拟实现
func (m *MockStorage) LoadLedgerSnapshot(ctx context.Context) (*model.LedgerSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerSnapshot), args.Error(1)
}

// SaveOpenTrade 保存在途合约的模拟实现
func (m *MockStorage) SaveOpenTrade(ctx context.Context, trade *model.TradeRecord) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

// RemoveOpenTrade 移除在途合约的模拟实现
func (m *MockStorage) RemoveOpenTrade(ctx context.Context, tradeID string) error {
	args := m.Called(ctx, tradeID)
	return args.Error(0)
}

// ListOpenTrades 列出在途合约的模拟实现
func (m *MockStorage) ListOpenTrades(ctx context.Context) ([]*model.TradeRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TradeRecord), args.Error(1)
}

// ArchiveTrade 归档交易记录的模拟实现
func (m *MockStorage) ArchiveTrade(ctx context.Context, trade *model.TradeRecord) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}

// GetTradeHistory 获取交易历史的模拟实现
func (m *MockStorage) GetTradeHistory(ctx context.Context, limit int) ([]*model.TradeRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TradeRecord), args.Error(1)
}
