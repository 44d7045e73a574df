package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/binopt/internal/model"
)

// MockSignalProducer 信号源接口的模拟实现
type MockSignalProducer struct {
	mock.Mock
}

// NextSignal 获取候选信号的模拟实现
func (m *MockSignalProducer) NextSignal(ctx context.Context, instrument string) (*model.CandidateSignal, error) {
	args := m.Called(ctx, instrument)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CandidateSignal), args.Error(1)
}
