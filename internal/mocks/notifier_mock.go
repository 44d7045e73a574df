package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockNotifier 通知接口的模拟实现
type MockNotifier struct {
	mock.Mock
}

// Send 发送消息的模拟实现
func (m *MockNotifier) Send(text string) error {
	args := m.Called(text)
	return args.Error(0)
}
