package trading

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/execution"
	"github.com/life2you_mini/binopt/internal/mocks"
	"github.com/life2you_mini/binopt/internal/model"
)

var lifecycleNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func newTestLifecycle() *Lifecycle {
	l := NewLifecycle(zap.NewNop(), 60*time.Second)
	l.now = func() time.Time { return lifecycleNow }
	return l
}

func pendingTrade(id string) *model.TradeRecord {
	return &model.TradeRecord{
		ID:          id,
		Instrument:  "R_100",
		Direction:   model.DirectionCall,
		Stake:       decimal.NewFromInt(10),
		SubmittedAt: lifecycleNow,
		Expiry:      5 * time.Minute,
		Status:      model.StatusPending,
	}
}

func TestLifecycle_跟踪与激活(t *testing.T) {
	l := newTestLifecycle()

	trade := pendingTrade("t1")
	require.NoError(t, l.Track(trade))
	assert.Equal(t, 1, l.OpenCount())

	require.NoError(t, l.Activate("t1"))
	assert.Equal(t, model.StatusActive, trade.Status)

	// 重复激活报错
	assert.Error(t, l.Activate("t1"))
}

func TestLifecycle_拒绝非法跟踪(t *testing.T) {
	l := newTestLifecycle()

	// 非PENDING状态不允许跟踪
	active := pendingTrade("t1")
	active.Status = model.StatusActive
	assert.Error(t, l.Track(active))

	// 重复跟踪同一ID
	require.NoError(t, l.Track(pendingTrade("t2")))
	assert.Error(t, l.Track(pendingTrade("t2")))
}

func TestLifecycle_结算只发生一次(t *testing.T) {
	l := newTestLifecycle()
	trade := pendingTrade("t1")
	require.NoError(t, l.Track(trade))
	require.NoError(t, l.Activate("t1"))

	port := new(mocks.MockExecutionPort)
	result := decimal.NewFromFloat(8.5)
	port.On("PollOutcome", mock.Anything, "t1").Return(
		&execution.Outcome{Status: execution.OutcomeSettled, Result: result}, nil)

	terminal := l.Reconcile(context.Background(), port)
	require.Len(t, terminal, 1)
	assert.Equal(t, model.StatusSettled, terminal[0].Status)
	require.NotNil(t, terminal[0].Result)
	assert.True(t, result.Equal(*terminal[0].Result))
	require.NotNil(t, terminal[0].SettledAt)

	// 再次对账不会重复结算
	terminal = l.Reconcile(context.Background(), port)
	assert.Empty(t, terminal)
	assert.Equal(t, 0, l.OpenCount())
}

func TestLifecycle_已终结ID不允许复用(t *testing.T) {
	l := newTestLifecycle()
	require.NoError(t, l.Track(pendingTrade("t1")))
	require.NoError(t, l.Activate("t1"))

	port := new(mocks.MockExecutionPort)
	port.On("PollOutcome", mock.Anything, "t1").Return(
		&execution.Outcome{Status: execution.OutcomeSettled, Result: decimal.NewFromInt(-10)}, nil)
	l.Reconcile(context.Background(), port)

	err := l.Track(pendingTrade("t1"))
	assert.Error(t, err)
}

func TestLifecycle_券商拒绝(t *testing.T) {
	l := newTestLifecycle()
	require.NoError(t, l.Track(pendingTrade("t1")))
	require.NoError(t, l.Activate("t1"))

	port := new(mocks.MockExecutionPort)
	port.On("PollOutcome", mock.Anything, "t1").Return(
		&execution.Outcome{Status: execution.OutcomeRejected, Reason: "合约无效"}, nil)

	terminal := l.Reconcile(context.Background(), port)
	require.Len(t, terminal, 1)
	assert.Equal(t, model.StatusRejected, terminal[0].Status)
	assert.Equal(t, "合约无效", terminal[0].FailReason)
	assert.Nil(t, terminal[0].Result)
}

func TestLifecycle_到期宽限期内保持在途(t *testing.T) {
	l := newTestLifecycle()
	require.NoError(t, l.Track(pendingTrade("t1")))
	require.NoError(t, l.Activate("t1"))

	port := new(mocks.MockExecutionPort)
	port.On("PollOutcome", mock.Anything, "t1").Return(
		&execution.Outcome{Status: execution.OutcomePending}, nil)

	// 刚过到期时间但仍在宽限期内，不终结
	l.now = func() time.Time { return lifecycleNow.Add(5*time.Minute + 30*time.Second) }

	terminal := l.Reconcile(context.Background(), port)
	assert.Empty(t, terminal)
	assert.Equal(t, 1, l.OpenCount())
}

func TestLifecycle_超过宽限期终结为结果未知(t *testing.T) {
	l := newTestLifecycle()
	require.NoError(t, l.Track(pendingTrade("t1")))
	require.NoError(t, l.Activate("t1"))

	port := new(mocks.MockExecutionPort)
	port.On("PollOutcome", mock.Anything, "t1").Return(
		&execution.Outcome{Status: execution.OutcomePending}, nil)

	// 超过到期时间加宽限期
	l.now = func() time.Time { return lifecycleNow.Add(7 * time.Minute) }

	terminal := l.Reconcile(context.Background(), port)
	require.Len(t, terminal, 1)
	assert.Equal(t, model.StatusExpiredUnknown, terminal[0].Status)
	// 结果未知，绝不猜测盈亏
	assert.Nil(t, terminal[0].Result)
}

func TestLifecycle_查询失败宽限期内下轮重试(t *testing.T) {
	l := newTestLifecycle()
	require.NoError(t, l.Track(pendingTrade("t1")))
	require.NoError(t, l.Activate("t1"))

	port := new(mocks.MockExecutionPort)
	port.On("PollOutcome", mock.Anything, "t1").Return(nil, errors.New("连接中断"))

	terminal := l.Reconcile(context.Background(), port)
	assert.Empty(t, terminal)
	assert.Equal(t, 1, l.OpenCount())

	// 超过宽限期后不再等待
	l.now = func() time.Time { return lifecycleNow.Add(10 * time.Minute) }
	terminal = l.Reconcile(context.Background(), port)
	require.Len(t, terminal, 1)
	assert.Equal(t, model.StatusExpiredUnknown, terminal[0].Status)
}

func TestLifecycle_取消的对账不终结合约(t *testing.T) {
	l := newTestLifecycle()
	require.NoError(t, l.Track(pendingTrade("t1")))
	require.NoError(t, l.Activate("t1"))

	// 已超过到期加宽限期，但查询失败源于本轮被取消
	l.now = func() time.Time { return lifecycleNow.Add(10 * time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	port := new(mocks.MockExecutionPort)
	port.On("PollOutcome", mock.Anything, "t1").Return(nil, context.Canceled)

	// 关停时不凭宽限期终结，合约留待重启后向券商重新查询
	terminal := l.Reconcile(ctx, port)
	assert.Empty(t, terminal)
	assert.Equal(t, 1, l.OpenCount())
}

func TestLifecycle_重启恢复在途合约(t *testing.T) {
	l := newTestLifecycle()

	settled := pendingTrade("done")
	settled.Status = model.StatusSettled

	open := pendingTrade("open")
	open.Status = model.StatusActive

	l.Restore([]*model.TradeRecord{settled, open})

	assert.Equal(t, 1, l.OpenCount())
	// 已终结的ID进入finalized集合，不允许复用
	assert.Error(t, l.Track(pendingTrade("done")))
}
