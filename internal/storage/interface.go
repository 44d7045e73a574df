package storage

import (
	"context"

	"github.com/life2you_mini/binopt/internal/model"
)

// 存储类型常量
const (
	StorageTypeRedis    = "redis"
	StorageTypeInMemory = "memory"
)

// Storage 定义存储层接口，可以有多种实现（Redis、内存等）
// 交易流程对存储错误只告警不中断：账本以内存态为准，存储是异步快照
type Storage interface {
	// 基础操作
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
	Health(ctx context.Context) error

	// 账本快照操作
	SaveLedgerSnapshot(ctx context.Context, snapshot *model.LedgerSnapshot) error
	LoadLedgerSnapshot(ctx context.Context) (*model.LedgerSnapshot, error)

	// 在途合约操作，用于崩溃重启后恢复对账
	SaveOpenTrade(ctx context.Context, trade *model.TradeRecord) error
	RemoveOpenTrade(ctx context.Context, tradeID string) error
	ListOpenTrades(ctx context.Context) ([]*model.TradeRecord, error)

	// 交易历史归档操作
	ArchiveTrade(ctx context.Context, trade *model.TradeRecord) error
	GetTradeHistory(ctx context.Context, limit int) ([]*model.TradeRecord, error)
}
