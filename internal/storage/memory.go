package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/life2you_mini/binopt/internal/model"
)

// MemoryStorage 内存存储实现，用于测试与无Redis环境
type MemoryStorage struct {
	mu         sync.RWMutex
	snapshot   *model.LedgerSnapshot
	openTrades map[string]*model.TradeRecord
	archive    map[string]*model.TradeRecord
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		openTrades: make(map[string]*model.TradeRecord),
		archive:    make(map[string]*model.TradeRecord),
	}
}

func (s *MemoryStorage) Initialize(ctx context.Context) error { return nil }

func (s *MemoryStorage) Close(ctx context.Context) error { return nil }

func (s *MemoryStorage) Health(ctx context.Context) error { return nil }

func (s *MemoryStorage) SaveLedgerSnapshot(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *snapshot
	s.snapshot = &copied
	return nil
}

func (s *MemoryStorage) LoadLedgerSnapshot(ctx context.Context) (*model.LedgerSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, nil
	}
	copied := *s.snapshot
	return &copied, nil
}

func (s *MemoryStorage) SaveOpenTrade(ctx context.Context, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *trade
	s.openTrades[trade.ID] = &copied
	return nil
}

func (s *MemoryStorage) RemoveOpenTrade(ctx context.Context, tradeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.openTrades, tradeID)
	return nil
}

func (s *MemoryStorage) ListOpenTrades(ctx context.Context) ([]*model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]*model.TradeRecord, 0, len(s.openTrades))
	for _, trade := range s.openTrades {
		copied := *trade
		trades = append(trades, &copied)
	}
	return trades, nil
}

func (s *MemoryStorage) ArchiveTrade(ctx context.Context, trade *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *trade
	s.archive[trade.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetTradeHistory(ctx context.Context, limit int) ([]*model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := make([]*model.TradeRecord, 0, len(s.archive))
	for _, trade := range s.archive {
		copied := *trade
		trades = append(trades, &copied)
	}

	// 按结算时间倒序，与Redis实现保持一致
	sort.Slice(trades, func(i, j int) bool {
		ti, tj := trades[i].SubmittedAt, trades[j].SubmittedAt
		if trades[i].SettledAt != nil {
			ti = *trades[i].SettledAt
		}
		if trades[j].SettledAt != nil {
			tj = *trades[j].SettledAt
		}
		return ti.After(tj)
	})

	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}
