package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/model"
)

// Redis 键名常量
const (
	// 账本快照
	keyLedgerSnapshot = "ledger:snapshot"

	// 在途合约（哈希，field为合约ID）
	keyOpenTrades = "trade:open"

	// 交易归档
	keyTradePrefix  = "trade:record:"
	keyTradeHistory = "trade:history"

	// 过期时间（秒）
	expirySnapshot = 86400 * 30  // 30天
	expiryTrade    = 86400 * 365 // 365天
)

// RedisStorage Redis存储实现
type RedisStorage struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
}

// NewRedisStorage 创建Redis存储
func NewRedisStorage(client *redis.Client, logger *zap.Logger, keyPrefix string) *RedisStorage {
	return &RedisStorage{
		client:    client,
		logger:    logger.With(zap.String("component", "redis_storage")),
		keyPrefix: keyPrefix,
	}
}

// key 拼接带前缀的完整键名
func (s *RedisStorage) key(name string) string {
	return s.keyPrefix + name
}

// Initialize 初始化Redis存储
func (s *RedisStorage) Initialize(ctx context.Context) error {
	// 测试连接
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis连接失败", zap.Error(err))
		return fmt.Errorf("redis连接失败: %w", err)
	}

	s.logger.Info("Redis存储初始化成功")
	return nil
}

// Close 关闭Redis连接
func (s *RedisStorage) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("关闭Redis连接失败", zap.Error(err))
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}

	s.logger.Info("Redis连接已关闭")
	return nil
}

// Health 检查Redis健康状态
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveLedgerSnapshot 保存账本快照
func (s *RedisStorage) SaveLedgerSnapshot(ctx context.Context, snapshot *model.LedgerSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化账本快照失败: %w", err)
	}

	err = s.client.Set(ctx, s.key(keyLedgerSnapshot), jsonData,
		time.Duration(expirySnapshot)*time.Second).Err()
	if err != nil {
		return fmt.Errorf("保存账本快照失败: %w", err)
	}

	return nil
}

// LoadLedgerSnapshot 读取账本快照，不存在时返回nil
func (s *RedisStorage) LoadLedgerSnapshot(ctx context.Context) (*model.LedgerSnapshot, error) {
	jsonData, err := s.client.Get(ctx, s.key(keyLedgerSnapshot)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取账本快照失败: %w", err)
	}

	var snapshot model.LedgerSnapshot
	if err := json.Unmarshal([]byte(jsonData), &snapshot); err != nil {
		return nil, fmt.Errorf("解析账本快照失败: %w", err)
	}

	return &snapshot, nil
}

// SaveOpenTrade 记录在途合约
func (s *RedisStorage) SaveOpenTrade(ctx context.Context, trade *model.TradeRecord) error {
	jsonData, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("序列化在途合约失败: %w", err)
	}

	if err := s.client.HSet(ctx, s.key(keyOpenTrades), trade.ID, jsonData).Err(); err != nil {
		return fmt.Errorf("保存在途合约失败: %w", err)
	}

	return nil
}

// RemoveOpenTrade 移除已终结的在途合约
func (s *RedisStorage) RemoveOpenTrade(ctx context.Context, tradeID string) error {
	if err := s.client.HDel(ctx, s.key(keyOpenTrades), tradeID).Err(); err != nil {
		return fmt.Errorf("移除在途合约失败: %w", err)
	}
	return nil
}

// ListOpenTrades 列出所有在途合约，重启后用于恢复对账
func (s *RedisStorage) ListOpenTrades(ctx context.Context) ([]*model.TradeRecord, error) {
	results, err := s.client.HGetAll(ctx, s.key(keyOpenTrades)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取在途合约失败: %w", err)
	}

	trades := make([]*model.TradeRecord, 0, len(results))
	for id, jsonData := range results {
		var trade model.TradeRecord
		if err := json.Unmarshal([]byte(jsonData), &trade); err != nil {
			s.logger.Warn("解析在途合约失败",
				zap.String("trade_id", id),
				zap.Error(err))
			continue
		}
		trades = append(trades, &trade)
	}

	return trades, nil
}

// ArchiveTrade 归档已终结的合约
func (s *RedisStorage) ArchiveTrade(ctx context.Context, trade *model.TradeRecord) error {
	jsonData, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("序列化交易记录失败: %w", err)
	}

	score := trade.SubmittedAt.Unix()
	if trade.SettledAt != nil {
		score = trade.SettledAt.Unix()
	}

	// 使用Pipeline批量执行
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(keyTradePrefix+trade.ID), jsonData,
		time.Duration(expiryTrade)*time.Second)
	pipe.ZAdd(ctx, s.key(keyTradeHistory), redis.Z{
		Score:  float64(score),
		Member: trade.ID,
	})
	pipe.Expire(ctx, s.key(keyTradeHistory), time.Duration(expiryTrade)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("归档交易记录失败: %w", err)
	}

	return nil
}

// GetTradeHistory 按结算时间倒序获取最近的交易记录
func (s *RedisStorage) GetTradeHistory(ctx context.Context, limit int) ([]*model.TradeRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.key(keyTradeHistory), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取交易历史索引失败: %w", err)
	}

	trades := make([]*model.TradeRecord, 0, len(ids))
	for _, id := range ids {
		jsonData, err := s.client.Get(ctx, s.key(keyTradePrefix+id)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("读取交易记录失败: %w", err)
		}

		var trade model.TradeRecord
		if err := json.Unmarshal([]byte(jsonData), &trade); err != nil {
			s.logger.Warn("解析交易记录失败",
				zap.String("trade_id", id),
				zap.Error(err))
			continue
		}
		trades = append(trades, &trade)
	}

	return trades, nil
}
