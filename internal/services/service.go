package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/config"
	"github.com/life2you_mini/binopt/internal/execution"
	"github.com/life2you_mini/binopt/internal/monitor"
	"github.com/life2you_mini/binopt/internal/signal"
	"github.com/life2you_mini/binopt/internal/storage"
	"github.com/life2you_mini/binopt/internal/trading"
)

// binoptService 二元期权交易服务
type binoptService struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	store    storage.Storage
	port     execution.ExecutionPort
	monitor  *monitor.Monitor
	reporter *monitor.Reporter
	trader   *trading.Trader
}

// NewbinoptService 创建新的二元期权交易服务
func NewbinoptService(
	parentCtx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (*binoptService, error) {
	// 创建服务上下文
	ctx, cancel := context.WithCancel(parentCtx)

	// 初始化Redis存储
	redisClient, err := storage.NewRedisClient(&cfg.Redis)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("初始化Redis客户端失败: %w", err)
	}
	store := storage.NewRedisStorage(redisClient, logger, cfg.Redis.KeyPrefix)

	// 创建执行端口（模拟盘或Deriv实盘）
	port, err := execution.CreateExecutionPort(logger, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("创建执行端口失败: %w", err)
	}

	// 执行端口同时提供行情，作为信号源的数据来源
	quotes, ok := port.(signal.QuoteSource)
	if !ok {
		cancel()
		return nil, fmt.Errorf("执行端口 %s 不提供行情数据", port.Name())
	}

	expiry := time.Duration(cfg.Trading.ExpiryMinutes) * time.Minute
	producer := signal.NewMomentumProducer(logger, quotes, expiry)

	// 创建通知器（未启用时只记录日志）
	var notifier monitor.Notifier
	if cfg.Notification.Telegram.Enabled {
		tg, err := monitor.NewTelegramNotifier(logger, &cfg.Notification.Telegram)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("创建Telegram通知器失败: %w", err)
		}
		notifier = tg
	}

	reporter := monitor.NewReporter(logger, cfg.System.ReportDir)
	mon := monitor.NewMonitor(ctx, logger, notifier, reporter)

	// 创建交易主循环
	trader := trading.NewTrader(
		ctx,
		cfg,
		logger,
		port,
		producer,
		store,
		mon,
		nil, // 暂无市场条件否决器
	)

	return &binoptService{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		store:    store,
		port:     port,
		monitor:  mon,
		reporter: reporter,
		trader:   trader,
	}, nil
}

// Start 启动服务
func (s *binoptService) Start() error {
	s.logger.Info("启动二元期权交易服务")

	if err := s.store.Initialize(s.ctx); err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}

	if err := s.port.Connect(s.ctx); err != nil {
		return fmt.Errorf("连接券商失败: %w", err)
	}

	if err := s.monitor.Start(); err != nil {
		return fmt.Errorf("启动监控器失败: %w", err)
	}

	if err := s.trader.Start(); err != nil {
		return fmt.Errorf("启动交易主循环失败: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *binoptService) Stop(ctx context.Context) error {
	s.logger.Info("停止二元期权交易服务")

	// 停止交易主循环，在途合约留待重启后对账
	if err := s.trader.Stop(); err != nil {
		s.logger.Error("停止交易主循环失败", zap.Error(err))
	}

	// 落盘当日报告
	if err := s.reporter.Save(); err != nil {
		s.logger.Error("保存日报失败", zap.Error(err))
	}

	// 停止监控器
	if err := s.monitor.Stop(); err != nil {
		s.logger.Error("停止监控器失败", zap.Error(err))
	}

	// 取消服务上下文
	s.cancel()

	// 关闭券商连接
	if err := s.port.Close(); err != nil {
		s.logger.Error("关闭券商连接失败", zap.Error(err))
	}

	// 关闭存储
	if err := s.store.Close(ctx); err != nil {
		s.logger.Error("关闭存储失败", zap.Error(err))
	}

	// 等待服务优雅关闭的超时时间
	shutdownTimeout := 5 * time.Second

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
