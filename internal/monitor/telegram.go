package monitor

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/config"
)

// Notifier 告警消息的发送通道
type Notifier interface {
	// Send 发送一条文本消息
	Send(text string) error
}

// TelegramNotifier 基于Telegram Bot的通知实现
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier 创建Telegram通知器
func NewTelegramNotifier(logger *zap.Logger, cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("创建Telegram Bot失败: %w", err)
	}

	logger.Info("Telegram通知器已启用", zap.String("bot", bot.Self.UserName))

	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.ChatID,
		logger: logger.With(zap.String("component", "telegram_notifier")),
	}, nil
}

// Send 发送消息到配置的会话
func (n *TelegramNotifier) Send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("发送Telegram消息失败", zap.Error(err))
		return fmt.Errorf("发送Telegram消息失败: %w", err)
	}

	return nil
}
