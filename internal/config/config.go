package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 券商模式常量
const (
	BrokerModeSimulated = "simulated"
	BrokerModeDeriv     = "deriv"
)

// Config 应用配置结构
type Config struct {
	Broker         BrokerConfig         `mapstructure:"broker"`
	Trading        TradingConfig        `mapstructure:"trading"`
	RiskManagement RiskManagementConfig `mapstructure:"risk_management"`
	Simulation     SimulationConfig     `mapstructure:"simulation"`
	System         SystemConfig         `mapstructure:"system"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Notification   NotificationConfig   `mapstructure:"notification"`
}

// BrokerConfig 券商连接配置
type BrokerConfig struct {
	Mode     string `mapstructure:"mode"`      // "simulated" 或 "deriv"
	AppID    string `mapstructure:"app_id"`    // Deriv应用ID
	APIToken string `mapstructure:"api_token"` // 从配置文件或环境变量中读取
	Endpoint string `mapstructure:"endpoint"`  // WebSocket地址，留空使用默认值
}

// TradingConfig 交易配置
type TradingConfig struct {
	Instruments          []string `mapstructure:"instruments"`            // 交易标的列表
	CheckIntervalSeconds int      `mapstructure:"check_interval_seconds"` // 主循环调度间隔
	ExpiryMinutes        int      `mapstructure:"expiry_minutes"`         // 默认合约时长（分钟）
	TickTimeoutSeconds   int      `mapstructure:"tick_timeout_seconds"`   // 单轮处理超时
}

// RiskManagementConfig 风险管理配置
type RiskManagementConfig struct {
	InitialBalance         float64 `mapstructure:"initial_balance"`          // 初始余额
	MaxDailyLoss           float64 `mapstructure:"max_daily_loss"`           // 每日最大亏损
	MaxDailyTrades         int     `mapstructure:"max_daily_trades"`         // 每日最大交易次数
	MaxConsecutiveLosses   int     `mapstructure:"max_consecutive_losses"`   // 最大连续亏损次数
	MaxDrawdownPercent     float64 `mapstructure:"max_drawdown_percent"`     // 最大回撤百分比
	MinBalance             float64 `mapstructure:"min_balance"`              // 余额下限
	BaseStakePercent       float64 `mapstructure:"base_stake_percent"`       // 基础投入占余额百分比
	MaxStakePercent        float64 `mapstructure:"max_stake_percent"`        // 单笔投入占余额上限百分比
	MinStake               float64 `mapstructure:"min_stake"`                // 单笔最小投入
	MaxStake               float64 `mapstructure:"max_stake"`                // 单笔最大投入
	StakeIncrement         float64 `mapstructure:"stake_increment"`          // 券商最小货币单位
	SettlementGraceSeconds int     `mapstructure:"settlement_grace_seconds"` // 到期后等待结算的宽限期
}

// SimulationConfig 模拟盘配置
type SimulationConfig struct {
	PayoutRatio    float64 `mapstructure:"payout_ratio"`    // 盈利赔付比例，如0.85
	WinProbability float64 `mapstructure:"win_probability"` // 模拟胜率
	Seed           int64   `mapstructure:"seed"`            // 随机种子，0表示使用时间种子
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogDir    string `mapstructure:"log_dir"`
	ReportDir string `mapstructure:"report_dir"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig Telegram配置
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"` // 从配置文件或环境变量中读取
	ChatID   int64  `mapstructure:"chat_id"`   // 从配置文件或环境变量中读取
}

// LoadConfig 从文件加载配置
func LoadConfig(filePath string) (*Config, error) {
	// 使用Viper读取配置
	v := viper.New()
	v.SetConfigFile(filePath)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 绑定环境变量（可选，如果需要从环境变量覆盖配置）
	v.AutomaticEnv()
	v.SetEnvPrefix("BINOPT") // 环境变量前缀，如BINOPT_BROKER_API_TOKEN

	// 特定环境变量映射，如果存在这些环境变量则优先使用
	if derivToken := os.Getenv("DERIV_API_TOKEN"); derivToken != "" {
		v.Set("broker.api_token", derivToken)
	}
	if derivAppID := os.Getenv("DERIV_APP_ID"); derivAppID != "" {
		v.Set("broker.app_id", derivAppID)
	}
	if botToken := os.Getenv("TELEGRAM_BOT_TOKEN"); botToken != "" {
		v.Set("notification.telegram.bot_token", botToken)
	}

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// 保留原有的yaml加载函数以备不时之需
func LoadConfigFromYAML(filePath string) (*Config, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// validateConfig 验证配置有效性
// 配置非法时进程不得开始交易
func validateConfig(config *Config) error {
	// 验证券商配置
	switch config.Broker.Mode {
	case BrokerModeSimulated:
		// 模拟盘无需密钥
	case BrokerModeDeriv:
		if config.Broker.AppID == "" || config.Broker.APIToken == "" {
			return fmt.Errorf("Deriv模式已启用，但AppID或APIToken未配置")
		}
	default:
		return fmt.Errorf("不支持的券商模式: %s", config.Broker.Mode)
	}

	// 验证交易参数
	if len(config.Trading.Instruments) == 0 {
		return fmt.Errorf("至少需要配置一个交易标的")
	}

	if config.Trading.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("调度间隔必须大于0")
	}

	if config.Trading.ExpiryMinutes <= 0 {
		return fmt.Errorf("合约时长必须大于0")
	}

	if config.Trading.TickTimeoutSeconds <= 0 {
		return fmt.Errorf("单轮处理超时必须大于0")
	}

	// 验证风险管理参数
	rm := &config.RiskManagement

	if rm.InitialBalance <= 0 {
		return fmt.Errorf("初始余额必须大于0")
	}

	if rm.MaxDailyLoss <= 0 {
		return fmt.Errorf("每日最大亏损必须大于0")
	}

	if rm.MaxDailyTrades <= 0 {
		return fmt.Errorf("每日最大交易次数必须大于0")
	}

	if rm.MaxConsecutiveLosses <= 0 {
		return fmt.Errorf("最大连续亏损次数必须大于0")
	}

	if rm.MaxDrawdownPercent <= 0 || rm.MaxDrawdownPercent > 100 {
		return fmt.Errorf("最大回撤百分比必须在0到100之间")
	}

	if rm.MinBalance < 0 {
		return fmt.Errorf("余额下限不能为负数")
	}

	if rm.BaseStakePercent <= 0 || rm.BaseStakePercent > rm.MaxStakePercent {
		return fmt.Errorf("基础投入百分比必须大于0且不超过单笔投入上限百分比")
	}

	if rm.MaxStakePercent <= 0 || rm.MaxStakePercent > 100 {
		return fmt.Errorf("单笔投入上限百分比必须在0到100之间")
	}

	if rm.MinStake <= 0 || rm.MinStake > rm.MaxStake {
		return fmt.Errorf("单笔最小投入必须大于0且不超过单笔最大投入")
	}

	if rm.StakeIncrement <= 0 {
		return fmt.Errorf("最小货币单位必须大于0")
	}

	if rm.SettlementGraceSeconds <= 0 {
		return fmt.Errorf("结算宽限期必须大于0")
	}

	// 验证模拟盘参数
	if config.Broker.Mode == BrokerModeSimulated {
		if config.Simulation.PayoutRatio <= 0 || config.Simulation.PayoutRatio >= 1 {
			return fmt.Errorf("赔付比例必须在0到1之间")
		}
		if config.Simulation.WinProbability < 0 || config.Simulation.WinProbability > 1 {
			return fmt.Errorf("模拟胜率必须在0到1之间")
		}
	}

	return nil
}
