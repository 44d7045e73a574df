package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/binopt/internal/model"
)

func hundred() decimal.Decimal {
	return decimal.NewFromInt(100)
}

// Reporter 累积当日结算记录并生成日报
type Reporter struct {
	logger    *zap.Logger
	reportDir string

	mu          sync.Mutex
	sessionDate string
	results     []decimal.Decimal
	lastLedger  *model.LedgerSnapshot
	lastLevel   string
}

// NewReporter 创建日报生成器
func NewReporter(logger *zap.Logger, reportDir string) *Reporter {
	return &Reporter{
		logger:    logger.With(zap.String("component", "reporter")),
		reportDir: reportDir,
	}
}

// Record 记录一条交易事件，换日时先落盘前一日报告
func (r *Reporter) Record(event *model.TickEvent) {
	if event.Ledger == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 换日：先生成并保存前一日的报告，再重置累积
	if r.sessionDate != "" && event.Ledger.SessionDate != r.sessionDate {
		if err := r.saveLocked(); err != nil {
			r.logger.Error("保存日报失败", zap.Error(err))
		}
		r.results = r.results[:0]
	}

	r.sessionDate = event.Ledger.SessionDate
	r.lastLedger = event.Ledger
	r.lastLevel = event.RiskLevel

	if event.Kind == model.EventSettled && event.Result != nil {
		r.results = append(r.results, *event.Result)
	}
}

// Generate 生成当日报告文本
func (r *Reporter) Generate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generateLocked()
}

// Save 将当日报告写入报告目录
func (r *Reporter) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *Reporter) generateLocked() string {
	var (
		total       = len(r.results)
		wins        int
		losses      int
		totalReturn decimal.Decimal
		maxWinRun   int
		maxLossRun  int
		winRun      int
		lossRun     int
	)

	for _, result := range r.results {
		totalReturn = totalReturn.Add(result)
		if result.IsPositive() {
			wins++
			winRun++
			lossRun = 0
			if winRun > maxWinRun {
				maxWinRun = winRun
			}
		} else {
			losses++
			lossRun++
			winRun = 0
			if lossRun > maxLossRun {
				maxLossRun = lossRun
			}
		}
	}

	winRate := 0.0
	avgReturn := decimal.Zero
	if total > 0 {
		winRate = float64(wins) / float64(total) * 100
		avgReturn = totalReturn.Div(decimal.NewFromInt(int64(total)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "每日交易报告 - %s\n", r.sessionDate)
	b.WriteString("================================\n\n")

	b.WriteString("交易汇总:\n")
	fmt.Fprintf(&b, "- 总交易数: %d\n", total)
	fmt.Fprintf(&b, "- 盈利次数: %d\n", wins)
	fmt.Fprintf(&b, "- 亏损次数: %d\n", losses)
	fmt.Fprintf(&b, "- 胜率: %.1f%%\n\n", winRate)

	b.WriteString("盈亏情况:\n")
	fmt.Fprintf(&b, "- 总盈亏: %s\n", totalReturn.StringFixed(2))
	fmt.Fprintf(&b, "- 单笔平均盈亏: %s\n", avgReturn.StringFixed(2))
	fmt.Fprintf(&b, "- 最大连续盈利: %d\n", maxWinRun)
	fmt.Fprintf(&b, "- 最大连续亏损: %d\n\n", maxLossRun)

	if r.lastLedger != nil {
		drawdown := decimal.Zero
		if !r.lastLedger.PeakBalance.IsZero() {
			drawdown = r.lastLedger.PeakBalance.Sub(r.lastLedger.Balance).
				Div(r.lastLedger.PeakBalance).Mul(hundred())
		}

		b.WriteString("风险状态:\n")
		fmt.Fprintf(&b, "- 当前余额: %s\n", r.lastLedger.Balance.StringFixed(2))
		fmt.Fprintf(&b, "- 当前回撤: %s%%\n", drawdown.StringFixed(2))
		fmt.Fprintf(&b, "- 风险等级: %s\n", r.lastLevel)
		fmt.Fprintf(&b, "- 当前连续亏损: %d\n", r.lastLedger.ConsecutiveLosses)
	}

	return b.String()
}

func (r *Reporter) saveLocked() error {
	if r.sessionDate == "" {
		return nil
	}

	if err := os.MkdirAll(r.reportDir, 0o755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	filename := filepath.Join(r.reportDir,
		fmt.Sprintf("daily_report_%s.txt", strings.ReplaceAll(r.sessionDate, "-", "")))

	if err := os.WriteFile(filename, []byte(r.generateLocked()), 0o644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	r.logger.Info("日报已保存", zap.String("file", filename))
	return nil
}
