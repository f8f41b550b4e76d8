package xuanguctl

import (
	"fmt"
	"time"

	"xuangu/backtest"
)

// applyScanDays 把区间改成截至今天的最近 N 个自然日，返回给文本输出用的说明
func applyScanDays(cfg *backtest.RunConfig, scanDays int, now time.Time) string {
	if cfg == nil || scanDays <= 0 {
		return ""
	}

	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	start := end.AddDate(0, 0, -scanDays)

	cfg.Start = start
	cfg.End = end

	// 自然日里有非交易日，另外留出均线预热的K线
	need := scanDays + 200
	if need > cfg.Days {
		cfg.Days = need
	}

	return fmt.Sprintf("[SCAN] window: %s ~ %s (last %d days)", start.Format("2006-01-02"), end.Format("2006-01-02"), scanDays)
}
