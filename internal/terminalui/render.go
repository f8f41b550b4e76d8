package terminalui

import (
	"fmt"
	"io"
	"strings"

	"xuangu/backtest"
)

// Options 终端输出选项
type Options struct {
	// 涨跌着色（红涨绿跌），输出到文件时关闭
	Color bool
	// 表头前的区间说明
	Window string
}

const reset = "\033[0m"

// RenderScan 选股结果表格
func RenderScan(w io.Writer, rep *backtest.Report, opt Options) {
	if opt.Window != "" {
		fmt.Fprintln(w, opt.Window)
	}
	fmt.Fprintf(w, "[%s] strategy=%s benchmark=%s run=%s\n", strings.ToUpper(rep.Mode), rep.Strategy, orDash(rep.Benchmark), rep.RunID)
	fmt.Fprintf(w, "%-10s %-10s %-12s %-10s %-8s %-8s %s\n", "SYMBOL", "NAME", "LAST_DATE", "LAST_CLOSE", "CHG%", "SIGNAL", "FAILED")
	for _, r := range rep.Scan {
		if len(r.Errors) > 0 && r.LastDate == "" {
			fmt.Fprintf(w, "%-10s %-10s %-12s %-10s %-8s %-8s %s\n", r.Symbol, "-", "-", "-", "-", "ERROR", r.Errors[0])
			continue
		}
		sig := "-"
		if r.Signal {
			sig = "BUY"
		}
		chg := fmt.Sprintf("%+.2f", r.ChangePct)
		if opt.Color {
			chg = colorByChange(r.ChangePct) + chg + reset
			if r.Signal {
				sig = "\033[33m" + sig + reset
			}
		}
		failed := "-"
		if len(r.Failed) > 0 {
			failed = strings.Join(r.Failed, ",")
		}
		fmt.Fprintf(w, "%-10s %s %-12s %-10.2f %s %s %s\n",
			r.Symbol, padName(r.Name, 10), r.LastDate, r.LastClose, padColored(chg, 8), padColored(sig, 8), failed)
		if len(r.Errors) > 0 {
			fmt.Fprintf(w, "  error: %s\n", r.Errors[0])
		}
		if strings.TrimSpace(r.ChartPath) != "" {
			fmt.Fprintf(w, "  chart: %s\n", r.ChartPath)
		}
	}
	s := rep.Summary
	fmt.Fprintf(w, "instruments=%d failed=%d signals=%d\n", s.Instruments, s.Failed, s.Signals)
}

// RenderBacktest 回测结果：每只股票一行汇总，下面逐笔列出交易
func RenderBacktest(w io.Writer, rep *backtest.Report, opt Options) {
	if opt.Window != "" {
		fmt.Fprintln(w, opt.Window)
	}
	fmt.Fprintf(w, "[BACKTEST] strategy=%s benchmark=%s %s~%s run=%s\n",
		rep.Strategy, orDash(rep.Benchmark), orDash(rep.Start), orDash(rep.End), rep.RunID)
	fmt.Fprintf(w, "%-10s %-10s %-6s %-8s %-7s %-6s %-9s %s\n", "SYMBOL", "NAME", "BARS", "SIGNALS", "TRADES", "OPEN", "WIN%", "AVG%")
	for _, r := range rep.Results {
		if len(r.Errors) > 0 && r.Bars == 0 {
			fmt.Fprintf(w, "%-10s ERROR %s\n", r.Symbol, r.Errors[0])
			continue
		}
		avg := fmt.Sprintf("%+.2f", r.AvgReturnPct)
		if opt.Color {
			avg = colorByChange(r.AvgReturnPct) + avg + reset
		}
		fmt.Fprintf(w, "%-10s %s %-6d %-8d %-7d %-6d %-9.2f %s\n",
			r.Symbol, padName(r.Name, 10), r.Bars, r.Signals, r.TotalTrades, r.OpenTrades, r.WinRatePct, avg)
		for _, t := range r.Trades {
			ret := fmt.Sprintf("%+.2f%%", t.ReturnPct)
			if opt.Color {
				ret = colorByChange(t.ReturnPct) + ret + reset
			}
			exit := orDash(t.ExitDate)
			if t.Closed() {
				exit = fmt.Sprintf("%s @ %.2f", t.ExitDate, t.ExitPrice)
			}
			fmt.Fprintf(w, "  %s @ %.2f -> %s  %s  hold=%d peak=%+.2f%% %s %s\n",
				t.EntryDate, t.EntryPrice, exit, ret, t.HoldingDays, t.PeakReturnPct, t.State, strings.Join(t.ReasonExit, ","))
		}
		if strings.TrimSpace(r.ChartPath) != "" {
			fmt.Fprintf(w, "  chart: %s\n", r.ChartPath)
		}
	}
	s := rep.Summary
	fmt.Fprintf(w, "instruments=%d failed=%d signals=%d trades=%d win=%.2f%% avg=%+.2f%%\n",
		s.Instruments, s.Failed, s.Signals, s.TotalTrades, s.WinRatePct, s.AvgReturnPct)
}

func colorByChange(change float64) string {
	if change > 0 {
		return "\033[31m"
	}
	if change < 0 {
		return "\033[32m"
	}
	return "\033[37m"
}

func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return name
}

// padName 中文按两列宽补齐
func padName(name string, width int) string {
	if name == "" {
		name = "-"
	}
	name = truncateName(name, width/2)
	cols := 0
	for _, r := range name {
		if r > 0x7f {
			cols += 2
		} else {
			cols++
		}
	}
	if cols < width {
		name += strings.Repeat(" ", width-cols)
	}
	return name
}

// padColored 补齐时不计转义序列
func padColored(s string, width int) string {
	visible := s
	if i := strings.Index(visible, "m"); strings.HasPrefix(visible, "\033[") && i > 0 {
		visible = strings.TrimSuffix(visible[i+1:], reset)
	}
	if n := len(visible); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
