package backtest

import (
	"time"

	"xuangu/signal"
)

// 运行模式
const (
	ModeBacktest = "backtest"
	ModeScan     = "scan"
	ModeFast     = "fast"
)

// Trade 一次买入到卖出（或数据结束仍持有）的交易记录，按收盘价成交
type Trade struct {
	Symbol        string               `json:"symbol"`
	EntryDate     string               `json:"entry_date"`
	EntryPrice    float64              `json:"entry_price"`
	ExitDate      string               `json:"exit_date,omitempty"`
	ExitPrice     float64              `json:"exit_price,omitempty"`
	HoldingDays   int                  `json:"holding_days"`
	ReturnPct     float64              `json:"return_pct"`
	PeakReturnPct float64              `json:"peak_return_pct"`
	State         signal.PositionState `json:"state"`
	ReasonExit    []string             `json:"reason_exit,omitempty"`
}

// Closed 是否已经卖出
func (t Trade) Closed() bool {
	return t.State == signal.StateExited
}

// Result 单只股票的回测结果
type Result struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name,omitempty"`
	Bars         int      `json:"bars"`
	Signals      int      `json:"signals"`
	Trades       []Trade  `json:"trades"`
	TotalTrades  int      `json:"total_trades"`
	OpenTrades   int      `json:"open_trades"`
	WinRatePct   float64  `json:"win_rate_pct"`
	AvgReturnPct float64  `json:"avg_return_pct"`
	ChartPath    string   `json:"chart_path,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// ScanResult 单只股票在目标日（或最新一天）的选股结果
type ScanResult struct {
	Symbol     string                   `json:"symbol"`
	Name       string                   `json:"name,omitempty"`
	LastDate   string                   `json:"last_date"`
	LastClose  float64                  `json:"last_close"`
	ChangePct  float64                  `json:"change_pct"`
	Signal     bool                     `json:"signal"`
	Conditions []signal.ConditionResult `json:"conditions,omitempty"`
	Failed     []string                 `json:"failed,omitempty"`
	ChartPath  string                   `json:"chart_path,omitempty"`
	Errors     []string                 `json:"errors,omitempty"`
}

// Summary 全部股票汇总
type Summary struct {
	Instruments  int     `json:"instruments"`
	Failed       int     `json:"failed"`
	Signals      int     `json:"signals"`
	TotalTrades  int     `json:"total_trades"`
	WinRatePct   float64 `json:"win_rate_pct"`
	AvgReturnPct float64 `json:"avg_return_pct"`
}

// Report 一次运行的完整输出
type Report struct {
	RunID       string       `json:"run_id"`
	Mode        string       `json:"mode"`
	Strategy    string       `json:"strategy"`
	Benchmark   string       `json:"benchmark,omitempty"`
	Start       string       `json:"start,omitempty"`
	End         string       `json:"end,omitempty"`
	Target      string       `json:"target,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
	Summary     Summary      `json:"summary"`
	Results     []Result     `json:"results,omitempty"`
	Scan        []ScanResult `json:"scan,omitempty"`
}
