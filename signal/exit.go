package signal

import (
	"math"
	"time"

	"xuangu/model"
	"xuangu/series"
)

// PositionState 持仓状态
type PositionState string

const (
	StateOpened    PositionState = "opened"
	StateHolding   PositionState = "holding"
	StateExited    PositionState = "exited"
	StateStillOpen PositionState = "still_open"
)

// Exit reasons.
const (
	ReasonDecline     = "decline"
	ReasonSingleDrop  = "single_day_drop"
	ReasonStuck       = "stuck"
	ReasonTakeProfit  = "take_profit"
	ReasonStopLoss    = "stop_loss"
	ReasonBelowMA     = "below_ma"
	ReasonDrawdown    = "drawdown"
	ReasonGapDown     = "gap_down"
	ReasonDownCandles = "down_candles"
)

// Position 一次买入信号对应的模拟持仓
type Position struct {
	EntryIndex  int           `json:"entry_index"`
	EntryDate   time.Time     `json:"entry_date"`
	EntryClose  float64       `json:"entry_close"`
	EntryOpen   float64       `json:"entry_open"`
	ExitIndex   int           `json:"exit_index"` // -1 表示未卖出
	ExitDate    time.Time     `json:"exit_date,omitempty"`
	ExitClose   float64       `json:"exit_close,omitempty"`
	State       PositionState `json:"state"`
	HoldingDays int           `json:"holding_days"`
	Return      float64       `json:"return"`
	PeakReturn  float64       `json:"peak_return"`
	Reasons     []string      `json:"reasons,omitempty"`
}

// EntryInput 买入信号的统一表示：完整序列，或目标日的单个布尔值
type EntryInput struct {
	series   model.SignalSeries
	scalar   bool
	date     time.Time
	isScalar bool
}

// EntryFromSeries 用完整的买入信号序列作为输入
func EntryFromSeries(s model.SignalSeries) EntryInput {
	return EntryInput{series: s}
}

// EntryFromScalar 只在 date 当天为 true；date 为零值表示区间最后一天
func EntryFromScalar(ok bool, date time.Time) EntryInput {
	return EntryInput{scalar: ok, date: date, isScalar: true}
}

// materialize 对齐到给定交易日，缺失日期视为 false
func (in EntryInput) materialize(dates []time.Time) []bool {
	out := make([]bool, len(dates))
	if in.isScalar {
		if !in.scalar || len(dates) == 0 {
			return out
		}
		if in.date.IsZero() {
			out[len(dates)-1] = true
			return out
		}
		k := model.DayKey(in.date)
		for i, d := range dates {
			if model.DayKey(d) == k {
				out[i] = true
				break
			}
		}
		return out
	}
	idx := make(map[int]bool, len(in.series.Dates))
	for i, d := range in.series.Dates {
		if i < len(in.series.Values) && in.series.Values[i] {
			idx[model.DayKey(d)] = true
		}
	}
	for i, d := range dates {
		out[i] = idx[model.DayKey(d)]
	}
	return out
}

// EvaluateExit 返回卖出信号序列：每个买入事件第一次满足卖出条件的那天为 true
func EvaluateExit(bars model.BarSeries, entry EntryInput, win Window, cfg StrategyConfig) (model.SignalSeries, error) {
	w, cfg, err := prepare(bars, win, cfg)
	if err != nil {
		return model.SignalSeries{}, err
	}
	out := model.NewSignalSeries(w.Dates())
	for _, p := range simulate(w, entry, cfg.Exit, cfg.Average) {
		if p.State == StateExited {
			out.Values[p.ExitIndex] = true
		}
	}
	return out, nil
}

// SimulatePositions 对每个买入事件模拟持仓，返回持仓记录（按买入日期排序）
func SimulatePositions(bars model.BarSeries, entry EntryInput, win Window, cfg StrategyConfig) ([]Position, error) {
	w, cfg, err := prepare(bars, win, cfg)
	if err != nil {
		return nil, err
	}
	return simulate(w, entry, cfg.Exit, cfg.Average), nil
}

func simulate(w model.BarSeries, entry EntryInput, cfg ExitConfig, avg AverageConfig) []Position {
	entries := entry.materialize(w.Dates())
	found := false
	for _, v := range entries {
		if v {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	r := newExitRules(w, cfg, avg)
	if cfg.Anchor == AnchorLatest {
		return r.simulateLatest(entries)
	}
	return r.simulateIndependent(entries)
}

// exitRules 预先计算与持仓无关的序列
type exitRules struct {
	cfg     ExitConfig
	bars    []model.Bar
	closes  series.Float
	pct     series.Float
	decline series.Int
	ma      series.Float
	down    series.Int
}

func newExitRules(w model.BarSeries, cfg ExitConfig, avg AverageConfig) *exitRules {
	c := series.Float(w.Closes())
	o := series.Float(w.Opens())
	pct := series.PctChange(c)
	r := &exitRules{
		cfg:     cfg,
		bars:    w.Bars,
		closes:  c,
		pct:     pct,
		decline: series.Consecutive(pct.Less(0)),
		down:    series.Consecutive(c.Below(o)),
	}
	if cfg.MAWindow > 0 {
		r.ma = average(c, cfg.MAWindow, avg)
	}
	return r
}

// reasons 返回第 k 天触发的卖出条件
func (r *exitRules) reasons(k int, ret, peak float64, hold int) []string {
	cfg := r.cfg
	var out []string
	if cfg.DeclineDays > 0 && r.decline[k] >= cfg.DeclineDays {
		out = append(out, ReasonDecline)
	}
	if cfg.SingleDayDropPct > 0 && !math.IsNaN(r.pct[k]) && r.pct[k] < -cfg.SingleDayDropPct {
		out = append(out, ReasonSingleDrop)
	}
	if cfg.StuckDays > 0 && hold > cfg.StuckDays && ret < cfg.StuckMinReturn {
		out = append(out, ReasonStuck)
	}
	if cfg.TakeProfit > 0 && ret > cfg.TakeProfit {
		out = append(out, ReasonTakeProfit)
	}
	if cfg.StopLoss > 0 && ret < -cfg.StopLoss {
		out = append(out, ReasonStopLoss)
	}
	if cfg.MAWindow > 0 && !math.IsNaN(r.ma[k]) && r.closes[k] < r.ma[k] && ret < cfg.MAMaxReturn {
		out = append(out, ReasonBelowMA)
	}
	if cfg.DrawdownFraction > 0 && peak > cfg.DrawdownMinPeak && ret < peak*(1-cfg.DrawdownFraction) {
		out = append(out, ReasonDrawdown)
	}
	if cfg.GapDownInProfit && k > 0 && r.bars[k].High < r.bars[k-1].Low && ret > 0 {
		out = append(out, ReasonGapDown)
	}
	if cfg.DownCandles > 0 && r.down[k] >= cfg.DownCandles && hold > cfg.DownCandlesMinHold {
		out = append(out, ReasonDownCandles)
	}
	return out
}

func (r *exitRules) open(e int) Position {
	b := r.bars[e]
	return Position{
		EntryIndex: e,
		EntryDate:  b.Date,
		EntryClose: b.Close,
		EntryOpen:  b.Open,
		ExitIndex:  -1,
		State:      StateOpened,
	}
}

func (r *exitRules) exit(p *Position, k int, reasons []string) {
	p.State = StateExited
	p.ExitIndex = k
	p.ExitDate = r.bars[k].Date
	p.ExitClose = r.bars[k].Close
	p.Reasons = reasons
}

// simulateIndependent 每个买入事件以自己的买入日为锚点，互不影响
func (r *exitRules) simulateIndependent(entries []bool) []Position {
	var out []Position
	for e, ok := range entries {
		if !ok || r.bars[e].Suspended() {
			continue
		}
		p := r.open(e)
		peak := 0.0
		for k := e + 1; k < len(r.bars); k++ {
			// 停牌日不计算收益，也不触发卖出
			if r.bars[k].Suspended() {
				continue
			}
			ret := r.closes[k]/p.EntryClose - 1
			peak = math.Max(peak, ret)
			p.State = StateHolding
			p.HoldingDays = k - e
			p.Return = ret
			p.PeakReturn = peak
			if reasons := r.reasons(k, ret, peak, k-e); len(reasons) > 0 {
				r.exit(&p, k, reasons)
				break
			}
		}
		if p.State == StateHolding {
			p.State = StateStillOpen
		}
		out = append(out, p)
	}
	return out
}

// simulateLatest 每天归属于当天或之前最近的一次买入，收益和持有天数都相对该次买入计算；
// 每个买入事件在其后第一个触发日卖出。后一次买入的当天也可以是前一次买入的卖出日。
func (r *exitRules) simulateLatest(entries []bool) []Position {
	n := len(r.bars)
	owned := make([]bool, n)
	fire := make([][]string, n)
	owner := -1
	peak := 0.0
	for k := 0; k < n; k++ {
		if entries[k] {
			owner = k
			peak = 0
		}
		if owner < 0 || r.bars[k].Suspended() || r.bars[owner].Suspended() {
			continue
		}
		ret := r.closes[k]/r.closes[owner] - 1
		peak = math.Max(peak, ret)
		hold := k - owner
		owned[k] = true
		fire[k] = r.reasons(k, ret, peak, hold)
	}

	var out []Position
	for e, ok := range entries {
		if !ok || r.bars[e].Suspended() {
			continue
		}
		p := r.open(e)
		for k := e + 1; k < n; k++ {
			if !owned[k] {
				continue
			}
			p.State = StateHolding
			p.HoldingDays = k - e
			p.Return = r.closes[k]/p.EntryClose - 1
			p.PeakReturn = math.Max(p.PeakReturn, p.Return)
			if len(fire[k]) > 0 {
				r.exit(&p, k, fire[k])
				break
			}
		}
		if p.State == StateHolding {
			p.State = StateStillOpen
		}
		out = append(out, p)
	}
	return out
}
