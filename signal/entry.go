package signal

import (
	"math"
	"strings"
	"time"

	"xuangu/model"
	"xuangu/series"
)

// Condition 一个命名的买入子条件，用于解释信号
type Condition struct {
	Name   string
	Values series.Bool
}

// ConditionResult 某个交易日各子条件的取值
type ConditionResult struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// EvaluateEntry 全序列模式：逐日计算所有启用的子条件并取交集。
// 区间内K线不足 MinHistory 时返回全 false，不报错。
func EvaluateEntry(bars model.BarSeries, gate *model.GateSeries, win Window, cfg StrategyConfig) (model.SignalSeries, error) {
	w, cfg, err := prepare(bars, win, cfg)
	if err != nil {
		return model.SignalSeries{}, err
	}
	out := model.NewSignalSeries(w.Dates())
	conds, ok := entryConditions(w, gate, cfg)
	if !ok {
		return out, nil
	}
	sig := combine(w.Len(), conds)
	if cfg.Entry.DedupWindow > 0 {
		sig = dedup(sig, cfg.Entry.DedupWindow)
	}
	copy(out.Values, sig)
	return out, nil
}

// EvaluateEntryAt 目标日模式。target 为零值时取区间最后一天；不在区间内返回 false。
func EvaluateEntryAt(bars model.BarSeries, gate *model.GateSeries, win Window, cfg StrategyConfig, target time.Time) (bool, error) {
	s, err := EvaluateEntry(bars, gate, win, cfg)
	if err != nil {
		return false, err
	}
	if target.IsZero() {
		return s.Last(), nil
	}
	v, _ := s.At(target)
	return v, nil
}

// ExplainEntryAt 返回目标日每个子条件的取值，便于排查为什么没有出信号
func ExplainEntryAt(bars model.BarSeries, gate *model.GateSeries, win Window, cfg StrategyConfig, target time.Time) ([]ConditionResult, error) {
	w, cfg, err := prepare(bars, win, cfg)
	if err != nil {
		return nil, err
	}
	idx := w.Len() - 1
	if !target.IsZero() {
		idx = w.IndexOf(target)
	}
	if idx < 0 {
		return nil, nil
	}
	conds, ok := entryConditions(w, gate, cfg)
	if !ok {
		name := "history"
		if w.Len() >= cfg.Entry.MinHistory && isSpecialTreatment(w, cfg.Base) {
			name = "special_treatment"
		}
		return []ConditionResult{{Name: name, Value: false}}, nil
	}
	out := make([]ConditionResult, 0, len(conds)+1)
	for _, c := range conds {
		out = append(out, ConditionResult{Name: c.Name, Value: idx < len(c.Values) && c.Values[idx]})
	}
	if cfg.Entry.DedupWindow > 0 {
		d := dedup(combine(w.Len(), conds), cfg.Entry.DedupWindow)
		out = append(out, ConditionResult{Name: "dedup", Value: d[idx]})
	}
	return out, nil
}

// EvaluateBase 只计算基础筛选（上市天数、最低价、涨停、ST），不含大盘择时
func EvaluateBase(bars model.BarSeries, win Window, cfg StrategyConfig) (model.SignalSeries, error) {
	w, cfg, err := prepare(bars, win, cfg)
	if err != nil {
		return model.SignalSeries{}, err
	}
	out := model.NewSignalSeries(w.Dates())
	if w.Len() == 0 || isSpecialTreatment(w, cfg.Base) {
		return out, nil
	}
	copy(out.Values, combine(w.Len(), baseConditions(w, cfg.Base)))
	return out, nil
}

// EvaluateEntryFast 快速模式：只看最后一根K线的基础条件，用于盘中快速初筛。
// 历史不足或最新收盘价低于 FastMinPrice 直接返回 false。
func EvaluateEntryFast(bars model.BarSeries, win Window, cfg StrategyConfig) (bool, error) {
	w, cfg, err := prepare(bars, win, cfg)
	if err != nil {
		return false, err
	}
	n := w.Len()
	if n == 0 || n < cfg.Entry.FastMinHistory {
		return false, nil
	}
	last := w.Bars[n-1]
	if last.Close < cfg.Entry.FastMinPrice {
		return false, nil
	}
	if cfg.Entry.FastStrictPrice && cfg.Base.MinPrice > 0 && !(last.Close > cfg.Base.MinPrice) {
		return false, nil
	}
	// 当天没有名称时不做 ST 判断
	if cfg.Base.ExcludeSpecialTreatment && last.Name != "" && hasMarker(last.Name, cfg.Base.SpecialTreatmentMarker) {
		return false, nil
	}
	if cfg.Base.ExcludeLimitUp && n > 1 && IsLimitUp(w.Bars[n-2].Close, last.Close, LimitMultiplier(w.Code)) {
		return false, nil
	}
	return true, nil
}

func prepare(bars model.BarSeries, win Window, cfg StrategyConfig) (model.BarSeries, StrategyConfig, error) {
	if err := bars.Validate(); err != nil {
		return model.BarSeries{}, cfg, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return model.BarSeries{}, cfg, err
	}
	return bars.Window(win.Start, win.End), cfg, nil
}

// entryConditions 返回启用的子条件；历史不足或 ST 时 ok=false
func entryConditions(w model.BarSeries, gate *model.GateSeries, cfg StrategyConfig) ([]Condition, bool) {
	n := w.Len()
	if n == 0 || n < cfg.Entry.MinHistory {
		return nil, false
	}
	if isSpecialTreatment(w, cfg.Base) {
		return nil, false
	}

	var conds []Condition
	if gate != nil {
		values, _ := gate.Reindex(w.Dates())
		conds = append(conds, Condition{Name: "gate", Values: values})
	}
	conds = append(conds, baseConditions(w, cfg.Base)...)

	e := cfg.Entry
	c := series.Float(w.Closes())
	pct := series.PctChange(c)

	if e.ConsecutiveUpDays > 0 {
		up := pct.Greater(0)
		if e.MaxDailyGainPct > 0 {
			up = up.And(pct.AtMost(e.MaxDailyGainPct))
		}
		conds = append(conds, Condition{Name: "consecutive_up", Values: series.Consecutive(up).AtLeast(e.ConsecutiveUpDays)})
	}
	if e.TargetMaxGainPct > 0 {
		conds = append(conds, Condition{Name: "target_gain", Values: pct.Less(e.TargetMaxGainPct)})
	}
	if e.AmountMAWindow > 0 && w.HasAmount {
		amt := series.Float(w.Amounts())
		ma := average(amt, e.AmountMAWindow, cfg.Average)
		conds = append(conds, Condition{Name: "amount", Values: amt.Above(ma.Scale(e.AmountRatio))})
	}
	if e.TurnoverMin > 0 {
		t := series.Float(w.Turnovers())
		mean := t.Add(series.Lag(t, 1)).Scale(0.5)
		conds = append(conds, Condition{Name: "turnover", Values: mean.Greater(e.TurnoverMin)})
	}
	if e.ProfitChipWindow > 0 {
		conds = append(conds, Condition{Name: "profit_chip", Values: profitChip(c, e.ProfitChipWindow).Greater(e.ProfitChipMinPct)})
	}
	if e.LimitUpWindow > 0 {
		hits := pct.AtLeast(LimitUpThresholdPct(w.Code))
		conds = append(conds, Condition{Name: "limit_up_count", Values: series.CountTrue(hits, e.LimitUpWindow).AtLeast(float64(e.LimitUpMinCount))})
	}
	if e.Platform.Enabled {
		conds = append(conds, platformConditions(w, pct, e.Platform, cfg.Average)...)
	}
	return conds, true
}

func baseConditions(w model.BarSeries, b BaseConfig) []Condition {
	c := series.Float(w.Closes())
	var conds []Condition
	if b.ListingAgeBars > 0 {
		suspended := make(series.Bool, w.Len())
		for i, bar := range w.Bars {
			suspended[i] = bar.Suspended()
		}
		conds = append(conds, Condition{Name: "listing_age", Values: series.BarsSinceTrue(suspended).Greater(b.ListingAgeBars)})
	}
	if b.MinPrice > 0 {
		conds = append(conds, Condition{Name: "min_price", Values: c.Greater(b.MinPrice)})
	}
	if b.ExcludeLimitUp {
		conds = append(conds, Condition{Name: "not_limit_up", Values: series.Bool(limitUpSeries(c, w.Code)).Not()})
	}
	return conds
}

// platformConditions 停机坪：近期有过大涨且放量，当天高开小阳线
func platformConditions(w model.BarSeries, pct series.Float, p PlatformConfig, avg AverageConfig) []Condition {
	c := series.Float(w.Closes())
	o := series.Float(w.Opens())
	v := series.Float(w.Volumes())

	rng := series.RollingMax(c, p.Window).Div(series.RollingMin(c, p.Window)).AddScalar(-1).Scale(100)
	volUp := v.Above(average(v, p.VolumeMAWindow, avg)).And(pct.Greater(0))
	body := c.Sub(o).Div(o).Scale(100).Abs()

	return []Condition{
		{Name: "platform_range", Values: rng.Greater(p.MinRangePct)},
		{Name: "platform_volume", Values: series.ExistsTrue(volUp, p.Window)},
		{Name: "gap_up", Values: o.Above(series.Lag(c, 1))},
		{Name: "close_above_open", Values: c.Above(o)},
		{Name: "small_body", Values: body.Less(p.MaxBodyPct)},
	}
}

// profitChip 前 w 个收盘价中低于当日收盘价的占比（%）
func profitChip(c series.Float, w int) series.Float {
	out := series.NaNs(len(c))
	for i := w; i < len(c); i++ {
		if math.IsNaN(c[i]) {
			continue
		}
		below := 0
		for _, p := range c[i-w : i] {
			if p < c[i] {
				below++
			}
		}
		out[i] = float64(below) / float64(w) * 100
	}
	return out
}

// dedup 前 w 日内出现过信号的当天不再出信号
func dedup(sig series.Bool, w int) series.Bool {
	prior := series.Lag(series.CountTrue(sig, w), 1)
	return sig.And(prior.Equal(0))
}

func combine(n int, conds []Condition) series.Bool {
	bs := make([]series.Bool, len(conds))
	for i, c := range conds {
		bs[i] = c.Values
	}
	return series.AndAll(n, bs...)
}

// isSpecialTreatment 最新名称带 ST 标记时整个序列都不出信号
func isSpecialTreatment(w model.BarSeries, b BaseConfig) bool {
	if !b.ExcludeSpecialTreatment {
		return false
	}
	for i := w.Len() - 1; i >= 0; i-- {
		if name := w.Bars[i].Name; name != "" {
			return hasMarker(name, b.SpecialTreatmentMarker)
		}
	}
	return false
}

func hasMarker(name, marker string) bool {
	return marker != "" && strings.Contains(strings.ToUpper(name), strings.ToUpper(marker))
}
