package model

import "time"

// GateSeries 大盘择时信号，按基准指数的交易日排列
type GateSeries struct {
	Code   string      `json:"code"`
	Dates  []time.Time `json:"dates"`
	Values []bool      `json:"values"`
}

// Reindex 按给定交易日重新对齐。基准缺失的日期 present=false，对应 value 为 false。
func (g GateSeries) Reindex(dates []time.Time) (values []bool, present []bool) {
	idx := make(map[int]bool, len(g.Dates))
	for i, d := range g.Dates {
		if i < len(g.Values) {
			idx[DayKey(d)] = g.Values[i]
		}
	}
	values = make([]bool, len(dates))
	present = make([]bool, len(dates))
	for i, d := range dates {
		v, ok := idx[DayKey(d)]
		values[i] = v && ok
		present[i] = ok
	}
	return values, present
}

// At 返回某日的择时信号
func (g GateSeries) At(date time.Time) (bool, bool) {
	k := DayKey(date)
	for i := len(g.Dates) - 1; i >= 0; i-- {
		if DayKey(g.Dates[i]) == k {
			return i < len(g.Values) && g.Values[i], true
		}
	}
	return false, false
}

// SignalSeries 每个交易日一个布尔信号（买入或卖出）
type SignalSeries struct {
	Dates  []time.Time `json:"dates"`
	Values []bool      `json:"values"`
}

// NewSignalSeries 创建全 false 的信号序列
func NewSignalSeries(dates []time.Time) SignalSeries {
	d := make([]time.Time, len(dates))
	copy(d, dates)
	return SignalSeries{Dates: d, Values: make([]bool, len(dates))}
}

func (s SignalSeries) Len() int {
	return len(s.Values)
}

// Any 是否存在 true
func (s SignalSeries) Any() bool {
	for _, v := range s.Values {
		if v {
			return true
		}
	}
	return false
}

// Count 返回 true 的数量
func (s SignalSeries) Count() int {
	n := 0
	for _, v := range s.Values {
		if v {
			n++
		}
	}
	return n
}

// At 返回某日的信号；日期不在序列内 ok=false
func (s SignalSeries) At(date time.Time) (value bool, ok bool) {
	k := DayKey(date)
	for i := len(s.Dates) - 1; i >= 0; i-- {
		if DayKey(s.Dates[i]) == k {
			return s.Values[i], true
		}
	}
	return false, false
}

// Last 返回最后一天的信号
func (s SignalSeries) Last() bool {
	if len(s.Values) == 0 {
		return false
	}
	return s.Values[len(s.Values)-1]
}

// TrueDates 返回所有信号为 true 的日期
func (s SignalSeries) TrueDates() []time.Time {
	var out []time.Time
	for i, v := range s.Values {
		if v {
			out = append(out, s.Dates[i])
		}
	}
	return out
}
