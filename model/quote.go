package model

import (
	"fmt"
	"time"
)

// StockQuote A股实时报价
type StockQuote struct {
	Code      string    `json:"code"`       // 股票代码 (sh600000, sz000001)
	Name      string    `json:"name"`       // 股票名称
	Open      float64   `json:"open"`       // 今开
	PreClose  float64   `json:"pre_close"`  // 昨收
	Price     float64   `json:"price"`      // 当前价
	High      float64   `json:"high"`       // 最高
	Low       float64   `json:"low"`        // 最低
	Volume    int64     `json:"volume"`     // 成交量（股）
	Amount    float64   `json:"amount"`     // 成交额（元）
	Date      string    `json:"date"`       // 日期
	Time      string    `json:"time"`       // 时间
	UpdatedAt time.Time `json:"updated_at"` // 更新时间
}

// Change 计算涨跌额
func (q *StockQuote) Change() float64 {
	return q.Price - q.PreClose
}

// ChangePercent 计算涨跌幅
func (q *StockQuote) ChangePercent() float64 {
	if q.PreClose == 0 {
		return 0
	}
	return (q.Price - q.PreClose) / q.PreClose * 100
}

// Bar 把盘中报价折算成当日K线（收盘价取当前价）
func (q *StockQuote) Bar() (Bar, error) {
	d, err := ParseDate(q.Date)
	if err != nil || d.IsZero() {
		return Bar{}, fmt.Errorf("quote %s has invalid date %q", q.Code, q.Date)
	}
	return Bar{
		Date:   d,
		Open:   q.Open,
		High:   q.High,
		Low:    q.Low,
		Close:  q.Price,
		Volume: q.Volume,
		Amount: q.Amount,
		Name:   q.Name,
	}, nil
}

// MergeQuote 把盘中报价并入日K历史：同一天覆盖最后一根，更晚的日期追加。
// 返回新序列，不修改原序列。
func MergeQuote(s BarSeries, q *StockQuote) (BarSeries, error) {
	if q == nil || q.Price <= 0 {
		return s, nil
	}
	b, err := q.Bar()
	if err != nil {
		return s, err
	}
	out := s
	out.Bars = make([]Bar, len(s.Bars), len(s.Bars)+1)
	copy(out.Bars, s.Bars)

	last, ok := s.Last()
	switch {
	case !ok || DayKey(b.Date) > DayKey(last.Date):
		// 新的一天同样沿用上一日换手率
		b.TurnoverRate = last.TurnoverRate
		out.Bars = append(out.Bars, b)
	case DayKey(b.Date) == DayKey(last.Date):
		// 报价不带换手率，沿用历史数据里当天的值
		b.TurnoverRate = last.TurnoverRate
		out.Bars[len(out.Bars)-1] = b
	default:
		return s, nil
	}
	return out, nil
}
