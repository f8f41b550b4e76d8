package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrMalformedInput 输入数据违反约定（日期乱序/重复、价格非法等），属于调用方错误
var ErrMalformedInput = errors.New("malformed input")

// Bar 单个交易日的日K数据
type Bar struct {
	Date         time.Time `json:"date"`                    // 交易日
	Open         float64   `json:"open"`                    // 开盘价
	High         float64   `json:"high"`                    // 最高价
	Low          float64   `json:"low"`                     // 最低价
	Close        float64   `json:"close"`                   // 收盘价（0 表示停牌）
	Volume       int64     `json:"volume"`                  // 成交量（股）
	TurnoverRate float64   `json:"turnover_rate,omitempty"` // 换手率（%）
	Amount       float64   `json:"amount,omitempty"`        // 成交额（元）
	Name         string    `json:"name,omitempty"`          // 当日名称（ST 判断用）
}

// Suspended 收盘价为0或缺失视为停牌日
func (b Bar) Suspended() bool {
	return b.Close <= 0 || math.IsNaN(b.Close)
}

// BarSeries 单只股票按日期升序排列的日K序列
type BarSeries struct {
	Code        string `json:"code"`
	Bars        []Bar  `json:"bars"`
	HasTurnover bool   `json:"has_turnover"`
	HasAmount   bool   `json:"has_amount"`
}

// Len 返回K线数量
func (s BarSeries) Len() int {
	return len(s.Bars)
}

// Validate 检查日期严格递增且OHLC合法
func (s BarSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Date.IsZero() {
			return fmt.Errorf("%w: %s bar %d has no date", ErrMalformedInput, s.Code, i)
		}
		if i > 0 && DayKey(b.Date) <= DayKey(s.Bars[i-1].Date) {
			return fmt.Errorf("%w: %s bar %d date %s not after %s", ErrMalformedInput, s.Code, i,
				b.Date.Format("2006-01-02"), s.Bars[i-1].Date.Format("2006-01-02"))
		}
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: %s bar %s has invalid price %v", ErrMalformedInput, s.Code, b.Date.Format("2006-01-02"), v)
			}
		}
		if !b.Suspended() && b.High < b.Low {
			return fmt.Errorf("%w: %s bar %s high %.2f below low %.2f", ErrMalformedInput, s.Code, b.Date.Format("2006-01-02"), b.High, b.Low)
		}
	}
	return nil
}

// Window 返回 [start, end] 闭区间内的子序列（零值表示不限），与原序列共享底层数组
func (s BarSeries) Window(start, end time.Time) BarSeries {
	lo := 0
	if !start.IsZero() {
		k := DayKey(start)
		lo = sort.Search(len(s.Bars), func(i int) bool { return DayKey(s.Bars[i].Date) >= k })
	}
	hi := len(s.Bars)
	if !end.IsZero() {
		k := DayKey(end)
		hi = sort.Search(len(s.Bars), func(i int) bool { return DayKey(s.Bars[i].Date) > k })
	}
	out := s
	if lo >= hi {
		out.Bars = nil
		return out
	}
	out.Bars = s.Bars[lo:hi:hi]
	return out
}

// IndexOf 返回指定交易日的位置，不存在返回 -1
func (s BarSeries) IndexOf(date time.Time) int {
	k := DayKey(date)
	i := sort.Search(len(s.Bars), func(i int) bool { return DayKey(s.Bars[i].Date) >= k })
	if i < len(s.Bars) && DayKey(s.Bars[i].Date) == k {
		return i
	}
	return -1
}

// Last 返回最后一根K线
func (s BarSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Board 返回去掉 sh/sz/bj 市场前缀后的代码前两位（68 科创板，30 创业板）
func (s BarSeries) Board() string {
	return BoardOf(s.Code)
}

// BoardOf 返回代码所属板块前缀
func BoardOf(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	for _, p := range []string{"sh", "sz", "bj"} {
		if strings.HasPrefix(c, p) {
			c = c[len(p):]
			break
		}
	}
	c = strings.TrimPrefix(c, ".")
	if len(c) < 2 {
		return c
	}
	return c[:2]
}

func (s BarSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

func (s BarSeries) Opens() []float64 {
	return s.column(func(b Bar) float64 { return b.Open })
}

func (s BarSeries) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

func (s BarSeries) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

func (s BarSeries) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

func (s BarSeries) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return float64(b.Volume) })
}

// Turnovers 返回换手率序列；没有换手率列时全部为0
func (s BarSeries) Turnovers() []float64 {
	if !s.HasTurnover {
		return make([]float64, len(s.Bars))
	}
	return s.column(func(b Bar) float64 { return b.TurnoverRate })
}

func (s BarSeries) Amounts() []float64 {
	return s.column(func(b Bar) float64 { return b.Amount })
}

func (s BarSeries) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = f(b)
	}
	return out
}

// DayKey 把日期折算成 yyyymmdd 整数，忽略时区与时分秒
func DayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// ParseDate 解析 2006-01-02 格式日期（本地时区）
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
