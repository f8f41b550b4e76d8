package trading

import (
	"sync"
	"time"
)

// 中国时区
var cst = time.FixedZone("CST", 8*3600)

// session 一个交易时段，开收盘用当天分钟数表示，两端都算在内
type session struct {
	open, close int
}

func hm(h, m int) int { return h*60 + m }

func (s session) contains(minute int) bool {
	return minute >= s.open && minute <= s.close
}

var (
	// 连续竞价：上午 9:30-11:30，下午 13:00-15:00
	stockSessions = []session{{hm(9, 30), hm(11, 30)}, {hm(13, 0), hm(15, 0)}}

	// 集合竞价开始到收盘数据落库，这段时间当天日K以实时报价为准
	quoteSession = session{hm(9, 0), hm(16, 0)}
)

// Calendar 交易日历：周末和登记过的节假日休市
type Calendar struct {
	mu       sync.RWMutex
	holidays map[int]bool
}

func NewCalendar(holidays []time.Time) *Calendar {
	c := &Calendar{}
	c.SetHolidays(holidays)
	return c
}

var defaultCalendar = NewCalendar(nil)

// SetHolidays 替换默认日历的节假日
func SetHolidays(days []time.Time) {
	defaultCalendar.SetHolidays(days)
}

func (c *Calendar) SetHolidays(days []time.Time) {
	m := make(map[int]bool, len(days))
	for _, d := range days {
		m[dayKey(d)] = true
	}
	c.mu.Lock()
	c.holidays = m
	c.mu.Unlock()
}

// dayKey 节假日按登记时的年月日匹配，不做时区换算
func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// IsTradingDay t 所在的北京时间日期是否开市
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(cst)
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.holidays[dayKey(t)]
}

// InSession 是否处于连续竞价时段
func (c *Calendar) InSession(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	t = t.In(cst)
	minute := hm(t.Hour(), t.Minute())
	for _, s := range stockSessions {
		if s.contains(minute) {
			return true
		}
	}
	return false
}

// InQuoteWindow 是否应把实时报价并入日K
func (c *Calendar) InQuoteWindow(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	t = t.In(cst)
	return quoteSession.contains(hm(t.Hour(), t.Minute()))
}

// NextOpen 下一次连续竞价开始的时间；正处于交易时段时返回 t
func (c *Calendar) NextOpen(t time.Time) time.Time {
	if c.InSession(t) {
		return t
	}
	now := t.In(cst)
	minute := hm(now.Hour(), now.Minute())
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, cst)
	// 最长的长假也不会超过一个月
	for i := 0; i < 31; i++ {
		d := day.AddDate(0, 0, i)
		if !c.IsTradingDay(d) {
			continue
		}
		for _, s := range stockSessions {
			if i == 0 && s.open <= minute {
				continue
			}
			return d.Add(time.Duration(s.open) * time.Minute)
		}
	}
	return now.Add(24 * time.Hour)
}

// IsStockTradingTime 判断当前是否为A股交易时间
func IsStockTradingTime() bool {
	return IsStockTradingTimeAt(time.Now())
}

// IsStockTradingTimeAt 判断指定时间是否为A股交易时间
func IsStockTradingTimeAt(t time.Time) bool {
	return defaultCalendar.InSession(t)
}

// ShouldMergeQuote 当前是否需要把实时报价并入日K
func ShouldMergeQuote() bool {
	return ShouldMergeQuoteAt(time.Now())
}

// ShouldMergeQuoteAt 交易日 9:00-16:00 之间本地日K还没有当天数据
func ShouldMergeQuoteAt(t time.Time) bool {
	return defaultCalendar.InQuoteWindow(t)
}

// GetNextTradingTime 获取下一个交易时间
func GetNextTradingTime() time.Time {
	return defaultCalendar.NextOpen(time.Now())
}
