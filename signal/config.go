package signal

import (
	"fmt"
	"strings"
	"time"
)

// Window 评估区间，零值表示不限
type Window struct {
	Start time.Time
	End   time.Time
}

// Anchor modes for exit evaluation.
const (
	AnchorIndependent = "independent"
	AnchorLatest      = "latest"
)

// Average kinds.
const (
	AverageSMA      = "sma"
	AverageSmoothed = "smoothed"
)

// StrategyConfig 一套完整的买卖规则参数。按值传递，评估函数不会修改它。
// 数值为0的子条件视为关闭。
type StrategyConfig struct {
	Name string `yaml:"name" json:"name"`
	// 成交额、成交量和收盘价均线共用的算法
	Average AverageConfig `yaml:"average" json:"average"`
	Gate    GateConfig    `yaml:"gate" json:"gate"`
	Base    BaseConfig    `yaml:"base" json:"base"`
	Entry   EntryConfig   `yaml:"entry" json:"entry"`
	Exit    ExitConfig    `yaml:"exit" json:"exit"`
}

// GateConfig 大盘择时：基准当日涨跌幅落在 [LowerPct, UpperPct] 内才允许买入
type GateConfig struct {
	LowerPct      float64 `yaml:"lower_pct" json:"lower_pct"`
	UpperPct      float64 `yaml:"upper_pct" json:"upper_pct"`
	FirstDayAdmit bool    `yaml:"first_day_admit" json:"first_day_admit"`
}

// BaseConfig 通用基础筛选
type BaseConfig struct {
	MinPrice                float64 `yaml:"min_price" json:"min_price"`               // 收盘价 > MinPrice
	ListingAgeBars          int     `yaml:"listing_age_bars" json:"listing_age_bars"` // BARSLAST(C==0) > N
	ExcludeLimitUp          bool    `yaml:"exclude_limit_up" json:"exclude_limit_up"`
	ExcludeSpecialTreatment bool    `yaml:"exclude_st" json:"exclude_st"`
	SpecialTreatmentMarker  string  `yaml:"st_marker" json:"st_marker"`
}

// EntryConfig 买入条件
type EntryConfig struct {
	MinHistory     int     `yaml:"min_history" json:"min_history"`
	FastMinHistory int     `yaml:"fast_min_history" json:"fast_min_history"`
	FastMinPrice   float64 `yaml:"fast_min_price" json:"fast_min_price"`
	// 快速模式下收盘价还要严格高于 Base.MinPrice
	FastStrictPrice bool `yaml:"fast_strict_price" json:"fast_strict_price"`

	ConsecutiveUpDays int     `yaml:"consecutive_up_days" json:"consecutive_up_days"`
	MaxDailyGainPct   float64 `yaml:"max_daily_gain_pct" json:"max_daily_gain_pct"`   // 连涨期间每天涨幅 <= 上限
	TargetMaxGainPct  float64 `yaml:"target_max_gain_pct" json:"target_max_gain_pct"` // 信号当天涨幅 < 上限

	AmountMAWindow int     `yaml:"amount_ma_window" json:"amount_ma_window"`
	AmountRatio    float64 `yaml:"amount_ratio" json:"amount_ratio"`

	// 近两日平均换手率，代替全市场换手率排名
	TurnoverMin float64 `yaml:"turnover_min" json:"turnover_min"`

	// 前 W 日收盘价低于当日收盘价的比例，代替筹码分布
	ProfitChipWindow int     `yaml:"profit_chip_window" json:"profit_chip_window"`
	ProfitChipMinPct float64 `yaml:"profit_chip_min_pct" json:"profit_chip_min_pct"`

	LimitUpWindow   int `yaml:"limit_up_window" json:"limit_up_window"`
	LimitUpMinCount int `yaml:"limit_up_min_count" json:"limit_up_min_count"`

	Platform PlatformConfig `yaml:"platform" json:"platform"`

	// 信号出现后 DedupWindow 日内不重复出信号
	DedupWindow int `yaml:"dedup_window" json:"dedup_window"`
}

// PlatformConfig 停机坪形态
type PlatformConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	Window         int     `yaml:"window" json:"window"`
	MinRangePct    float64 `yaml:"min_range_pct" json:"min_range_pct"`
	VolumeMAWindow int     `yaml:"volume_ma_window" json:"volume_ma_window"`
	MaxBodyPct     float64 `yaml:"max_body_pct" json:"max_body_pct"`
}

// ExitConfig 卖出条件，任意一条触发即卖出
type ExitConfig struct {
	Anchor string `yaml:"anchor" json:"anchor"`

	DeclineDays      int     `yaml:"decline_days" json:"decline_days"`
	SingleDayDropPct float64 `yaml:"single_day_drop_pct" json:"single_day_drop_pct"`

	StuckDays      int     `yaml:"stuck_days" json:"stuck_days"`
	StuckMinReturn float64 `yaml:"stuck_min_return" json:"stuck_min_return"`

	TakeProfit float64 `yaml:"take_profit" json:"take_profit"`
	StopLoss   float64 `yaml:"stop_loss" json:"stop_loss"` // 正数，收益 < -StopLoss 止损

	MAWindow    int     `yaml:"ma_window" json:"ma_window"`
	MAMaxReturn float64 `yaml:"ma_max_return" json:"ma_max_return"`

	DrawdownMinPeak  float64 `yaml:"drawdown_min_peak" json:"drawdown_min_peak"`
	DrawdownFraction float64 `yaml:"drawdown_fraction" json:"drawdown_fraction"`

	GapDownInProfit bool `yaml:"gap_down_in_profit" json:"gap_down_in_profit"`

	DownCandles        int `yaml:"down_candles" json:"down_candles"`
	DownCandlesMinHold int `yaml:"down_candles_min_hold" json:"down_candles_min_hold"`
}

// AverageConfig 均线算法：sma 为简单均线，smoothed 为 SMA(X,N,M) 递推均线
type AverageConfig struct {
	Kind   string  `yaml:"kind" json:"kind"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// WithDefaults 填充零值字段并返回新配置
func (c StrategyConfig) WithDefaults() StrategyConfig {
	if c.Gate.LowerPct == 0 && c.Gate.UpperPct == 0 {
		c.Gate.LowerPct = -1.5
		c.Gate.UpperPct = 1.5
	}
	if c.Base.SpecialTreatmentMarker == "" {
		c.Base.SpecialTreatmentMarker = "ST"
	}
	if c.Entry.FastMinHistory <= 0 {
		c.Entry.FastMinHistory = c.Entry.MinHistory
	}
	if c.Entry.FastMinPrice <= 0 {
		c.Entry.FastMinPrice = c.Base.MinPrice
	}
	if c.Entry.AmountMAWindow > 0 && c.Entry.AmountRatio <= 0 {
		c.Entry.AmountRatio = 1
	}
	if c.Entry.LimitUpWindow > 0 && c.Entry.LimitUpMinCount <= 0 {
		c.Entry.LimitUpMinCount = 1
	}
	p := &c.Entry.Platform
	if p.Enabled {
		if p.Window <= 0 {
			p.Window = 15
		}
		if p.MinRangePct <= 0 {
			p.MinRangePct = 9.5
		}
		if p.VolumeMAWindow <= 0 {
			p.VolumeMAWindow = 20
		}
		if p.MaxBodyPct <= 0 {
			p.MaxBodyPct = 3
		}
	}
	c.Exit.Anchor = strings.ToLower(strings.TrimSpace(c.Exit.Anchor))
	if c.Exit.Anchor == "" {
		c.Exit.Anchor = AnchorIndependent
	}
	c.Average.Kind = strings.ToLower(strings.TrimSpace(c.Average.Kind))
	if c.Average.Kind == "" {
		c.Average.Kind = AverageSMA
	}
	if c.Average.Weight <= 0 {
		c.Average.Weight = 1
	}
	return c
}

// Validate 检查互相矛盾或越界的参数
func (c StrategyConfig) Validate() error {
	if c.Gate.LowerPct > c.Gate.UpperPct {
		return fmt.Errorf("gate lower_pct %.2f above upper_pct %.2f", c.Gate.LowerPct, c.Gate.UpperPct)
	}
	switch strings.ToLower(c.Exit.Anchor) {
	case "", AnchorIndependent, AnchorLatest:
	default:
		return fmt.Errorf("unknown exit anchor: %s", c.Exit.Anchor)
	}
	switch strings.ToLower(c.Average.Kind) {
	case "", AverageSMA, AverageSmoothed:
	default:
		return fmt.Errorf("unknown average kind: %s", c.Average.Kind)
	}
	if c.Average.Kind == AverageSmoothed {
		for _, w := range []int{c.Entry.AmountMAWindow, c.Entry.Platform.VolumeMAWindow, c.Exit.MAWindow} {
			if w > 0 && c.Average.Weight > float64(w) {
				return fmt.Errorf("average weight %.2f exceeds window %d", c.Average.Weight, w)
			}
		}
	}
	if c.Exit.DrawdownFraction < 0 || c.Exit.DrawdownFraction >= 1 {
		return fmt.Errorf("drawdown_fraction must be in [0,1): %.2f", c.Exit.DrawdownFraction)
	}
	for name, v := range map[string]int{
		"min_history":         c.Entry.MinHistory,
		"consecutive_up_days": c.Entry.ConsecutiveUpDays,
		"amount_ma_window":    c.Entry.AmountMAWindow,
		"profit_chip_window":  c.Entry.ProfitChipWindow,
		"limit_up_window":     c.Entry.LimitUpWindow,
		"dedup_window":        c.Entry.DedupWindow,
		"decline_days":        c.Exit.DeclineDays,
		"stuck_days":          c.Exit.StuckDays,
		"ma_window":           c.Exit.MAWindow,
		"down_candles":        c.Exit.DownCandles,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative: %d", name, v)
		}
	}
	return nil
}
