package signal

import (
	"fmt"
	"sort"
	"strings"
)

const (
	PresetUp8        = "up8"
	PresetThreeDays  = "three_days"
	PresetTingjiping = "tingjiping"
)

var presets = map[string]func() StrategyConfig{
	PresetUp8:        up8,
	PresetThreeDays:  threeDays,
	PresetTingjiping: tingjiping,
}

// Preset 返回内置策略的新副本
func Preset(name string) (StrategyConfig, error) {
	f, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return StrategyConfig{}, fmt.Errorf("unknown strategy preset: %s", name)
	}
	return f().WithDefaults(), nil
}

// PresetNames 按名称排序
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// up8 连涨8天
func up8() StrategyConfig {
	return StrategyConfig{
		Name:    PresetUp8,
		Average: AverageConfig{Kind: AverageSmoothed, Weight: 1},
		Gate:    GateConfig{LowerPct: -1.5, UpperPct: 1.5},
		Base: BaseConfig{
			MinPrice:       3,
			ListingAgeBars: 13,
			ExcludeLimitUp: true,
		},
		Entry: EntryConfig{
			MinHistory:        13,
			FastMinHistory:    13,
			FastMinPrice:      3,
			FastStrictPrice:   true,
			ConsecutiveUpDays: 8,
			TargetMaxGainPct:  9,
			AmountMAWindow:    8,
			AmountRatio:       0.8,
		},
		Exit: ExitConfig{
			Anchor:           AnchorIndependent,
			DeclineDays:      2,
			SingleDayDropPct: 5,
			StuckDays:        10,
			StuckMinReturn:   0.02,
			TakeProfit:       0.15,
			StopLoss:         0.08,
		},
	}
}

// threeDays 连续三天上涨
func threeDays() StrategyConfig {
	return StrategyConfig{
		Name:    PresetThreeDays,
		Average: AverageConfig{Kind: AverageSmoothed, Weight: 1},
		Gate:    GateConfig{LowerPct: -1.5, UpperPct: 1.5},
		Base: BaseConfig{
			MinPrice:                3,
			ListingAgeBars:          22,
			ExcludeLimitUp:          true,
			ExcludeSpecialTreatment: true,
		},
		Entry: EntryConfig{
			MinHistory:        100,
			FastMinHistory:    100,
			FastMinPrice:      3,
			FastStrictPrice:   true,
			ConsecutiveUpDays: 3,
			MaxDailyGainPct:   7,
			TurnoverMin:       3,
			ProfitChipWindow:  90,
			ProfitChipMinPct:  70,
			LimitUpWindow:     90,
			LimitUpMinCount:   3,
		},
		Exit: ExitConfig{
			Anchor:           AnchorIndependent,
			DeclineDays:      2,
			SingleDayDropPct: 6,
			StuckDays:        12,
			StuckMinReturn:   0.03,
			TakeProfit:       0.20,
			StopLoss:         0.10,
			MAWindow:         10,
			MAMaxReturn:      0,
			DrawdownMinPeak:  0.05,
			DrawdownFraction: 0.12,
		},
	}
}

// tingjiping 停机坪
func tingjiping() StrategyConfig {
	return StrategyConfig{
		Name:    PresetTingjiping,
		Average: AverageConfig{Kind: AverageSmoothed, Weight: 1},
		Gate:    GateConfig{LowerPct: -1.5, UpperPct: 1.5},
		Base: BaseConfig{
			MinPrice:       9,
			ListingAgeBars: 500,
			ExcludeLimitUp: true,
		},
		Entry: EntryConfig{
			MinHistory:     251,
			FastMinHistory: 500,
			FastMinPrice:   9,
			Platform: PlatformConfig{
				Enabled:        true,
				Window:         15,
				MinRangePct:    9.5,
				VolumeMAWindow: 20,
				MaxBodyPct:     3,
			},
			DedupWindow: 10,
		},
		Exit: ExitConfig{
			Anchor:             AnchorIndependent,
			MAWindow:           10,
			MAMaxReturn:        -0.05,
			DrawdownMinPeak:    0.05,
			DrawdownFraction:   0.08,
			StuckDays:          7,
			StuckMinReturn:     0.02,
			GapDownInProfit:    true,
			DownCandles:        3,
			DownCandlesMinHold: 2,
		},
	}
}
