package signal

import (
	"math"

	"xuangu/model"
	"xuangu/series"
)

// MarketGate 基准指数择时：当日涨跌幅在 [LowerPct, UpperPct] 内为 true。
// 第一天没有昨收，由 FirstDayAdmit 决定。
func MarketGate(bench model.BarSeries, win Window, cfg GateConfig) (model.GateSeries, error) {
	if err := bench.Validate(); err != nil {
		return model.GateSeries{}, err
	}
	if cfg.LowerPct == 0 && cfg.UpperPct == 0 {
		cfg.LowerPct, cfg.UpperPct = -1.5, 1.5
	}
	w := bench.Window(win.Start, win.End)
	out := model.GateSeries{
		Code:   bench.Code,
		Dates:  w.Dates(),
		Values: make([]bool, w.Len()),
	}
	r := series.PctChange(w.Closes())
	for i, v := range r {
		if i == 0 {
			out.Values[i] = cfg.FirstDayAdmit
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out.Values[i] = v >= cfg.LowerPct && v <= cfg.UpperPct
	}
	return out, nil
}

// average 按配置选择简单均线或递推均线
func average(x series.Float, w int, a AverageConfig) series.Float {
	if a.Kind == AverageSmoothed {
		return series.SmoothedMA(x, w, a.Weight)
	}
	return series.SMA(x, w)
}
