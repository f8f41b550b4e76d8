package signal

import (
	"time"

	"xuangu/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)

func dateAt(i int) time.Time {
	return day0.AddDate(0, 0, i)
}

// flatBars 生成开高低收相同的K线
func flatBars(code string, closes ...float64) model.BarSeries {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Date: dateAt(i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return model.BarSeries{Code: code, Bars: bars}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func openGate(s model.BarSeries) *model.GateSeries {
	g := &model.GateSeries{Code: "sh000300", Dates: s.Dates(), Values: make([]bool, s.Len())}
	for i := range g.Values {
		g.Values[i] = true
	}
	return g
}

func mustPreset(name string) StrategyConfig {
	cfg, err := Preset(name)
	if err != nil {
		panic(err)
	}
	return cfg
}
