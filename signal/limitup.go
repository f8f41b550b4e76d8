package signal

import (
	"github.com/shopspring/decimal"

	"xuangu/model"
)

var (
	thousand = decimal.NewFromInt(1000)
	four     = decimal.NewFromInt(4)
	ten      = decimal.NewFromInt(10)
	hundred  = decimal.NewFromInt(100)
	tick     = decimal.RequireFromString("0.01")
)

// LimitMultiplier 科创板(68)和创业板(30)涨跌幅 20%，其余 10%
func LimitMultiplier(code string) float64 {
	switch model.BoardOf(code) {
	case "68", "30":
		return 1.2
	default:
		return 1.1
	}
}

// LimitUpThresholdPct 统计涨停次数用的涨幅阈值（留出误差）
func LimitUpThresholdPct(code string) float64 {
	if LimitMultiplier(code) > 1.1 {
		return 19.5
	}
	return 9.5
}

// LimitUpPrice 按交易所规则四舍五入到分：ceil((floor(prev*1000*mult) - 4) / 10) / 100
func LimitUpPrice(prevClose, mult float64) float64 {
	return limitUpPrice(decimal.NewFromFloat(prevClose), decimal.NewFromFloat(mult)).InexactFloat64()
}

func limitUpPrice(prev, mult decimal.Decimal) decimal.Decimal {
	return prev.Mul(thousand).Mul(mult).Floor().Sub(four).Div(ten).Ceil().Div(hundred)
}

// IsLimitUp 收盘价 + 0.01 >= 涨停价即视为涨停。昨收为0（停牌）一律视为涨停。
func IsLimitUp(prevClose, close, mult float64) bool {
	if prevClose <= 0 {
		return true
	}
	band := limitUpPrice(decimal.NewFromFloat(prevClose), decimal.NewFromFloat(mult))
	return decimal.NewFromFloat(close).Add(tick).GreaterThanOrEqual(band)
}

// limitUpSeries 逐日判断是否涨停，首日为 false
func limitUpSeries(closes []float64, code string) []bool {
	mult := LimitMultiplier(code)
	out := make([]bool, len(closes))
	for i := 1; i < len(closes); i++ {
		out[i] = IsLimitUp(closes[i-1], closes[i], mult)
	}
	return out
}
