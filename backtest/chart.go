package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"xuangu/model"
	"xuangu/series"
)

// ChartMark K线图上的买卖点
type ChartMark struct {
	Date  string
	Price float64
	Label string
	Buy   bool
}

// SVGChartOptions 图片尺寸与收盘价均线周期
type SVGChartOptions struct {
	Width  int
	Height int
	MA     int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 560
	}
	if o.MA == 0 {
		o.MA = 10
	}
	return o
}

const (
	chartBg      = "#0b1220"
	chartGrid    = "rgba(255,255,255,0.08)"
	chartText    = "rgba(255,255,255,0.85)"
	chartUp      = "#ef4444" // A股红涨绿跌
	chartDown    = "#22c55e"
	chartVolUp   = "rgba(239,68,68,0.35)"
	chartVolDown = "rgba(34,197,94,0.35)"
	chartMA      = "rgba(56,189,248,0.9)"
	chartBuy     = "#f59e0b"
	chartSell    = "#a78bfa"
	chartFont    = `font-family="ui-monospace, Menlo, Monaco, Consolas, monospace"`
)

// TradeMarks 把交易记录转换成图上的买卖点
func TradeMarks(trades []Trade) []ChartMark {
	var out []ChartMark
	for _, t := range trades {
		out = append(out, ChartMark{Date: t.EntryDate, Price: t.EntryPrice, Label: "B", Buy: true})
		if t.Closed() {
			out = append(out, ChartMark{Date: t.ExitDate, Price: t.ExitPrice, Label: "S " + strconv.FormatFloat(t.ReturnPct, 'f', 1, 64) + "%"})
		}
	}
	return out
}

// RenderSignalChart 上半部分K线+收盘价均线+买卖点，下半部分成交量
func RenderSignalChart(bars model.BarSeries, marks []ChartMark, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	n := bars.Len()
	if n < 2 {
		return nil, fmt.Errorf("not enough bars: %d", n)
	}

	minP, maxP := math.Inf(1), math.Inf(-1)
	var maxV int64
	for _, b := range bars.Bars {
		if b.Suspended() {
			continue
		}
		minP = math.Min(minP, b.Low)
		maxP = math.Max(maxP, b.High)
		if b.Volume > maxV {
			maxV = b.Volume
		}
	}
	if math.IsInf(minP, 0) || math.IsInf(maxP, 0) || maxP <= minP {
		return nil, fmt.Errorf("invalid price range")
	}
	pad := (maxP - minP) * 0.05
	minP -= pad
	maxP += pad

	const mLeft, mRight, mTop, mBottom, gap = 70.0, 20.0, 24.0, 40.0, 14.0
	plotW := float64(opt.Width) - mLeft - mRight
	plotH := float64(opt.Height) - mTop - mBottom
	if plotW <= 10 || plotH <= 100 {
		return nil, fmt.Errorf("invalid chart size")
	}
	priceH := plotH * 0.72
	volTop := mTop + priceH + gap
	volH := plotH - priceH - gap
	volBottom := volTop + volH

	priceY := func(p float64) float64 {
		r := math.Max(0, math.Min(1, (p-minP)/(maxP-minP)))
		return mTop + (1-r)*priceH
	}
	volY := func(v float64) float64 {
		if maxV <= 0 || v <= 0 {
			return volBottom
		}
		return volBottom - math.Min(1, v/float64(maxV))*volH
	}
	step := plotW / float64(n)
	cw := math.Max(1, step*0.65)
	xAt := func(i int) float64 { return mLeft + (float64(i)+0.5)*step }

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", opt.Width, opt.Height, opt.Width, opt.Height)
	fmt.Fprintf(&buf, `<rect x="0" y="0" width="100%%" height="100%%" fill="%s"/>`+"\n", chartBg)

	firstD := bars.Bars[0].Date.Format("2006-01-02")
	lastD := bars.Bars[n-1].Date.Format("2006-01-02")
	title := strings.TrimSpace(bars.Code)
	if name := latestName(bars); name != "" {
		title += " " + name
	}
	text(&buf, mLeft, 16, 14, chartText, title+"  "+firstD+" ~ "+lastD)

	for k := 0; k <= 5; k++ {
		y := mTop + float64(k)/5*priceH
		hline(&buf, mLeft, mLeft+plotW, y, chartGrid)
		text(&buf, 6, y+4, 12, chartText, fmtPrice(maxP-float64(k)/5*(maxP-minP)))
	}
	for k := 0; k <= 2; k++ {
		y := volTop + float64(k)/2*volH
		hline(&buf, mLeft, mLeft+plotW, y, chartGrid)
		if maxV > 0 {
			text(&buf, 6, y+4, 12, chartText, fmtVol(float64(maxV)*(1-float64(k)/2)))
		}
	}

	for i, b := range bars.Bars {
		if b.Suspended() {
			continue
		}
		x := xAt(i)
		col, vcol := chartUp, chartVolUp
		if b.Close < b.Open {
			col, vcol = chartDown, chartVolDown
		}
		yTop := math.Min(priceY(b.Open), priceY(b.Close))
		yBot := math.Max(yTop+1, math.Max(priceY(b.Open), priceY(b.Close)))
		fmt.Fprintf(&buf, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="1"/>`+"\n",
			fmtFloat(x), fmtFloat(priceY(b.High)), fmtFloat(x), fmtFloat(priceY(b.Low)), col)
		fmt.Fprintf(&buf, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" opacity="0.9"/>`+"\n",
			fmtFloat(x-cw/2), fmtFloat(yTop), fmtFloat(cw), fmtFloat(yBot-yTop), col)

		vy := volY(float64(b.Volume))
		fmt.Fprintf(&buf, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`+"\n",
			fmtFloat(x-cw/2), fmtFloat(vy), fmtFloat(cw), fmtFloat(math.Max(1, volBottom-vy)), vcol)
	}

	if opt.MA > 1 {
		ma := series.SMA(bars.Closes(), opt.MA)
		var pts []string
		for i, v := range ma {
			if math.IsNaN(v) || v <= 0 {
				continue
			}
			pts = append(pts, fmtFloat(xAt(i))+","+fmtFloat(priceY(v)))
		}
		if len(pts) > 1 {
			fmt.Fprintf(&buf, `<polyline fill="none" stroke="%s" stroke-width="1.4" points="%s"/>`+"\n", chartMA, strings.Join(pts, " "))
			text(&buf, mLeft+plotW-60, mTop+12, 12, chartMA, "MA"+strconv.Itoa(opt.MA))
		}
	}

	index := make(map[string]int, n)
	for i, b := range bars.Bars {
		index[b.Date.Format("2006-01-02")] = i
	}
	for _, m := range marks {
		i, ok := index[m.Date]
		if !ok || m.Price <= 0 {
			continue
		}
		x, y := xAt(i), priceY(m.Price)
		col, dy := chartSell, -8.0
		if m.Buy {
			col, dy = chartBuy, 8.0
		}
		// 买点三角朝上画在价格下方，卖点朝下画在上方
		fmt.Fprintf(&buf, `<path d="M%s %s L%s %s L%s %s Z" fill="%s"/>`+"\n",
			fmtFloat(x), fmtFloat(y+dy/2), fmtFloat(x-4), fmtFloat(y+dy*1.5), fmtFloat(x+4), fmtFloat(y+dy*1.5), col)
		if m.Label != "" {
			text(&buf, x+6, y+dy*2, 11, col, m.Label)
		}
	}

	text(&buf, mLeft, volTop-4, 12, chartText, "VOLUME")
	text(&buf, mLeft, mTop+plotH+mBottom-12, 12, chartText, firstD)
	text(&buf, mLeft+plotW-70, mTop+plotH+mBottom-12, 12, chartText, lastD)

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

// WriteChart 写入 <dir>/<symbol>.svg，返回文件路径
func WriteChart(dir string, bars model.BarSeries, marks []ChartMark, maxBars int) (string, error) {
	view := bars
	if maxBars > 0 && view.Len() > maxBars {
		view.Bars = view.Bars[view.Len()-maxBars:]
	}
	svg, err := RenderSignalChart(view, marks, SVGChartOptions{})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, sanitizeChartFilename(bars.Code)+".svg")
	if err := os.WriteFile(p, svg, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func text(buf *bytes.Buffer, x, y float64, size int, color, s string) {
	fmt.Fprintf(buf, `<text x="%s" y="%s" fill="%s" font-size="%d" %s>%s</text>`+"\n",
		fmtFloat(x), fmtFloat(y), color, size, chartFont, html.EscapeString(s))
}

func hline(buf *bytes.Buffer, x1, x2, y float64, color string) {
	fmt.Fprintf(buf, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="1"/>`+"\n",
		fmtFloat(x1), fmtFloat(y), fmtFloat(x2), fmtFloat(y), color)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtPrice(p float64) string {
	switch {
	case p >= 1000:
		return strconv.FormatFloat(p, 'f', 0, 64)
	case p >= 100:
		return strconv.FormatFloat(p, 'f', 1, 64)
	default:
		return strconv.FormatFloat(p, 'f', 2, 64)
	}
}

func fmtVol(v float64) string {
	switch {
	case v >= 1e8:
		return strconv.FormatFloat(v/1e8, 'f', 1, 64) + "亿"
	case v >= 1e4:
		return strconv.FormatFloat(v/1e4, 'f', 1, 64) + "万"
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

func sanitizeChartFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
