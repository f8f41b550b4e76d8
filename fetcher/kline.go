package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xuangu/model"
)

const eastMoneyKLineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61&klt=101&fqt=1&end=20500101&lmt=%d"

// EastMoneySource 东方财富日K接口（前复权）
type EastMoneySource struct {
	client  *http.Client
	baseURL string
}

// NewEastMoneySource 创建东方财富日K数据源
func NewEastMoneySource() *EastMoneySource {
	return &EastMoneySource{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: eastMoneyKLineURL,
	}
}

// LoadBars 获取股票日K线数据
func (f *EastMoneySource) LoadBars(ctx context.Context, code string, days int) (model.BarSeries, error) {
	market, num, err := splitCode(code)
	if err != nil {
		return model.BarSeries{}, err
	}
	// 转换代码格式: sh600000 -> 1.600000, sz000001 -> 0.000001
	var secid string
	switch market {
	case "sh":
		secid = "1." + num
	case "sz", "bj":
		secid = "0." + num
	default:
		return model.BarSeries{}, fmt.Errorf("未知的股票代码格式: %s", code)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(f.baseURL, secid, days), nil)
	if err != nil {
		return model.BarSeries{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := f.client.Do(req)
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("请求日K失败 %s: %w", code, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.BarSeries{}, fmt.Errorf("请求日K失败 %s: HTTP %d", code, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.BarSeries{}, err
	}

	bars, name, err := parseEastMoneyKLine(body)
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("解析日K失败 %s: %w", code, err)
	}
	if len(bars) == 0 {
		return model.BarSeries{}, fmt.Errorf("%w: %s", ErrNoData, code)
	}
	for i := range bars {
		bars[i].Name = name
	}
	return model.BarSeries{
		Code:        market + num,
		Bars:        tail(bars, days),
		HasTurnover: true,
		HasAmount:   true,
	}, nil
}

// LoadIndex 指数和个股走同一个接口
func (f *EastMoneySource) LoadIndex(ctx context.Context, code string, days int) (model.BarSeries, error) {
	return f.LoadBars(ctx, code, days)
}

// parseEastMoneyKLine 解析日K数据，返回K线和名称
func parseEastMoneyKLine(data []byte) ([]model.Bar, string, error) {
	var result struct {
		Data *struct {
			Name   string   `json:"name"`
			Klines []string `json:"klines"`
		} `json:"data"`
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, "", err
	}
	if result.Data == nil {
		return nil, "", nil
	}

	bars := make([]model.Bar, 0, len(result.Data.Klines))
	for _, line := range result.Data.Klines {
		// 格式: 日期,开盘,收盘,最高,最低,成交量(手),成交额,振幅,涨跌幅,涨跌额,换手率
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			continue
		}
		date, err := model.ParseDate(parts[0])
		if err != nil || date.IsZero() {
			continue
		}

		b := model.Bar{
			Date:   date,
			Open:   parseFloat(parts[1]),
			Close:  parseFloat(parts[2]),
			High:   parseFloat(parts[3]),
			Low:    parseFloat(parts[4]),
			Volume: parseInt(parts[5]) * 100,
		}
		if len(parts) > 6 {
			b.Amount = parseFloat(parts[6])
		}
		if len(parts) > 10 {
			b.TurnoverRate = parseFloat(parts[10])
		}
		bars = append(bars, b)
	}

	return bars, result.Data.Name, nil
}

// parseFloat 解析浮点数
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseInt 解析整数（容忍 "123.0" 这类写法）
func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	return int64(parseFloat(s))
}
