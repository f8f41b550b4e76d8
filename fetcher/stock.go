package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"xuangu/config"
	"xuangu/model"
)

// 新浪实时行情，一次请求可带多只股票
const sinaStockURL = "http://hq.sinajs.cn/list=%s"

var sinaLineRe = regexp.MustCompile(`var hq_str_(\w+)="([^"]*)"`)

// 新浪行情字段下标；10-29 是五档盘口，不用
const (
	sinaName = iota
	sinaOpen
	sinaPreClose
	sinaPrice
	sinaHigh
	sinaLow
	_ // 买一
	_ // 卖一
	sinaVolume
	sinaAmount

	sinaDate   = 30
	sinaTime   = 31
	sinaFields = 32
)

// StockFetcher 新浪实时行情：用于盘中并入当天日K和补股票名称
type StockFetcher struct {
	client  *http.Client
	baseURL string
}

func NewStockFetcher() *StockFetcher {
	return &StockFetcher{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: sinaStockURL,
	}
}

// Fetch 批量拉取实时报价。停牌或无数据的代码不出现在结果里
func (f *StockFetcher) Fetch(ctx context.Context, codes []string) ([]*model.StockQuote, error) {
	codes = config.NormalizeStockCodes(codes)
	if len(codes) == 0 {
		return nil, nil
	}
	body, err := f.get(ctx, fmt.Sprintf(f.baseURL, strings.Join(codes, ",")))
	if err != nil {
		return nil, err
	}
	return parseSinaQuotes(body, time.Now()), nil
}

// FetchOne 单只股票的实时报价
func (f *StockFetcher) FetchOne(ctx context.Context, code string) (*model.StockQuote, error) {
	quotes, err := f.Fetch(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: no live quote for %s", ErrNoData, code)
	}
	return quotes[0], nil
}

// get 新浪要求带 Referer，返回体是 GBK
func (f *StockFetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build sina request: %w", err)
	}
	req.Header.Set("Referer", "https://finance.sina.com.cn/")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sina quote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sina quote: http %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("read sina quote: %w", err)
	}
	return string(raw), nil
}

// parseSinaQuotes 形如 var hq_str_sh600000="浦发银行,11.85,...";
func parseSinaQuotes(data string, now time.Time) []*model.StockQuote {
	var out []*model.StockQuote
	for _, m := range sinaLineRe.FindAllStringSubmatch(data, -1) {
		if q, ok := parseSinaLine(m[1], m[2], now); ok {
			out = append(out, q)
		}
	}
	return out
}

// parseSinaLine 字段不足或现价为 0（停牌、未开盘）时丢弃
func parseSinaLine(code, content string, now time.Time) (*model.StockQuote, bool) {
	f := strings.Split(content, ",")
	if len(f) < sinaFields {
		return nil, false
	}
	q := &model.StockQuote{
		Code:      code,
		Name:      strings.TrimSpace(f[sinaName]),
		Open:      parseFloat(f[sinaOpen]),
		PreClose:  parseFloat(f[sinaPreClose]),
		Price:     parseFloat(f[sinaPrice]),
		High:      parseFloat(f[sinaHigh]),
		Low:       parseFloat(f[sinaLow]),
		Volume:    parseInt(f[sinaVolume]),
		Amount:    parseFloat(f[sinaAmount]),
		Date:      strings.TrimSpace(f[sinaDate]),
		Time:      strings.TrimSpace(f[sinaTime]),
		UpdatedAt: now,
	}
	if q.Price <= 0 {
		return nil, false
	}
	return q, true
}
