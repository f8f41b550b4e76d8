package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"xuangu/model"
)

// CSVSource 通达信导出的日K CSV 目录（GBK 编码，一只股票一个文件，文件名为6位代码）
type CSVSource struct {
	dir      string
	indexDir string
}

// NewCSVSource 创建 CSV 数据源，indexDir 为空时与 dir 相同
func NewCSVSource(dir, indexDir string) *CSVSource {
	if indexDir == "" {
		indexDir = dir
	}
	return &CSVSource{dir: dir, indexDir: indexDir}
}

// LoadBars 读取 <dir>/<code>.csv
func (s *CSVSource) LoadBars(ctx context.Context, code string, days int) (model.BarSeries, error) {
	return s.load(ctx, s.dir, code, days)
}

// LoadIndex 读取 <index_dir>/<code>.csv
func (s *CSVSource) LoadIndex(ctx context.Context, code string, days int) (model.BarSeries, error) {
	return s.load(ctx, s.indexDir, code, days)
}

func (s *CSVSource) load(ctx context.Context, dir, code string, days int) (model.BarSeries, error) {
	if err := ctx.Err(); err != nil {
		return model.BarSeries{}, err
	}
	market, num, err := splitCode(code)
	if err != nil {
		return model.BarSeries{}, err
	}
	path := filepath.Join(dir, num+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.BarSeries{}, fmt.Errorf("%w: %s", ErrNoData, path)
		}
		return model.BarSeries{}, err
	}
	defer f.Close()

	series, err := ReadTDXCSV(f)
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	series.Code = market + num
	series.Bars = tail(series.Bars, days)
	return series, nil
}

// ReadTDXCSV 按表头解析 GBK 编码的日K CSV。
// 必需列 date/open/high/low/close，可选列 vol/amount/换手率/name。
func ReadTDXCSV(r io.Reader) (model.BarSeries, error) {
	cr := csv.NewReader(transform.NewReader(r, simplifiedchinese.GBK.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("读取表头失败: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		col[strings.ToLower(h)] = i
	}
	for _, need := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[need]; !ok {
			return model.BarSeries{}, fmt.Errorf("%w: csv missing column %q", model.ErrMalformedInput, need)
		}
	}
	volCol, hasVol := col["vol"]
	if !hasVol {
		volCol, hasVol = col["volume"]
	}
	amountCol, hasAmount := col["amount"]
	turnoverCol, hasTurnover := col["换手率"]
	nameCol, hasName := col["name"]

	get := func(rec []string, i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	out := model.BarSeries{HasAmount: hasAmount, HasTurnover: hasTurnover}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.BarSeries{}, err
		}
		date, err := model.ParseDate(get(rec, col["date"]))
		if err != nil {
			return model.BarSeries{}, fmt.Errorf("%w: %v", model.ErrMalformedInput, err)
		}
		if date.IsZero() {
			continue
		}
		b := model.Bar{
			Date:  date,
			Open:  parseFloat(get(rec, col["open"])),
			High:  parseFloat(get(rec, col["high"])),
			Low:   parseFloat(get(rec, col["low"])),
			Close: parseFloat(get(rec, col["close"])),
		}
		if hasVol {
			b.Volume = parseInt(get(rec, volCol))
		}
		if hasAmount {
			b.Amount = parseFloat(get(rec, amountCol))
		}
		if hasTurnover {
			b.TurnoverRate = parseFloat(get(rec, turnoverCol))
		}
		if hasName {
			b.Name = strings.TrimSpace(get(rec, nameCol))
		}
		out.Bars = append(out.Bars, b)
	}
	return out, nil
}
