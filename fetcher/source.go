package fetcher

import (
	"context"
	"errors"
	"fmt"

	"xuangu/config"
	"xuangu/model"
)

// ErrNoData 数据源里没有这只股票
var ErrNoData = errors.New("no bars")

// BarSource 日K数据来源
type BarSource interface {
	// LoadBars 返回最近 days 根日K（升序）
	LoadBars(ctx context.Context, code string, days int) (model.BarSeries, error)
	// LoadIndex 返回指数日K，用于大盘择时
	LoadIndex(ctx context.Context, code string, days int) (model.BarSeries, error)
}

// NewSource 按配置创建数据源
func NewSource(cfg config.SourceConfig) (BarSource, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case config.SourceCSV:
		return NewCSVSource(cfg.CSVDir, cfg.CSVIndexDir), nil
	case config.SourceClickHouse:
		return NewClickHouseSource(cfg.ClickHouse)
	case config.SourceEastMoney:
		return NewEastMoneySource(), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", cfg.Kind)
	}
}

// splitCode sh600000 -> (sh, 600000)
func splitCode(code string) (market, num string, err error) {
	c := config.NormalizeStockCode(code)
	if len(c) <= 2 {
		return "", "", fmt.Errorf("股票代码格式错误: %s", code)
	}
	return c[:2], c[2:], nil
}

// tail 截取最后 days 根
func tail(bars []model.Bar, days int) []model.Bar {
	if days > 0 && len(bars) > days {
		return bars[len(bars)-days:]
	}
	return bars
}
