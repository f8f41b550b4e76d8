package fetcher

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"xuangu/config"
	"xuangu/model"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ClickHouseSource 从 ClickHouse 日K表读取数据。
// 表结构: code String, date Date, open/high/low/close Float64, volume Int64,
// amount Float64, turnover Float64, name String
type ClickHouseSource struct {
	conn       driver.Conn
	database   string
	table      string
	indexTable string
}

// NewClickHouseSource 连接 ClickHouse 并检查连通性
func NewClickHouseSource(cfg config.ClickHouseConfig) (*ClickHouseSource, error) {
	for _, t := range []string{cfg.Database, cfg.Table, cfg.IndexTable} {
		if !tableNameRe.MatchString(t) {
			return nil, fmt.Errorf("invalid clickhouse identifier: %q", t)
		}
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.DialTimeout,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接 ClickHouse 失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ClickHouse ping 失败: %w", err)
	}
	return &ClickHouseSource{
		conn:       conn,
		database:   cfg.Database,
		table:      cfg.Table,
		indexTable: cfg.IndexTable,
	}, nil
}

// Close 关闭连接
func (s *ClickHouseSource) Close() error {
	return s.conn.Close()
}

// LoadBars 读取个股日K
func (s *ClickHouseSource) LoadBars(ctx context.Context, code string, days int) (model.BarSeries, error) {
	return s.load(ctx, s.table, code, days)
}

// LoadIndex 读取指数日K
func (s *ClickHouseSource) LoadIndex(ctx context.Context, code string, days int) (model.BarSeries, error) {
	return s.load(ctx, s.indexTable, code, days)
}

func (s *ClickHouseSource) load(ctx context.Context, table, code string, days int) (model.BarSeries, error) {
	market, num, err := splitCode(code)
	if err != nil {
		return model.BarSeries{}, err
	}
	if days <= 0 {
		days = 100000
	}
	q := fmt.Sprintf(`
SELECT date, open, high, low, close, volume, amount, turnover, name
FROM %s.%s
WHERE code = ?
ORDER BY date DESC
LIMIT ?`, s.database, table)

	rows, err := s.conn.Query(ctx, q, market+num, days)
	if err != nil {
		return model.BarSeries{}, fmt.Errorf("查询日K失败 %s: %w", code, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			d                         time.Time
			o, h, l, c, amt, turnover float64
			vol                       int64
			name                      string
		)
		if err := rows.Scan(&d, &o, &h, &l, &c, &vol, &amt, &turnover, &name); err != nil {
			return model.BarSeries{}, err
		}
		y, m, dd := d.Date()
		bars = append(bars, model.Bar{
			Date:         time.Date(y, m, dd, 0, 0, 0, 0, time.Local),
			Open:         o,
			High:         h,
			Low:          l,
			Close:        c,
			Volume:       vol,
			Amount:       amt,
			TurnoverRate: turnover,
			Name:         name,
		})
	}
	if err := rows.Err(); err != nil {
		return model.BarSeries{}, err
	}
	if len(bars) == 0 {
		return model.BarSeries{}, fmt.Errorf("%w: %s", ErrNoData, code)
	}
	// 倒序查询，翻转成升序
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return model.BarSeries{
		Code:        market + num,
		Bars:        bars,
		HasTurnover: true,
		HasAmount:   true,
	}, nil
}
