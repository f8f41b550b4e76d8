package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xuangu/fetcher"
	"xuangu/model"
	"xuangu/signal"
	"xuangu/trading"
)

// QuoteFetcher 盘中实时报价
type QuoteFetcher interface {
	FetchOne(ctx context.Context, code string) (*model.StockQuote, error)
}

// Runner 按股票并发跑选股或回测
type Runner struct {
	source fetcher.BarSource
	quotes QuoteFetcher
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner quotes 和 logger 可以为 nil
func NewRunner(source fetcher.BarSource, quotes QuoteFetcher, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{source: source, quotes: quotes, logger: logger, now: time.Now}
}

// Backtest 全序列买卖信号回测
func (r *Runner) Backtest(ctx context.Context, cfg RunConfig) (*Report, error) {
	rep, gate, err := r.begin(ctx, cfg, ModeBacktest)
	if err != nil {
		return nil, err
	}
	rep.Results = make([]Result, len(cfg.Universe))
	err = r.forEach(ctx, cfg, rep.RunID, func(ctx context.Context, i int, code string) error {
		bars, err := r.loadBars(ctx, code, cfg)
		if err != nil {
			rep.Results[i] = Result{Symbol: code, Errors: []string{err.Error()}}
			return err
		}
		res, err := runOne(bars, gate, cfg)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
		} else if cfg.ChartDir != "" {
			res.ChartPath = r.writeChart(cfg, bars, TradeMarks(res.Trades))
		}
		rep.Results[i] = res
		return err
	})
	if err != nil {
		return nil, err
	}
	rep.Summary = summarizeResults(rep.Results)
	return rep, nil
}

// begin 生成运行编号并加载大盘择时序列
func (r *Runner) begin(ctx context.Context, cfg RunConfig, mode string) (*Report, *model.GateSeries, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	rep := &Report{
		RunID:       uuid.New().String(),
		Mode:        mode,
		Strategy:    cfg.Strategy.Name,
		Benchmark:   cfg.Benchmark,
		Start:       formatDate(cfg.Start),
		End:         formatDate(cfg.End),
		Target:      formatDate(cfg.Target),
		GeneratedAt: r.now(),
	}
	r.logger.Info("run started",
		zap.String("run_id", rep.RunID),
		zap.String("mode", mode),
		zap.String("strategy", rep.Strategy),
		zap.Int("instruments", len(cfg.Universe)),
	)
	if cfg.Benchmark == "" || mode == ModeFast {
		return rep, nil, nil
	}
	bench, err := r.source.LoadIndex(ctx, cfg.Benchmark, cfg.Days)
	if err != nil {
		return nil, nil, fmt.Errorf("load benchmark %s: %w", cfg.Benchmark, err)
	}
	// 指数也要并入当天报价，否则当天没有择时结果
	bench = r.mergeLive(ctx, cfg.Benchmark, bench, cfg)
	gate, err := signal.MarketGate(bench, signal.Window{}, cfg.Strategy.WithDefaults().Gate)
	if err != nil {
		return nil, nil, fmt.Errorf("market gate: %w", err)
	}
	return rep, &gate, nil
}

// forEach 有限并发处理每只股票；单只失败只记日志，不中断整体
func (r *Runner) forEach(ctx context.Context, cfg RunConfig, runID string, fn func(ctx context.Context, i int, code string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, code := range cfg.Universe {
		i, code := i, code
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ictx := gctx
			if cfg.InstrumentTimeout > 0 {
				var cancel context.CancelFunc
				ictx, cancel = context.WithTimeout(gctx, cfg.InstrumentTimeout)
				defer cancel()
			}
			start := time.Now()
			if err := fn(ictx, i, code); err != nil {
				r.logger.Warn("instrument failed",
					zap.String("run_id", runID),
					zap.String("code", code),
					zap.Error(err),
				)
				return nil
			}
			r.logger.Debug("instrument done",
				zap.String("run_id", runID),
				zap.String("code", code),
				zap.Duration("elapsed", time.Since(start)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// loadBars 拉日K，交易时段内并入实时报价
func (r *Runner) loadBars(ctx context.Context, code string, cfg RunConfig) (model.BarSeries, error) {
	bars, err := r.source.LoadBars(ctx, code, cfg.Days)
	if err != nil {
		return model.BarSeries{}, err
	}
	if err := bars.Validate(); err != nil {
		return model.BarSeries{}, err
	}
	return r.mergeLive(ctx, code, bars, cfg), nil
}

// mergeLive 交易时段内把实时报价并入日K；取不到报价时原样返回
func (r *Runner) mergeLive(ctx context.Context, code string, bars model.BarSeries, cfg RunConfig) model.BarSeries {
	if !cfg.MergeLiveQuote || r.quotes == nil || !trading.ShouldMergeQuoteAt(r.now()) {
		return bars
	}
	q, err := r.quotes.FetchOne(ctx, code)
	if err != nil {
		r.logger.Warn("live quote unavailable", zap.String("code", code), zap.Error(err))
		return bars
	}
	merged, err := model.MergeQuote(bars, q)
	if err != nil {
		r.logger.Warn("live quote not merged", zap.String("code", code), zap.Error(err))
		return bars
	}
	return merged
}

// writeChart 画图失败不影响结果，只记日志
func (r *Runner) writeChart(cfg RunConfig, bars model.BarSeries, marks []ChartMark) string {
	p, err := WriteChart(cfg.ChartDir, bars.Window(cfg.Start, cfg.End), marks, cfg.ChartBars)
	if err != nil {
		r.logger.Warn("chart not written", zap.String("code", bars.Code), zap.Error(err))
		return ""
	}
	return p
}

func runOne(bars model.BarSeries, gate *model.GateSeries, cfg RunConfig) (Result, error) {
	res := Result{Symbol: bars.Code, Name: latestName(bars)}
	win := cfg.Window()
	res.Bars = bars.Window(win.Start, win.End).Len()

	entries, err := signal.EvaluateEntry(bars, gate, win, cfg.Strategy)
	if err != nil {
		return res, err
	}
	res.Signals = entries.Count()

	positions, err := signal.SimulatePositions(bars, signal.EntryFromSeries(entries), win, cfg.Strategy)
	if err != nil {
		return res, err
	}

	var closed, wins int
	var sum float64
	for _, p := range positions {
		t := closeTrade(bars.Code, p)
		res.Trades = append(res.Trades, t)
		if !t.Closed() {
			res.OpenTrades++
			continue
		}
		closed++
		sum += p.Return
		if p.Return > 0 {
			wins++
		}
	}
	res.TotalTrades = closed
	if closed > 0 {
		res.WinRatePct = round2(float64(wins) / float64(closed) * 100)
		res.AvgReturnPct = round2(sum / float64(closed) * 100)
	}
	return res, nil
}

func closeTrade(symbol string, p signal.Position) Trade {
	t := Trade{
		Symbol:        symbol,
		EntryDate:     formatDate(p.EntryDate),
		EntryPrice:    round2(p.EntryClose),
		HoldingDays:   p.HoldingDays,
		ReturnPct:     round2(p.Return * 100),
		PeakReturnPct: round2(p.PeakReturn * 100),
		State:         p.State,
		ReasonExit:    p.Reasons,
	}
	if p.State == signal.StateExited {
		t.ExitDate = formatDate(p.ExitDate)
		t.ExitPrice = round2(p.ExitClose)
	}
	return t
}

func summarizeResults(results []Result) Summary {
	s := Summary{Instruments: len(results)}
	var wins int
	var sum float64
	for _, r := range results {
		if len(r.Errors) > 0 {
			s.Failed++
		}
		s.Signals += r.Signals
		for _, t := range r.Trades {
			if !t.Closed() {
				continue
			}
			s.TotalTrades++
			sum += t.ReturnPct
			if t.ReturnPct > 0 {
				wins++
			}
		}
	}
	if s.TotalTrades > 0 {
		s.WinRatePct = round2(float64(wins) / float64(s.TotalTrades) * 100)
		s.AvgReturnPct = round2(sum / float64(s.TotalTrades))
	}
	return s
}

// WriteReportJSON 输出缩进格式的 JSON 报告
func WriteReportJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func latestName(bars model.BarSeries) string {
	for i := len(bars.Bars) - 1; i >= 0; i-- {
		if bars.Bars[i].Name != "" {
			return bars.Bars[i].Name
		}
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*100) / 100
}
