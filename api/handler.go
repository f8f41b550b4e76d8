package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xuangu/backtest"
	"xuangu/config"
	"xuangu/fetcher"
	"xuangu/model"
	"xuangu/signal"
	"xuangu/trading"
)

// MonitorSource 监控列表的最近一次选股结果
type MonitorSource interface {
	Latest() (*backtest.Report, time.Time, string)
}

// Handler API处理器
type Handler struct {
	runner  *backtest.Runner
	run     backtest.RunConfig
	monitor MonitorSource
	logger  *zap.Logger
	started time.Time
}

// NewHandler runner 为 nil 时 /api/scan 不可用，其余接口只做纯计算
func NewHandler(runner *backtest.Runner, run backtest.RunConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, run: run, logger: logger, started: time.Now()}
}

// SetMonitor 开启 /api/monitor
func (h *Handler) SetMonitor(m MonitorSource) {
	h.monitor = m
}

// fail 按错误类型返回状态码：输入问题 400，数据源没有数据 404，其余 500
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrMalformedInput), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, fetcher.ErrNoData):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

// GetStatus 获取服务状态
func (h *Handler) GetStatus(c *gin.Context) {
	isTrading := trading.IsStockTradingTime()
	var next string
	if !isTrading {
		next = trading.GetNextTradingTime().Format(time.RFC3339)
	}
	ok(c, gin.H{
		"stock_trading":    isTrading,
		"next_trading":     next,
		"quote_merge":      h.run.MergeLiveQuote && trading.ShouldMergeQuote(),
		"source":           h.run.Source.Kind,
		"benchmark":        h.run.Benchmark,
		"default_strategy": h.run.Strategy.Name,
		"universe_count":   len(h.run.Universe),
		"uptime_seconds":   int(time.Since(h.started).Seconds()),
	})
}

// GetStrategies 列出内置策略及完整参数
func (h *Handler) GetStrategies(c *gin.Context) {
	names := signal.PresetNames()
	out := make([]signal.StrategyConfig, 0, len(names))
	for _, n := range names {
		cfg, err := signal.Preset(n)
		if err != nil {
			h.fail(c, err)
			return
		}
		out = append(out, cfg)
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "count": len(out), "data": out})
}

// GetStrategy 单个策略参数
func (h *Handler) GetStrategy(c *gin.Context) {
	cfg, err := signal.Preset(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ok(c, cfg)
}

// PostGate 大盘择时序列
func (h *Handler) PostGate(c *gin.Context) {
	var req GateRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		h.fail(c, err)
		return
	}
	bench, err := req.Benchmark.toSeries()
	if err != nil {
		h.fail(c, err)
		return
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.fail(c, err)
		return
	}
	gcfg := signal.GateConfig{LowerPct: -1.5, UpperPct: 1.5}
	if req.Gate != nil {
		gcfg = *req.Gate
	}
	gate, err := signal.MarketGate(bench, win, gcfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, fromGate(gate))
}

// gateFor 请求里直接给的择时序列优先，其次用基准指数计算
func gateFor(gate *SignalDTO, bench *SeriesDTO, cfg signal.StrategyConfig) (*model.GateSeries, error) {
	switch {
	case gate != nil:
		g, err := gate.toGate("")
		if err != nil {
			return nil, err
		}
		return &g, nil
	case bench != nil:
		b, err := bench.toSeries()
		if err != nil {
			return nil, err
		}
		g, err := signal.MarketGate(b, signal.Window{}, cfg.Gate)
		if err != nil {
			return nil, err
		}
		return &g, nil
	default:
		return nil, nil
	}
}

// PostEntry 买入信号：完整序列、目标日或快速模式
func (h *Handler) PostEntry(c *gin.Context) {
	var req EntryRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		h.fail(c, err)
		return
	}
	cfg, err := req.Strategy.resolve(h.defaultStrategy())
	if err != nil {
		h.fail(c, err)
		return
	}
	bars, err := req.Bars.toSeries()
	if err != nil {
		h.fail(c, err)
		return
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.fail(c, err)
		return
	}

	if req.Fast {
		v, err := signal.EvaluateEntryFast(bars, win, cfg)
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, gin.H{"mode": backtest.ModeFast, "signal": v})
		return
	}

	if req.Base {
		sig, err := signal.EvaluateBase(bars, win, cfg)
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, gin.H{"mode": "base", "entry": fromSignal(sig), "count": sig.Count()})
		return
	}

	gate, err := gateFor(req.Gate, req.Benchmark, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}

	if req.Target != "" {
		target, err := parseDate(req.Target)
		if err != nil {
			h.fail(c, err)
			return
		}
		v, err := signal.EvaluateEntryAt(bars, gate, win, cfg, target)
		if err != nil {
			h.fail(c, err)
			return
		}
		data := gin.H{"mode": "target", "target": req.Target, "signal": v}
		if req.Explain {
			conds, err := signal.ExplainEntryAt(bars, gate, win, cfg, target)
			if err != nil {
				h.fail(c, err)
				return
			}
			data["conditions"] = conds
		}
		ok(c, data)
		return
	}

	sig, err := signal.EvaluateEntry(bars, gate, win, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{
		"mode":         "series",
		"entry":        fromSignal(sig),
		"count":        sig.Count(),
		"signal_dates": formatDates(sig.TrueDates()),
	})
}

// PostExit 卖出信号与持仓记录
func (h *Handler) PostExit(c *gin.Context) {
	var req ExitRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		h.fail(c, err)
		return
	}
	cfg, err := req.Strategy.resolve(h.defaultStrategy())
	if err != nil {
		h.fail(c, err)
		return
	}
	bars, err := req.Bars.toSeries()
	if err != nil {
		h.fail(c, err)
		return
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.fail(c, err)
		return
	}

	var entry signal.EntryInput
	switch {
	case req.Entry != nil:
		s, err := req.Entry.toSignal()
		if err != nil {
			h.fail(c, err)
			return
		}
		entry = signal.EntryFromSeries(s)
	case req.EntryScalar != nil:
		d, err := parseDate(req.EntryDate)
		if err != nil {
			h.fail(c, err)
			return
		}
		entry = signal.EntryFromScalar(*req.EntryScalar, d)
	default:
		h.fail(c, fmt.Errorf("%w: entry or entry_scalar is required", errBadRequest))
		return
	}

	exit, err := signal.EvaluateExit(bars, entry, win, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	positions, err := signal.SimulatePositions(bars, entry, win, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"exit": fromSignal(exit), "positions": fromPositions(positions)})
}

// PostEvaluate 一次请求跑完买入和卖出
func (h *Handler) PostEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := decodeStrict(c.Request.Body, &req); err != nil {
		h.fail(c, err)
		return
	}
	cfg, err := req.Strategy.resolve(h.defaultStrategy())
	if err != nil {
		h.fail(c, err)
		return
	}
	bars, err := req.Bars.toSeries()
	if err != nil {
		h.fail(c, err)
		return
	}
	win, err := parseWindow(req.Start, req.End)
	if err != nil {
		h.fail(c, err)
		return
	}
	gate, err := gateFor(req.Gate, req.Benchmark, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}

	entry, err := signal.EvaluateEntry(bars, gate, win, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	in := signal.EntryFromSeries(entry)
	exit, err := signal.EvaluateExit(bars, in, win, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	positions, err := signal.SimulatePositions(bars, in, win, cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{
		"strategy":  cfg.Name,
		"entry":     fromSignal(entry),
		"exit":      fromSignal(exit),
		"positions": fromPositions(positions),
	})
}

// GetScan 用配置的数据源对单只股票选股。?strategy=up8&target=2024-01-05
func (h *Handler) GetScan(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据源未配置"})
		return
	}
	code := config.NormalizeStockCode(c.Param("code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "股票代码不能为空"})
		return
	}

	run := h.run
	if name := c.Query("strategy"); name != "" {
		cfg, err := signal.Preset(name)
		if err != nil {
			h.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		run.Strategy = cfg
	}
	if t := c.Query("target"); t != "" {
		target, err := parseDate(t)
		if err != nil {
			h.fail(c, err)
			return
		}
		run.Target = target
	}

	res, err := h.runner.ScanCode(c.Request.Context(), code, run)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, res)
}

// GetMonitor 监控列表最近一次选股结果。?signal_only=1 只返回有信号的
func (h *Handler) GetMonitor(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "监控未启用"})
		return
	}
	rep, updated, lastErr := h.monitor.Latest()
	if rep == nil {
		ok(c, gin.H{"ready": false, "last_error": lastErr})
		return
	}
	results := rep.Scan
	if c.Query("signal_only") == "1" {
		results = make([]backtest.ScanResult, 0, len(rep.Scan))
		for _, r := range rep.Scan {
			if r.Signal {
				results = append(results, r)
			}
		}
	}
	ok(c, gin.H{
		"ready":      true,
		"run_id":     rep.RunID,
		"strategy":   rep.Strategy,
		"updated_at": updated.Format(time.RFC3339),
		"last_error": lastErr,
		"summary":    rep.Summary,
		"results":    results,
	})
}

func (h *Handler) defaultStrategy() string {
	if h.run.Strategy.Name != "" {
		return h.run.Strategy.Name
	}
	return signal.PresetUp8
}
