package xuanguctl

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"xuangu/backtest"
	appcfg "xuangu/config"
	"xuangu/fetcher"
	"xuangu/internal/terminalui"
	"xuangu/model"
)

// nameFetcher 用实时报价补股票名称，*fetcher.StockFetcher 实现了它
type nameFetcher interface {
	Fetch(ctx context.Context, codes []string) ([]*model.StockQuote, error)
}

type deps struct {
	stdout    io.Writer
	logger    *zap.Logger
	newSource func(appcfg.SourceConfig) (fetcher.BarSource, error)
	quotes    backtest.QuoteFetcher
	names     nameFetcher
	now       func() time.Time
}

type runOptions struct {
	configPath        string
	serviceConfigPath string
	outPath           string
	jsonOut           bool
	onlySignal        bool
	fast              bool
	days              int
	target            string
	chartDir          string
	chartBars         int
	color             bool
}

// prepare 读配置、套用命令行覆盖、打开数据源
func prepare(d deps, opt runOptions) (backtest.RunConfig, string, *backtest.Runner, func(), error) {
	cfg, err := loadRunConfig(opt.configPath, opt.serviceConfigPath)
	if err != nil {
		return backtest.RunConfig{}, "", nil, nil, err
	}
	window := applyScanDays(&cfg, opt.days, d.now())
	if opt.target != "" {
		t, err := model.ParseDate(opt.target)
		if err != nil {
			return backtest.RunConfig{}, "", nil, nil, fmt.Errorf("invalid -target: %w", err)
		}
		cfg.Target = t
	}
	cfg.ChartDir = opt.chartDir
	if opt.chartBars > 0 {
		cfg.ChartBars = opt.chartBars
	}

	src, err := d.newSource(cfg.Source)
	if err != nil {
		return backtest.RunConfig{}, "", nil, nil, fmt.Errorf("open source %s: %w", cfg.Source.Kind, err)
	}
	closeSrc := func() {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return cfg, window, backtest.NewRunner(src, d.quotes, d.logger), closeSrc, nil
}

func runScan(ctx context.Context, d deps, opt runOptions) error {
	cfg, window, runner, closeSrc, err := prepare(d, opt)
	if err != nil {
		return err
	}
	defer closeSrc()

	rep, err := runner.Scan(ctx, cfg, opt.fast)
	if err != nil {
		return err
	}
	enrichScanNames(ctx, d, rep.Scan)
	if opt.onlySignal {
		filtered := make([]backtest.ScanResult, 0, len(rep.Scan))
		for _, r := range rep.Scan {
			if len(r.Errors) > 0 || r.Signal {
				filtered = append(filtered, r)
			}
		}
		rep.Scan = filtered
	}

	w, closeOut, err := openOutput(opt.outPath, d.stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	if opt.jsonOut {
		return backtest.WriteReportJSON(w, rep)
	}
	terminalui.RenderScan(w, rep, terminalui.Options{Color: opt.color && opt.outPath == "", Window: window})
	return nil
}

func runBacktest(ctx context.Context, d deps, opt runOptions) error {
	cfg, window, runner, closeSrc, err := prepare(d, opt)
	if err != nil {
		return err
	}
	defer closeSrc()

	rep, err := runner.Backtest(ctx, cfg)
	if err != nil {
		return err
	}
	enrichResultNames(ctx, d, rep.Results)

	w, closeOut, err := openOutput(opt.outPath, d.stdout)
	if err != nil {
		return err
	}
	defer closeOut()

	if opt.jsonOut {
		return backtest.WriteReportJSON(w, rep)
	}
	terminalui.RenderBacktest(w, rep, terminalui.Options{Color: opt.color && opt.outPath == "", Window: window})
	return nil
}

// lookupNames 日K数据源不带名称时（通达信导出、ClickHouse 空列）用实时报价补
func lookupNames(ctx context.Context, d deps, codes []string) map[string]string {
	if d.names == nil || len(codes) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	quotes, err := d.names.Fetch(ctx, codes)
	if err != nil {
		d.logger.Debug("name lookup failed", zap.Error(err))
		return nil
	}
	out := make(map[string]string, len(quotes))
	for _, q := range quotes {
		if q != nil && q.Name != "" {
			out[q.Code] = q.Name
		}
	}
	return out
}

func enrichScanNames(ctx context.Context, d deps, results []backtest.ScanResult) {
	var missing []string
	for _, r := range results {
		if r.Name == "" && len(r.Errors) == 0 {
			missing = append(missing, r.Symbol)
		}
	}
	names := lookupNames(ctx, d, missing)
	for i := range results {
		if n, ok := names[results[i].Symbol]; ok && results[i].Name == "" {
			results[i].Name = n
		}
	}
}

func enrichResultNames(ctx context.Context, d deps, results []backtest.Result) {
	var missing []string
	for _, r := range results {
		if r.Name == "" && r.Bars > 0 {
			missing = append(missing, r.Symbol)
		}
	}
	names := lookupNames(ctx, d, missing)
	for i := range results {
		if n, ok := names[results[i].Symbol]; ok && results[i].Name == "" {
			results[i].Name = n
		}
	}
}
