package xuangud

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"xuangu/api"
	"xuangu/backtest"
	"xuangu/config"
	"xuangu/fetcher"
	"xuangu/internal/logging"
	"xuangu/internal/realtime"
	strategy "xuangu/signal"
	"xuangu/trading"
)

func Run(args []string) int {
	flags := flag.NewFlagSet("xuangud", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		configPath string
		logLevel   string
		noMonitor  bool
	)

	flags.StringVar(&configPath, "config", "", "配置文件路径(YAML格式)，默认优先使用 ./config.yaml")
	flags.StringVar(&logLevel, "log-level", "", "日志级别，覆盖 server.log_level")
	flags.BoolVar(&noMonitor, "no-monitor", false, "不启动监控列表定时选股")
	// -serve 只用于路由，这里接受后忽略
	flags.Bool("serve", true, "启动 HTTP 服务（默认）")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}

	cfg, err := config.GetConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] 加载配置失败: %v\n", err)
		return 1
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger, err := logging.New(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	trading.SetHolidays(cfg.Holidays)

	run, err := runConfigFrom(cfg)
	if err != nil {
		logger.Error("invalid service config", zap.Error(err))
		return 1
	}

	src, err := fetcher.NewSource(cfg.Source)
	if err != nil {
		logger.Error("open source failed", zap.String("kind", cfg.Source.Kind), zap.Error(err))
		return 1
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	runner := backtest.NewRunner(src, fetcher.NewStockFetcher(), logger.Named("runner"))
	handler := api.NewHandler(runner, run, logger.Named("api"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !noMonitor {
		store := realtime.NewSignalStore()
		handler.SetMonitor(store)
		go realtime.RunSignalSync(ctx, run, runner, store, realtime.SyncOptions{
			Logger:   logger.Named("monitor"),
			Interval: cfg.RefreshInterval,
		})
	}

	logger.Info("xuangu service starting",
		zap.Int("port", cfg.Port),
		zap.String("source", cfg.Source.Kind),
		zap.String("benchmark", run.Benchmark),
		zap.String("strategy", run.Strategy.Name),
		zap.Strings("stocks", run.Universe),
	)

	server := api.NewServer(handler, cfg.Port, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("shutting down")
	cancel()
	if err := server.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
	return 0
}

// runConfigFrom 服务配置转成选股运行参数
func runConfigFrom(cfg *config.Config) (backtest.RunConfig, error) {
	run := backtest.DefaultRunConfig()
	run.Days = cfg.Days
	run.Source = cfg.Source
	run.Benchmark = cfg.Benchmark
	run.MergeLiveQuote = cfg.MergeLiveQuote
	run.Universe = cfg.Stocks
	s, err := strategy.Preset(cfg.Strategy)
	if err != nil {
		return backtest.RunConfig{}, err
	}
	run.Strategy = s
	return run, nil
}
