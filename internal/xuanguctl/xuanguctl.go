package xuanguctl

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"xuangu/fetcher"
	"xuangu/internal/logging"
)

// Run 命令行入口，返回进程退出码
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr, nil)
}

// run d 为 nil 时使用真实数据源，测试时注入
func run(args []string, stdout, stderr io.Writer, d *deps) int {
	fs := flag.NewFlagSet("xuanguctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		scanMode     bool
		fastMode     bool
		backtestMode bool
		logLevel     string
		opt          runOptions
	)

	fs.BoolVar(&scanMode, "scan", false, "选股：在目标日（默认最新一根日K）跑完整买入规则并退出")
	fs.BoolVar(&fastMode, "fast", false, "快速选股：只看最后一根K线的基础条件，不做择时和形态判断")
	fs.BoolVar(&backtestMode, "backtest", false, "全区间买卖信号回测并退出")
	fs.StringVar(&opt.configPath, "config", "scan.yaml", "选股/回测配置文件路径(YAML格式)")
	fs.StringVar(&opt.serviceConfigPath, "service-config", "", "服务配置文件，monitor.stocks 会并入扫描列表；默认存在 ./config.yaml 时使用")
	fs.StringVar(&opt.target, "target", "", "选股目标日 YYYY-MM-DD（覆盖 scan.target）")
	fs.IntVar(&opt.days, "scan-days", 0, "覆盖日期窗口：最近 N 个自然日（结束日期为今天）")
	fs.StringVar(&opt.outPath, "out", "", "输出路径（默认stdout）")
	fs.BoolVar(&opt.jsonOut, "json", false, "输出 JSON 报告（默认表格文本）")
	fs.BoolVar(&opt.onlySignal, "only-signal", false, "选股时仅输出有信号的标的（错误信息仍输出）")
	fs.StringVar(&opt.chartDir, "chart-dir", "", "输出带买卖标记的K线图(SVG)到该目录")
	fs.IntVar(&opt.chartBars, "chart-bars", 220, "每张图最多画最近 N 根K线")
	fs.BoolVar(&opt.color, "color", true, "终端表格红涨绿跌着色（写文件时自动关闭）")
	fs.StringVar(&logLevel, "log-level", "warn", "日志级别 debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	opt.fast = fastMode

	modes := 0
	for _, m := range []bool{scanMode || fastMode, backtestMode} {
		if m {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(stderr, "Usage:")
		fmt.Fprintln(stderr, "  xuangu -scan [-config scan.yaml] [-target 2024-03-01] [-scan-days 365] [-only-signal] [-json] [-chart-dir runtime/charts]")
		fmt.Fprintln(stderr, "  xuangu -fast [-config scan.yaml] [-only-signal] [-json]")
		fmt.Fprintln(stderr, "  xuangu -backtest [-config scan.yaml] [-out runtime/report.json -json]")
		fmt.Fprintln(stderr, "  xuangu -serve [-config config.yaml]")
		return 2
	}

	if d == nil {
		logger, err := logging.New(logLevel)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		defer func() { _ = logger.Sync() }()
		quotes := fetcher.NewStockFetcher()
		d = &deps{
			logger:    logger,
			newSource: fetcher.NewSource,
			quotes:    quotes,
			names:     quotes,
			now:       time.Now,
		}
	}
	d.stdout = stdout
	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	what := "选股"
	if backtestMode {
		what = "回测"
		err = runBacktest(ctx, *d, opt)
	} else {
		err = runScan(ctx, *d, opt)
	}
	if err != nil {
		fmt.Fprintf(stderr, "[ERROR] %s失败: %v\n", what, err)
		return 1
	}
	return 0
}
