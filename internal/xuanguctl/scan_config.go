package xuanguctl

import (
	"fmt"
	"os"
	"strings"

	"xuangu/backtest"
	appcfg "xuangu/config"
	"xuangu/trading"
)

// loadRunConfig 读取 scan.yaml，并把服务配置里的监控股票并入扫描列表
func loadRunConfig(runConfigPath, serviceConfigPath string) (backtest.RunConfig, error) {
	runCfg, err := backtest.LoadRunConfig(runConfigPath)
	if err != nil {
		return backtest.RunConfig{}, err
	}

	path := strings.TrimSpace(serviceConfigPath)
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path == "" {
		return runCfg, nil
	}

	cfg, err := appcfg.LoadFromFile(path)
	if err != nil {
		return backtest.RunConfig{}, fmt.Errorf("load config.yaml: %w", err)
	}
	runCfg.Universe = backtest.MergeUniverse(runCfg.Universe, cfg.Stocks)
	trading.SetHolidays(cfg.Holidays)
	return runCfg, nil
}
