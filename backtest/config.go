package backtest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"xuangu/config"
	"xuangu/signal"
)

// YAMLConfig scan.yaml 文件结构
type YAMLConfig struct {
	Scan struct {
		Start             string   `yaml:"start"`
		End               string   `yaml:"end"`
		Target            string   `yaml:"target"`
		Days              int      `yaml:"days"`
		Concurrency       int      `yaml:"concurrency"`
		InstrumentTimeout string   `yaml:"instrument_timeout"`
		Benchmark         string   `yaml:"benchmark"`
		Universe          []string `yaml:"universe"`
		MergeLiveQuote    *bool    `yaml:"merge_live_quote"`
	} `yaml:"scan"`

	Source config.SourceConfig `yaml:"source"`

	Strategy struct {
		Preset    string    `yaml:"preset"`
		Overrides yaml.Node `yaml:"overrides"`
	} `yaml:"strategy"`
}

// RunConfig 一次回测/选股运行的全部参数
type RunConfig struct {
	Days              int
	Start             time.Time
	End               time.Time
	Target            time.Time // 选股目标日，零值表示最新一天
	Concurrency       int
	InstrumentTimeout time.Duration

	Source         config.SourceConfig
	Benchmark      string // 为空时不做大盘择时
	Universe       []string
	MergeLiveQuote bool

	Strategy signal.StrategyConfig

	// 仅命令行设置
	ChartDir  string
	ChartBars int
}

// DefaultRunConfig 默认运行参数
func DefaultRunConfig() RunConfig {
	strategy, _ := signal.Preset(signal.PresetUp8)
	return RunConfig{
		Days:              800,
		Concurrency:       8,
		InstrumentTimeout: 30 * time.Second,
		Source:            config.SourceConfig{Kind: config.SourceEastMoney}.WithDefaults(),
		Benchmark:         "sh000300",
		MergeLiveQuote:    true,
		Strategy:          strategy,
		ChartBars:         220,
	}
}

// Window 返回评估区间
func (c RunConfig) Window() signal.Window {
	return signal.Window{Start: c.Start, End: c.End}
}

// Validate 检查运行参数
func (c RunConfig) Validate() error {
	if len(c.Universe) == 0 {
		return fmt.Errorf("no instruments configured")
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("scan.end %s before scan.start %s", c.End.Format("2006-01-02"), c.Start.Format("2006-01-02"))
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	return c.Strategy.Validate()
}

// LoadRunConfig 读取 scan.yaml
func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseRunConfig(raw)
}

// ParseRunConfig 解析 scan.yaml 内容
func ParseRunConfig(raw []byte) (RunConfig, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()
	s := yc.Scan

	if s.Days > 0 {
		cfg.Days = s.Days
	}
	if s.Concurrency > 0 {
		cfg.Concurrency = s.Concurrency
	}
	if s.InstrumentTimeout != "" {
		d, err := time.ParseDuration(s.InstrumentTimeout)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid scan.instrument_timeout: %w", err)
		}
		cfg.InstrumentTimeout = d
	}
	if s.Benchmark != "" {
		cfg.Benchmark = config.NormalizeStockCode(s.Benchmark)
	}
	if strings.EqualFold(s.Benchmark, "none") {
		cfg.Benchmark = ""
	}
	if s.MergeLiveQuote != nil {
		cfg.MergeLiveQuote = *s.MergeLiveQuote
	}
	cfg.Universe = config.NormalizeStockCodes(s.Universe)

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Time
	}{
		{"scan.start", s.Start, &cfg.Start},
		{"scan.end", s.End, &cfg.End},
		{"scan.target", s.Target, &cfg.Target},
	} {
		if d.raw == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", d.raw, time.Local)
		if err != nil {
			return RunConfig{}, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = t
	}

	cfg.Source = yc.Source.WithDefaults().ApplyEnv()

	strategy, err := ResolveStrategy(yc.Strategy.Preset, &yc.Strategy.Overrides)
	if err != nil {
		return RunConfig{}, err
	}
	cfg.Strategy = strategy

	return cfg, nil
}

// ResolveStrategy 取预设策略，再用 overrides 里出现的字段覆盖
func ResolveStrategy(preset string, overrides *yaml.Node) (signal.StrategyConfig, error) {
	if strings.TrimSpace(preset) == "" {
		preset = signal.PresetUp8
	}
	cfg, err := signal.Preset(preset)
	if err != nil {
		return signal.StrategyConfig{}, err
	}
	if overrides != nil && overrides.Kind != 0 {
		if err := overrides.Decode(&cfg); err != nil {
			return signal.StrategyConfig{}, fmt.Errorf("invalid strategy.overrides: %w", err)
		}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return signal.StrategyConfig{}, fmt.Errorf("invalid strategy: %w", err)
	}
	return cfg, nil
}

// MergeUniverse 把服务配置里的股票并入扫描列表（去重，保持顺序）
func MergeUniverse(existing, extra []string) []string {
	return config.NormalizeStockCodes(append(append([]string{}, existing...), extra...))
}
