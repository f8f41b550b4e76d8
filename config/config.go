package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 数据源类型
const (
	SourceEastMoney  = "eastmoney"
	SourceCSV        = "csv"
	SourceClickHouse = "clickhouse"
)

// ClickHouseConfig ClickHouse 日K表连接参数
type ClickHouseConfig struct {
	Addr        string        `yaml:"addr"`
	Database    string        `yaml:"database"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Table       string        `yaml:"table"`
	IndexTable  string        `yaml:"index_table"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// SourceConfig 日K数据来源
type SourceConfig struct {
	Kind        string           `yaml:"kind"`
	CSVDir      string           `yaml:"csv_dir"`
	CSVIndexDir string           `yaml:"csv_index_dir"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
}

// WithDefaults 填充默认值
func (s SourceConfig) WithDefaults() SourceConfig {
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Kind == "" {
		s.Kind = SourceEastMoney
	}
	if s.CSVIndexDir == "" {
		s.CSVIndexDir = s.CSVDir
	}
	ch := &s.ClickHouse
	if ch.Addr == "" {
		ch.Addr = "127.0.0.1:9000"
	}
	if ch.Database == "" {
		ch.Database = "default"
	}
	if ch.Username == "" {
		ch.Username = "default"
	}
	if ch.Table == "" {
		ch.Table = "daily_bars"
	}
	if ch.IndexTable == "" {
		ch.IndexTable = ch.Table
	}
	if ch.DialTimeout <= 0 {
		ch.DialTimeout = 5 * time.Second
	}
	return s
}

// Validate 检查数据源配置
func (s SourceConfig) Validate() error {
	switch s.Kind {
	case SourceEastMoney, SourceClickHouse:
		return nil
	case SourceCSV:
		if s.CSVDir == "" {
			return fmt.Errorf("source.csv_dir is required for csv source")
		}
		return nil
	default:
		return fmt.Errorf("unknown source.kind: %s", s.Kind)
	}
}

// ApplyEnv 环境变量覆盖敏感配置
func (s SourceConfig) ApplyEnv() SourceConfig {
	if v := os.Getenv("XUANGU_CLICKHOUSE_ADDR"); v != "" {
		s.ClickHouse.Addr = v
	}
	if v := os.Getenv("XUANGU_CLICKHOUSE_PASSWORD"); v != "" {
		s.ClickHouse.Password = v
	}
	return s
}

// YAMLConfig YAML配置文件结构
type YAMLConfig struct {
	Server struct {
		Port           int    `yaml:"port"`
		LogLevel       string `yaml:"log_level"`
		MergeLiveQuote *bool  `yaml:"merge_live_quote"`
	} `yaml:"server"`

	Source SourceConfig `yaml:"source"`

	Monitor struct {
		Stocks    []string `yaml:"stocks"`
		Benchmark string   `yaml:"benchmark"`
		Strategy  string   `yaml:"strategy"`
		Days      int      `yaml:"days"`
		Interval  string   `yaml:"interval"`
	} `yaml:"monitor"`

	Calendar struct {
		Holidays []string `yaml:"holidays"`
	} `yaml:"calendar"`
}

// Config 服务配置
type Config struct {
	// HTTP 服务端口
	Port int

	// debug | info | warn | error
	LogLevel string

	// 日K数据来源
	Source SourceConfig

	// 交易时间内是否把实时报价并入日K
	MergeLiveQuote bool

	// 择时基准指数
	Benchmark string

	// 默认策略
	Strategy string

	// 拉取日K天数
	Days int

	// 监控的股票列表
	Stocks []string

	// 监控选股刷新间隔
	RefreshInterval time.Duration

	// 工作日休市的节假日
	Holidays []time.Time
}

// DefaultConfig 默认配置
var DefaultConfig = Config{
	Port:           19527,
	LogLevel:       "info",
	Source:         SourceConfig{Kind: SourceEastMoney},
	MergeLiveQuote: true,
	Benchmark:      "sh000300",
	Strategy:       "up8",
	Days:           800,
	Stocks: []string{
		"sz002415", // 海康威视
		"sh600362", // 江西铜业
		"sz000001", // 平安银行
	},
	RefreshInterval: 5 * time.Minute,
}

// NormalizeStockCode 统一股票代码：小写市场前缀，纯数字代码按首位补 sh/sz/bj
func NormalizeStockCode(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return c
	}
	c = strings.ReplaceAll(c, ".", "")
	if strings.HasPrefix(c, "sh") || strings.HasPrefix(c, "sz") || strings.HasPrefix(c, "bj") {
		return c
	}
	// 600000.SH 这类后缀写法
	for _, m := range []string{"sh", "sz", "bj"} {
		if strings.HasSuffix(c, m) {
			return m + strings.TrimSuffix(c, m)
		}
	}
	switch c[0] {
	case '6', '9', '5':
		return "sh" + c
	case '4', '8':
		return "bj" + c
	default:
		return "sz" + c
	}
}

// NormalizeStockCodes 批量统一代码并去掉空值和重复
func NormalizeStockCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		c := NormalizeStockCode(code)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// LoadFromFile 从YAML文件加载配置
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var yamlConfig YAMLConfig
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config := DefaultConfig

	if yamlConfig.Server.Port > 0 {
		config.Port = yamlConfig.Server.Port
	}
	if yamlConfig.Server.LogLevel != "" {
		config.LogLevel = yamlConfig.Server.LogLevel
	}
	if yamlConfig.Server.MergeLiveQuote != nil {
		config.MergeLiveQuote = *yamlConfig.Server.MergeLiveQuote
	}

	config.Source = yamlConfig.Source

	if len(yamlConfig.Monitor.Stocks) > 0 {
		config.Stocks = yamlConfig.Monitor.Stocks
	}
	if yamlConfig.Monitor.Benchmark != "" {
		config.Benchmark = yamlConfig.Monitor.Benchmark
	}
	if yamlConfig.Monitor.Strategy != "" {
		config.Strategy = yamlConfig.Monitor.Strategy
	}
	if yamlConfig.Monitor.Days > 0 {
		config.Days = yamlConfig.Monitor.Days
	}
	if yamlConfig.Monitor.Interval != "" {
		d, err := time.ParseDuration(yamlConfig.Monitor.Interval)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("monitor.interval 无效: %q", yamlConfig.Monitor.Interval)
		}
		config.RefreshInterval = d
	}

	for _, h := range yamlConfig.Calendar.Holidays {
		d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(h), time.Local)
		if err != nil {
			return nil, fmt.Errorf("calendar.holidays 日期无效: %q", h)
		}
		config.Holidays = append(config.Holidays, d)
	}

	return &config, nil
}

// GetConfig 获取配置 (优先级: 环境变量 > 配置文件 > 默认值)
func GetConfig(configPath string) (*Config, error) {
	config := DefaultConfig

	if configPath != "" {
		cfg, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = *cfg
	}

	config.Source = config.Source.WithDefaults().ApplyEnv()
	if err := config.Source.Validate(); err != nil {
		return nil, err
	}
	config.Stocks = NormalizeStockCodes(config.Stocks)
	if strings.EqualFold(strings.TrimSpace(config.Benchmark), "none") {
		// 不做大盘择时
		config.Benchmark = ""
	} else {
		config.Benchmark = NormalizeStockCode(config.Benchmark)
	}

	return &config, nil
}
