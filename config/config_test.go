package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeStockCode(t *testing.T) {
	cases := map[string]string{
		"600000":    "sh600000",
		"000001":    "sz000001",
		"300750":    "sz300750",
		"830799":    "bj830799",
		"SH600000":  "sh600000",
		"600000.SH": "sh600000",
		" sz000001": "sz000001",
	}
	for in, want := range cases {
		if got := NormalizeStockCode(in); got != want {
			t.Fatalf("NormalizeStockCode(%q)=%q want %q", in, got, want)
		}
	}
	got := NormalizeStockCodes([]string{"600000", "sh600000", "", "000001"})
	if len(got) != 2 {
		t.Fatalf("expected dedup, got %v", got)
	}
}

func TestGetConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
server:
  port: 8080
  merge_live_quote: false
source:
  kind: csv
  csv_dir: /data/lday
monitor:
  stocks: ["600000", "000001"]
  strategy: three_days
  interval: 90s
calendar:
  holidays: ["2024-10-01", "2024-10-02"]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XUANGU_CLICKHOUSE_PASSWORD", "secret")

	cfg, err := GetConfig(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Port != 8080 || cfg.MergeLiveQuote || cfg.Strategy != "three_days" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Source.Kind != SourceCSV || cfg.Source.CSVIndexDir != "/data/lday" {
		t.Fatalf("unexpected source %+v", cfg.Source)
	}
	if cfg.Source.ClickHouse.Password != "secret" {
		t.Fatalf("env override not applied")
	}
	if cfg.Stocks[0] != "sh600000" || cfg.Stocks[1] != "sz000001" {
		t.Fatalf("unexpected stocks %v", cfg.Stocks)
	}
	if cfg.RefreshInterval != 90*time.Second {
		t.Fatalf("unexpected interval %v", cfg.RefreshInterval)
	}
	if len(cfg.Holidays) != 2 || cfg.Holidays[1].Day() != 2 {
		t.Fatalf("unexpected holidays %v", cfg.Holidays)
	}
}

func TestLoadFromFileBadInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("monitor:\n  interval: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatalf("expected invalid interval error")
	}
}

func TestSourceValidate(t *testing.T) {
	if err := (SourceConfig{Kind: "csv"}).WithDefaults().Validate(); err == nil {
		t.Fatalf("csv source without dir must fail")
	}
	if err := (SourceConfig{Kind: "ftp"}).WithDefaults().Validate(); err == nil {
		t.Fatalf("unknown source must fail")
	}
	if err := (SourceConfig{}).WithDefaults().Validate(); err != nil {
		t.Fatalf("default source: %v", err)
	}
}

func TestGetConfigBenchmarkNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("monitor:\n  benchmark: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := GetConfig(path)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Benchmark != "" {
		t.Fatalf("benchmark none should disable the gate, got %q", cfg.Benchmark)
	}
}
