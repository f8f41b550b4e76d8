package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"xuangu/config"
)

func gbk(t *testing.T, s string) []byte {
	t.Helper()
	b, err := simplifiedchinese.GBK.NewEncoder().String(s)
	if err != nil {
		t.Fatal(err)
	}
	return []byte(b)
}

const tdxCSV = "date,code,open,high,low,close,vol,amount,换手率,name\n" +
	"2024-01-02,600000,10.00,10.50,9.90,10.20,120000,1224000,0.8,浦发银行\n" +
	"2024-01-03,600000,10.20,10.80,10.10,10.70,150000,1605000,1.1,浦发银行\n" +
	"2024-01-04,600000,10.70,10.90,10.50,10.60,90000,954000,0.6,ST浦发\n"

func TestReadTDXCSV(t *testing.T) {
	s, err := ReadTDXCSV(strings.NewReader(string(gbk(t, tdxCSV))))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Len() != 3 || !s.HasAmount || !s.HasTurnover {
		t.Fatalf("unexpected series %+v", s)
	}
	if s.Bars[1].Close != 10.70 || s.Bars[1].Volume != 150000 || s.Bars[1].TurnoverRate != 1.1 {
		t.Fatalf("unexpected bar %+v", s.Bars[1])
	}
	if s.Bars[2].Name != "ST浦发" {
		t.Fatalf("name not decoded from GBK: %q", s.Bars[2].Name)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestReadTDXCSVWithoutOptionalColumns(t *testing.T) {
	raw := "date,open,high,low,close\n2024-01-02,1,2,0.5,1.5\n"
	s, err := ReadTDXCSV(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.HasAmount || s.HasTurnover || s.Len() != 1 {
		t.Fatalf("unexpected series %+v", s)
	}

	if _, err := ReadTDXCSV(strings.NewReader("date,open\n2024-01-02,1\n")); err == nil {
		t.Fatalf("missing columns must fail")
	}
}

func TestCSVSourceLoad(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "600000.csv"), gbk(t, tdxCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewCSVSource(dir, "")

	s, err := src.LoadBars(context.Background(), "600000", 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Code != "sh600000" || s.Len() != 2 || s.Bars[0].Close != 10.70 {
		t.Fatalf("unexpected series %+v", s)
	}

	if _, err := src.LoadIndex(context.Background(), "sh000300", 10); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestParseEastMoneyKLine(t *testing.T) {
	body := `{"data":{"code":"600000","name":"浦发银行","klines":[
"2024-01-02,10.00,10.20,10.50,9.90,1200,1224000.0,6.0,2.0,0.2,0.8",
"2024-01-03,10.20,10.70,10.80,10.10,1500,1605000.0,6.8,4.9,0.5,1.1"]}}`
	bars, name, err := parseEastMoneyKLine([]byte(body))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if name != "浦发银行" || len(bars) != 2 {
		t.Fatalf("unexpected result %q %d", name, len(bars))
	}
	b := bars[1]
	if b.Open != 10.20 || b.Close != 10.70 || b.High != 10.80 || b.Low != 10.10 {
		t.Fatalf("unexpected ohlc %+v", b)
	}
	if b.Volume != 150000 || b.Amount != 1605000 || b.TurnoverRate != 1.1 {
		t.Fatalf("unexpected volume/amount/turnover %+v", b)
	}

	bars, _, err = parseEastMoneyKLine([]byte(`{"data":null}`))
	if err != nil || len(bars) != 0 {
		t.Fatalf("null data should be empty, got %v %v", bars, err)
	}
}

func TestEastMoneySourceLoadBars(t *testing.T) {
	var gotSecid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecid = r.URL.Query().Get("secid")
		w.Write([]byte(`{"data":{"name":"平安银行","klines":["2024-01-02,10,10.2,10.5,9.9,100,102000,0,0,0,0.3"]}}`))
	}))
	defer srv.Close()

	src := NewEastMoneySource()
	src.baseURL = srv.URL + "/kline?secid=%s&lmt=%d"

	s, err := src.LoadBars(context.Background(), "000001", 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotSecid != "0.000001" {
		t.Fatalf("unexpected secid %q", gotSecid)
	}
	if s.Code != "sz000001" || s.Len() != 1 || s.Bars[0].Name != "平安银行" || !s.HasTurnover {
		t.Fatalf("unexpected series %+v", s)
	}
}

func TestParseSinaQuotes(t *testing.T) {
	fields := make([]string, 33)
	copy(fields, []string{"浦发银行", "11.85", "11.83", "11.80", "11.89", "11.77", "11.79", "11.80", "46778853", "552469367.00"})
	fields[30] = "2024-01-15"
	fields[31] = "15:00:00"
	halted := make([]string, 33)
	halted[0] = "停牌股"
	data := `var hq_str_sh600000="` + strings.Join(fields, ",") + `";` + "\n" +
		`var hq_str_sz000002="";` + "\n" +
		`var hq_str_sz000003="` + strings.Join(halted, ",") + `";`

	now := time.Now()
	quotes := parseSinaQuotes(data, now)
	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote, got %d", len(quotes))
	}
	q := quotes[0]
	if q.Code != "sh600000" || q.Price != 11.80 || q.Volume != 46778853 || q.Date != "2024-01-15" {
		t.Fatalf("unexpected quote %+v", q)
	}
	b, err := q.Bar()
	if err != nil || b.Close != 11.80 || b.Name != "浦发银行" {
		t.Fatalf("unexpected bar %+v err %v", b, err)
	}
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.SourceConfig{Kind: "csv", CSVDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := src.(*CSVSource); !ok {
		t.Fatalf("expected csv source, got %T", src)
	}
	if _, err := NewSource(config.SourceConfig{Kind: "csv"}); err == nil {
		t.Fatalf("csv without dir must fail")
	}
}

func TestStockFetcherFetchOne(t *testing.T) {
	fields := make([]string, 33)
	copy(fields, []string{"", "10.00", "9.90", "10.10", "10.20", "9.95", "0", "0", "1000", "10100"})
	fields[30] = "2024-03-01"
	fields[31] = "10:00:00"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if strings.Contains(r.URL.Path, "sh600000") {
			fmt.Fprintf(w, `var hq_str_sh600000="%s";`, strings.Join(fields, ","))
			return
		}
		fmt.Fprint(w, `var hq_str_sz000001="";`)
	}))
	defer srv.Close()

	f := NewStockFetcher()
	f.baseURL = srv.URL + "/list=%s"

	q, err := f.FetchOne(context.Background(), "600000")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if q.Code != "sh600000" || q.Price != 10.10 || q.Volume != 1000 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if _, err := f.FetchOne(context.Background(), "000001"); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
