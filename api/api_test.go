package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xuangu/backtest"
	"xuangu/fetcher"
	"xuangu/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)

func dayStr(i int) string {
	return day0.AddDate(0, 0, i).Format(dateLayout)
}

func seriesDTO(code string, closes ...float64) SeriesDTO {
	s := SeriesDTO{Code: code}
	for i, c := range closes {
		s.Bars = append(s.Bars, BarDTO{Date: dayStr(i), Open: c, High: c, Low: c, Close: c, Volume: 1000})
	}
	return s
}

// up8Closes 20 根平盘后连涨 8 天
func up8Closes() []float64 {
	var out []float64
	for i := 0; i < 20; i++ {
		out = append(out, 10)
	}
	c := 10.0
	for i := 0; i < 8; i++ {
		c *= 1.01
		out = append(out, c)
	}
	return out
}

func openGate(n int) *SignalDTO {
	g := &SignalDTO{}
	for i := 0; i < n; i++ {
		g.Dates = append(g.Dates, dayStr(i))
		g.Values = append(g.Values, true)
	}
	return g
}

type fakeSource struct{}

func (fakeSource) LoadBars(ctx context.Context, code string, days int) (model.BarSeries, error) {
	if code != "sz000001" {
		return model.BarSeries{}, fetcher.ErrNoData
	}
	s, _ := seriesDTO(code, up8Closes()...).toSeries()
	return s, nil
}

func (fakeSource) LoadIndex(ctx context.Context, code string, days int) (model.BarSeries, error) {
	closes := make([]float64, 28)
	for i := range closes {
		closes[i] = 3000
	}
	return seriesDTO(code, closes...).toSeries()
}

func newTestServer() http.Handler {
	run := backtest.DefaultRunConfig()
	run.MergeLiveQuote = false
	runner := backtest.NewRunner(fakeSource{}, nil, nil)
	return NewServer(NewHandler(runner, run, nil), 0, nil).Handler()
}

type envelope struct {
	Code  int             `json:"code"`
	Count int             `json:"count"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatal(err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func TestHealthAndStrategies(t *testing.T) {
	h := newTestServer()
	if code, _ := do(t, h, http.MethodGet, "/health", nil); code != http.StatusOK {
		t.Fatalf("health status %d", code)
	}
	code, env := do(t, h, http.MethodGet, "/api/strategies", nil)
	if code != http.StatusOK || env.Count != 3 {
		t.Fatalf("strategies: %d %+v", code, env)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/strategies/nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown strategy status %d", code)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/status", nil); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
}

func TestPostGate(t *testing.T) {
	h := newTestServer()
	code, env := do(t, h, http.MethodPost, "/api/gate", GateRequest{Benchmark: seriesDTO("sh000300", 100, 101, 103, 99)})
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var got SignalDTO
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	want := []bool{false, true, false, false}
	for i := range want {
		if got.Values[i] != want[i] {
			t.Fatalf("gate values %v want %v", got.Values, want)
		}
	}
}

func TestPostEntrySeriesAndTarget(t *testing.T) {
	h := newTestServer()
	closes := up8Closes()
	req := EntryRequest{
		Bars:     seriesDTO("sz000001", closes...),
		Gate:     openGate(len(closes)),
		Strategy: StrategyDTO{Preset: "up8"},
	}
	code, env := do(t, h, http.MethodPost, "/api/entry", req)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var series struct {
		Entry       SignalDTO `json:"entry"`
		Count       int       `json:"count"`
		SignalDates []string  `json:"signal_dates"`
	}
	if err := json.Unmarshal(env.Data, &series); err != nil {
		t.Fatal(err)
	}
	if series.Count != 1 || !series.Entry.Values[len(closes)-1] {
		t.Fatalf("unexpected entry %+v", series)
	}
	if len(series.SignalDates) != 1 || series.SignalDates[0] != dayStr(len(closes)-1) {
		t.Fatalf("unexpected signal dates %v", series.SignalDates)
	}

	base := req
	base.Base = true
	code, env = do(t, h, http.MethodPost, "/api/entry", base)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var baseOut struct {
		Entry SignalDTO `json:"entry"`
	}
	if err := json.Unmarshal(env.Data, &baseOut); err != nil {
		t.Fatal(err)
	}
	// 上市天数要求超过 13 根
	if baseOut.Entry.Values[12] || !baseOut.Entry.Values[13] || !baseOut.Entry.Values[len(closes)-1] {
		t.Fatalf("unexpected base series %v", baseOut.Entry.Values)
	}

	req.Target = dayStr(len(closes) - 2)
	req.Explain = true
	code, env = do(t, h, http.MethodPost, "/api/entry", req)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var target struct {
		Signal     bool `json:"signal"`
		Conditions []struct {
			Name  string `json:"name"`
			Value bool   `json:"value"`
		} `json:"conditions"`
	}
	if err := json.Unmarshal(env.Data, &target); err != nil {
		t.Fatal(err)
	}
	if target.Signal || len(target.Conditions) == 0 {
		t.Fatalf("unexpected target result %+v", target)
	}
}

func TestPostEntryRejectsBadInput(t *testing.T) {
	h := newTestServer()

	if code, _ := do(t, h, http.MethodPost, "/api/entry", `{"bars":{"code":"sz000001","bars":[]},"bogus":1}`); code != http.StatusBadRequest {
		t.Fatalf("unknown field should be rejected, got %d", code)
	}

	bad := seriesDTO("sz000001", 10, 10, 10)
	bad.Bars[2].Date = dayStr(0)
	if code, _ := do(t, h, http.MethodPost, "/api/entry", EntryRequest{Bars: bad}); code != http.StatusBadRequest {
		t.Fatalf("unsorted dates should be rejected, got %d", code)
	}

	req := EntryRequest{Bars: seriesDTO("sz000001", 10, 10), Strategy: StrategyDTO{Preset: "up8", Overrides: json.RawMessage(`{"exit":{"anchor":"sideways"}}`)}}
	if code, _ := do(t, h, http.MethodPost, "/api/entry", req); code != http.StatusBadRequest {
		t.Fatalf("invalid override should be rejected, got %d", code)
	}

	req = EntryRequest{Bars: seriesDTO("sz000001", 10, 10), Strategy: StrategyDTO{Overrides: json.RawMessage(`{"exit":{"take_proft":0.2}}`)}}
	if code, _ := do(t, h, http.MethodPost, "/api/entry", req); code != http.StatusBadRequest {
		t.Fatalf("misspelled override should be rejected, got %d", code)
	}
}

func TestPostExitScalarEntry(t *testing.T) {
	h := newTestServer()
	// 买入后一路下跌，第 2 天跌破止损
	yes := true
	req := ExitRequest{
		Bars:        seriesDTO("sz000001", 10, 10, 9.9, 9.0, 9.0),
		EntryScalar: &yes,
		EntryDate:   dayStr(1),
		Strategy:    StrategyDTO{Preset: "up8"},
	}
	code, env := do(t, h, http.MethodPost, "/api/exit", req)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var got struct {
		Exit      SignalDTO     `json:"exit"`
		Positions []PositionDTO `json:"positions"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Positions) != 1 || got.Positions[0].ExitDate != dayStr(3) || !got.Exit.Values[3] {
		t.Fatalf("unexpected exit %+v", got)
	}
	if got.Exit.Values[1] {
		t.Fatalf("entry day must not exit")
	}

	if code, _ := do(t, h, http.MethodPost, "/api/exit", ExitRequest{Bars: req.Bars}); code != http.StatusBadRequest {
		t.Fatalf("missing entry should be rejected, got %d", code)
	}
}

func TestPostEvaluate(t *testing.T) {
	h := newTestServer()
	closes := up8Closes()
	req := EvaluateRequest{
		Bars:     seriesDTO("sz000001", closes...),
		Gate:     openGate(len(closes)),
		Strategy: StrategyDTO{Preset: "up8", Overrides: json.RawMessage(`{"name":"up8-tight","exit":{"take_profit":0.05}}`)},
	}
	code, env := do(t, h, http.MethodPost, "/api/evaluate", req)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var got struct {
		Strategy  string        `json:"strategy"`
		Entry     SignalDTO     `json:"entry"`
		Positions []PositionDTO `json:"positions"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Strategy != "up8-tight" || len(got.Positions) != 1 || got.Positions[0].State != "opened" {
		t.Fatalf("unexpected evaluate result %+v", got)
	}
}

func TestGetScan(t *testing.T) {
	h := newTestServer()
	code, env := do(t, h, http.MethodGet, "/api/scan/000001", nil)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var got backtest.ScanResult
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "sz000001" || !got.Signal {
		t.Fatalf("unexpected scan %+v", got)
	}

	if code, _ := do(t, h, http.MethodGet, "/api/scan/600000", nil); code != http.StatusNotFound {
		t.Fatalf("missing instrument should be 404, got %d", code)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/scan/000001?strategy=nope", nil); code != http.StatusBadRequest {
		t.Fatalf("unknown strategy should be 400, got %d", code)
	}
}

type fakeMonitor struct {
	rep *backtest.Report
}

func (m fakeMonitor) Latest() (*backtest.Report, time.Time, string) {
	return m.rep, day0, ""
}

func TestGetMonitor(t *testing.T) {
	h := newTestServer()
	if code, _ := do(t, h, http.MethodGet, "/api/monitor", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("monitor disabled should be 503, got %d", code)
	}

	run := backtest.DefaultRunConfig()
	handler := NewHandler(nil, run, nil)
	handler.SetMonitor(fakeMonitor{rep: &backtest.Report{
		RunID: "r1",
		Scan: []backtest.ScanResult{
			{Symbol: "sh600000", Signal: true},
			{Symbol: "sz000001"},
		},
	}})
	srv := NewServer(handler, 0, nil).Handler()

	code, env := do(t, srv, http.MethodGet, "/api/monitor?signal_only=1", nil)
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, env.Error)
	}
	var got struct {
		Ready   bool                  `json:"ready"`
		RunID   string                `json:"run_id"`
		Results []backtest.ScanResult `json:"results"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Ready || got.RunID != "r1" || len(got.Results) != 1 || got.Results[0].Symbol != "sh600000" {
		t.Fatalf("unexpected monitor payload %+v", got)
	}

	handler.SetMonitor(fakeMonitor{})
	code, env = do(t, srv, http.MethodGet, "/api/monitor", nil)
	if code != http.StatusOK || !bytes.Contains(env.Data, []byte(`"ready":false`)) {
		t.Fatalf("pending monitor: %d %s", code, env.Data)
	}
}
