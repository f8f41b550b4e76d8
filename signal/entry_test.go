package signal

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"xuangu/model"
)

// up8Bars 20 根平盘后连涨 8 天，每天涨 1%
func up8Bars() model.BarSeries {
	closes := repeat(10, 20)
	c := 10.0
	for i := 0; i < 8; i++ {
		c *= 1.01
		closes = append(closes, c)
	}
	return flatBars("sz000001", closes...)
}

func TestUp8EndToEnd(t *testing.T) {
	s := up8Bars()
	cfg := mustPreset(PresetUp8)
	sig, err := EvaluateEntry(s, openGate(s), Window{}, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	last := s.Len() - 1
	if !sig.Values[last] {
		t.Fatalf("expected entry on the 8th up day")
	}
	if sig.Values[last-1] {
		t.Fatalf("7th up day must not signal")
	}
	if sig.Count() != 1 {
		t.Fatalf("expected exactly one signal, got %d", sig.Count())
	}

	ok, err := EvaluateEntryAt(s, openGate(s), Window{}, cfg, dateAt(last-1))
	if err != nil || ok {
		t.Fatalf("target 7th day: ok=%v err=%v", ok, err)
	}
	ok, err = EvaluateEntryAt(s, openGate(s), Window{}, cfg, dateAt(last))
	if err != nil || !ok {
		t.Fatalf("target 8th day: ok=%v err=%v", ok, err)
	}
	ok, _ = EvaluateEntryAt(s, openGate(s), Window{}, cfg, dateAt(last+30))
	if ok {
		t.Fatalf("target outside window must be false")
	}
}

func TestEntryClosedGateBlocks(t *testing.T) {
	s := up8Bars()
	g := openGate(s)
	g.Values[s.Len()-1] = false
	ok, err := EvaluateEntryAt(s, g, Window{}, mustPreset(PresetUp8), dateAt(s.Len()-1))
	if err != nil || ok {
		t.Fatalf("closed gate must block entry: ok=%v err=%v", ok, err)
	}

	// 基准缺失的日期视为不允许买入
	g = openGate(s)
	g.Dates = g.Dates[:s.Len()-1]
	g.Values = g.Values[:s.Len()-1]
	ok, _ = EvaluateEntryAt(s, g, Window{}, mustPreset(PresetUp8), dateAt(s.Len()-1))
	if ok {
		t.Fatalf("missing gate day must block entry")
	}
}

func TestEntryInsufficientHistory(t *testing.T) {
	s := flatBars("sz000001", repeat(10, 12)...)
	sig, err := EvaluateEntry(s, nil, Window{}, mustPreset(PresetUp8))
	if err != nil {
		t.Fatalf("insufficient history is not an error: %v", err)
	}
	if sig.Len() != 12 || sig.Any() {
		t.Fatalf("expected all-false series of length 12, got %v", sig.Values)
	}
}

func TestEntryMalformedInput(t *testing.T) {
	s := flatBars("sz000001", repeat(10, 20)...)
	s.Bars[5].Date = s.Bars[4].Date
	if _, err := EvaluateEntry(s, nil, Window{}, mustPreset(PresetUp8)); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestEntryIdempotent(t *testing.T) {
	s := up8Bars()
	cfg := mustPreset(PresetUp8)
	a, err := EvaluateEntry(s, openGate(s), Window{}, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	b, _ := EvaluateEntry(s, openGate(s), Window{}, cfg)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("entry evaluation is not idempotent")
	}
}

func TestEntrySpecialTreatment(t *testing.T) {
	s := flatBars("sh600000", repeat(10, 30)...)
	cfg := StrategyConfig{Base: BaseConfig{MinPrice: 3, ExcludeSpecialTreatment: true}}

	sig, err := EvaluateEntry(s, nil, Window{}, cfg)
	if err != nil || !sig.Last() {
		t.Fatalf("expected pass without name: %v %v", sig.Values, err)
	}

	s.Bars[len(s.Bars)-1].Name = "*st 样本"
	sig, err = EvaluateEntry(s, nil, Window{}, cfg)
	if err != nil || sig.Any() {
		t.Fatalf("ST name must exclude the whole series: %v %v", sig.Values, err)
	}
	ok, _ := EvaluateEntryFast(s, Window{}, cfg)
	if ok {
		t.Fatalf("fast mode must reject ST name")
	}
}

func TestEntryFast(t *testing.T) {
	cfg := mustPreset(PresetUp8)

	ok, err := EvaluateEntryFast(flatBars("sz000001", repeat(10, 12)...), Window{}, cfg)
	if err != nil || ok {
		t.Fatalf("short history: ok=%v err=%v", ok, err)
	}
	ok, _ = EvaluateEntryFast(flatBars("sz000001", repeat(10, 13)...), Window{}, cfg)
	if !ok {
		t.Fatalf("13 flat bars above floor should pass")
	}
	ok, _ = EvaluateEntryFast(flatBars("sz000001", repeat(2.9, 20)...), Window{}, cfg)
	if ok {
		t.Fatalf("close below floor must fail")
	}
	ok, _ = EvaluateEntryFast(flatBars("sz000001", append(repeat(10, 19), 11)...), Window{}, cfg)
	if ok {
		t.Fatalf("limit-up close must fail")
	}
	ok, _ = EvaluateEntryFast(flatBars("sz300001", append(repeat(10, 19), 11)...), Window{}, cfg)
	if !ok {
		t.Fatalf("+10%% on a 20%% board is not limit-up")
	}
}

func TestEntryPlatform(t *testing.T) {
	s := flatBars("sh600000", repeat(10, 25)...)
	s.Bars = append(s.Bars,
		model.Bar{Date: dateAt(25), Open: 10.2, High: 11.2, Low: 10.2, Close: 11.2, Volume: 5000},
		model.Bar{Date: dateAt(26), Open: 11.3, High: 11.5, Low: 11.3, Close: 11.5, Volume: 1000},
		model.Bar{Date: dateAt(27), Open: 11.6, High: 11.7, Low: 11.6, Close: 11.7, Volume: 1000},
	)
	cfg := StrategyConfig{Entry: EntryConfig{Platform: PlatformConfig{Enabled: true}, DedupWindow: 10}}

	sig, err := EvaluateEntry(s, nil, Window{}, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sig.Values[25] {
		t.Fatalf("breakout day has a large body")
	}
	if !sig.Values[26] {
		t.Fatalf("expected platform entry on day 26")
	}
	if sig.Values[27] {
		t.Fatalf("repeat signal within dedup window")
	}

	conds, err := ExplainEntryAt(s, nil, Window{}, cfg, dateAt(27))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	last := conds[len(conds)-1]
	if last.Name != "dedup" || last.Value {
		t.Fatalf("expected dedup to explain the missing signal, got %+v", conds)
	}
}

func TestProfitChipAndLimitUpCount(t *testing.T) {
	closes := []float64{5, 4, 3, 6}
	pc := profitChip(closes, 3)
	if pc[3] != 100 || !math.IsNaN(pc[2]) {
		t.Fatalf("unexpected profit chip %v", pc)
	}

	s := flatBars("sh600000", 10, 11, 11, 12.1, 12.1)
	cfg := StrategyConfig{Entry: EntryConfig{LimitUpWindow: 4, LimitUpMinCount: 2}}
	sig, err := EvaluateEntry(s, nil, Window{}, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sig.Values[2] || !sig.Values[3] || !sig.Values[4] {
		t.Fatalf("unexpected limit-up count signal %v", sig.Values)
	}
}

func TestEntryAmountFilter(t *testing.T) {
	s := flatBars("sz000001", repeat(10, 5)...)
	for i, a := range []float64{100, 100, 100, 200, 100} {
		s.Bars[i].Amount = a
	}
	s.HasAmount = true
	cfg := StrategyConfig{Entry: EntryConfig{AmountMAWindow: 3, AmountRatio: 1.2}}

	sig, err := EvaluateEntry(s, nil, Window{}, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := []bool{false, false, false, true, false}; !reflect.DeepEqual(sig.Values, want) {
		t.Fatalf("amount filter: got %v want %v", sig.Values, want)
	}

	// 数据源没有成交额时不加这个条件
	s.HasAmount = false
	conds, err := ExplainEntryAt(s, nil, Window{}, cfg, dateAt(4))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, c := range conds {
		if c.Name == "amount" {
			t.Fatalf("amount condition must be skipped without amount data: %+v", conds)
		}
	}
}

func TestEntryTurnoverFilter(t *testing.T) {
	s := flatBars("sz000001", repeat(10, 5)...)
	for i, r := range []float64{2, 2, 4, 4, 1} {
		s.Bars[i].TurnoverRate = r
	}
	s.HasTurnover = true
	cfg := StrategyConfig{Entry: EntryConfig{TurnoverMin: 3}}

	sig, err := EvaluateEntry(s, nil, Window{}, cfg)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// 两日均值：-, 2, 3, 4, 2.5
	if want := []bool{false, false, false, true, false}; !reflect.DeepEqual(sig.Values, want) {
		t.Fatalf("turnover filter: got %v want %v", sig.Values, want)
	}
}

func TestEntryFastPriceFloor(t *testing.T) {
	ok, err := EvaluateEntryFast(flatBars("sz000001", repeat(3, 13)...), Window{}, mustPreset(PresetUp8))
	if err != nil || ok {
		t.Fatalf("up8 needs close strictly above 3: ok=%v err=%v", ok, err)
	}
	ok, err = EvaluateEntryFast(flatBars("sh600000", repeat(9, 500)...), Window{}, mustPreset(PresetTingjiping))
	if err != nil || !ok {
		t.Fatalf("tingjiping accepts close equal to 9: ok=%v err=%v", ok, err)
	}
	ok, _ = EvaluateEntryFast(flatBars("sh600000", repeat(8.99, 500)...), Window{}, mustPreset(PresetTingjiping))
	if ok {
		t.Fatalf("tingjiping close below 9 must fail")
	}
}

func TestExplainSpecialTreatment(t *testing.T) {
	s := flatBars("sh600000", repeat(10, 30)...)
	s.Bars[len(s.Bars)-1].Name = "ST 样本"
	cfg := StrategyConfig{Base: BaseConfig{MinPrice: 3, ExcludeSpecialTreatment: true}, Entry: EntryConfig{MinHistory: 20}}

	conds, err := ExplainEntryAt(s, nil, Window{}, cfg, dateAt(29))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if want := []ConditionResult{{Name: "special_treatment"}}; !reflect.DeepEqual(conds, want) {
		t.Fatalf("got %+v want %+v", conds, want)
	}

	conds, _ = ExplainEntryAt(s, nil, Window{Start: dateAt(20)}, cfg, dateAt(29))
	if len(conds) != 1 || conds[0].Name != "history" {
		t.Fatalf("short window should report history, got %+v", conds)
	}
}
