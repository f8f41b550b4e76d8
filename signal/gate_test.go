package signal

import "testing"

func TestMarketGateBand(t *testing.T) {
	bench := flatBars("sh000300", 100, 101, 103, 99)
	g, err := MarketGate(bench, Window{}, GateConfig{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []bool{false, true, false, false}
	for i, w := range want {
		if g.Values[i] != w {
			t.Fatalf("gate[%d]=%v want %v (all=%v)", i, g.Values[i], w, g.Values)
		}
	}

	g, err = MarketGate(bench, Window{}, GateConfig{LowerPct: -5, UpperPct: 5, FirstDayAdmit: true})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for i, v := range g.Values {
		if !v {
			t.Fatalf("wide gate should admit day %d", i)
		}
	}
}

func TestMarketGateWindow(t *testing.T) {
	bench := flatBars("sh000300", 100, 101, 103, 99, 100)
	g, err := MarketGate(bench, Window{Start: dateAt(1), End: dateAt(3)}, GateConfig{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(g.Values) != 3 {
		t.Fatalf("expected 3 days, got %d", len(g.Values))
	}
	// 区间第一天没有昨收
	if g.Values[0] {
		t.Fatalf("first day of window must not be admitted")
	}
}

func TestLimitUpPrice(t *testing.T) {
	cases := []struct {
		prev float64
		mult float64
		want float64
	}{
		{10.00, 1.1, 11.00},
		{10.00, 1.2, 12.00},
		{3.33, 1.1, 3.66},
		{7.77, 1.1, 8.55},
	}
	for _, c := range cases {
		if got := LimitUpPrice(c.prev, c.mult); got != c.want {
			t.Fatalf("LimitUpPrice(%.2f, %.1f)=%v want %v", c.prev, c.mult, got, c.want)
		}
	}
	if !IsLimitUp(10, 10.99, 1.1) {
		t.Fatalf("10.99 should count as limit-up from 10.00")
	}
	if IsLimitUp(10, 10.98, 1.1) {
		t.Fatalf("10.98 should not count as limit-up")
	}
	if !IsLimitUp(0, 5, 1.1) {
		t.Fatalf("zero previous close is excluded")
	}
	if LimitMultiplier("sz300750") != 1.2 || LimitMultiplier("sh688981") != 1.2 || LimitMultiplier("sh600000") != 1.1 {
		t.Fatalf("unexpected board multipliers")
	}
}
