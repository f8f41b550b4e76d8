package signal

import "testing"

func TestPresets(t *testing.T) {
	names := PresetNames()
	if len(names) != 3 || names[0] != PresetThreeDays || names[2] != PresetUp8 {
		t.Fatalf("unexpected preset names %v", names)
	}
	for _, n := range names {
		cfg, err := Preset(n)
		if err != nil {
			t.Fatalf("preset %s: %v", n, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("preset %s invalid: %v", n, err)
		}
		if cfg.Name != n {
			t.Fatalf("preset %s has name %s", n, cfg.Name)
		}
	}
	if _, err := Preset("nope"); err == nil {
		t.Fatalf("expected error for unknown preset")
	}

	// 每次返回独立副本
	a, _ := Preset(" UP8 ")
	a.Entry.ConsecutiveUpDays = 1
	b, _ := Preset(PresetUp8)
	if b.Entry.ConsecutiveUpDays != 8 {
		t.Fatalf("preset mutated through a copy")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := StrategyConfig{Exit: ExitConfig{Anchor: "sideways"}}.WithDefaults()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown anchor error")
	}
	cfg = StrategyConfig{Gate: GateConfig{LowerPct: 2, UpperPct: 1}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected inverted gate error")
	}
	cfg = StrategyConfig{Average: AverageConfig{Kind: AverageSmoothed, Weight: 20}, Exit: ExitConfig{MAWindow: 10}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected weight above window error")
	}
}
