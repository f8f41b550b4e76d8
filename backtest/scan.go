package backtest

import (
	"context"
	"fmt"

	"xuangu/model"
	"xuangu/signal"
)

// Scan 选股：fast=false 时按目标日（默认最新一天）跑完整买入规则，
// fast=true 时只看最后一根K线的基础条件
func (r *Runner) Scan(ctx context.Context, cfg RunConfig, fast bool) (*Report, error) {
	mode := ModeScan
	if fast {
		mode = ModeFast
	}
	rep, gate, err := r.begin(ctx, cfg, mode)
	if err != nil {
		return nil, err
	}
	rep.Scan = make([]ScanResult, len(cfg.Universe))
	err = r.forEach(ctx, cfg, rep.RunID, func(ctx context.Context, i int, code string) error {
		bars, err := r.loadBars(ctx, code, cfg)
		if err != nil {
			rep.Scan[i] = ScanResult{Symbol: code, Errors: []string{err.Error()}}
			return err
		}
		res, err := scanOne(bars, gate, cfg, fast)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
		} else if cfg.ChartDir != "" {
			var marks []ChartMark
			if res.Signal {
				marks = append(marks, ChartMark{Date: res.LastDate, Price: res.LastClose, Label: "B", Buy: true})
			}
			res.ChartPath = r.writeChart(cfg, bars, marks)
		}
		rep.Scan[i] = res
		return err
	})
	if err != nil {
		return nil, err
	}
	rep.Summary = summarizeScan(rep.Scan)
	return rep, nil
}

// ScanCode 单只股票选股，供 HTTP 接口使用
func (r *Runner) ScanCode(ctx context.Context, code string, cfg RunConfig) (ScanResult, error) {
	cfg.Universe = []string{code}
	_, gate, err := r.begin(ctx, cfg, ModeScan)
	if err != nil {
		return ScanResult{}, err
	}
	bars, err := r.loadBars(ctx, code, cfg)
	if err != nil {
		return ScanResult{}, err
	}
	return scanOne(bars, gate, cfg, false)
}

func scanOne(bars model.BarSeries, gate *model.GateSeries, cfg RunConfig, fast bool) (ScanResult, error) {
	out := ScanResult{Symbol: bars.Code, Name: latestName(bars)}
	win := cfg.Window()
	w := bars.Window(win.Start, win.End)
	if w.Len() == 0 {
		return out, fmt.Errorf("%w: %s has no bars in window", model.ErrMalformedInput, bars.Code)
	}

	idx := w.Len() - 1
	if !fast && !cfg.Target.IsZero() {
		idx = w.IndexOf(cfg.Target)
		if idx < 0 {
			// 目标日不在区间内（停牌或超出范围）
			out.LastDate = formatDate(cfg.Target)
			out.Failed = []string{"target_date"}
			return out, nil
		}
	}
	last := w.Bars[idx]
	out.LastDate = formatDate(last.Date)
	out.LastClose = round2(last.Close)
	if idx > 0 && w.Bars[idx-1].Close > 0 {
		out.ChangePct = round2((last.Close/w.Bars[idx-1].Close - 1) * 100)
	}

	if fast {
		ok, err := signal.EvaluateEntryFast(bars, win, cfg.Strategy)
		if err != nil {
			return out, err
		}
		out.Signal = ok
		return out, nil
	}

	ok, err := signal.EvaluateEntryAt(bars, gate, win, cfg.Strategy, last.Date)
	if err != nil {
		return out, err
	}
	out.Signal = ok
	conds, err := signal.ExplainEntryAt(bars, gate, win, cfg.Strategy, last.Date)
	if err != nil {
		return out, err
	}
	out.Conditions = conds
	for _, c := range conds {
		if !c.Value {
			out.Failed = append(out.Failed, c.Name)
		}
	}
	return out, nil
}

func summarizeScan(results []ScanResult) Summary {
	s := Summary{Instruments: len(results)}
	for _, r := range results {
		if len(r.Errors) > 0 {
			s.Failed++
		}
		if r.Signal {
			s.Signals++
		}
	}
	return s
}
