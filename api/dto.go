package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"xuangu/model"
	"xuangu/signal"
)

const dateLayout = "2006-01-02"

// errBadRequest 请求体或参数不合法
var errBadRequest = errors.New("bad request")

// BarDTO 日K请求体，日期为 YYYY-MM-DD
type BarDTO struct {
	Date         string  `json:"date"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
	Volume       int64   `json:"volume"`
	TurnoverRate float64 `json:"turnover_rate,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Name         string  `json:"name,omitempty"`
}

// SeriesDTO 单只股票的日K序列
type SeriesDTO struct {
	Code        string   `json:"code"`
	Bars        []BarDTO `json:"bars"`
	HasTurnover bool     `json:"has_turnover"`
	HasAmount   bool     `json:"has_amount"`
}

// SignalDTO 日期对齐的布尔序列
type SignalDTO struct {
	Dates  []string `json:"dates"`
	Values []bool   `json:"values"`
}

// StrategyDTO 预设名加可选的字段覆盖
type StrategyDTO struct {
	Preset    string          `json:"preset"`
	Overrides json.RawMessage `json:"overrides,omitempty"`
}

// GateRequest POST /api/gate
type GateRequest struct {
	Benchmark SeriesDTO          `json:"benchmark"`
	Start     string             `json:"start,omitempty"`
	End       string             `json:"end,omitempty"`
	Gate      *signal.GateConfig `json:"gate,omitempty"`
}

// EntryRequest POST /api/entry。gate 与 benchmark 二选一，都不给则不做大盘择时。
type EntryRequest struct {
	Bars      SeriesDTO   `json:"bars"`
	Gate      *SignalDTO  `json:"gate,omitempty"`
	Benchmark *SeriesDTO  `json:"benchmark,omitempty"`
	Start     string      `json:"start,omitempty"`
	End       string      `json:"end,omitempty"`
	Target    string      `json:"target,omitempty"`
	Fast      bool        `json:"fast,omitempty"`
	Base      bool        `json:"base,omitempty"`
	Explain   bool        `json:"explain,omitempty"`
	Strategy  StrategyDTO `json:"strategy"`
}

// ExitRequest POST /api/exit。entry 给序列，或者 entry_scalar + entry_date
type ExitRequest struct {
	Bars        SeriesDTO   `json:"bars"`
	Entry       *SignalDTO  `json:"entry,omitempty"`
	EntryScalar *bool       `json:"entry_scalar,omitempty"`
	EntryDate   string      `json:"entry_date,omitempty"`
	Start       string      `json:"start,omitempty"`
	End         string      `json:"end,omitempty"`
	Strategy    StrategyDTO `json:"strategy"`
}

// EvaluateRequest POST /api/evaluate：买入序列 + 卖出序列 + 持仓记录
type EvaluateRequest struct {
	Bars      SeriesDTO   `json:"bars"`
	Gate      *SignalDTO  `json:"gate,omitempty"`
	Benchmark *SeriesDTO  `json:"benchmark,omitempty"`
	Start     string      `json:"start,omitempty"`
	End       string      `json:"end,omitempty"`
	Strategy  StrategyDTO `json:"strategy"`
}

// PositionDTO 持仓记录
type PositionDTO struct {
	EntryDate   string               `json:"entry_date"`
	EntryClose  float64              `json:"entry_close"`
	ExitDate    string               `json:"exit_date,omitempty"`
	ExitClose   float64              `json:"exit_close,omitempty"`
	State       signal.PositionState `json:"state"`
	HoldingDays int                  `json:"holding_days"`
	Return      float64              `json:"return"`
	PeakReturn  float64              `json:"peak_return"`
	Reasons     []string             `json:"reasons,omitempty"`
}

// decodeStrict 拒绝未知字段，避免参数名拼错被静默忽略
func decodeStrict(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", model.ErrMalformedInput, s)
	}
	return t, nil
}

func parseWindow(start, end string) (signal.Window, error) {
	s, err := parseDate(start)
	if err != nil {
		return signal.Window{}, err
	}
	e, err := parseDate(end)
	if err != nil {
		return signal.Window{}, err
	}
	return signal.Window{Start: s, End: e}, nil
}

// toSeries 转成引擎使用的日K序列（校验交给引擎）
func (d SeriesDTO) toSeries() (model.BarSeries, error) {
	out := model.BarSeries{
		Code:        d.Code,
		Bars:        make([]model.Bar, 0, len(d.Bars)),
		HasTurnover: d.HasTurnover,
		HasAmount:   d.HasAmount,
	}
	for _, b := range d.Bars {
		t, err := parseDate(b.Date)
		if err != nil {
			return model.BarSeries{}, err
		}
		out.Bars = append(out.Bars, model.Bar{
			Date:         t,
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			TurnoverRate: b.TurnoverRate,
			Amount:       b.Amount,
			Name:         b.Name,
		})
	}
	return out, nil
}

func (d SignalDTO) toDatesValues() ([]time.Time, []bool, error) {
	if len(d.Dates) != len(d.Values) {
		return nil, nil, fmt.Errorf("%w: %d dates but %d values", model.ErrMalformedInput, len(d.Dates), len(d.Values))
	}
	dates := make([]time.Time, len(d.Dates))
	for i, s := range d.Dates {
		t, err := parseDate(s)
		if err != nil {
			return nil, nil, err
		}
		dates[i] = t
	}
	return dates, d.Values, nil
}

func (d SignalDTO) toGate(code string) (model.GateSeries, error) {
	dates, values, err := d.toDatesValues()
	if err != nil {
		return model.GateSeries{}, err
	}
	return model.GateSeries{Code: code, Dates: dates, Values: values}, nil
}

func (d SignalDTO) toSignal() (model.SignalSeries, error) {
	dates, values, err := d.toDatesValues()
	if err != nil {
		return model.SignalSeries{}, err
	}
	return model.SignalSeries{Dates: dates, Values: values}, nil
}

// resolve 取预设再覆盖字段，覆盖里同样不允许未知字段
func (d StrategyDTO) resolve(fallback string) (signal.StrategyConfig, error) {
	name := d.Preset
	if name == "" {
		name = fallback
	}
	cfg, err := signal.Preset(name)
	if err != nil {
		return signal.StrategyConfig{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(d.Overrides) > 0 && !bytes.Equal(d.Overrides, []byte("null")) {
		if err := decodeStrict(bytes.NewReader(d.Overrides), &cfg); err != nil {
			return signal.StrategyConfig{}, err
		}
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return signal.StrategyConfig{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return cfg, nil
}

func fromSignal(s model.SignalSeries) SignalDTO {
	return fromDatesValues(s.Dates, s.Values)
}

func formatDates(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format(dateLayout)
	}
	return out
}

func fromGate(g model.GateSeries) SignalDTO {
	return fromDatesValues(g.Dates, g.Values)
}

func fromDatesValues(dates []time.Time, values []bool) SignalDTO {
	out := SignalDTO{Dates: make([]string, len(dates)), Values: values}
	for i, d := range dates {
		out.Dates[i] = d.Format(dateLayout)
	}
	if out.Values == nil {
		out.Values = []bool{}
	}
	return out
}

func fromPositions(ps []signal.Position) []PositionDTO {
	out := make([]PositionDTO, 0, len(ps))
	for _, p := range ps {
		d := PositionDTO{
			EntryDate:   p.EntryDate.Format(dateLayout),
			EntryClose:  p.EntryClose,
			State:       p.State,
			HoldingDays: p.HoldingDays,
			Return:      p.Return,
			PeakReturn:  p.PeakReturn,
			Reasons:     p.Reasons,
		}
		if p.State == signal.StateExited {
			d.ExitDate = p.ExitDate.Format(dateLayout)
			d.ExitClose = p.ExitClose
		}
		out = append(out, d)
	}
	return out
}
