package series

import "math"

func (x Float) cmp(f func(v float64) bool) Bool {
	out := make(Bool, len(x))
	for i, v := range x {
		out[i] = !math.IsNaN(v) && f(v)
	}
	return out
}

func (x Float) cmpSeries(y Float, f func(a, b float64) bool) Bool {
	out := make(Bool, len(x))
	for i := 0; i < len(x) && i < len(y); i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		out[i] = f(x[i], y[i])
	}
	return out
}

// Greater is x > v; NaN compares false.
func (x Float) Greater(v float64) Bool { return x.cmp(func(a float64) bool { return a > v }) }

// Less is x < v.
func (x Float) Less(v float64) Bool { return x.cmp(func(a float64) bool { return a < v }) }

// AtLeast is x >= v.
func (x Float) AtLeast(v float64) Bool { return x.cmp(func(a float64) bool { return a >= v }) }

// AtMost is x <= v.
func (x Float) AtMost(v float64) Bool { return x.cmp(func(a float64) bool { return a <= v }) }

// Above is x > y pointwise.
func (x Float) Above(y Float) Bool {
	return x.cmpSeries(y, func(a, b float64) bool { return a > b })
}

// Below is x < y pointwise.
func (x Float) Below(y Float) Bool {
	return x.cmpSeries(y, func(a, b float64) bool { return a < b })
}

// Equal is x == v.
func (x Float) Equal(v float64) Bool { return x.cmp(func(a float64) bool { return a == v }) }

func (x Float) mapf(f func(v float64) float64) Float {
	out := make(Float, len(x))
	for i, v := range x {
		out[i] = f(v)
	}
	return out
}

func (x Float) zip(y Float, f func(a, b float64) float64) Float {
	out := NaNs(len(x))
	for i := 0; i < len(x) && i < len(y); i++ {
		out[i] = f(x[i], y[i])
	}
	return out
}

// Scale multiplies every point by k.
func (x Float) Scale(k float64) Float { return x.mapf(func(v float64) float64 { return v * k }) }

// AddScalar adds k to every point.
func (x Float) AddScalar(k float64) Float { return x.mapf(func(v float64) float64 { return v + k }) }

// Abs is the pointwise absolute value.
func (x Float) Abs() Float { return x.mapf(math.Abs) }

// Add sums pointwise; NaN on either side gives NaN.
func (x Float) Add(y Float) Float { return x.zip(y, func(a, b float64) float64 { return a + b }) }

// Sub is x - y pointwise.
func (x Float) Sub(y Float) Float { return x.zip(y, func(a, b float64) float64 { return a - b }) }

// Mul is x * y pointwise.
func (x Float) Mul(y Float) Float { return x.zip(y, func(a, b float64) float64 { return a * b }) }

// Div divides pointwise; a zero divisor gives NaN.
func (x Float) Div(y Float) Float {
	return x.zip(y, func(a, b float64) float64 {
		if b == 0 {
			return math.NaN()
		}
		return a / b
	})
}

// And is the pointwise conjunction.
func (b Bool) And(o Bool) Bool {
	out := make(Bool, len(b))
	for i := 0; i < len(b) && i < len(o); i++ {
		out[i] = b[i] && o[i]
	}
	return out
}

// Or is the pointwise disjunction.
func (b Bool) Or(o Bool) Bool {
	out := make(Bool, len(b))
	for i := range b {
		out[i] = b[i] || (i < len(o) && o[i])
	}
	return out
}

// Not negates every point.
func (b Bool) Not() Bool {
	out := make(Bool, len(b))
	for i, v := range b {
		out[i] = !v
	}
	return out
}

// AndAll folds a list of conditions with And. With no conditions every
// point of the length-n result is true.
func AndAll(n int, conds ...Bool) Bool {
	out := make(Bool, n)
	for i := range out {
		out[i] = true
	}
	for _, c := range conds {
		out = out.And(c)
	}
	return out
}

// Greater is b > v for a bar-count series.
func (x Int) Greater(v int) Bool {
	out := make(Bool, len(x))
	for i, n := range x {
		out[i] = n > v
	}
	return out
}

// AtLeast is b >= v for a bar-count series.
func (x Int) AtLeast(v int) Bool {
	out := make(Bool, len(x))
	for i, n := range x {
		out[i] = n >= v
	}
	return out
}
