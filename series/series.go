// Package series holds the trailing-window primitives the signal rules are
// built from. Every function reads positions at or before the output index
// only; undefined points are NaN for Float and false for Bool.
package series

import "math"

// Float is a numeric series, NaN marks an undefined point.
type Float []float64

// Bool is a condition series.
type Bool []bool

// Int is a bar-count series.
type Int []int

// NaNs returns a length-n series with every point undefined.
func NaNs(n int) Float {
	out := make(Float, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Const returns a series of length n filled with v.
func Const(n int, v float64) Float {
	out := make(Float, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Lag returns x shifted n bars back. Lag(x, 0) is a copy of x.
func Lag(x Float, n int) Float {
	out := NaNs(len(x))
	if n < 0 {
		return out
	}
	for i := n; i < len(x); i++ {
		out[i] = x[i-n]
	}
	return out
}

// LagBool shifts a condition n bars back, filling the head with false.
func LagBool(b Bool, n int) Bool {
	out := make(Bool, len(b))
	if n < 0 {
		return out
	}
	for i := n; i < len(b); i++ {
		out[i] = b[i-n]
	}
	return out
}

// SMA is the trailing simple mean over w bars. The first w-1 points are NaN,
// so is any point whose window holds a NaN.
func SMA(x Float, w int) Float {
	out := NaNs(len(x))
	if w <= 0 {
		return out
	}
	sum := 0.0
	bad := 0
	for i, v := range x {
		if math.IsNaN(v) {
			bad++
		} else {
			sum += v
		}
		if i >= w {
			old := x[i-w]
			if math.IsNaN(old) {
				bad--
			} else {
				sum -= old
			}
		}
		if i >= w-1 && bad == 0 {
			out[i] = sum / float64(w)
		}
	}
	return out
}

// SmoothedMA is the recursive average y = (m*x + (n-m)*y') / n, seeded with
// the first defined value. NaN inputs carry the previous value forward.
func SmoothedMA(x Float, n int, m float64) Float {
	out := NaNs(len(x))
	if n <= 0 || m <= 0 || m > float64(n) {
		return out
	}
	prev := math.NaN()
	for i, v := range x {
		switch {
		case math.IsNaN(v):
		case math.IsNaN(prev):
			prev = v
		default:
			prev = (m*v + (float64(n)-m)*prev) / float64(n)
		}
		out[i] = prev
	}
	return out
}

// RollingMax is the trailing inclusive maximum over w bars.
func RollingMax(x Float, w int) Float {
	return rolling(x, w, math.Max)
}

// RollingMin is the trailing inclusive minimum over w bars.
func RollingMin(x Float, w int) Float {
	return rolling(x, w, math.Min)
}

func rolling(x Float, w int, pick func(a, b float64) float64) Float {
	out := NaNs(len(x))
	if w <= 0 {
		return out
	}
	for i := w - 1; i < len(x); i++ {
		acc := x[i-w+1]
		for j := i - w + 2; j <= i && !math.IsNaN(acc); j++ {
			if math.IsNaN(x[j]) {
				acc = math.NaN()
				break
			}
			acc = pick(acc, x[j])
		}
		out[i] = acc
	}
	return out
}

// CountTrue counts true points in the trailing w bars. The first w-1 points
// are NaN.
func CountTrue(b Bool, w int) Float {
	out := NaNs(len(b))
	if w <= 0 {
		return out
	}
	n := 0
	for i, v := range b {
		if v {
			n++
		}
		if i >= w && b[i-w] {
			n--
		}
		if i >= w-1 {
			out[i] = float64(n)
		}
	}
	return out
}

// ExistsTrue reports whether any of the trailing w bars is true.
func ExistsTrue(b Bool, w int) Bool {
	return CountTrue(b, w).Greater(0)
}

// BarsSinceTrue is 0 on a true bar and grows by one per false bar. Before the
// first true bar it counts from a virtual true bar just before the start, so
// position i holds i+1.
func BarsSinceTrue(b Bool) Int {
	out := make(Int, len(b))
	last := -1
	for i, v := range b {
		if v {
			last = i
		}
		out[i] = i - last
	}
	return out
}

// BarsSinceTrueStrict is BarsSinceTrue with -1 before the first true bar.
func BarsSinceTrueStrict(b Bool) Int {
	out := make(Int, len(b))
	last := -1
	for i, v := range b {
		if v {
			last = i
		}
		if last < 0 {
			out[i] = -1
			continue
		}
		out[i] = i - last
	}
	return out
}

// CrossesAbove is true where a moves from <= b to > b.
func CrossesAbove(a, b Float) Bool {
	out := make(Bool, len(a))
	for i := 1; i < len(a) && i < len(b); i++ {
		if anyNaN(a[i], b[i], a[i-1], b[i-1]) {
			continue
		}
		out[i] = a[i-1] <= b[i-1] && a[i] > b[i]
	}
	return out
}

// CrossesBelow is true where a moves from >= b to < b.
func CrossesBelow(a, b Float) Bool {
	out := make(Bool, len(a))
	for i := 1; i < len(a) && i < len(b); i++ {
		if anyNaN(a[i], b[i], a[i-1], b[i-1]) {
			continue
		}
		out[i] = a[i-1] >= b[i-1] && a[i] < b[i]
	}
	return out
}

// PctChange is the bar-over-bar change in percent. A zero previous value
// gives NaN.
func PctChange(x Float) Float {
	out := NaNs(len(x))
	for i := 1; i < len(x); i++ {
		if x[i-1] == 0 {
			continue
		}
		out[i] = (x[i]/x[i-1] - 1) * 100
	}
	return out
}

// Consecutive counts how many bars in a row up to and including i are true.
func Consecutive(b Bool) Int {
	out := make(Int, len(b))
	run := 0
	for i, v := range b {
		if v {
			run++
		} else {
			run = 0
		}
		out[i] = run
	}
	return out
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
