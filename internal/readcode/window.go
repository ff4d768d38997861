package readcode

import (
	"errors"
	"fmt"
	"math"
)

var ErrInfeasibleLength = errors.New("no tree of this length fits the arity window")

// Window bounds the child count of internal nodes. Leaves (digit 0) are
// always allowed. A zero Min or Max means no limit on that side.
type Window struct {
	Min int
	Max int
}

func (w Window) Validate() error {
	if w.Min < 0 || w.Max < 0 {
		return fmt.Errorf("arity window bounds must be >= 0: [%d,%d]", w.Min, w.Max)
	}
	if w.Max > math.MaxUint8 {
		return fmt.Errorf("arity window max must be <= %d: %d", math.MaxUint8, w.Max)
	}
	if w.Max > 0 && w.Min > w.Max {
		return fmt.Errorf("arity window min %d exceeds max %d", w.Min, w.Max)
	}
	return nil
}

// Allows reports whether d is a legal digit under w.
func (w Window) Allows(d int) bool {
	if d == 0 {
		return true
	}
	return d >= w.lo() && d <= w.hi()
}

// Contains reports whether every digit of code is legal under w.
func (w Window) Contains(code Code) bool {
	for _, d := range code {
		if !w.Allows(int(d)) {
			return false
		}
	}
	return true
}

// Feasible reports whether a tree of exactly n nodes exists under w.
func (w Window) Feasible(n int) bool {
	return w.completes(n, 1)
}

func (w Window) lo() int {
	if w.Min < 1 {
		return 1
	}
	return w.Min
}

func (w Window) hi() int {
	if w.Max == 0 {
		return math.MaxUint8
	}
	return w.Max
}

// completes reports whether m more nodes can close exactly open pending
// child slots. Placing every internal node first never closes the tree
// early, so only the digit total matters: the internal digits must sum to
// m-open, using some count I of internal nodes with I*lo <= m-open <= I*hi.
func (w Window) completes(m, open int) bool {
	if m == 0 {
		return open == 0
	}
	if open <= 0 {
		return false
	}
	t := m - open
	if t < 0 {
		return false
	}
	if t == 0 {
		return true
	}
	lo, hi := w.lo(), w.hi()
	if hi > t {
		hi = t
	}
	if lo > hi {
		return false
	}
	fewest := (t + hi - 1) / hi
	most := t / lo
	return fewest <= most
}
