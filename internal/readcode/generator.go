package readcode

import (
	"fmt"
	"math/rand"
)

// MaxAttempts caps the bounded retry loops of Mutate and Cross.
const MaxAttempts = 100

// Generator builds and varies codes under an arity window.
type Generator struct {
	rng    *rand.Rand
	window Window
}

func NewGenerator(rng *rand.Rand, window Window) (*Generator, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &Generator{rng: rng, window: window}, nil
}

func (g *Generator) Window() Window {
	return g.window
}

// Random returns a uniformly stepped random code of exactly n nodes. At each
// node the digit is drawn from those that keep the remaining nodes able to
// close every open slot, so the last digit is always 0.
func (g *Generator) Random(n int) (Code, error) {
	if n < 1 || !g.window.Feasible(n) {
		return nil, fmt.Errorf("%w: length %d, window [%d,%d]", ErrInfeasibleLength, n, g.window.Min, g.window.Max)
	}
	code := make(Code, n)
	open := 1
	candidates := make([]int, 0, 8)
	for i := 0; i < n; i++ {
		rest := n - i - 1
		candidates = candidates[:0]
		limit := rest
		if hi := g.window.hi(); limit > hi {
			limit = hi
		}
		for d := 0; d <= limit; d++ {
			if g.window.Allows(d) && g.window.completes(rest, open-1+d) {
				candidates = append(candidates, d)
			}
		}
		d := candidates[g.rng.Intn(len(candidates))]
		code[i] = uint8(d)
		open += d - 1
	}
	return code, nil
}

func (g *Generator) mustRandom(n int) Code {
	code, err := g.Random(n)
	if err != nil {
		panic(fmt.Sprintf("readcode: %v", err))
	}
	return code
}

// feasibleAtMost returns the largest feasible length in [1,n]. Length 1 is
// always feasible.
func (g *Generator) feasibleAtMost(n int) int {
	for ; n > 1; n-- {
		if g.window.Feasible(n) {
			return n
		}
	}
	return 1
}

// position picks a non-root node, or the root of a single-node tree.
func (g *Generator) position(code Code) int {
	if len(code) == 1 {
		return 0
	}
	return 1 + g.rng.Intn(len(code)-1)
}

// MutateOptions bounds a mutation. Zero fields are unbounded, except MaxSpan
// which defaults to the parent length.
type MutateOptions struct {
	MinSpan  int
	MaxSpan  int
	MinTotal int
	MaxTotal int
}

func (o MutateOptions) fits(n int) bool {
	return fitsTotal(n, o.MinTotal, o.MaxTotal)
}

func (o MutateOptions) spanRange(parentLen int) (int, int) {
	lo, hi := o.MinSpan, o.MaxSpan
	if lo < 1 {
		lo = 1
	}
	if hi <= 0 {
		hi = parentLen
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Mutation records where a mutation happened: the subtree of OldLen nodes at
// Pos was replaced by NewLen fresh nodes.
type Mutation struct {
	Pos    int
	OldLen int
	NewLen int
}

// Mutate replaces a random subtree with a fresh random one and returns the
// new code. When the result misses [MinTotal,MaxTotal] it retries up to
// MaxAttempts times and keeps the last attempt. code is not modified.
func (g *Generator) Mutate(code Code, opts MutateOptions) (Code, Mutation) {
	if err := code.Validate(); err != nil {
		panic(fmt.Sprintf("readcode: mutate: %v", err))
	}
	lo, hi := opts.spanRange(len(code))
	var (
		out Code
		m   Mutation
	)
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		pos := g.position(code)
		oldLen := code.SubtreeLen(pos)
		n := g.feasibleAtMost(lo + g.rng.Intn(hi-lo+1))
		out = Splice(code, pos, oldLen, g.mustRandom(n))
		m = Mutation{Pos: pos, OldLen: oldLen, NewLen: n}
		if opts.fits(len(out)) {
			break
		}
	}
	return out, m
}

// CrossOptions bounds a crossover. PinA and PinB, when set, fix the
// position used in the corresponding parent on every attempt.
type CrossOptions struct {
	PinA     *int
	PinB     *int
	MinTotal int
	MaxTotal int
}

func (o CrossOptions) fits(a, b int) bool {
	return fitsTotal(a, o.MinTotal, o.MaxTotal) && fitsTotal(b, o.MinTotal, o.MaxTotal)
}

// Crossover records the exchanged spans.
type Crossover struct {
	PosA int
	LenA int
	PosB int
	LenB int
}

// Cross swaps a random subtree of a with a random subtree of b. When either
// parent is a single node the only legal exchange is the two whole trees.
// Length bounds are retried up to MaxAttempts times; the last positions
// tried are kept when nothing fits. Neither parent is modified.
func (g *Generator) Cross(a, b Code, opts CrossOptions) (Code, Code, Crossover) {
	if err := a.Validate(); err != nil {
		panic(fmt.Sprintf("readcode: cross: first parent: %v", err))
	}
	if err := b.Validate(); err != nil {
		panic(fmt.Sprintf("readcode: cross: second parent: %v", err))
	}
	checkPin(opts.PinA, a)
	checkPin(opts.PinB, b)

	single := len(a) == 1 || len(b) == 1
	fixed := single || (opts.PinA != nil && opts.PinB != nil)
	var (
		ca, cb Code
		x      Crossover
	)
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		pa, pb := 0, 0
		if !single {
			pa = pick(g, opts.PinA, a)
			pb = pick(g, opts.PinB, b)
		}
		la, lb := a.SubtreeLen(pa), b.SubtreeLen(pb)
		ca = Splice(a, pa, la, b[pb:pb+lb])
		cb = Splice(b, pb, lb, a[pa:pa+la])
		x = Crossover{PosA: pa, LenA: la, PosB: pb, LenB: lb}
		// A single-node parent or two pins leave one possible exchange, which
		// is returned even when it misses the length bounds.
		if fixed || opts.fits(len(ca), len(cb)) {
			break
		}
	}
	return ca, cb, x
}

func pick(g *Generator, pin *int, code Code) int {
	if pin != nil {
		return *pin
	}
	return g.position(code)
}

func checkPin(pin *int, code Code) {
	if pin != nil && (*pin < 0 || *pin >= len(code)) {
		panic(fmt.Sprintf("readcode: pinned position %d out of range [0,%d)", *pin, len(code)))
	}
}

func fitsTotal(n, lo, hi int) bool {
	if lo > 0 && n < lo {
		return false
	}
	if hi > 0 && n > hi {
		return false
	}
	return true
}
