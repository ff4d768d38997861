package symbolic

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"symreg/internal/readcode"
)

// Tree is an immutable expression tree: a code plus one symbol per node.
// Subtree spans and the formatted formula are derived on first use.
type Tree struct {
	reg     *Registry
	code    readcode.Code
	symbols []Symbol

	spansOnce   sync.Once
	spans       []int
	formulaOnce sync.Once
	formula     string
}

// NewTree copies code and symbols into a tree after checking that they
// describe one well-formed expression.
func NewTree(reg *Registry, code readcode.Code, symbols []Symbol) (*Tree, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if err := check(code, symbols); err != nil {
		return nil, err
	}
	return &Tree{reg: reg, code: code.Clone(), symbols: append([]Symbol(nil), symbols...)}, nil
}

// build takes ownership of code and symbols. Mismatches panic: they can
// only come from a bug in variation.
func build(reg *Registry, code readcode.Code, symbols []Symbol) *Tree {
	if err := check(code, symbols); err != nil {
		panic(fmt.Sprintf("symbolic: %v", err))
	}
	return &Tree{reg: reg, code: code, symbols: symbols}
}

func check(code readcode.Code, symbols []Symbol) error {
	if err := code.Validate(); err != nil {
		return err
	}
	if len(code) != len(symbols) {
		return fmt.Errorf("code has %d nodes but %d symbols", len(code), len(symbols))
	}
	for i, s := range symbols {
		switch s.Kind {
		case SymbolVariable, SymbolConstant:
		case SymbolOperator:
			if _, ok := Lookup(s.Op); !ok {
				return fmt.Errorf("node %d: %w: kind %d", i, ErrUnknownOperator, uint8(s.Op))
			}
		default:
			return fmt.Errorf("node %d: unknown symbol kind %d", i, uint8(s.Kind))
		}
		if a := s.Arity(); a != int(code[i]) {
			return fmt.Errorf("node %d: arity mismatch: digit %d, symbol arity %d", i, code[i], a)
		}
	}
	return nil
}

func (t *Tree) Len() int {
	return len(t.code)
}

func (t *Tree) Registry() *Registry {
	return t.reg
}

func (t *Tree) Code() readcode.Code {
	return t.code.Clone()
}

func (t *Tree) Symbols() []Symbol {
	return append([]Symbol(nil), t.symbols...)
}

func (t *Tree) spanAt(pos int) int {
	t.spansOnce.Do(func() {
		t.spans = t.code.Spans()
	})
	return t.spans[pos]
}

// Eval evaluates the tree at x. Out-of-domain operands give NaN, which
// propagates to the result.
func (t *Tree) Eval(x float64) float64 {
	return t.evalAt(0, x)
}

// EvalAll evaluates the tree at every sample.
func (t *Tree) EvalAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = t.evalAt(0, x)
	}
	return out
}

func (t *Tree) evalAt(pos int, x float64) float64 {
	s := t.symbols[pos]
	switch s.Kind {
	case SymbolVariable:
		return x
	case SymbolConstant:
		return s.Value
	}
	op := mustOperator(s.Op)
	args := make([]float64, op.Arity)
	child := pos + 1
	for i := range args {
		args[i] = t.evalAt(child, x)
		child += t.spanAt(child)
	}
	return op.eval(args)
}

// String formats the tree as a formula. Two trees are structurally equal
// exactly when their formulas match.
func (t *Tree) String() string {
	t.formulaOnce.Do(func() {
		t.formula = t.formatAt(0)
	})
	return t.formula
}

func (t *Tree) Key() string {
	return t.String()
}

func (t *Tree) Equal(other *Tree) bool {
	return other != nil && t.String() == other.String()
}

func (t *Tree) formatAt(pos int) string {
	s := t.symbols[pos]
	switch s.Kind {
	case SymbolVariable:
		return t.reg.variable
	case SymbolConstant:
		return formatConstant(s.Value)
	}
	op := mustOperator(s.Op)
	args := make([]string, op.Arity)
	child := pos + 1
	for i := range args {
		args[i] = t.formatAt(child)
		child += t.spanAt(child)
	}
	return op.format(args)
}

func formatConstant(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if v < 0 || math.Signbit(v) {
		return "(" + s + ")"
	}
	return s
}

// Canonicalize removes, in one left-to-right pass, every unary operator
// applied directly to its registered inverse, and every min/max over two
// identical leaves. Each match shortens the tree by two nodes. Collapses
// exposed by an earlier removal are not revisited.
func (t *Tree) Canonicalize() *Tree {
	code := make(readcode.Code, 0, len(t.code))
	symbols := make([]Symbol, 0, len(t.symbols))
	for i := 0; i < len(t.code); {
		switch {
		case t.inversePairAt(i):
			i += 2
		case t.identicalExtremumAt(i):
			code = append(code, 0)
			symbols = append(symbols, t.symbols[i+1])
			i += 3
		default:
			code = append(code, t.code[i])
			symbols = append(symbols, t.symbols[i])
			i++
		}
	}
	if len(code) == len(t.code) {
		return t
	}
	return build(t.reg, code, symbols)
}

func (t *Tree) inversePairAt(i int) bool {
	if i+1 >= len(t.symbols) {
		return false
	}
	parent, child := t.symbols[i], t.symbols[i+1]
	if parent.Kind != SymbolOperator || child.Kind != SymbolOperator {
		return false
	}
	op := mustOperator(parent.Op)
	return op.Arity == 1 && op.Inverse != OpInvalid && op.Inverse == child.Op && mustOperator(child.Op).Arity == 1
}

func (t *Tree) identicalExtremumAt(i int) bool {
	if i+2 >= len(t.symbols) {
		return false
	}
	s := t.symbols[i]
	if s.Kind != SymbolOperator || (s.Op != OpMin && s.Op != OpMax) {
		return false
	}
	if t.code[i+1] != 0 || t.code[i+2] != 0 {
		return false
	}
	return sameLeaf(t.symbols[i+1], t.symbols[i+2])
}

func sameLeaf(a, b Symbol) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case SymbolVariable:
		return true
	case SymbolConstant:
		return a.Value == b.Value
	default:
		return a.Op == b.Op
	}
}
