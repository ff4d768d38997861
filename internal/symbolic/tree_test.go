package symbolic

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"symreg/internal/readcode"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(RegistryConfig{
		Operators: []string{"add", "sub", "mul", "div", "mod", "min", "max", "neg", "sqrt", "sqr", "ln", "exp", "sin", "asin"},
		Variable:  "x",
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func mustTree(t *testing.T, reg *Registry, code string, symbols ...Symbol) *Tree {
	t.Helper()
	c, err := readcode.Parse(code)
	if err != nil {
		t.Fatalf("parse code %q: %v", code, err)
	}
	tree, err := NewTree(reg, c, symbols)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	return tree
}

func TestEvaluateSum(t *testing.T) {
	reg := testRegistry(t)
	tree := mustTree(t, reg, "200", Op(OpAdd), Var(), Var())
	if got := tree.Eval(3); got != 6 {
		t.Fatalf("x+x at 3: got=%v want=6", got)
	}
	if tree.String() != "(x + x)" {
		t.Fatalf("unexpected formula: %s", tree)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	reg := testRegistry(t)
	b, err := NewBuilder(reg, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	for n := 1; n < 30; n++ {
		tree, err := b.Random(n)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		first := tree.Eval(0.7)
		second := tree.Eval(0.7)
		if first != second && !(math.IsNaN(first) && math.IsNaN(second)) {
			t.Fatalf("%s: %v then %v", tree, first, second)
		}
	}
}

func TestDomainErrorsYieldNaN(t *testing.T) {
	reg := testRegistry(t)
	cases := []struct {
		name string
		tree *Tree
		x    float64
	}{
		{"sqrt negative", mustTree(t, reg, "10", Op(OpSqrt), Var()), -1},
		{"ln zero", mustTree(t, reg, "10", Op(OpLn), Var()), 0},
		{"ln negative", mustTree(t, reg, "10", Op(OpLn), Var()), -2},
		{"div by zero", mustTree(t, reg, "200", Op(OpDiv), Const(1), Var()), 0},
		{"mod by zero", mustTree(t, reg, "200", Op(OpMod), Const(1), Var()), 0},
		{"asin out of range", mustTree(t, reg, "10", Op(OpAsin), Var()), 2},
		{"propagates", mustTree(t, reg, "2010", Op(OpAdd), Var(), Op(OpLn), Var()), -1},
	}
	for _, tc := range cases {
		if got := tc.tree.Eval(tc.x); !math.IsNaN(got) {
			t.Fatalf("%s: expected NaN, got %v", tc.name, got)
		}
	}
}

func TestNestedEvaluationOrder(t *testing.T) {
	reg := testRegistry(t)
	tree := mustTree(t, reg, "22000", Op(OpSub), Op(OpDiv), Var(), Const(4), Const(1))
	if got := tree.Eval(8); got != 1 {
		t.Fatalf("(x/4)-1 at 8: got=%v", got)
	}
	if tree.String() != "((x / 4) - 1)" {
		t.Fatalf("unexpected formula: %s", tree)
	}
}

func TestFormatNegativeConstant(t *testing.T) {
	reg := testRegistry(t)
	tree := mustTree(t, reg, "200", Op(OpMul), Const(-1.5), Var())
	if tree.String() != "((-1.5) * x)" {
		t.Fatalf("unexpected formula: %s", tree)
	}
}

func TestNewTreeRejectsArityMismatch(t *testing.T) {
	reg := testRegistry(t)
	if _, err := NewTree(reg, readcode.Code{2, 0, 0}, []Symbol{Op(OpSin), Var(), Var()}); err == nil {
		t.Fatal("expected arity mismatch error")
	}
	if _, err := NewTree(reg, readcode.Code{1, 0}, []Symbol{Op(OpSin)}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if _, err := NewTree(reg, readcode.Code{0, 0}, []Symbol{Var(), Var()}); err == nil {
		t.Fatal("expected malformed code error")
	}
}

func TestCanonicalizeInversePair(t *testing.T) {
	reg := testRegistry(t)
	tree := mustTree(t, reg, "110", Op(OpSin), Op(OpAsin), Var())
	canon := tree.Canonicalize()
	if canon.String() != "x" {
		t.Fatalf("unexpected canonical formula: %s", canon)
	}
	if canon.Len() != tree.Len()-2 {
		t.Fatalf("expected length %d, got %d", tree.Len()-2, canon.Len())
	}
	if tree.String() != "sin(asin(x))" {
		t.Fatalf("canonicalize modified its input: %s", tree)
	}
}

func TestCanonicalizeIdenticalMinMax(t *testing.T) {
	reg := testRegistry(t)
	tree := mustTree(t, reg, "212000", Op(OpAdd), Op(OpSquare), Op(OpMin), Var(), Var(), Var())
	canon := tree.Canonicalize()
	if canon.String() != "(sqr(x) + x)" {
		t.Fatalf("unexpected canonical formula: %s", canon)
	}

	tree = mustTree(t, reg, "200", Op(OpMax), Const(2), Const(3))
	if tree.Canonicalize() != tree {
		t.Fatal("expected distinct constants to stay")
	}
}

func TestCanonicalizeIsSinglePass(t *testing.T) {
	reg := testRegistry(t)
	negs := mustTree(t, reg, "11110", Op(OpNeg), Op(OpNeg), Op(OpNeg), Op(OpNeg), Var())
	if got := negs.Canonicalize().String(); got != "x" {
		t.Fatalf("adjacent pairs: got %s", got)
	}

	nested := mustTree(t, reg, "11110", Op(OpSin), Op(OpSin), Op(OpAsin), Op(OpAsin), Var())
	once := nested.Canonicalize()
	if once.String() != "sin(asin(x))" || once.Len() != 3 {
		t.Fatalf("expected one pass to leave sin(asin(x)), got %s", once)
	}
	if once.Canonicalize().String() != "x" {
		t.Fatalf("second pass should finish the collapse")
	}
}

func TestCrossWithConstantLeaf(t *testing.T) {
	reg := testRegistry(t)
	b, err := NewBuilder(reg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	sum := mustTree(t, reg, "200", Op(OpAdd), Var(), Var())
	five := mustTree(t, reg, "0", Const(5))

	first, second, _ := b.Cross(sum, five, readcode.CrossOptions{})
	if first.String() != "5" || second.String() != "(x + x)" {
		t.Fatalf("unexpected children %s and %s", first, second)
	}
	if second.Eval(3) != 6 || first.Eval(3) != 5 {
		t.Fatalf("children evaluate wrongly")
	}
}

func TestMutatePreservesSymbolsOutsideSpan(t *testing.T) {
	reg := testRegistry(t)
	b, err := NewBuilder(reg, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	for trial := 0; trial < 100; trial++ {
		parent, err := b.Random(4 + trial%15)
		if err != nil {
			t.Fatalf("random: %v", err)
		}
		child, m := b.Mutate(parent, readcode.MutateOptions{})
		ps, cs := parent.Symbols(), child.Symbols()
		for i := 0; i < m.Pos; i++ {
			if ps[i] != cs[i] {
				t.Fatalf("prefix symbol %d changed", i)
			}
		}
		pt, ct := ps[m.Pos+m.OldLen:], cs[m.Pos+m.NewLen:]
		if len(pt) != len(ct) {
			t.Fatalf("suffix length changed")
		}
		for i := range pt {
			if pt[i] != ct[i] {
				t.Fatalf("suffix symbol %d changed", i)
			}
		}
	}
}

func TestCrossKeepsSymbolsWithNodes(t *testing.T) {
	reg := testRegistry(t)
	b, _ := NewBuilder(reg, rand.New(rand.NewSource(3)))
	x := mustTree(t, reg, "2100", Op(OpAdd), Op(OpSin), Var(), Const(2))
	y := mustTree(t, reg, "200", Op(OpMul), Const(3), Var())
	pinX, pinY := 1, 1
	cx, cy, _ := b.Cross(x, y, readcode.CrossOptions{PinA: &pinX, PinB: &pinY})
	if cx.String() != "(3 + 2)" || cy.String() != "(sin(x) * x)" {
		t.Fatalf("unexpected children %s and %s", cx, cy)
	}
}

func TestAttachSymbolsMatchesArity(t *testing.T) {
	reg, err := NewRegistry(RegistryConfig{
		Operators: []string{"add", "sin", "ifpos", "pi"},
		Constants: ConstantPolicy{Enabled: true, Probability: 0.5, Min: -1, Max: 1},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if w := reg.Window(); w.Min != 1 || w.Max != 3 {
		t.Fatalf("unexpected window %+v", w)
	}
	b, _ := NewBuilder(reg, rand.New(rand.NewSource(5)))
	sawConst, sawPi := false, false
	for n := 1; n < 40; n++ {
		tree, err := b.Random(n)
		if err != nil {
			t.Fatalf("random(%d): %v", n, err)
		}
		for _, s := range tree.Symbols() {
			switch {
			case s.Kind == SymbolConstant:
				sawConst = true
				if s.Value < -1 || s.Value > 1 {
					t.Fatalf("constant %v outside range", s.Value)
				}
			case s.Kind == SymbolOperator && s.Op == OpPi:
				sawPi = true
			}
		}
	}
	if !sawConst || !sawPi {
		t.Fatalf("expected constants and pi leaves, const=%t pi=%t", sawConst, sawPi)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	cases := []RegistryConfig{
		{},
		{Operators: []string{"nope"}},
		{Operators: []string{"add", "add"}},
		{Operators: []string{"pi"}},
		{Operators: []string{"neg", "ifpos"}},
		{Operators: []string{"add"}, Variable: "sin"},
		{Operators: []string{"add"}, Variable: "1x"},
		{Operators: []string{"add"}, Constants: ConstantPolicy{Enabled: true, Probability: 2}},
		{Operators: []string{"add"}, Constants: ConstantPolicy{Enabled: true, Min: 3, Max: 1}},
	}
	for i, cfg := range cases {
		if _, err := NewRegistry(cfg); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, cfg)
		}
	}
	reg, err := NewRegistry(DefaultRegistryConfig())
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	if strings.Join(reg.Names(), ",") != strings.Join(DefaultRegistryConfig().Operators, ",") {
		t.Fatalf("unexpected names %v", reg.Names())
	}
}

func TestSymbolCodecRebuildsTree(t *testing.T) {
	reg := testRegistry(t)
	tree := mustTree(t, reg, "2010", Op(OpAdd), Const(-0.25), Op(OpSin), Var())
	symbols, err := DecodeSymbols(EncodeSymbols(tree.Symbols()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rebuilt, err := NewTree(reg, tree.Code(), symbols)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if !rebuilt.Equal(tree) {
		t.Fatalf("rebuilt %s, want %s", rebuilt, tree)
	}
	if _, err := DecodeSymbols([]string{"bogus"}); err == nil {
		t.Fatal("expected unknown operator error")
	}
}
