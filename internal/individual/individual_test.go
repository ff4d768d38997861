package individual

import (
	"math"
	"math/rand"
	"testing"

	"symreg/internal/readcode"
	"symreg/internal/symbolic"
)

func leaf(t *testing.T, v float64) *symbolic.Tree {
	t.Helper()
	reg, err := symbolic.NewRegistry(symbolic.DefaultRegistryConfig())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	tree, err := symbolic.NewTree(reg, readcode.Code{0}, []symbolic.Symbol{symbolic.Const(v)})
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	return tree
}

func TestFitnessStates(t *testing.T) {
	cases := []struct {
		f    Fitness
		want FitnessState
	}{
		{Fitness{}, Uninitialized},
		{Score(0), Valid},
		{Score(12.5), Valid},
		{Score(math.NaN()), Invalid},
		{Score(math.Inf(1)), Invalid},
		{Score(-0.1), Invalid},
		{Score(FitnessCeiling), Invalid},
	}
	for _, tc := range cases {
		if got := tc.f.State(); got != tc.want {
			t.Fatalf("state of %+v: got=%s want=%s", tc.f, got, tc.want)
		}
	}
	if !math.IsNaN(Fitness{}.Value()) {
		t.Fatal("expected unassigned fitness value to be NaN")
	}
}

func TestCompareRanksInvalidLast(t *testing.T) {
	tree := leaf(t, 1)
	good := New(tree).WithFitness(0.5)
	better := New(tree).WithFitness(0.1)
	bad := New(tree).WithFitness(math.NaN())

	if Compare(better, good) >= 0 || Compare(good, better) <= 0 {
		t.Fatal("expected ascending fitness order")
	}
	if Compare(good, bad) >= 0 || Compare(bad, good) <= 0 {
		t.Fatal("expected NaN after any valid fitness")
	}
	if Compare(bad, bad) != 0 {
		t.Fatal("expected invalid individuals to tie")
	}

	sorted := Sorted([]Individual{bad, good, better})
	if sorted[0].Fitness.Value() != 0.1 || sorted[1].Fitness.Value() != 0.5 || sorted[2].IsValid() {
		t.Fatalf("unexpected order: %v %v %v", sorted[0].Fitness.Value(), sorted[1].Fitness.Value(), sorted[2].Fitness.Value())
	}
}

func TestCompareUnscoredPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	tree := leaf(t, 1)
	Compare(New(tree), New(tree).WithFitness(1))
}

func TestVariationResetsFitness(t *testing.T) {
	reg, err := symbolic.NewRegistry(symbolic.DefaultRegistryConfig())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	b, err := symbolic.NewBuilder(reg, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	tx, _ := b.Random(7)
	ty, _ := b.Random(5)
	x := New(tx).WithFitness(1)
	y := New(ty).WithFitness(2)

	m := x.Mutate(b, readcode.MutateOptions{})
	if m.Fitness.State() != Uninitialized {
		t.Fatal("expected mutated child to be unscored")
	}
	cx, cy := Cross(b, x, y, readcode.CrossOptions{})
	if cx.Fitness.State() != Uninitialized || cy.Fitness.State() != Uninitialized {
		t.Fatal("expected crossed children to be unscored")
	}
	if cx.Tree.Len()+cy.Tree.Len() != 12 {
		t.Fatalf("unexpected child sizes %d %d", cx.Tree.Len(), cy.Tree.Len())
	}
	if x.Fitness.Value() != 1 {
		t.Fatal("parent fitness changed")
	}
}
