package individual

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"

	"symreg/internal/readcode"
	"symreg/internal/symbolic"
)

// FitnessCeiling is the exclusive upper bound of a valid fitness.
const FitnessCeiling = 1e9

type FitnessState uint8

const (
	Uninitialized FitnessState = iota
	Invalid
	Valid
)

func (s FitnessState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Invalid:
		return "invalid"
	case Valid:
		return "valid"
	default:
		return fmt.Sprintf("fitness_state(%d)", uint8(s))
	}
}

// Fitness is an error score, lower is better. The zero value is
// uninitialized.
type Fitness struct {
	value    float64
	assigned bool
}

func Score(v float64) Fitness {
	return Fitness{value: v, assigned: true}
}

// Value returns the score, or NaN when none was assigned.
func (f Fitness) Value() float64 {
	if !f.assigned {
		return math.NaN()
	}
	return f.value
}

func (f Fitness) State() FitnessState {
	switch {
	case !f.assigned:
		return Uninitialized
	case math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 || f.value >= FitnessCeiling:
		return Invalid
	default:
		return Valid
	}
}

func (f Fitness) IsValid() bool {
	return f.State() == Valid
}

// Individual couples one expression tree with its fitness.
type Individual struct {
	Tree    *symbolic.Tree
	Fitness Fitness
}

func New(tree *symbolic.Tree) Individual {
	return Individual{Tree: tree}
}

func (ind Individual) WithFitness(v float64) Individual {
	ind.Fitness = Score(v)
	return ind
}

func (ind Individual) IsValid() bool {
	return ind.Fitness.IsValid()
}

func (ind Individual) Formula() string {
	return ind.Tree.String()
}

// Compare orders by ascending fitness with invalid scores after every valid
// one. Comparing an individual that was never scored panics.
func Compare(a, b Individual) int {
	sa, sb := a.Fitness.State(), b.Fitness.State()
	if sa == Uninitialized || sb == Uninitialized {
		panic(fmt.Sprintf("individual: compare with unscored individual (%s vs %s)", sa, sb))
	}
	switch {
	case sa == Invalid && sb == Invalid:
		return 0
	case sa == Invalid:
		return 1
	case sb == Invalid:
		return -1
	case a.Fitness.value < b.Fitness.value:
		return -1
	case a.Fitness.value > b.Fitness.value:
		return 1
	default:
		return 0
	}
}

func (ind Individual) Less(other Individual) bool {
	return Compare(ind, other) < 0
}

// Sorted returns a stably sorted copy of inds.
func Sorted(inds []Individual) []Individual {
	out := slices.Clone(inds)
	slices.SortStableFunc(out, Compare)
	return out
}

// Mutate returns an unscored child whose mutated span carries fresh symbols.
func (ind Individual) Mutate(b *symbolic.Builder, opts readcode.MutateOptions) Individual {
	tree, _ := b.Mutate(ind.Tree, opts)
	return New(tree)
}

// Cross returns two unscored children exchanging one subtree.
func Cross(b *symbolic.Builder, x, y Individual, opts readcode.CrossOptions) (Individual, Individual) {
	tx, ty, _ := b.Cross(x.Tree, y.Tree, opts)
	return New(tx), New(ty)
}
