package evo

import (
	"math/rand"
	"testing"

	"symreg/internal/individual"
	"symreg/internal/symbolic"
)

func TestTournamentSelectorPrefersFitter(t *testing.T) {
	c := newTestController(t, testConfig(t, "plus"))
	x := tree(t, c.Config().Registry, "0", symbolic.Var())
	scored := Generation{
		individual.New(x).WithFitness(9),
		individual.New(x).WithFitness(1),
		individual.New(x).WithFitness(5),
	}
	sel := TournamentSelector{TournamentSize: 50}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		if got := sel.PickParent(rng, scored).Fitness.Value(); got != 1 {
			t.Fatalf("expected the fittest parent, got %v", got)
		}
	}
}

func TestEliteSelectorStaysInElite(t *testing.T) {
	c := newTestController(t, testConfig(t, "plus"))
	x := tree(t, c.Config().Registry, "0", symbolic.Var())
	sorted := Generation{
		individual.New(x).WithFitness(1),
		individual.New(x).WithFitness(2),
		individual.New(x).WithFitness(3),
		individual.New(x).WithFitness(4),
	}
	sel := EliteSelector{Count: 2}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		if got := sel.PickParent(rng, sorted).Fitness.Value(); got > 2 {
			t.Fatalf("picked outside elite: %v", got)
		}
	}
}

func TestSelectorFromName(t *testing.T) {
	for _, name := range []string{"", "tournament", "elite"} {
		if _, err := SelectorFromName(name, 3); err != nil {
			t.Fatalf("selector %q: %v", name, err)
		}
	}
	if _, err := SelectorFromName("roulette", 3); err == nil {
		t.Fatal("expected unsupported selection error")
	}
}
