package evo

import (
	"fmt"
	"math/rand"

	"symreg/internal/individual"
)

// Selector chooses a parent from a scored generation.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, scored Generation) individual.Individual
}

// EliteSelector picks uniformly among the best Count members of a
// generation sorted best first.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) PickParent(rng *rand.Rand, scored Generation) individual.Individual {
	n := s.Count
	if n <= 0 || n > len(scored) {
		n = len(scored)
	}
	return scored[rng.Intn(n)]
}

// TournamentSelector samples TournamentSize members and keeps the fittest.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, scored Generation) individual.Individual {
	size := s.TournamentSize
	if size <= 0 {
		size = 3
	}
	best := scored[rng.Intn(len(scored))]
	for i := 1; i < size; i++ {
		candidate := scored[rng.Intn(len(scored))]
		if individual.Compare(candidate, best) < 0 {
			best = candidate
		}
	}
	return best
}

// SelectorFromName maps a selection name to a selector.
func SelectorFromName(name string, size int) (Selector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{TournamentSize: size}, nil
	case "elite":
		return EliteSelector{Count: size}, nil
	default:
		return nil, fmt.Errorf("unsupported selection: %s", name)
	}
}
