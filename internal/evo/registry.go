package evo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrStrategyNotFound = errors.New("strategy not found")
)

// Strategy sequences the controller primitives. Seed builds the unscored
// first generation; Step turns the survivors of generation gen into the
// unscored candidates of the next one.
type Strategy interface {
	Name() string
	Seed(ctx context.Context, c *Controller) (Generation, error)
	Step(c *Controller, gen int, survivors Generation) Generation
}

var strategyRegistry = struct {
	mu sync.RWMutex
	m  map[string]Strategy
}{
	m: make(map[string]Strategy),
}

func init() {
	for _, s := range []Strategy{PlusStrategy{}, GenerationalStrategy{}, OscillatingStrategy{}, IslandStrategy{}} {
		if err := RegisterStrategy(s); err != nil {
			panic(err)
		}
	}
}

func RegisterStrategy(s Strategy) error {
	if s == nil {
		return errors.New("strategy is required")
	}
	name := s.Name()
	if name == "" {
		return errors.New("strategy name is required")
	}

	strategyRegistry.mu.Lock()
	defer strategyRegistry.mu.Unlock()

	if _, exists := strategyRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	strategyRegistry.m[name] = s
	return nil
}

func LookupStrategy(name string) (Strategy, error) {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	s, ok := strategyRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	return s, nil
}

func StrategyNames() []string {
	strategyRegistry.mu.RLock()
	defer strategyRegistry.mu.RUnlock()

	names := make([]string, 0, len(strategyRegistry.m))
	for name := range strategyRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
