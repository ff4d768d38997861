package evo

import (
	"context"

	"symreg/internal/logx"
)

// PlusStrategy keeps the survivors and appends mutants, crossover children
// and fresh random trees; the next evaluation picks the best of all of
// them.
type PlusStrategy struct{}

func (PlusStrategy) Name() string {
	return "plus"
}

func (PlusStrategy) Seed(_ context.Context, c *Controller) (Generation, error) {
	return c.Initialize(c.cfg.PopulationSize, c.cfg.FixedLength), nil
}

func (PlusStrategy) Step(c *Controller, _ int, survivors Generation) Generation {
	next := c.MutateAll(survivors, c.cfg.MutationRate)
	next = c.CrossAll(next, c.cfg.CrossoverRate)
	return c.AddRandom(next, c.cfg.RandomPerGeneration)
}

// GenerationalStrategy replaces the population every generation, keeping
// only the elite unchanged.
type GenerationalStrategy struct{}

func (GenerationalStrategy) Name() string {
	return "generational"
}

func (GenerationalStrategy) Seed(_ context.Context, c *Controller) (Generation, error) {
	return c.Initialize(c.cfg.PopulationSize, c.cfg.FixedLength), nil
}

func (GenerationalStrategy) Step(c *Controller, _ int, survivors Generation) Generation {
	elite := survivors[:min(c.cfg.EliteCount, len(survivors))]
	offspring := c.Reproduce(survivors, c.cfg.ReproductionRate)
	offspring = c.MutateAll(offspring, c.cfg.MutationRate)
	next := make(Generation, 0, len(elite)+len(offspring)+c.cfg.RandomPerGeneration)
	next = append(next, elite...)
	next = append(next, offspring...)
	return c.AddRandom(next, c.cfg.RandomPerGeneration)
}

// OscillatingStrategy runs the plus loop while the length cap sweeps from
// the maximum length down to the floor and back once per period.
type OscillatingStrategy struct{}

func (OscillatingStrategy) Name() string {
	return "oscillating"
}

func (OscillatingStrategy) Seed(ctx context.Context, c *Controller) (Generation, error) {
	return PlusStrategy{}.Seed(ctx, c)
}

func (OscillatingStrategy) Step(c *Controller, gen int, survivors Generation) Generation {
	c.SetLengthCap(OscillatingCap(c.cfg.Oscillation.Floor, c.cfg.MaxLength, c.cfg.Oscillation.Period, gen+1))
	return PlusStrategy{}.Step(c, gen, survivors)
}

// OscillatingCap is a triangle wave over [floor, ceil] that starts at ceil
// and returns there every period generations.
func OscillatingCap(floor, ceil, period, gen int) int {
	if period < 2 || ceil <= floor {
		return ceil
	}
	half := period / 2
	phase := gen % period
	if phase > half {
		phase = period - phase
	}
	return ceil - (ceil-floor)*phase/half
}

// IslandStrategy seeds the main population from the best members of many
// small, briefly evolved random sub-populations, then runs the plus loop.
type IslandStrategy struct{}

func (IslandStrategy) Name() string {
	return "islands"
}

func (IslandStrategy) Seed(ctx context.Context, c *Controller) (Generation, error) {
	isl := c.cfg.Islands
	folded := make(Generation, 0, c.cfg.PopulationSize)
	for i := 0; i < isl.Count && len(folded) < c.cfg.PopulationSize; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		island := c.Initialize(isl.Size, c.cfg.FixedLength)
		for g := 0; g < isl.Generations; g++ {
			survivors := c.Survive(island, isl.Size)
			if g == isl.Generations-1 {
				island = survivors
				break
			}
			island = PlusStrategy{}.Step(c, g, survivors)
			if missing := isl.Size - len(island); missing > 0 {
				island = c.AddRandom(island, missing)
			}
		}
		best := c.SelectBest(island, isl.Keep)
		folded = append(folded, best...)
		c.log.Debugf(logx.ChanInit, "island=%d folded=%d", i, len(best))
	}
	if missing := c.cfg.PopulationSize - len(folded); missing > 0 {
		folded = c.AddRandom(folded, missing)
	}
	return folded, nil
}

func (IslandStrategy) Step(c *Controller, gen int, survivors Generation) Generation {
	return PlusStrategy{}.Step(c, gen, survivors)
}
