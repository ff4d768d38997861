package evo

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"symreg/internal/individual"
)

// Snapshot is one evaluated generation as handed to observers and sinks.
type Snapshot struct {
	Index       int
	Label       string
	Individuals Generation
	Diagnostics Diagnostics
}

// GenerationSink stores generation snapshots. It is called once per
// generation when save mode is on.
type GenerationSink interface {
	SaveGeneration(ctx context.Context, label string, snap Snapshot) error
}

func GenerationLabel(index int) string {
	return fmt.Sprintf("generation-%04d", index)
}

type Diagnostics struct {
	Generation    int     `json:"generation"`
	Size          int     `json:"size"`
	Valid         int     `json:"valid"`
	Distinct      int     `json:"distinct"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	MeanLength    float64 `json:"mean_length"`
	BestFormula   string  `json:"best_formula,omitempty"`
}

// summarizeGeneration expects gen sorted best first. A generation without
// valid members reports the fitness ceiling as best and mean.
func summarizeGeneration(gen Generation, index int) Diagnostics {
	d := Diagnostics{Generation: index, Size: len(gen), BestFitness: individual.FitnessCeiling, MeanFitness: individual.FitnessCeiling}
	if len(gen) == 0 {
		return d
	}
	fitness := make([]float64, 0, len(gen))
	lengths := make([]float64, 0, len(gen))
	formulas := make(map[string]struct{}, len(gen))
	for _, ind := range gen {
		lengths = append(lengths, float64(ind.Tree.Len()))
		formulas[ind.Formula()] = struct{}{}
		if ind.IsValid() {
			fitness = append(fitness, ind.Fitness.Value())
		}
	}
	d.Valid = len(fitness)
	d.Distinct = len(formulas)
	d.MeanLength = stat.Mean(lengths, nil)
	if len(fitness) > 0 {
		d.BestFitness = gen[0].Fitness.Value()
		d.BestFormula = gen[0].Formula()
		d.MeanFitness = stat.Mean(fitness, nil)
	}
	if len(fitness) > 1 {
		d.StdDevFitness = stat.StdDev(fitness, nil)
	}
	return d
}

// Solution is a best individual as handed to presentation: its formula and
// an evaluator.
type Solution struct {
	Formula string
	Fitness float64
	Length  int
	Eval    func(x float64) float64
}

// Solutions returns the first k individuals of a sorted generation.
func Solutions(gen Generation, k int) []Solution {
	k = min(max(k, 0), len(gen))
	out := make([]Solution, 0, k)
	for _, ind := range gen[:k] {
		out = append(out, Solution{
			Formula: ind.Formula(),
			Fitness: ind.Fitness.Value(),
			Length:  ind.Tree.Len(),
			Eval:    ind.Tree.Eval,
		})
	}
	return out
}
