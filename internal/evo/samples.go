package evo

import "fmt"

// Samples is the immutable training data of a run.
type Samples struct {
	x []float64
	y []float64
}

func NewSamples(x, y []float64) (Samples, error) {
	if len(x) != len(y) {
		return Samples{}, fmt.Errorf("sample length mismatch: x=%d y=%d", len(x), len(y))
	}
	if len(x) == 0 {
		return Samples{}, fmt.Errorf("at least one sample is required")
	}
	return Samples{
		x: append([]float64(nil), x...),
		y: append([]float64(nil), y...),
	}, nil
}

func (s Samples) Len() int {
	return len(s.x)
}

func (s Samples) X() []float64 {
	return append([]float64(nil), s.x...)
}

func (s Samples) Y() []float64 {
	return append([]float64(nil), s.y...)
}
