package metric

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var ErrUnknownMetric = errors.New("unknown error metric")

// Func combines per-sample errors into one score, lower is better. NaN or
// infinite results mark the prediction unusable.
type Func func(actual, predicted []float64) float64

const DefaultName = "mse"

var metrics = map[string]Func{
	"mse":    MSE,
	"rmse":   RMSE,
	"mae":    MAE,
	"maxabs": MaxAbs,
	"r2":     OneMinusR2,
}

func Lookup(name string) (Func, error) {
	if name == "" {
		name = DefaultName
	}
	f, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return f, nil
}

func Names() []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func residuals(actual, predicted []float64, f func(float64) float64) ([]float64, bool) {
	if len(actual) != len(predicted) {
		panic(fmt.Sprintf("metric: %d actual values, %d predicted", len(actual), len(predicted)))
	}
	if len(actual) == 0 {
		return nil, false
	}
	out := make([]float64, len(actual))
	for i := range actual {
		if math.IsNaN(predicted[i]) {
			return nil, false
		}
		out[i] = f(actual[i] - predicted[i])
	}
	return out, true
}

func MSE(actual, predicted []float64) float64 {
	sq, ok := residuals(actual, predicted, func(d float64) float64 { return d * d })
	if !ok {
		return math.NaN()
	}
	return stat.Mean(sq, nil)
}

func RMSE(actual, predicted []float64) float64 {
	return math.Sqrt(MSE(actual, predicted))
}

func MAE(actual, predicted []float64) float64 {
	abs, ok := residuals(actual, predicted, math.Abs)
	if !ok {
		return math.NaN()
	}
	return stat.Mean(abs, nil)
}

func MaxAbs(actual, predicted []float64) float64 {
	abs, ok := residuals(actual, predicted, math.Abs)
	if !ok {
		return math.NaN()
	}
	worst := 0.0
	for _, v := range abs {
		if v > worst || math.IsInf(v, 0) {
			worst = v
		}
	}
	return worst
}

// OneMinusR2 is 1 - R^2 of the prediction, zero for a perfect fit.
func OneMinusR2(actual, predicted []float64) float64 {
	if _, ok := residuals(actual, predicted, math.Abs); !ok {
		return math.NaN()
	}
	return 1 - stat.RSquaredFrom(predicted, actual, nil)
}
