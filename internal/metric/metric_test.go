package metric

import (
	"errors"
	"math"
	"testing"
)

func TestMetrics(t *testing.T) {
	actual := []float64{1, 2, 3, 4}
	predicted := []float64{1, 2, 3, 6}
	cases := map[string]float64{
		"mse":    1,
		"rmse":   1,
		"mae":    0.5,
		"maxabs": 2,
	}
	for name, want := range cases {
		f, err := Lookup(name)
		if err != nil {
			t.Fatalf("lookup %s: %v", name, err)
		}
		if got := f(actual, predicted); math.Abs(got-want) > 1e-12 {
			t.Fatalf("%s: got=%v want=%v", name, got, want)
		}
	}
	if got := OneMinusR2(actual, actual); math.Abs(got) > 1e-12 {
		t.Fatalf("perfect fit 1-r2: got=%v", got)
	}
}

func TestMetricsPropagateNaN(t *testing.T) {
	actual := []float64{1, 2}
	predicted := []float64{1, math.NaN()}
	for _, name := range Names() {
		f, _ := Lookup(name)
		if got := f(actual, predicted); !math.IsNaN(got) {
			t.Fatalf("%s: expected NaN, got %v", name, got)
		}
	}
	if !math.IsNaN(MSE(nil, nil)) {
		t.Fatal("expected NaN for empty samples")
	}
}

func TestLookupDefaultsAndUnknown(t *testing.T) {
	if _, err := Lookup(""); err != nil {
		t.Fatalf("default metric: %v", err)
	}
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownMetric) {
		t.Fatalf("expected unknown metric error, got %v", err)
	}
}
