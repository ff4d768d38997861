package dataset

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"symreg/internal/formula"
)

func TestReadCSVDefaultColumns(t *testing.T) {
	in := strings.NewReader("x,y\n0,1\n1,2.5\n\n2,4\n")
	data, err := ReadCSV(in, DefaultCSVOptions())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !reflect.DeepEqual(data.X, []float64{0, 1, 2}) || !reflect.DeepEqual(data.Y, []float64{1, 2.5, 4}) {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestReadCSVByHeaderName(t *testing.T) {
	in := strings.NewReader("t,target,noise\n1,10,0\n2,20,0\n")
	opts := DefaultCSVOptions()
	opts.XColumnName = "T"
	opts.YColumnName = "target"
	data, err := ReadCSV(in, opts)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !reflect.DeepEqual(data.Y, []float64{10, 20}) {
		t.Fatalf("unexpected y: %v", data.Y)
	}
}

func TestReadCSVWithoutHeader(t *testing.T) {
	in := strings.NewReader("# comment\n1,2\n3,4\n")
	data, err := ReadCSV(in, CSVOptions{XColumnIndex: 0, YColumnIndex: 1})
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if data.Len() != 2 || data.X[1] != 3 || data.Y[1] != 4 {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestReadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"empty":       "x,y\n",
		"bad number":  "x,y\n1,abc\n",
		"same column": "x\n1\n",
	}
	for name, input := range cases {
		if _, err := ReadCSV(strings.NewReader(input), DefaultCSVOptions()); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	opts := DefaultCSVOptions()
	opts.YColumnName = "missing"
	if _, err := ReadCSV(strings.NewReader("x,y\n1,2\n"), opts); err == nil {
		t.Fatal("expected missing column error")
	}
}

func TestLoadCSVRoundTripsWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := Data{X: []float64{-1, 0.5}, Y: []float64{2, 1e-9}}
	if err := WriteCSV(f, want, ""); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	_ = f.Close()

	got, err := LoadCSV(path, DefaultCSVOptions())
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestLinspace(t *testing.T) {
	xs, err := Linspace(-1, 1, 5)
	if err != nil {
		t.Fatalf("linspace: %v", err)
	}
	if !reflect.DeepEqual(xs, []float64{-1, -0.5, 0, 0.5, 1}) {
		t.Fatalf("unexpected points: %v", xs)
	}
	if _, err := Linspace(1, 1, 3); err == nil {
		t.Fatal("expected empty range error")
	}
	if _, err := Linspace(0, 1, 0); err == nil {
		t.Fatal("expected count error")
	}
	if xs, err := Linspace(2, 2, 1); err != nil || len(xs) != 1 {
		t.Fatalf("single point: %v %v", xs, err)
	}
}

func TestSynthesize(t *testing.T) {
	compiler, err := formula.NewCompiler("x", 0)
	if err != nil {
		t.Fatalf("compiler: %v", err)
	}
	target, err := compiler.Compile("(x * x)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	data, err := Synthesize(target, 0, 2, 3)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !reflect.DeepEqual(data.Y, []float64{0, 1, 4}) {
		t.Fatalf("unexpected targets: %v", data.Y)
	}

	undefined, err := compiler.Compile("ln(x)")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := Synthesize(undefined, 0, 1, 3); err == nil {
		t.Fatal("expected undefined target error")
	}
	if math.IsNaN(undefined.Eval(1)) {
		t.Fatal("ln(1) should be defined")
	}
}
