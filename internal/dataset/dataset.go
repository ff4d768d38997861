// Package dataset loads and synthesizes the (x, y) samples a run fits.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"symreg/internal/formula"
)

// CSVOptions selects the x and y columns. A column name wins over its index;
// a negative index picks the default (first column for x, last non-empty
// column for y).
type CSVOptions struct {
	HasHeader    bool
	XColumnName  string
	XColumnIndex int
	YColumnName  string
	YColumnIndex int
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{HasHeader: true, XColumnIndex: -1, YColumnIndex: -1}
}

type Data struct {
	X []float64
	Y []float64
}

func (d Data) Len() int {
	return len(d.X)
}

func LoadCSV(path string, opts CSVOptions) (Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return Data{}, err
	}
	defer f.Close()
	data, err := ReadCSV(f, opts)
	if err != nil {
		return Data{}, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

func ReadCSV(in io.Reader, opts CSVOptions) (Data, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	xIdx, yIdx := opts.XColumnIndex, opts.YColumnIndex
	row := 0
	if opts.HasHeader {
		header, err := reader.Read()
		if err == io.EOF {
			return Data{}, fmt.Errorf("csv has no rows")
		}
		if err != nil {
			return Data{}, fmt.Errorf("read header: %w", err)
		}
		row++
		if strings.TrimSpace(opts.XColumnName) != "" {
			if xIdx, err = columnIndexByName(header, opts.XColumnName); err != nil {
				return Data{}, err
			}
		}
		if strings.TrimSpace(opts.YColumnName) != "" {
			if yIdx, err = columnIndexByName(header, opts.YColumnName); err != nil {
				return Data{}, err
			}
		} else if yIdx < 0 {
			yIdx = lastNonEmptyColumn(header)
		}
	}
	if xIdx < 0 {
		xIdx = 0
	}

	var data Data
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Data{}, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++
		if blankRecord(record) {
			continue
		}
		y := yIdx
		if y < 0 {
			y = lastNonEmptyColumn(record)
		}
		if y == xIdx {
			return Data{}, fmt.Errorf("row %d: x and y resolve to the same column %d", row, y)
		}
		x, err := parseField(record, xIdx, row)
		if err != nil {
			return Data{}, err
		}
		v, err := parseField(record, y, row)
		if err != nil {
			return Data{}, err
		}
		data.X = append(data.X, x)
		data.Y = append(data.Y, v)
	}
	if data.Len() == 0 {
		return Data{}, fmt.Errorf("csv has no samples")
	}
	return data, nil
}

// WriteCSV writes x,y rows with a header.
func WriteCSV(out io.Writer, data Data, xHeader string) error {
	writer := csv.NewWriter(out)
	if xHeader == "" {
		xHeader = "x"
	}
	if err := writer.Write([]string{xHeader, "y"}); err != nil {
		return err
	}
	for i := range data.X {
		record := []string{formatFloat(data.X[i]), formatFloat(data.Y[i])}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Linspace returns n evenly spaced points over [from, to].
func Linspace(from, to float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample count must be > 0")
	}
	if math.IsNaN(from) || math.IsNaN(to) || math.IsInf(from, 0) || math.IsInf(to, 0) {
		return nil, fmt.Errorf("sample range must be finite")
	}
	if n == 1 {
		return []float64{from}, nil
	}
	if to <= from {
		return nil, fmt.Errorf("sample range is empty: [%g, %g]", from, to)
	}
	xs := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range xs {
		xs[i] = from + float64(i)*step
	}
	xs[n-1] = to
	return xs, nil
}

// Synthesize samples target over n evenly spaced points. The target must be
// defined at every point.
func Synthesize(target *formula.Expression, from, to float64, n int) (Data, error) {
	xs, err := Linspace(from, to, n)
	if err != nil {
		return Data{}, err
	}
	ys := target.EvalAll(xs)
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return Data{}, fmt.Errorf("target %s is undefined at %g", target, xs[i])
		}
	}
	return Data{X: xs, Y: ys}, nil
}

func parseField(record []string, idx, row int) (float64, error) {
	if idx >= len(record) {
		return 0, fmt.Errorf("row %d missing column index %d", row, idx)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("parse row %d column %d: %w", row, idx, err)
	}
	return v, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func columnIndexByName(header []string, name string) (int, error) {
	want := strings.TrimSpace(strings.ToLower(name))
	for i, field := range header {
		if strings.ToLower(strings.TrimSpace(field)) == want {
			return i, nil
		}
	}
	return -1, fmt.Errorf("csv column not found: %s", name)
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func lastNonEmptyColumn(record []string) int {
	for i := len(record) - 1; i >= 0; i-- {
		if strings.TrimSpace(record[i]) != "" {
			return i
		}
	}
	return 0
}
