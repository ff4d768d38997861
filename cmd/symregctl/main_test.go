package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	workdir := t.TempDir()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func quickRunArgs(extra ...string) []string {
	args := []string{
		"run",
		"--store", "memory",
		"--log-level", "error",
		"--target", "(x * x) + 1",
		"--samples", "20",
		"--pop", "30",
		"--gens", "3",
		"--seed", "7",
	}
	return append(args, extra...)
}

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
	if err := run(context.Background(), []string{"bogus"}); err == nil || !strings.Contains(err.Error(), "unknown command: bogus") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRunTargetWritesArtifactsAndIndex(t *testing.T) {
	workdir := chdirTemp(t)
	ctx := context.Background()

	out, err := captureStdout(func() error {
		return run(ctx, quickRunArgs())
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "run_id=") || !strings.Contains(out, "seed=7") || !strings.Contains(out, "best=") {
		t.Fatalf("unexpected run output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(workdir, runsDir, "run_index.json")); err != nil {
		t.Fatalf("expected run index: %v", err)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"runs"})
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "strategy=plus") || !strings.Contains(out, "seed=7") {
		t.Fatalf("unexpected runs output: %q", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"best", "--store", "memory", "--latest", "--limit", "1"})
	})
	if err != nil {
		t.Fatalf("best: %v", err)
	}
	if !strings.HasPrefix(out, "rank=1 ") || strings.Count(out, "\n") != 1 {
		t.Fatalf("unexpected best output: %q", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"show", "--store", "memory", "--latest"})
	})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.HasPrefix(out, "run ") || !strings.Contains(out, "top formulas") {
		t.Fatalf("unexpected show output: %q", out)
	}

	out, err = captureStdout(func() error {
		return run(ctx, []string{"export", "--store", "memory", "--latest"})
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported run_id=") {
		t.Fatalf("unexpected export output: %q", out)
	}
}

func TestRunJSONOutput(t *testing.T) {
	chdirTemp(t)
	out, err := captureStdout(func() error {
		return run(context.Background(), quickRunArgs("--json", "--top", "2"))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary struct {
		RunID            string    `json:"run_id"`
		Seed             int64     `json:"seed"`
		BestByGeneration []float64 `json:"best_by_generation"`
		Top              []struct {
			Rank    int    `json:"rank"`
			Formula string `json:"formula"`
		} `json:"top"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode run json: %v\n%s", err, out)
	}
	if summary.RunID == "" || summary.Seed != 7 || len(summary.BestByGeneration) != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Top) == 0 || len(summary.Top) > 2 || summary.Top[0].Rank != 1 {
		t.Fatalf("unexpected top: %+v", summary.Top)
	}
}

func TestRunFromCSV(t *testing.T) {
	workdir := chdirTemp(t)
	path := filepath.Join(workdir, "points.csv")
	body := "t,value\n0,1\n1,3\n2,5\n3,7\n4,9\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"run", "--store", "memory", "--log-level", "error",
			"--data", path, "--x-column", "t", "--y-column", "value",
			"--pop", "20", "--gens", "2", "--seed", "3",
		})
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "samples=5") {
		t.Fatalf("unexpected run output: %q", out)
	}
}

func TestRunRejectsBadDataSources(t *testing.T) {
	chdirTemp(t)
	ctx := context.Background()
	if err := run(ctx, []string{"run", "--store", "memory"}); err == nil || !strings.Contains(err.Error(), "requires --data or --target") {
		t.Fatalf("expected missing data error, got %v", err)
	}
	err := run(ctx, []string{"run", "--store", "memory", "--data", "a.csv", "--target", "x"})
	if err == nil || !strings.Contains(err.Error(), "either --data or --target") {
		t.Fatalf("expected conflicting data error, got %v", err)
	}
	if err := run(ctx, []string{"run", "--store", "memory", "--target", "(x +"}); err == nil {
		t.Fatal("expected malformed target error")
	}
}

func TestRunsEmpty(t *testing.T) {
	chdirTemp(t)
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"runs"})
	})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if out != "no runs found\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if err := run(context.Background(), []string{"runs", "--limit", "0"}); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestEvalPrintsCSV(t *testing.T) {
	chdirTemp(t)
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"eval", "--formula", "(x * 2) + 1", "--x", "0, 1,2.5"})
	})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := "x,y\n0,1\n1,3\n2.5,6\n"
	if out != want {
		t.Fatalf("unexpected eval output: got %q want %q", out, want)
	}

	if err := run(context.Background(), []string{"eval"}); err == nil {
		t.Fatal("expected missing formula error")
	}
	if err := run(context.Background(), []string{"eval", "--formula", "x", "--x", "1,nope"}); err == nil {
		t.Fatal("expected bad x error")
	}
}

func TestOperatorsAndStrategies(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"operators"})
	})
	if err != nil {
		t.Fatalf("operators: %v", err)
	}
	if !strings.Contains(out, "add    arity=2 (a + b)") || !strings.Contains(out, "ifpos  arity=3 ifpos(a, b, c)") {
		t.Fatalf("unexpected operators output: %q", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{"strategies"})
	})
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}
	for _, name := range []string{"generational", "islands", "oscillating", "plus"} {
		if !strings.Contains(out, name+"\n") {
			t.Fatalf("strategies output missing %s: %q", name, out)
		}
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
