package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ncruces/go-strftime"
)

const (
	reportFile = "report.txt"

	// TimestampLayout is the strftime layout of every *_utc field.
	TimestampLayout = "%Y-%m-%dT%H:%M:%SZ"
	displayLayout   = "%Y-%m-%d %H:%M:%S UTC"
)

func Timestamp(t time.Time) string {
	return strftime.Format(TimestampLayout, t.UTC())
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Age renders a *_utc timestamp relative to now, or "unknown".
func Age(createdAtUTC string, now time.Time) string {
	t, err := ParseTimestamp(createdAtUTC)
	if err != nil {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func WriteReport(w io.Writer, artifacts RunArtifacts, createdAt time.Time) error {
	cfg := artifacts.Config
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", cfg.RunID)
	fmt.Fprintf(&b, "  started    %s\n", strftime.Format(displayLayout, createdAt.UTC()))
	fmt.Fprintf(&b, "  strategy   %s (metric %s, seed %d)\n", cfg.Strategy, cfg.Metric, cfg.Seed)
	fmt.Fprintf(&b, "  operators  %s over %s\n", strings.Join(cfg.Operators, " "), cfg.Variable)
	fmt.Fprintf(&b, "  population %s for %s generations on %s samples\n",
		humanize.Comma(int64(cfg.PopulationSize)),
		humanize.Comma(int64(cfg.Generations)),
		humanize.Comma(int64(cfg.Samples)))

	if gen, ok := firstBest(artifacts.BestByGeneration); ok {
		fmt.Fprintf(&b, "  best       %g, first reached in the %s generation\n",
			artifacts.FinalBestFitness, humanize.Ordinal(gen+1))
	}
	if len(artifacts.TopFormulas) > 0 {
		b.WriteString("top formulas\n")
		for _, top := range artifacts.TopFormulas {
			fmt.Fprintf(&b, "  %2d. %-12g %s\n", top.Rank, top.Fitness, top.Formula)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteRunReport writes the text report next to the run's artifacts.
func WriteRunReport(baseDir string, artifacts RunArtifacts, createdAt time.Time) error {
	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(runDir, reportFile))
	if err != nil {
		return err
	}
	if err := WriteReport(f, artifacts, createdAt); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// firstBest returns the first generation whose best equals the overall
// minimum.
func firstBest(history []float64) (int, bool) {
	if len(history) == 0 {
		return 0, false
	}
	best := 0
	for i, v := range history {
		if v < history[best] {
			best = i
		}
	}
	return best, true
}
