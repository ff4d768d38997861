package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTimestampRoundTrip(t *testing.T) {
	at := time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)
	s := Timestamp(at)
	if s != "2026-04-05T06:07:08Z" {
		t.Fatalf("unexpected timestamp: %s", s)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil || !parsed.Equal(at) {
		t.Fatalf("parse: %v %v", parsed, err)
	}
}

func TestAge(t *testing.T) {
	now := time.Date(2026, 4, 5, 6, 0, 0, 0, time.UTC)
	if got := Age("2026-04-05T04:00:00Z", now); got != "2 hours ago" {
		t.Fatalf("unexpected age: %q", got)
	}
	if got := Age("garbage", now); got != "unknown" {
		t.Fatalf("unexpected age: %q", got)
	}
}

func TestWriteReport(t *testing.T) {
	artifacts := sampleArtifacts("run-9")
	artifacts.Config.PopulationSize = 1500
	var b strings.Builder
	if err := WriteReport(&b, artifacts, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("write report: %v", err)
	}
	report := b.String()
	for _, want := range []string{
		"run run-9",
		"2026-01-02 03:04:05 UTC",
		"population 1,500",
		"2nd generation",
		"(x * x)",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestWriteRunReportIsExported(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-r")
	if _, err := WriteRunArtifacts(baseDir, artifacts); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if err := WriteRunReport(baseDir, artifacts, time.Now()); err != nil {
		t.Fatalf("write report: %v", err)
	}
	out, err := ExportRunArtifacts(baseDir, "run-r", t.TempDir())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, reportFile)); err != nil {
		t.Fatalf("expected exported report: %v", err)
	}
}
