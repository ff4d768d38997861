package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"symreg/internal/model"
)

const runIndexFile = "run_index.json"

var runFiles = []string{"config.json", "fitness_history.json", "top_formulas.json", "generation_diagnostics.json"}

type RunConfig struct {
	RunID               string   `json:"run_id"`
	Strategy            string   `json:"strategy"`
	Metric              string   `json:"metric"`
	Operators           []string `json:"operators"`
	Variable            string   `json:"variable"`
	DataSource          string   `json:"data_source,omitempty"`
	Samples             int      `json:"samples"`
	PopulationSize      int      `json:"population_size"`
	Generations         int      `json:"generations"`
	Survivors           int      `json:"survivors"`
	EliteCount          int      `json:"elite_count"`
	MinLength           int      `json:"min_length"`
	MaxLength           int      `json:"max_length"`
	FixedLength         int      `json:"fixed_length,omitempty"`
	MaxSpan             int      `json:"max_span,omitempty"`
	MutationRate        float64  `json:"mutation_rate"`
	CrossoverRate       float64  `json:"crossover_rate"`
	ReproductionRate    float64  `json:"reproduction_rate"`
	RandomPerGeneration int      `json:"random_per_generation"`
	Selection           string   `json:"selection"`
	TournamentSize      int      `json:"tournament_size"`
	OscillationPeriod   int      `json:"oscillation_period,omitempty"`
	OscillationFloor    int      `json:"oscillation_floor,omitempty"`
	IslandCount         int      `json:"island_count,omitempty"`
	IslandSize          int      `json:"island_size,omitempty"`
	IslandGenerations   int      `json:"island_generations,omitempty"`
	IslandKeep          int      `json:"island_keep,omitempty"`
	Seed                int64    `json:"seed"`
}

type TopFormula struct {
	Rank    int      `json:"rank"`
	Fitness float64  `json:"fitness"`
	Length  int      `json:"length"`
	Formula string   `json:"formula"`
	Code    string   `json:"code"`
	Symbols []string `json:"symbols"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	TopFormulas           []TopFormula                  `json:"top_formulas"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Strategy         string  `json:"strategy"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	BestFormula      string  `json:"best_formula,omitempty"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), fitnessHistory{BestByGeneration: artifacts.BestByGeneration, FinalBestFitness: artifacts.FinalBestFitness}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_formulas.json"), artifacts.TopFormulas); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}

	return runDir, nil
}

// ReadRunArtifacts loads what WriteRunArtifacts wrote.
func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		return RunArtifacts{}, ok, err
	}
	artifacts := RunArtifacts{Config: cfg}

	var history fitnessHistory
	if _, err := readJSON(filepath.Join(baseDir, runID, "fitness_history.json"), &history); err != nil {
		return RunArtifacts{}, false, err
	}
	artifacts.BestByGeneration = history.BestByGeneration
	artifacts.FinalBestFitness = history.FinalBestFitness

	if _, err := readJSON(filepath.Join(baseDir, runID, "top_formulas.json"), &artifacts.TopFormulas); err != nil {
		return RunArtifacts{}, false, err
	}
	if _, err := readJSON(filepath.Join(baseDir, runID, "generation_diagnostics.json"), &artifacts.GenerationDiagnostics); err != nil {
		return RunArtifacts{}, false, err
	}
	return artifacts, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	// Entries stay in append order on disk; ListRunIndex sorts.
	var index []RunIndexEntry
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &index); err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first; among equal timestamps the
// later appended entry comes first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RunIndexEntry{}, nil
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range runFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, optional := range []string{fitnessSeriesFile, reportFile} {
		path := filepath.Join(src, optional)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, optional)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func ReadTopFormulas(baseDir, runID string) ([]TopFormula, bool, error) {
	var top []TopFormula
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_formulas.json"), &top)
	if err != nil || !ok {
		return nil, ok, err
	}
	return top, true, nil
}

const fitnessSeriesFile = "fitness_series.csv"

// WriteFitnessSeries writes the per-generation best fitness as CSV.
func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	path := filepath.Join(runDir, fitnessSeriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(best, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, fitnessSeriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

type fitnessHistory struct {
	BestByGeneration []float64 `json:"best_by_generation"`
	FinalBestFitness float64   `json:"final_best_fitness"`
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// readJSON reports false when path does not exist.
func readJSON(path string, into any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
