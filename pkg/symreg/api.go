// Package symreg is the public entry point: it configures searches, runs them
// against a store and reads back their history.
package symreg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"symreg/internal/evo"
	"symreg/internal/formula"
	"symreg/internal/logx"
	"symreg/internal/metric"
	"symreg/internal/model"
	"symreg/internal/platform"
	"symreg/internal/stats"
	"symreg/internal/storage"
	"symreg/internal/symbolic"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "symreg.db"
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *logx.Logger
}

type Client struct {
	store storage.Store
	polis *platform.Polis
	log   *logx.Logger

	runsDir    string
	exportsDir string

	mu        sync.Mutex
	compilers map[string]*formula.Compiler
}

type RunRequest struct {
	X          []float64
	Y          []float64
	DataSource string

	Operators []string
	Variable  string
	Constants symbolic.ConstantPolicy

	Strategy            string
	Metric              string
	Population          int
	Generations         int
	Survivors           int
	EliteCount          int
	MinLength           int
	MaxLength           int
	FixedLength         int
	MaxSpan             int
	MutationRate        float64
	CrossoverRate       float64
	ReproductionRate    float64
	RandomPerGeneration int
	Selection           string
	TournamentSize      int
	Oscillation         evo.OscillationConfig
	Islands             evo.IslandConfig

	Seed     int64
	Save     bool
	TopCount int
}

// DefaultRunRequest returns a request with the default operators, constant
// policy and search parameters. Callers add samples.
func DefaultRunRequest() RunRequest {
	reg := symbolic.DefaultRegistryConfig()
	cfg := evo.DefaultConfig()
	return RunRequest{
		Operators:           reg.Operators,
		Variable:            reg.Variable,
		Constants:           reg.Constants,
		Strategy:            cfg.Strategy,
		Metric:              metric.DefaultName,
		Population:          cfg.PopulationSize,
		Generations:         cfg.Generations,
		MinLength:           cfg.MinLength,
		MaxLength:           cfg.MaxLength,
		MutationRate:        cfg.MutationRate,
		CrossoverRate:       cfg.CrossoverRate,
		ReproductionRate:    cfg.ReproductionRate,
		RandomPerGeneration: cfg.RandomPerGeneration,
		Selection:           "tournament",
		TournamentSize:      cfg.TournamentSize,
		TopCount:            platform.DefaultTopCount,
	}
}

type Formula struct {
	Rank    int
	Formula string
	Fitness float64
	Length  int
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Seed             int64
	BestByGeneration []float64
	FinalBestFitness float64
	BestFormula      string
	Top              []Formula
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Strategy         string
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness float64
	BestFormula      string
}

type GenerationRequest struct {
	RunID  string
	Latest bool
	Label  string
}

type GenerationView struct {
	RunID       string
	Label       string
	Index       int
	Individuals []model.IndividualRecord
	Diagnostics model.GenerationDiagnostics
}

type BestRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

// RunDetails is a run as recorded in its artifacts, plus the text report.
type RunDetails struct {
	RunID            string
	CreatedAtUTC     string
	Strategy         string
	Metric           string
	Seed             int64
	Operators        []string
	Variable         string
	DataSource       string
	Samples          int
	Population       int
	Generations      int
	BestByGeneration []float64
	FinalBestFitness float64
	Top              []Formula
	Report           string
}

type EvalRequest struct {
	Formula  string
	Variable string
	X        []float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		log = logx.Nop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		polis:      platform.NewPolis(platform.Config{Store: store, Logger: log}),
		log:        log,
		runsDir:    runsDir,
		exportsDir: exportsDir,
		compilers:  make(map[string]*formula.Compiler),
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.polis.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.polis.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	search, metricName, err := searchConfig(req)
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := uuid.NewString()
	c.log.Infof(logx.ChanInit, "run %s samples=%d source=%s", runID, search.Samples.Len(), req.DataSource)

	result, err := c.polis.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:      runID,
		MetricName: metricName,
		Search:     search,
		TopCount:   req.TopCount,
		CreatedAt:  now,
	})
	if err != nil {
		return RunSummary{}, err
	}

	top := make([]stats.TopFormula, 0, len(result.TopFinal))
	summaryTop := make([]Formula, 0, len(result.TopFinal))
	for i, rec := range result.TopFinal {
		length := len(rec.Symbols)
		top = append(top, stats.TopFormula{
			Rank:    i + 1,
			Fitness: rec.Fitness,
			Length:  length,
			Formula: rec.Formula,
			Code:    rec.Code,
			Symbols: rec.Symbols,
		})
		summaryTop = append(summaryTop, Formula{Rank: i + 1, Formula: rec.Formula, Fitness: rec.Fitness, Length: length})
	}

	artifacts := stats.RunArtifacts{
		Config:                runConfig(runID, req, search, result.Run),
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      result.BestFinalFitness,
		TopFormulas:           top,
	}
	runDir, err := stats.WriteRunArtifacts(c.runsDir, artifacts)
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.WriteRunReport(c.runsDir, artifacts, now); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:            runID,
		Strategy:         result.Run.Strategy,
		PopulationSize:   result.Run.PopulationSize,
		Generations:      result.Run.Generations,
		Seed:             result.Run.Seed,
		FinalBestFitness: result.BestFinalFitness,
		BestFormula:      result.Run.BestFormula,
		CreatedAtUTC:     result.Run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}
	c.log.Debugf(logx.ChanSave, "artifacts written to %s", runDir)

	return RunSummary{
		RunID:            runID,
		ArtifactsDir:     runDir,
		Seed:             result.Run.Seed,
		BestByGeneration: result.BestByGeneration,
		FinalBestFitness: result.BestFinalFitness,
		BestFormula:      result.Run.BestFormula,
		Top:              summaryTop,
	}, nil
}

// Stop cancels a run started by this client that is still in progress.
func (c *Client) Stop(runID string) error {
	return c.polis.StopRun(runID)
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Strategy:         e.Strategy,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
			BestFormula:      e.BestFormula,
		})
	}
	return out, nil
}

func (c *Client) Show(_ context.Context, req ShowRequest) (RunDetails, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "show")
	if err != nil {
		return RunDetails{}, err
	}
	artifacts, ok, err := stats.ReadRunArtifacts(c.runsDir, runID)
	if err != nil {
		return RunDetails{}, err
	}
	if !ok {
		return RunDetails{}, fmt.Errorf("run artifacts not found for run id: %s", runID)
	}

	createdAtUTC := ""
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return RunDetails{}, err
	}
	for _, e := range entries {
		if e.RunID == runID {
			createdAtUTC = e.CreatedAtUTC
			break
		}
	}
	createdAt, _ := stats.ParseTimestamp(createdAtUTC)

	var report strings.Builder
	if err := stats.WriteReport(&report, artifacts, createdAt); err != nil {
		return RunDetails{}, err
	}

	cfg := artifacts.Config
	top := make([]Formula, 0, len(artifacts.TopFormulas))
	for _, item := range artifacts.TopFormulas {
		top = append(top, Formula{Rank: item.Rank, Formula: item.Formula, Fitness: item.Fitness, Length: item.Length})
	}
	return RunDetails{
		RunID:            runID,
		CreatedAtUTC:     createdAtUTC,
		Strategy:         cfg.Strategy,
		Metric:           cfg.Metric,
		Seed:             cfg.Seed,
		Operators:        cfg.Operators,
		Variable:         cfg.Variable,
		DataSource:       cfg.DataSource,
		Samples:          cfg.Samples,
		Population:       cfg.PopulationSize,
		Generations:      cfg.Generations,
		BestByGeneration: artifacts.BestByGeneration,
		FinalBestFitness: artifacts.FinalBestFitness,
		Top:              top,
		Report:           report.String(),
	}, nil
}

// StoredRun returns the run record kept in the store.
func (c *Client) StoredRun(ctx context.Context, runID string, latest bool) (model.Run, error) {
	runID, err := c.resolveRunID(runID, latest, "run")
	if err != nil {
		return model.Run{}, err
	}
	if err := c.polis.Init(ctx); err != nil {
		return model.Run{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.Run{}, err
	}
	if !ok {
		return model.Run{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

// Generations lists the saved generation labels of a run.
func (c *Client) Generations(ctx context.Context, runID string, latest bool) ([]string, error) {
	runID, err := c.resolveRunID(runID, latest, "generations")
	if err != nil {
		return nil, err
	}
	if err := c.polis.Init(ctx); err != nil {
		return nil, err
	}
	return c.store.ListGenerations(ctx, runID)
}

// Generation returns a saved generation; without a label the last one.
func (c *Client) Generation(ctx context.Context, req GenerationRequest) (GenerationView, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "generation")
	if err != nil {
		return GenerationView{}, err
	}
	if err := c.polis.Init(ctx); err != nil {
		return GenerationView{}, err
	}
	label := req.Label
	if label == "" {
		labels, err := c.store.ListGenerations(ctx, runID)
		if err != nil {
			return GenerationView{}, err
		}
		if len(labels) == 0 {
			return GenerationView{}, fmt.Errorf("no saved generations for run id: %s", runID)
		}
		label = labels[len(labels)-1]
	}
	generation, ok, err := c.store.GetGeneration(ctx, runID, label)
	if err != nil {
		return GenerationView{}, err
	}
	if !ok {
		return GenerationView{}, fmt.Errorf("generation %s not found for run id: %s", label, runID)
	}
	return GenerationView{
		RunID:       generation.RunID,
		Label:       generation.Label,
		Index:       generation.Index,
		Individuals: generation.Individuals,
		Diagnostics: generation.Diagnostics,
	}, nil
}

// Best returns the top formulas recorded for a run.
func (c *Client) Best(_ context.Context, req BestRequest) ([]Formula, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "best")
	if err != nil {
		return nil, err
	}
	top, ok, err := stats.ReadTopFormulas(c.runsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top formulas not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]Formula, 0, len(top))
	for _, item := range top {
		out = append(out, Formula{Rank: item.Rank, Formula: item.Formula, Fitness: item.Fitness, Length: item.Length})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, runID string, latest bool) ([]float64, error) {
	runID, err := c.resolveRunID(runID, latest, "fitness history")
	if err != nil {
		return nil, err
	}
	if err := c.polis.Init(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return history, nil
}

func (c *Client) Diagnostics(ctx context.Context, runID string, latest bool) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(runID, latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if err := c.polis.Init(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return diagnostics, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Eval evaluates a formula at every x. Undefined points are NaN.
func (c *Client) Eval(_ context.Context, req EvalRequest) ([]float64, error) {
	variable := req.Variable
	if variable == "" {
		variable = symbolic.DefaultRegistryConfig().Variable
	}
	compiler, err := c.compiler(variable)
	if err != nil {
		return nil, err
	}
	expr, err := compiler.Compile(req.Formula)
	if err != nil {
		return nil, err
	}
	return expr.EvalAll(req.X), nil
}

// Compile parses a formula over variable with the client's cache.
func (c *Client) Compile(expr, variable string) (*formula.Expression, error) {
	compiler, err := c.compiler(variable)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(expr)
}

func (c *Client) compiler(variable string) (*formula.Compiler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if compiler, ok := c.compilers[variable]; ok {
		return compiler, nil
	}
	compiler, err := formula.NewCompiler(variable, formula.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	c.compilers[variable] = compiler
	return compiler, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", ErrNoRuns
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func searchConfig(req RunRequest) (evo.Config, string, error) {
	reg, err := symbolic.NewRegistry(symbolic.RegistryConfig{
		Operators: req.Operators,
		Variable:  req.Variable,
		Constants: req.Constants,
	})
	if err != nil {
		return evo.Config{}, "", err
	}
	samples, err := evo.NewSamples(req.X, req.Y)
	if err != nil {
		return evo.Config{}, "", err
	}
	metricName := req.Metric
	if metricName == "" {
		metricName = metric.DefaultName
	}
	fitness, err := metric.Lookup(metricName)
	if err != nil {
		return evo.Config{}, "", err
	}
	tournament := req.TournamentSize
	if tournament <= 0 {
		tournament = evo.DefaultConfig().TournamentSize
	}
	var selector evo.Selector
	if req.Selection != "" {
		if selector, err = evo.SelectorFromName(req.Selection, tournament); err != nil {
			return evo.Config{}, "", err
		}
	}

	defaults := evo.DefaultConfig()
	population := req.Population
	if population <= 0 {
		population = defaults.PopulationSize
	}
	generations := req.Generations
	if generations <= 0 {
		generations = defaults.Generations
	}
	return evo.Config{
		Registry:            reg,
		Samples:             samples,
		Metric:              fitness,
		Strategy:            req.Strategy,
		PopulationSize:      population,
		Generations:         generations,
		Survivors:           req.Survivors,
		EliteCount:          req.EliteCount,
		MinLength:           req.MinLength,
		MaxLength:           req.MaxLength,
		FixedLength:         req.FixedLength,
		MaxSpan:             req.MaxSpan,
		MutationRate:        req.MutationRate,
		CrossoverRate:       req.CrossoverRate,
		ReproductionRate:    req.ReproductionRate,
		RandomPerGeneration: req.RandomPerGeneration,
		TournamentSize:      tournament,
		Selector:            selector,
		Oscillation:         req.Oscillation,
		Islands:             req.Islands,
		Seed:                req.Seed,
		Save:                req.Save,
	}, metricName, nil
}

func runConfig(runID string, req RunRequest, search evo.Config, run model.Run) stats.RunConfig {
	selection := req.Selection
	if selection == "" {
		selection = "tournament"
	}
	return stats.RunConfig{
		RunID:               runID,
		Strategy:            run.Strategy,
		Metric:              run.Metric,
		Operators:           run.Operators,
		Variable:            run.Variable,
		DataSource:          req.DataSource,
		Samples:             run.Samples,
		PopulationSize:      run.PopulationSize,
		Generations:         run.Generations,
		Survivors:           req.Survivors,
		EliteCount:          req.EliteCount,
		MinLength:           req.MinLength,
		MaxLength:           req.MaxLength,
		FixedLength:         req.FixedLength,
		MaxSpan:             req.MaxSpan,
		MutationRate:        search.MutationRate,
		CrossoverRate:       search.CrossoverRate,
		ReproductionRate:    search.ReproductionRate,
		RandomPerGeneration: search.RandomPerGeneration,
		Selection:           selection,
		TournamentSize:      search.TournamentSize,
		OscillationPeriod:   req.Oscillation.Period,
		OscillationFloor:    req.Oscillation.Floor,
		IslandCount:         req.Islands.Count,
		IslandSize:          req.Islands.Size,
		IslandGenerations:   req.Islands.Generations,
		IslandKeep:          req.Islands.Keep,
		Seed:                run.Seed,
	}
}
