// Package platform runs searches against a store: it records runs, saves
// generation snapshots and keeps track of the searches in flight.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"symreg/internal/evo"
	"symreg/internal/individual"
	"symreg/internal/logx"
	"symreg/internal/model"
	"symreg/internal/readcode"
	"symreg/internal/stats"
	"symreg/internal/storage"
	"symreg/internal/symbolic"
)

const DefaultTopCount = 5

var (
	ErrNotInitialized = errors.New("polis is not initialized")
	ErrRunActive      = errors.New("run already active")
	ErrRunNotActive   = errors.New("run not active")
)

type Config struct {
	Store  storage.Store
	Logger *logx.Logger
}

type EvolutionConfig struct {
	RunID      string
	MetricName string
	Search     evo.Config
	TopCount   int
	CreatedAt  time.Time
}

type EvolutionResult struct {
	Run                   model.Run
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	BestFinalFitness      float64
	TopFinal              []model.IndividualRecord
}

// Polis owns the store and the cancel functions of active runs.
type Polis struct {
	store storage.Store
	log   *logx.Logger

	mu      sync.RWMutex
	started bool
	runs    map[string]context.CancelFunc
}

func NewPolis(cfg Config) *Polis {
	log := cfg.Logger
	if log == nil {
		log = logx.Nop()
	}
	return &Polis{
		store: cfg.Store,
		log:   log,
		runs:  make(map[string]context.CancelFunc),
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Store() storage.Store {
	return p.store
}

// RunEvolution runs one search to completion and persists its history. With
// save mode on and no sink configured, generations go to the store.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if !p.Started() {
		return EvolutionResult{}, ErrNotInitialized
	}
	if cfg.RunID == "" {
		return EvolutionResult{}, fmt.Errorf("run id is required")
	}
	if cfg.TopCount <= 0 {
		cfg.TopCount = DefaultTopCount
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}

	search := cfg.Search
	if search.Save && search.Sink == nil {
		search.Sink = &StoreSink{Store: p.store, RunID: cfg.RunID}
	}
	if search.Logger == nil {
		search.Logger = p.log
	}
	controller, err := evo.NewController(search)
	if err != nil {
		return EvolutionResult{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := p.registerRun(cfg.RunID, cancel); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRun(cfg.RunID)

	resolved := controller.Config()
	run := model.Run{
		VersionedRecord: storage.Versioned(),
		ID:              cfg.RunID,
		Strategy:        resolved.Strategy,
		Metric:          cfg.MetricName,
		Seed:            controller.Seed(),
		PopulationSize:  resolved.PopulationSize,
		Generations:     resolved.Generations,
		Operators:       resolved.Registry.Names(),
		Variable:        resolved.Registry.Variable(),
		Samples:         resolved.Samples.Len(),
		CreatedAtUTC:    stats.Timestamp(cfg.CreatedAt),
		BestFitness:     individual.FitnessCeiling,
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run %s: %w", cfg.RunID, err)
	}

	result, err := controller.Run(runCtx)
	if err != nil {
		return EvolutionResult{}, err
	}

	diagnostics := toModelDiagnostics(result.Diagnostics)
	if err := p.store.SaveFitnessHistory(ctx, cfg.RunID, result.BestByGeneration); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, cfg.RunID, diagnostics); err != nil {
		return EvolutionResult{}, err
	}

	top := ToRecords(validOnly(result.Final), cfg.TopCount)
	run.Completed = true
	if len(top) > 0 {
		run.BestFormula = top[0].Formula
		run.BestFitness = top[0].Fitness
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run %s: %w", cfg.RunID, err)
	}

	return EvolutionResult{
		Run:                   run,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: diagnostics,
		BestFinalFitness:      run.BestFitness,
		TopFinal:              top,
	}, nil
}

// StopRun cancels an active run; it ends before its next generation.
func (p *Polis) StopRun(runID string) error {
	p.mu.RLock()
	cancel, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	cancel()
	return nil
}

func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Polis) registerRun(runID string, cancel context.CancelFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	p.runs[runID] = cancel
	return nil
}

func (p *Polis) unregisterRun(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

// StoreSink saves generation snapshots of one run.
type StoreSink struct {
	Store storage.Store
	RunID string
}

func (s *StoreSink) SaveGeneration(ctx context.Context, label string, snap evo.Snapshot) error {
	return s.Store.SaveGeneration(ctx, model.Generation{
		VersionedRecord: storage.Versioned(),
		RunID:           s.RunID,
		Label:           label,
		Index:           snap.Index,
		Individuals:     ToRecords(snap.Individuals, len(snap.Individuals)),
		Diagnostics:     toModelDiagnostic(snap.Diagnostics),
	})
}

// ToRecords converts the first k individuals of gen.
func ToRecords(gen evo.Generation, k int) []model.IndividualRecord {
	k = min(max(k, 0), len(gen))
	out := make([]model.IndividualRecord, 0, k)
	for _, ind := range gen[:k] {
		fitness := individual.FitnessCeiling
		if ind.IsValid() {
			fitness = ind.Fitness.Value()
		}
		out = append(out, model.IndividualRecord{
			Code:    ind.Tree.Code().String(),
			Symbols: symbolic.EncodeSymbols(ind.Tree.Symbols()),
			Formula: ind.Formula(),
			Fitness: fitness,
		})
	}
	return out
}

// RebuildTree restores the tree a record was made from.
func RebuildTree(reg *symbolic.Registry, rec model.IndividualRecord) (*symbolic.Tree, error) {
	code, err := readcode.Parse(rec.Code)
	if err != nil {
		return nil, err
	}
	symbols, err := symbolic.DecodeSymbols(rec.Symbols)
	if err != nil {
		return nil, err
	}
	return symbolic.NewTree(reg, code, symbols)
}

func validOnly(gen evo.Generation) evo.Generation {
	out := make(evo.Generation, 0, len(gen))
	for _, ind := range gen {
		if ind.IsValid() {
			out = append(out, ind)
		}
	}
	return out
}

func toModelDiagnostics(diags []evo.Diagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(diags))
	for _, d := range diags {
		out = append(out, toModelDiagnostic(d))
	}
	return out
}

func toModelDiagnostic(d evo.Diagnostics) model.GenerationDiagnostics {
	return model.GenerationDiagnostics{
		Generation:    d.Generation,
		Size:          d.Size,
		Valid:         d.Valid,
		Distinct:      d.Distinct,
		BestFitness:   d.BestFitness,
		MeanFitness:   d.MeanFitness,
		StdDevFitness: d.StdDevFitness,
		MeanLength:    d.MeanLength,
		BestFormula:   d.BestFormula,
	}
}
