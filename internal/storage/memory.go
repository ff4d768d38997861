package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"symreg/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.Run
	generations map[string]map[string]model.Generation
	history     map[string][]float64
	diagnostics map[string][]model.GenerationDiagnostics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.Run)
	s.generations = make(map[string]map[string]model.Generation)
	s.history = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	run.Operators = append([]string(nil), run.Operators...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.generations, id)
	delete(s.history, id)
	delete(s.diagnostics, id)
	return nil
}

func (s *MemoryStore) SaveGeneration(_ context.Context, generation model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	byLabel, ok := s.generations[generation.RunID]
	if !ok {
		byLabel = make(map[string]model.Generation)
		s.generations[generation.RunID] = byLabel
	}
	generation.Individuals = append([]model.IndividualRecord(nil), generation.Individuals...)
	byLabel[generation.Label] = generation
	return nil
}

func (s *MemoryStore) GetGeneration(_ context.Context, runID, label string) (model.Generation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generation, ok := s.generations[runID][label]
	return generation, ok, nil
}

// ListGenerations returns the labels saved for a run in generation order.
func (s *MemoryStore) ListGenerations(_ context.Context, runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byLabel := s.generations[runID]
	generations := make([]model.Generation, 0, len(byLabel))
	for _, generation := range byLabel {
		generations = append(generations, generation)
	}
	sort.Slice(generations, func(i, j int) bool {
		return generations[i].Index < generations[j].Index
	})
	labels := make([]string, len(generations))
	for i, generation := range generations {
		labels[i] = generation.Label
	}
	return labels, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diagnostics[runID] = append([]model.GenerationDiagnostics(nil), diagnostics...)
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationDiagnostics(nil), diagnostics...), true, nil
}

var errNotInitialized = errors.New("store is not initialized")

func sortRuns(runs []model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}
