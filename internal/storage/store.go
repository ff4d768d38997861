package storage

import (
	"context"

	"symreg/internal/model"
)

// Store defines persistence of runs and their generation snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context) ([]model.Run, error)
	DeleteRun(ctx context.Context, id string) error
	SaveGeneration(ctx context.Context, generation model.Generation) error
	GetGeneration(ctx context.Context, runID, label string) (model.Generation, bool, error)
	ListGenerations(ctx context.Context, runID string) ([]string, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
