package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"symreg/internal/logx"
	"symreg/internal/metric"
	"symreg/internal/symbolic"
)

const (
	DefaultStrategy  = "plus"
	DefaultMinLength = 1
	DefaultMaxLength = 32
)

type OscillationConfig struct {
	// Period is the number of generations of one full down-and-up cycle of
	// the length cap.
	Period int
	// Floor is the lowest length cap reached.
	Floor int
}

type IslandConfig struct {
	Count       int
	Size        int
	Generations int
	Keep        int
}

type Config struct {
	Registry *symbolic.Registry
	Samples  Samples
	Metric   metric.Func
	Strategy string

	PopulationSize int
	Generations    int
	Survivors      int
	EliteCount     int

	MinLength   int
	MaxLength   int
	FixedLength int
	MaxSpan     int

	MutationRate        float64
	CrossoverRate       float64
	ReproductionRate    float64
	RandomPerGeneration int
	TournamentSize      int
	Selector            Selector

	Oscillation OscillationConfig
	Islands     IslandConfig

	// Seed seeds the random source when Rand is nil. Zero mixes wall-clock
	// time with system entropy.
	Seed int64
	Rand *rand.Rand

	Save   bool
	Sink   GenerationSink
	Logger *logx.Logger
}

func validateRate(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1]: %v", name, v)
	}
	return nil
}

func (cfg Config) withDefaults() (Config, error) {
	if cfg.Registry == nil {
		return cfg, errors.New("operator registry is required")
	}
	if cfg.Samples.Len() == 0 {
		return cfg, errors.New("training samples are required")
	}
	if cfg.PopulationSize <= 0 {
		return cfg, errors.New("population size must be > 0")
	}
	if cfg.Generations <= 0 {
		return cfg, errors.New("generations must be > 0")
	}
	if cfg.Metric == nil {
		cfg.Metric = metric.MSE
	}
	if cfg.Strategy == "" {
		cfg.Strategy = DefaultStrategy
	}
	if cfg.Survivors == 0 {
		cfg.Survivors = cfg.PopulationSize
	}
	if cfg.Survivors < 1 || cfg.Survivors > cfg.PopulationSize {
		return cfg, errors.New("survivors must be in [1, population size]")
	}
	if cfg.EliteCount == 0 {
		cfg.EliteCount = 1
	}
	if cfg.EliteCount < 0 || cfg.EliteCount > cfg.Survivors {
		return cfg, errors.New("elite count must be in [0, survivors]")
	}
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.MinLength < 1 || cfg.MaxLength < cfg.MinLength {
		return cfg, fmt.Errorf("length bounds must satisfy 1 <= min <= max: [%d,%d]", cfg.MinLength, cfg.MaxLength)
	}
	if cfg.FixedLength < 0 || cfg.FixedLength > cfg.MaxLength {
		return cfg, fmt.Errorf("fixed length must be in [0, max length]: %d", cfg.FixedLength)
	}
	if cfg.MaxSpan < 0 {
		return cfg, errors.New("max span must be >= 0")
	}
	if cfg.MaxSpan == 0 {
		cfg.MaxSpan = max(1, cfg.MaxLength/2)
	}
	for _, r := range []struct {
		name string
		v    float64
	}{
		{"mutation rate", cfg.MutationRate},
		{"crossover rate", cfg.CrossoverRate},
		{"reproduction rate", cfg.ReproductionRate},
	} {
		if err := validateRate(r.name, r.v); err != nil {
			return cfg, err
		}
	}
	if cfg.RandomPerGeneration < 0 {
		return cfg, errors.New("random per generation must be >= 0")
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = 3
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{TournamentSize: cfg.TournamentSize}
	}

	if cfg.Oscillation.Period <= 0 {
		cfg.Oscillation.Period = 10
	}
	if cfg.Oscillation.Floor <= 0 {
		cfg.Oscillation.Floor = max(cfg.MinLength, cfg.MaxLength/4)
	}
	if cfg.Oscillation.Floor > cfg.MaxLength {
		return cfg, errors.New("oscillation floor must be <= max length")
	}

	if cfg.Islands.Count <= 0 {
		cfg.Islands.Count = 8
	}
	if cfg.Islands.Size <= 0 {
		cfg.Islands.Size = max(4, cfg.PopulationSize/4)
	}
	if cfg.Islands.Generations <= 0 {
		cfg.Islands.Generations = 5
	}
	if cfg.Islands.Keep <= 0 {
		cfg.Islands.Keep = 2
	}
	if cfg.Islands.Keep > cfg.Islands.Size {
		return cfg, errors.New("island keep must be <= island size")
	}

	if cfg.Save && cfg.Sink == nil {
		return cfg, errors.New("save mode requires a generation sink")
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.Nop()
	}
	return cfg, nil
}

// DefaultConfig returns a plus-strategy configuration without registry or
// samples.
func DefaultConfig() Config {
	return Config{
		Strategy:            DefaultStrategy,
		PopulationSize:      100,
		Generations:         50,
		MinLength:           DefaultMinLength,
		MaxLength:           DefaultMaxLength,
		MutationRate:        0.5,
		CrossoverRate:       0.5,
		ReproductionRate:    0.1,
		RandomPerGeneration: 10,
		TournamentSize:      3,
	}
}
