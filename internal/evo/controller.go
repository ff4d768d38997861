package evo

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slices"

	"symreg/internal/individual"
	"symreg/internal/logx"
	"symreg/internal/readcode"
	"symreg/internal/symbolic"
)

// Generation is one population snapshot. Primitives never modify a
// generation they are given; they return a new one.
type Generation []individual.Individual

type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateEvaluating
	StateEvolving
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateEvaluating:
		return "evaluating"
	case StateEvolving:
		return "evolving"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Result struct {
	Seed             int64
	Strategy         string
	BestByGeneration []float64
	Diagnostics      []Diagnostics
	Final            Generation
}

// Controller drives one search. Each primitive holds the controller mutex
// for its whole duration so the search can run on one goroutine while
// others poll State, Finished and Latest.
type Controller struct {
	cfg      Config
	seed     int64
	rng      *rand.Rand
	builder  *symbolic.Builder
	strategy Strategy
	log      *logx.Logger

	mu        sync.Mutex
	lengthCap int

	state    atomic.Int32
	finished atomic.Bool
	latest   atomic.Pointer[Snapshot]
}

func NewController(cfg Config) (*Controller, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	strategy, err := LookupStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	rng := cfg.Rand
	if rng == nil {
		if seed == 0 {
			seed = entropySeed()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	builder, err := symbolic.NewBuilder(cfg.Registry, rng)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:       cfg,
		seed:      seed,
		rng:       rng,
		builder:   builder,
		strategy:  strategy,
		log:       cfg.Logger,
		lengthCap: cfg.MaxLength,
	}, nil
}

func entropySeed() int64 {
	var buf [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(buf[:]); err == nil {
		seed ^= int64(binary.LittleEndian.Uint64(buf[:]))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Seed is the configured or generated seed. It is zero when a random source
// was injected without one.
func (c *Controller) Seed() int64 {
	return c.seed
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) Finished() bool {
	return c.finished.Load()
}

// Latest returns the most recent evaluated generation, if any.
func (c *Controller) Latest() (Snapshot, bool) {
	snap := c.latest.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Run executes the configured strategy for the configured number of
// generations. Cancellation is only observed between generations.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	defer func() {
		c.setState(StateFinished)
		c.finished.Store(true)
	}()

	start := time.Now()
	c.log.Infof(logx.ChanInit, "strategy=%s population=%d generations=%d seed=%d", c.strategy.Name(), c.cfg.PopulationSize, c.cfg.Generations, c.seed)
	c.setState(StateInitializing)
	population, err := c.strategy.Seed(ctx, c)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Seed:             c.seed,
		Strategy:         c.strategy.Name(),
		BestByGeneration: make([]float64, 0, c.cfg.Generations),
		Diagnostics:      make([]Diagnostics, 0, c.cfg.Generations),
	}
	for gen := 0; gen < c.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		c.setState(StateEvaluating)
		selected := c.Survive(population, c.cfg.Survivors)
		diag := summarizeGeneration(selected, gen)
		snap := Snapshot{Index: gen, Label: GenerationLabel(gen), Individuals: selected, Diagnostics: diag}
		c.latest.Store(&snap)
		result.BestByGeneration = append(result.BestByGeneration, diag.BestFitness)
		result.Diagnostics = append(result.Diagnostics, diag)
		c.log.Debugf(logx.ChanGen, "generation=%d size=%d valid=%d best=%.6g mean=%.6g distinct=%d", gen, diag.Size, diag.Valid, diag.BestFitness, diag.MeanFitness, diag.Distinct)

		if c.cfg.Save {
			if err := c.cfg.Sink.SaveGeneration(ctx, snap.Label, snap); err != nil {
				return Result{}, fmt.Errorf("save %s: %w", snap.Label, err)
			}
			c.log.Debugf(logx.ChanSave, "saved %s", snap.Label)
		}
		result.Final = selected
		if gen == c.cfg.Generations-1 {
			break
		}

		c.setState(StateEvolving)
		population = c.strategy.Step(c, gen, selected)
		if missing := c.cfg.PopulationSize - len(population); missing > 0 {
			population = c.AddRandom(population, missing)
		}
	}

	best := "none"
	if len(result.Final) > 0 && result.Final[0].IsValid() {
		best = result.Final[0].Formula()
	}
	c.log.Infof(logx.ChanDone, "finished in %s best=%s", logx.FormatDuration(time.Since(start)), best)
	return result, nil
}

// Survive scores a generation and keeps its k best distinct valid members.
func (c *Controller) Survive(gen Generation, k int) Generation {
	scored := c.ValidateFitness(gen)
	scored = c.DropInvalid(scored)
	scored = c.DropDuplicates(scored)
	return c.SelectBest(scored, k)
}

// Initialize creates size random individuals. A positive fixedLength gives
// every tree that many nodes, otherwise lengths are uniform in the current
// length window.
func (c *Controller) Initialize(size, fixedLength int) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialize(size, fixedLength)
}

func (c *Controller) initialize(size, fixedLength int) Generation {
	out := make(Generation, 0, size)
	for i := 0; i < size; i++ {
		n := fixedLength
		if n <= 0 {
			n = c.randomLength()
		}
		out = append(out, individual.New(c.randomTree(n)))
	}
	return out
}

func (c *Controller) randomLength() int {
	lo, hi := c.cfg.MinLength, c.lengthCap
	if hi < lo {
		hi = lo
	}
	return lo + c.rng.Intn(hi-lo+1)
}

// randomTree builds a tree of n nodes. When the arity window rules n out it
// takes the nearest shorter feasible length not below MinLength, then the
// nearest longer one up to the length cap, and only then anything shorter.
func (c *Controller) randomTree(n int) *symbolic.Tree {
	tree, err := c.builder.Random(c.feasibleLength(n))
	if err != nil {
		panic(fmt.Sprintf("evo: %v", err))
	}
	return tree
}

func (c *Controller) feasibleLength(n int) int {
	if c.builder.Feasible(n) {
		return n
	}
	lo, hi := c.cfg.MinLength, max(c.lengthCap, c.cfg.MinLength)
	for m := min(n-1, hi); m >= lo; m-- {
		if c.builder.Feasible(m) {
			return m
		}
	}
	for m := max(n+1, lo); m <= hi; m++ {
		if c.builder.Feasible(m) {
			return m
		}
	}
	for m := min(n, lo) - 1; m > 1; m-- {
		if c.builder.Feasible(m) {
			return m
		}
	}
	return 1
}

// ValidateFitness scores every individual against the training samples.
func (c *Controller) ValidateFitness(gen Generation) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Generation, len(gen))
	for i, ind := range gen {
		predicted := ind.Tree.EvalAll(c.cfg.Samples.x)
		out[i] = ind.WithFitness(c.cfg.Metric(c.cfg.Samples.y, predicted))
	}
	return out
}

// DropInvalid keeps valid individuals in their original order.
func (c *Controller) DropInvalid(gen Generation) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Generation, 0, len(gen))
	for _, ind := range gen {
		if ind.IsValid() {
			out = append(out, ind)
		}
	}
	return out
}

// DropDuplicates canonicalizes every individual and keeps only the first
// of each formula.
func (c *Controller) DropDuplicates(gen Generation) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Generation, 0, len(gen))
	seen := make(map[string]struct{}, len(gen))
	for _, ind := range gen {
		ind.Tree = ind.Tree.Canonicalize()
		key := ind.Tree.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ind)
	}
	return out
}

// SelectBest sorts by ascending fitness and keeps the first k.
func (c *Controller) SelectBest(gen Generation, k int) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return selectBest(gen, k)
}

func selectBest(gen Generation, k int) Generation {
	sorted := Generation(individual.Sorted(gen))
	if k < 0 {
		k = 0
	}
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k:k]
}

// MutateAll appends a mutated copy of each individual with probability p.
func (c *Controller) MutateAll(gen Generation, p float64) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(gen)
	opts := c.mutateOptions()
	for _, ind := range gen {
		if c.rng.Float64() < p {
			out = append(out, ind.Mutate(c.builder, opts))
		}
	}
	return out
}

// CrossAll pairs individuals at random and appends both children of each
// pair with probability p.
func (c *Controller) CrossAll(gen Generation, p float64) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(gen)
	opts := c.crossOptions()
	order := c.rng.Perm(len(gen))
	for i := 0; i+1 < len(order); i += 2 {
		if c.rng.Float64() >= p {
			continue
		}
		x, y := individual.Cross(c.builder, gen[order[i]], gen[order[i+1]], opts)
		out = append(out, x, y)
	}
	return out
}

// Reproduce replaces a scored generation with one of equal size whose
// members are selected parents copied with probability p, or otherwise the
// first child of two selected parents.
func (c *Controller) Reproduce(gen Generation, p float64) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(gen) == 0 {
		return Generation{}
	}
	sel := c.cfg.Selector
	opts := c.crossOptions()
	out := make(Generation, 0, len(gen))
	for len(out) < len(gen) {
		parent := sel.PickParent(c.rng, gen)
		if c.rng.Float64() < p {
			out = append(out, parent)
			continue
		}
		child, _ := individual.Cross(c.builder, parent, sel.PickParent(c.rng, gen), opts)
		out = append(out, child)
	}
	return out
}

// AddRandom appends count fresh random individuals.
func (c *Controller) AddRandom(gen Generation, count int) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(gen)
	return append(out, c.initialize(count, 0)...)
}

// SetLengthCap bounds the code length of trees produced from now on,
// clamped to the configured length window.
func (c *Controller) SetLengthCap(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lengthCap = min(max(n, c.cfg.MinLength), c.cfg.MaxLength)
}

func (c *Controller) LengthCap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lengthCap
}

func (c *Controller) mutateOptions() readcode.MutateOptions {
	return readcode.MutateOptions{
		MaxSpan:  c.cfg.MaxSpan,
		MinTotal: c.cfg.MinLength,
		MaxTotal: c.lengthCap,
	}
}

func (c *Controller) crossOptions() readcode.CrossOptions {
	return readcode.CrossOptions{
		MinTotal: c.cfg.MinLength,
		MaxTotal: c.lengthCap,
	}
}

// Best returns up to k solutions of the latest generation.
func (c *Controller) Best(k int) []Solution {
	snap, ok := c.Latest()
	if !ok {
		return nil
	}
	return Solutions(snap.Individuals, k)
}
