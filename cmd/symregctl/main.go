package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"symreg/internal/dataset"
	"symreg/internal/evo"
	"symreg/internal/logx"
	"symreg/internal/metric"
	"symreg/internal/stats"
	"symreg/internal/storage"
	"symreg/internal/symbolic"
	"symreg/pkg/symreg"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
	dbPath     = "symreg.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "eval":
		return runEval(ctx, args[1:])
	case "operators":
		return runOperators(args[1:])
	case "strategies":
		return runStrategies(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags are shared by every command that opens a client.
type storeFlags struct {
	kind     *string
	dbPath   *string
	logLevel *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:   fs.String("db-path", dbPath, "sqlite database path"),
		logLevel: fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f storeFlags) open() (*symreg.Client, error) {
	level, err := logx.ParseLevel(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return symreg.New(symreg.Options{
		StoreKind:  *f.kind,
		DBPath:     *f.dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     logx.New(os.Stderr, level),
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *sf.kind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	defaults := symreg.DefaultRunRequest()
	defaultData := defaultDataSource()

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	configPath := fs.String("config", "", "optional TOML run config; explicitly set flags override it")
	dataPath := fs.String("data", "", "CSV file with x and y columns")
	xColumn := fs.String("x-column", "", "x column name (default first column)")
	yColumn := fs.String("y-column", "", "y column name (default last column)")
	target := fs.String("target", "", "formula to sample instead of a CSV, e.g. \"(x * x) + 1\"")
	from := fs.Float64("from", defaultData.From, "first x sampled from target")
	to := fs.Float64("to", defaultData.To, "last x sampled from target")
	samples := fs.Int("samples", defaultData.Samples, "number of points sampled from target")
	ops := fs.String("ops", strings.Join(defaults.Operators, ","), "comma-separated operator names")
	variable := fs.String("var", defaults.Variable, "variable name")
	noConstants := fs.Bool("no-constants", false, "disable embedded constants")
	strategy := fs.String("strategy", defaults.Strategy, "search strategy: "+strings.Join(evo.StrategyNames(), "|"))
	metricName := fs.String("metric", defaults.Metric, "fitness metric: "+strings.Join(metric.Names(), "|"))
	pop := fs.Int("pop", defaults.Population, "population size")
	gens := fs.Int("gens", defaults.Generations, "generations")
	survivors := fs.Int("survivors", 0, "parents kept per generation (plus strategy)")
	elite := fs.Int("elite", 0, "elite copied unchanged (generational strategies)")
	minLength := fs.Int("min-length", defaults.MinLength, "shortest code generated")
	maxLength := fs.Int("max-length", defaults.MaxLength, "longest code generated")
	fixedLength := fs.Int("fixed-length", 0, "generate every code at exactly this length")
	maxSpan := fs.Int("max-span", 0, "largest subtree span touched by mutation and crossover")
	mutationRate := fs.Float64("mutation-rate", defaults.MutationRate, "share of offspring made by mutation")
	crossoverRate := fs.Float64("crossover-rate", defaults.CrossoverRate, "share of offspring made by crossover")
	reproductionRate := fs.Float64("reproduction-rate", defaults.ReproductionRate, "share of offspring copied unchanged")
	random := fs.Int("random", defaults.RandomPerGeneration, "fresh random individuals per generation")
	selection := fs.String("selection", defaults.Selection, "parent selection: tournament|elite")
	tournament := fs.Int("tournament", defaults.TournamentSize, "tournament size")
	seed := fs.Int64("seed", 0, "rng seed (0 picks one from the clock)")
	save := fs.Bool("save", false, "persist every generation to the store")
	top := fs.Int("top", defaults.TopCount, "number of formulas reported")
	period := fs.Int("period", 0, "oscillating strategy: generations per length cycle")
	floor := fs.Int("floor", 0, "oscillating strategy: lowest length cap")
	islands := fs.Int("islands", 0, "islands strategy: number of islands")
	islandSize := fs.Int("island-size", 0, "islands strategy: population per island")
	islandGens := fs.Int("island-gens", 0, "islands strategy: generations per island")
	islandKeep := fs.Int("island-keep", 0, "islands strategy: individuals kept from each island")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := defaults
	data := defaultData
	if *configPath != "" {
		loaded, loadedData, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		req, data = loaded, loadedData
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if err := overrideFromFlags(&req, &data, set, map[string]any{
		"data":              *dataPath,
		"x-column":          *xColumn,
		"y-column":          *yColumn,
		"target":            *target,
		"from":              *from,
		"to":                *to,
		"samples":           *samples,
		"ops":               *ops,
		"var":               *variable,
		"no-constants":      *noConstants,
		"strategy":          *strategy,
		"metric":            *metricName,
		"pop":               *pop,
		"gens":              *gens,
		"survivors":         *survivors,
		"elite":             *elite,
		"min-length":        *minLength,
		"max-length":        *maxLength,
		"fixed-length":      *fixedLength,
		"max-span":          *maxSpan,
		"mutation-rate":     *mutationRate,
		"crossover-rate":    *crossoverRate,
		"reproduction-rate": *reproductionRate,
		"random":            *random,
		"selection":         *selection,
		"tournament":        *tournament,
		"seed":              *seed,
		"save":              *save,
		"top":               *top,
		"period":            *period,
		"floor":             *floor,
		"islands":           *islands,
		"island-size":       *islandSize,
		"island-gens":       *islandGens,
		"island-keep":       *islandKeep,
	}); err != nil {
		return err
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	points, source, err := loadData(client, data, req.Variable)
	if err != nil {
		return err
	}
	req.X, req.Y, req.DataSource = points.X, points.Y, source

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		type topItem struct {
			Rank    int     `json:"rank"`
			Fitness float64 `json:"fitness"`
			Length  int     `json:"length"`
			Formula string  `json:"formula"`
		}
		type runOut struct {
			RunID            string    `json:"run_id"`
			Seed             int64     `json:"seed"`
			ArtifactsDir     string    `json:"artifacts_dir"`
			BestByGeneration []float64 `json:"best_by_generation"`
			FinalBestFitness float64   `json:"final_best_fitness"`
			BestFormula      string    `json:"best_formula"`
			Top              []topItem `json:"top"`
		}
		out := runOut{
			RunID:            summary.RunID,
			Seed:             summary.Seed,
			ArtifactsDir:     summary.ArtifactsDir,
			BestByGeneration: summary.BestByGeneration,
			FinalBestFitness: summary.FinalBestFitness,
			BestFormula:      summary.BestFormula,
			Top:              make([]topItem, 0, len(summary.Top)),
		}
		for _, item := range summary.Top {
			out.Top = append(out.Top, topItem{Rank: item.Rank, Fitness: item.Fitness, Length: item.Length, Formula: item.Formula})
		}
		return printJSON(out)
	}

	fmt.Printf("run_id=%s seed=%d samples=%d final_best_fitness=%.6g\n",
		summary.RunID, summary.Seed, points.Len(), summary.FinalBestFitness)
	fmt.Printf("best=%s\n", summary.BestFormula)
	for _, item := range summary.Top {
		fmt.Printf("%d. fitness=%.6g length=%d %s\n", item.Rank, item.Fitness, item.Length, item.Formula)
	}
	fmt.Printf("artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

// loadData reads the samples a run searches over and describes their source.
func loadData(client *symreg.Client, data dataSource, variable string) (dataset.Data, string, error) {
	switch {
	case data.Path != "" && data.Target != "":
		return dataset.Data{}, "", errors.New("use either --data or --target")
	case data.Path != "":
		opts := dataset.DefaultCSVOptions()
		opts.XColumnName = data.XColumn
		opts.YColumnName = data.YColumn
		points, err := dataset.LoadCSV(data.Path, opts)
		if err != nil {
			return dataset.Data{}, "", err
		}
		return points, "csv:" + data.Path, nil
	case data.Target != "":
		expr, err := client.Compile(data.Target, variable)
		if err != nil {
			return dataset.Data{}, "", err
		}
		points, err := dataset.Synthesize(expr, data.From, data.To, data.Samples)
		if err != nil {
			return dataset.Data{}, "", err
		}
		return points, "target:" + expr.String(), nil
	default:
		return dataset.Data{}, "", errors.New("run requires --data or --target")
	}
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}

	if *jsonOut {
		return printJSON(entries)
	}

	now := time.Now()
	for _, e := range entries {
		fmt.Printf("run_id=%s age=%q strategy=%s seed=%d pop=%d gens=%d final_best_fitness=%.6g best=%s\n",
			e.RunID,
			stats.Age(e.CreatedAtUTC, now),
			e.Strategy,
			e.Seed,
			e.PopulationSize,
			e.Generations,
			e.FinalBestFitness,
			e.BestFormula,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run from run index")
	jsonOut := fs.Bool("json", false, "emit run details as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	details, err := client.Show(ctx, symreg.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		type showOut struct {
			RunID            string    `json:"run_id"`
			CreatedAtUTC     string    `json:"created_at_utc"`
			Strategy         string    `json:"strategy"`
			Metric           string    `json:"metric"`
			Seed             int64     `json:"seed"`
			Operators        []string  `json:"operators"`
			Variable         string    `json:"variable"`
			DataSource       string    `json:"data_source,omitempty"`
			Samples          int       `json:"samples"`
			Population       int       `json:"population_size"`
			Generations      int       `json:"generations"`
			BestByGeneration []float64 `json:"best_by_generation"`
			FinalBestFitness float64   `json:"final_best_fitness"`
		}
		return printJSON(showOut{
			RunID:            details.RunID,
			CreatedAtUTC:     details.CreatedAtUTC,
			Strategy:         details.Strategy,
			Metric:           details.Metric,
			Seed:             details.Seed,
			Operators:        details.Operators,
			Variable:         details.Variable,
			DataSource:       details.DataSource,
			Samples:          details.Samples,
			Population:       details.Population,
			Generations:      details.Generations,
			BestByGeneration: details.BestByGeneration,
			FinalBestFitness: details.FinalBestFitness,
		})
	}
	fmt.Print(details.Report)
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run from run index")
	limit := fs.Int("limit", 0, "max formulas to print (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.Best(ctx, symreg.BestRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	for _, item := range top {
		fmt.Printf("rank=%d fitness=%.6g length=%d formula=%s\n", item.Rank, item.Fitness, item.Length, item.Formula)
	}
	return nil
}

// runGenerations lists the saved generations of a run, or prints one of them.
// It needs a persistent store and a run made with --save.
func runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run from run index")
	label := fs.String("label", "", "print the members of this generation")
	limit := fs.Int("limit", 10, "max members printed with --label")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *label == "" {
		labels, err := client.Generations(ctx, *runID, *latest)
		if err != nil {
			return err
		}
		for _, l := range labels {
			fmt.Println(l)
		}
		return nil
	}

	view, err := client.Generation(ctx, symreg.GenerationRequest{RunID: *runID, Latest: *latest, Label: *label})
	if err != nil {
		return err
	}
	d := view.Diagnostics
	fmt.Printf("generation=%s index=%d size=%d valid=%d distinct=%d best=%.6g mean=%.6g mean_length=%.2f\n",
		view.Label, view.Index, d.Size, d.Valid, d.Distinct, d.BestFitness, d.MeanFitness, d.MeanLength)
	for i, member := range view.Individuals {
		if i >= *limit {
			break
		}
		fmt.Printf("%d. fitness=%.6g %s\n", i+1, member.Fitness, member.Formula)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use latest run from run index")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6g\n", i+1, best)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export latest run from run index")
	outDir := fs.String("out", exportsDir, "export output base directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, symreg.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

// runEval prints a formula over a list of points, or over an even grid, as
// CSV on stdout.
func runEval(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	expr := fs.String("formula", "", "formula to evaluate")
	variable := fs.String("var", symbolic.DefaultRegistryConfig().Variable, "variable name")
	points := fs.String("x", "", "comma-separated x values")
	from := fs.Float64("from", -1, "first grid point when --x is not set")
	to := fs.Float64("to", 1, "last grid point when --x is not set")
	samples := fs.Int("samples", 11, "grid points when --x is not set")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expr == "" {
		return errors.New("eval requires --formula")
	}

	var xs []float64
	var err error
	if *points != "" {
		xs, err = parseFloatList(*points)
	} else {
		xs, err = dataset.Linspace(*from, *to, *samples)
	}
	if err != nil {
		return err
	}

	client, err := symreg.New(symreg.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ys, err := client.Eval(ctx, symreg.EvalRequest{Formula: *expr, Variable: *variable, X: xs})
	if err != nil {
		return err
	}
	return dataset.WriteCSV(os.Stdout, dataset.Data{X: xs, Y: ys}, *variable)
}

func runOperators(args []string) error {
	fs := flag.NewFlagSet("operators", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	operands := []any{"a", "b", "c"}
	for _, name := range symbolic.OperatorNames() {
		op, _ := symbolic.LookupName(name)
		fmt.Printf("%-6s arity=%d %s\n", op.Name, op.Arity, fmt.Sprintf(op.Template, operands[:op.Arity]...))
	}
	return nil
}

func runStrategies(args []string) error {
	fs := flag.NewFlagSet("strategies", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range evo.StrategyNames() {
		fmt.Println(name)
	}
	return nil
}

func parseFloatList(raw string) ([]float64, error) {
	parts := parseCommaSeparated(raw)
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", part, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("x value must be finite: %s", part)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no x values")
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: symregctl <init|run|runs|show|best|generations|fitness|export|eval|operators|strategies> [flags]", msg)
}
