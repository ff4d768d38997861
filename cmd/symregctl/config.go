package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"symreg/pkg/symreg"
)

// runFile is the TOML layout accepted by `run --config`. Samples come from
// either data (a CSV path) or target (a formula sampled on [from,to]).
type runFile struct {
	Data    string  `toml:"data"`
	XColumn string  `toml:"x_column"`
	YColumn string  `toml:"y_column"`
	Target  string  `toml:"target"`
	From    float64 `toml:"from"`
	To      float64 `toml:"to"`
	Samples int     `toml:"samples"`

	Operators []string `toml:"operators"`
	Variable  string   `toml:"variable"`

	Strategy            string   `toml:"strategy"`
	Metric              string   `toml:"metric"`
	Population          int      `toml:"population"`
	Generations         int      `toml:"generations"`
	Survivors           int      `toml:"survivors"`
	Elite               int      `toml:"elite"`
	MinLength           int      `toml:"min_length"`
	MaxLength           int      `toml:"max_length"`
	FixedLength         int      `toml:"fixed_length"`
	MaxSpan             int      `toml:"max_span"`
	MutationRate        *float64 `toml:"mutation_rate"`
	CrossoverRate       *float64 `toml:"crossover_rate"`
	ReproductionRate    *float64 `toml:"reproduction_rate"`
	RandomPerGeneration *int     `toml:"random_per_generation"`
	Selection           string   `toml:"selection"`
	Tournament          int      `toml:"tournament"`
	Seed                int64    `toml:"seed"`
	Save                *bool    `toml:"save"`
	Top                 int      `toml:"top"`

	Constants   *constantsFile  `toml:"constants"`
	Oscillation oscillationFile `toml:"oscillation"`
	Islands     islandsFile     `toml:"islands"`
}

type constantsFile struct {
	Enabled     bool    `toml:"enabled"`
	Probability float64 `toml:"probability"`
	Min         float64 `toml:"min"`
	Max         float64 `toml:"max"`
}

type oscillationFile struct {
	Period int `toml:"period"`
	Floor  int `toml:"floor"`
}

type islandsFile struct {
	Count       int `toml:"count"`
	Size        int `toml:"size"`
	Generations int `toml:"generations"`
	Keep        int `toml:"keep"`
}

// dataSource says where the samples of a run come from.
type dataSource struct {
	Path    string
	XColumn string
	YColumn string
	Target  string
	From    float64
	To      float64
	Samples int
}

func defaultDataSource() dataSource {
	return dataSource{From: -1, To: 1, Samples: 50}
}

func loadRunFile(path string) (runFile, error) {
	var cfg runFile
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return runFile{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return runFile{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// loadRunRequestFromConfig overlays the file on the default request. Zero
// values leave the default in place.
func loadRunRequestFromConfig(path string) (symreg.RunRequest, dataSource, error) {
	cfg, err := loadRunFile(path)
	if err != nil {
		return symreg.RunRequest{}, dataSource{}, err
	}

	req := symreg.DefaultRunRequest()
	data := defaultDataSource()
	if cfg.Data != "" {
		data.Path = cfg.Data
	}
	if cfg.XColumn != "" {
		data.XColumn = cfg.XColumn
	}
	if cfg.YColumn != "" {
		data.YColumn = cfg.YColumn
	}
	if cfg.Target != "" {
		data.Target = cfg.Target
	}
	if cfg.From != 0 || cfg.To != 0 {
		data.From, data.To = cfg.From, cfg.To
	}
	if cfg.Samples > 0 {
		data.Samples = cfg.Samples
	}

	if len(cfg.Operators) > 0 {
		req.Operators = cfg.Operators
	}
	if cfg.Variable != "" {
		req.Variable = cfg.Variable
	}
	if cfg.Constants != nil {
		req.Constants.Enabled = cfg.Constants.Enabled
		req.Constants.Probability = cfg.Constants.Probability
		req.Constants.Min = cfg.Constants.Min
		req.Constants.Max = cfg.Constants.Max
	}
	if cfg.Strategy != "" {
		req.Strategy = cfg.Strategy
	}
	if cfg.Metric != "" {
		req.Metric = cfg.Metric
	}
	if cfg.Population > 0 {
		req.Population = cfg.Population
	}
	if cfg.Generations > 0 {
		req.Generations = cfg.Generations
	}
	if cfg.Survivors > 0 {
		req.Survivors = cfg.Survivors
	}
	if cfg.Elite > 0 {
		req.EliteCount = cfg.Elite
	}
	if cfg.MinLength > 0 {
		req.MinLength = cfg.MinLength
	}
	if cfg.MaxLength > 0 {
		req.MaxLength = cfg.MaxLength
	}
	if cfg.FixedLength > 0 {
		req.FixedLength = cfg.FixedLength
	}
	if cfg.MaxSpan > 0 {
		req.MaxSpan = cfg.MaxSpan
	}
	if cfg.MutationRate != nil {
		req.MutationRate = *cfg.MutationRate
	}
	if cfg.CrossoverRate != nil {
		req.CrossoverRate = *cfg.CrossoverRate
	}
	if cfg.ReproductionRate != nil {
		req.ReproductionRate = *cfg.ReproductionRate
	}
	if cfg.RandomPerGeneration != nil {
		req.RandomPerGeneration = *cfg.RandomPerGeneration
	}
	if cfg.Selection != "" {
		req.Selection = cfg.Selection
	}
	if cfg.Tournament > 0 {
		req.TournamentSize = cfg.Tournament
	}
	if cfg.Seed != 0 {
		req.Seed = cfg.Seed
	}
	if cfg.Save != nil {
		req.Save = *cfg.Save
	}
	if cfg.Top > 0 {
		req.TopCount = cfg.Top
	}
	if cfg.Oscillation.Period > 0 {
		req.Oscillation.Period = cfg.Oscillation.Period
	}
	if cfg.Oscillation.Floor > 0 {
		req.Oscillation.Floor = cfg.Oscillation.Floor
	}
	if cfg.Islands.Count > 0 {
		req.Islands.Count = cfg.Islands.Count
	}
	if cfg.Islands.Size > 0 {
		req.Islands.Size = cfg.Islands.Size
	}
	if cfg.Islands.Generations > 0 {
		req.Islands.Generations = cfg.Islands.Generations
	}
	if cfg.Islands.Keep > 0 {
		req.Islands.Keep = cfg.Islands.Keep
	}
	return req, data, nil
}

// overrideFromFlags applies every flag the user set explicitly on top of the
// config file.
func overrideFromFlags(req *symreg.RunRequest, data *dataSource, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "data":
			data.Path = v.(string)
		case "x-column":
			data.XColumn = v.(string)
		case "y-column":
			data.YColumn = v.(string)
		case "target":
			data.Target = v.(string)
		case "from":
			data.From = v.(float64)
		case "to":
			data.To = v.(float64)
		case "samples":
			data.Samples = v.(int)
		case "ops":
			req.Operators = parseCommaSeparated(v.(string))
		case "var":
			req.Variable = v.(string)
		case "no-constants":
			if v.(bool) {
				req.Constants.Enabled = false
			}
		case "strategy":
			req.Strategy = v.(string)
		case "metric":
			req.Metric = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "survivors":
			req.Survivors = v.(int)
		case "elite":
			req.EliteCount = v.(int)
		case "min-length":
			req.MinLength = v.(int)
		case "max-length":
			req.MaxLength = v.(int)
		case "fixed-length":
			req.FixedLength = v.(int)
		case "max-span":
			req.MaxSpan = v.(int)
		case "mutation-rate":
			req.MutationRate = v.(float64)
		case "crossover-rate":
			req.CrossoverRate = v.(float64)
		case "reproduction-rate":
			req.ReproductionRate = v.(float64)
		case "random":
			req.RandomPerGeneration = v.(int)
		case "selection":
			req.Selection = v.(string)
		case "tournament":
			req.TournamentSize = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "save":
			req.Save = v.(bool)
		case "top":
			req.TopCount = v.(int)
		case "period":
			req.Oscillation.Period = v.(int)
		case "floor":
			req.Oscillation.Floor = v.(int)
		case "islands":
			req.Islands.Count = v.(int)
		case "island-size":
			req.Islands.Size = v.(int)
		case "island-gens":
			req.Islands.Generations = v.(int)
		case "island-keep":
			req.Islands.Keep = v.(int)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func parseCommaSeparated(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
