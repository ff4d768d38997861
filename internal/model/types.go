package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Run describes one search and its outcome.
type Run struct {
	VersionedRecord
	ID             string   `json:"id"`
	Strategy       string   `json:"strategy"`
	Metric         string   `json:"metric"`
	Seed           int64    `json:"seed"`
	PopulationSize int      `json:"population_size"`
	Generations    int      `json:"generations"`
	Operators      []string `json:"operators"`
	Variable       string   `json:"variable"`
	Samples        int      `json:"samples"`
	CreatedAtUTC   string   `json:"created_at_utc"`
	Completed      bool     `json:"completed"`
	BestFormula    string   `json:"best_formula,omitempty"`
	BestFitness    float64  `json:"best_fitness"`
}

// IndividualRecord stores enough of an individual to rebuild its tree.
type IndividualRecord struct {
	Code    string   `json:"code"`
	Symbols []string `json:"symbols"`
	Formula string   `json:"formula"`
	Fitness float64  `json:"fitness"`
}

type Generation struct {
	VersionedRecord
	RunID       string                `json:"run_id"`
	Label       string                `json:"label"`
	Index       int                   `json:"index"`
	Individuals []IndividualRecord    `json:"individuals"`
	Diagnostics GenerationDiagnostics `json:"diagnostics"`
}

type GenerationDiagnostics struct {
	Generation    int     `json:"generation"`
	Size          int     `json:"size"`
	Valid         int     `json:"valid"`
	Distinct      int     `json:"distinct"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	StdDevFitness float64 `json:"stddev_fitness"`
	MeanLength    float64 `json:"mean_length"`
	BestFormula   string  `json:"best_formula,omitempty"`
}
