package models

type Config struct {
	Data      DataConfig     `yaml:"data"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Tasks     TaskConfig     `yaml:"tasks"`
	Snowflake Snowflake      `yaml:"snowflake"`
	Sync      SyncConfig     `yaml:"sync"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// DataConfig controls the embedded store and the synthetic dataset generator.
type DataConfig struct {
	Dir       string `yaml:"dir"`        // Directory for warehouse snapshots
	Seed      int64  `yaml:"seed"`       // PRNG seed for deterministic data
	Customers int    `yaml:"customers"`  // Number of customers to generate
	Days      int    `yaml:"days"`       // Days of order history
	OrdersDay int    `yaml:"orders_day"` // Average orders per day
}

// PipelineConfig controls the refresh scheduler and executor.
type PipelineConfig struct {
	MaxParallel          int               `yaml:"max_parallel"`          // Worker pool size for independent refresh steps
	MaxRetries           int               `yaml:"max_retries"`           // Retries per refresh step
	IncrementalThreshold float64           `yaml:"incremental_threshold"` // Change volume fraction above which a full rebuild wins
	DefaultLag           string            `yaml:"default_lag"`           // Fallback freshness target, e.g. "5m"
	LagOverrides         map[string]string `yaml:"lag_overrides"`         // Per-table freshness target overrides
	MetricsAddr          string            `yaml:"metrics_addr"`          // Prometheus listener for watch mode, e.g. ":9309"
}

// TaskConfig controls the scheduled task runner.
type TaskConfig struct {
	Disabled    []string `yaml:"disabled"`     // Task names to skip
	HistorySize int      `yaml:"history_size"` // Run history entries kept per task
}

type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"` // May be "enc:..." or empty (keyring lookup)
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Timeout   string `yaml:"timeout"`
}

// SyncConfig points at a git repository holding pipeline lag overrides and the
// semantic model.
type SyncConfig struct {
	GitURL   string `yaml:"git_url"`
	Branch   string `yaml:"branch"`
	Path     string `yaml:"path"`     // Subdirectory inside the repository
	Username string `yaml:"username"` // HTTPS basic auth user; token from keyring
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
