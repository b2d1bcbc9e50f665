// Package cmd implements the slicehouse CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slicehouse/internal/config"
	"slicehouse/internal/cortex"
	"slicehouse/internal/logging"
	"slicehouse/internal/pipeline"
	"slicehouse/internal/pizzeria"
	"slicehouse/internal/seed"
	"slicehouse/internal/store"
	"slicehouse/internal/stream"
	"slicehouse/internal/ui"
	"slicehouse/pkg/models"
)

var rootCmd = &cobra.Command{
	Use:   "slicehouse",
	Short: "A pizzeria analytics warehouse with declarative incremental refresh",
	Long: "Slicehouse runs a demo analytics warehouse for a pizzeria chain: " +
		"an embedded store with change capture, a declarative pipeline of derived " +
		"tables refreshed by freshness targets, scheduled tasks, data quality " +
		"checks and a Snowflake export.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initViper)
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.slicehouse/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initViper() {
	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		os.Setenv(config.EnvConfigFile, path)
	}
	viper.SetEnvPrefix("SLICEHOUSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// app bundles what most commands need: config, logger and the warehouse.
type app struct {
	cfg    *models.Config
	logger *slog.Logger
	wh     *store.Warehouse
	engine *cortex.LocalEngine
}

// newApp loads config, builds the logger and restores the warehouse snapshot
// if one exists.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Flags and environment win over the config file.
	if v := viper.GetString("logging.level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		cfg.Logging.Format = v
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.Logging, os.Stderr),
		wh:     store.NewWarehouse(),
		engine: cortex.NewLocalEngine(),
	}

	if _, err := os.Stat(a.snapshotPath()); err == nil {
		if err := a.wh.Restore(a.snapshotPath()); err != nil {
			a.engine.Stop()
			return nil, err
		}
	}
	if err := seed.EnsureSchema(a.wh); err != nil {
		a.engine.Stop()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	a.engine.Stop()
}

func (a *app) snapshotPath() string {
	return filepath.Join(a.cfg.Data.Dir, "warehouse.yaml")
}

// saveWarehouse snapshots the store to disk.
func (a *app) saveWarehouse() error {
	if err := os.MkdirAll(a.cfg.Data.Dir, 0700); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}
	return a.wh.Snapshot(a.snapshotPath())
}

func newGraph(a *app) (*pipeline.Graph, error) {
	return pizzeria.NewGraph(a.engine, a.cfg.Pipeline.LagOverrides)
}

// stack holds the wired pipeline components.
type stack struct {
	graph    *pipeline.Graph
	streams  *stream.Manager
	state    *pipeline.State
	planner  *pipeline.Planner
	executor *pipeline.Executor
	metrics  *pipeline.Metrics
}

// pipelineStack wires the shipped graph against the app's warehouse. metrics
// may be nil for one-shot commands.
func (a *app) pipelineStack(metrics *pipeline.Metrics) (*stack, error) {
	graph, err := newGraph(a)
	if err != nil {
		return nil, err
	}
	streams := stream.NewManager(a.wh)
	state := pipeline.NewState(a.cfg.Tasks.HistorySize)
	planner := pipeline.NewPlanner(graph, streams, state, a.wh, a.cfg.Pipeline.IncrementalThreshold)
	executor := pipeline.NewExecutor(a.wh, streams, state,
		a.cfg.Pipeline.MaxParallel, a.cfg.Pipeline.MaxRetries, a.logger, metrics)
	return &stack{
		graph:    graph,
		streams:  streams,
		state:    state,
		planner:  planner,
		executor: executor,
		metrics:  metrics,
	}, nil
}
