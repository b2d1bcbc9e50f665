package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"slicehouse/internal/pipeline"
	"slicehouse/internal/ui"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the derived-table refresh pipeline",
	Long: "Plans and executes one refresh cycle: derived tables whose freshness " +
		"target has elapsed are recomputed, incrementally where change capture " +
		"allows. With --watch the cycle repeats on a schedule.",
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().Bool("watch", false, "keep refreshing on the scheduler interval")
	refreshCmd.Flags().Duration("interval", 0, "watch interval (default: smallest effective lag)")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

	if !watch {
		st, err := a.pipelineStack(nil)
		if err != nil {
			return err
		}
		defer st.executor.Close()
		plan, err := st.planner.Plan(time.Now())
		if err != nil {
			return err
		}
		result, err := st.executor.Execute(cmd.Context(), plan)
		if err != nil {
			return err
		}
		if err := a.saveWarehouse(); err != nil {
			return err
		}
		if len(result.Steps) == 0 {
			ui.ShowInfo("Nothing to refresh (%d tables fresh)", len(plan.NoOps))
			return nil
		}
		ui.ShowSuccess("Refreshed %d tables, %d failed, in %s",
			len(result.Steps), result.Failed(), ui.FormatDuration(result.Duration))
		return nil
	}

	return watchLoop(cmd.Context(), a, interval)
}

func watchLoop(parent context.Context, a *app, interval time.Duration) error {
	registry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(registry)
	st, err := a.pipelineStack(metrics)
	if err != nil {
		return err
	}
	defer st.executor.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := a.cfg.Pipeline.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("metrics listener started", "addr", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer server.Close()
	}

	if interval <= 0 {
		if d, derr := time.ParseDuration(a.cfg.Pipeline.DefaultLag); derr == nil {
			interval = d
		}
	}
	scheduler := pipeline.NewScheduler(clockwork.NewRealClock(), interval,
		st.graph, st.planner, st.executor, a.logger, metrics)

	a.logger.Info("watching", "interval", scheduler.Interval())
	err = scheduler.Run(ctx)

	if saveErr := a.saveWarehouse(); saveErr != nil {
		a.logger.Error("failed to snapshot warehouse on shutdown", "error", saveErr)
	}
	if err == context.Canceled {
		return nil
	}
	return err
}
