// Command gridsim runs the robot grid simulation against a statecache and
// prints a summary.
//
//	gridsim run --config sim.yaml --steps 500 --seed 7 --metrics
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/hupe1980/statecache"
	"github.com/hupe1980/statecache/internal/gridsim"
	"github.com/hupe1980/statecache/metrics/prommetrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type runFlags struct {
	config  string
	steps   int
	seed    int64
	metrics bool
	render  bool
	logJSON bool
	rate    float64
	dump    string
	restore string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gridsim",
		Short:        "Robot grid simulation backed by statecache",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation and print its report",
		Long: `Places robots on a grid and moves them for a number of steps. Every
step is committed as one atomic batch; batches rejected by the cell
ownership index are retried robot by robot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := gridsim.DefaultConfig()
			if f.config != "" {
				var err error
				if cfg, err = gridsim.LoadConfig(f.config); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("steps") {
				cfg.Steps = f.steps
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = f.seed
			}
			if cmd.Flags().Changed("rate") {
				cfg.StepRate = f.rate
			}
			return run(cmd, cfg, f)
		},
	}
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "number of steps (overrides config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (overrides config)")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "print Prometheus metrics after the report")
	cmd.Flags().BoolVar(&f.render, "render", false, "draw the final grid")
	cmd.Flags().BoolVar(&f.logJSON, "log-json", false, "log as JSON instead of text")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "steps per second, 0 for unthrottled (overrides config)")
	cmd.Flags().StringVar(&f.dump, "dump", "", "write the final robots to a snapshot file (.lz4 and .zst are compressed)")
	cmd.Flags().StringVar(&f.restore, "restore", "", "start from a snapshot file instead of random placement")
	return cmd
}

func run(cmd *cobra.Command, cfg gridsim.Config, f runFlags) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.Level()}
	var handler slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), handlerOpts)
	if f.logJSON {
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), handlerOpts)
	}
	logger := statecache.NewLogger(handler)

	reg := prometheus.NewRegistry()
	mc := prommetrics.New("robots")
	if err := reg.Register(mc); err != nil {
		return err
	}

	opts := []statecache.Option{
		statecache.WithLogger(logger),
		statecache.WithMetricsCollector(mc),
	}
	var sim *gridsim.Sim
	var err error
	if f.restore != "" {
		sim, err = restore(f.restore, cfg, opts)
	} else {
		sim, err = gridsim.New(cfg, opts...)
	}
	if err != nil {
		return err
	}
	sim.WithLogger(logger)

	rep, runErr := sim.Run(cmd.Context())

	out := cmd.OutOrStdout()
	if _, err := rep.WriteTo(out); err != nil {
		return err
	}
	if f.render {
		fmt.Fprintln(out)
		if err := sim.Render(out); err != nil {
			return err
		}
	}
	if f.metrics {
		fmt.Fprintln(out)
		if err := writeMetrics(out, reg); err != nil {
			return err
		}
	}
	if f.dump != "" {
		if err := dump(f.dump, sim.Robots()); err != nil {
			return err
		}
	}
	return runErr
}

func restore(path string, cfg gridsim.Config, opts []statecache.Option) (*gridsim.Sim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	robots, err := gridsim.ReadSnapshot(file, gridsim.CompressionFor(path))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return gridsim.Restore(cfg, robots, opts...)
}

func dump(path string, robots []gridsim.Robot) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gridsim.WriteSnapshot(file, robots, gridsim.CompressionFor(path)); err != nil {
		_ = file.Close()
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return file.Close()
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
