package commands

import (
	"context"
	"fmt"
	"isa-registry/internal/components/telemetry"
	"isa-registry/internal/registry"
	"isa-registry/internal/scrapers/isa"
	"isa-registry/pkg/serviceutil"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// set up by the root command before any subcommand runs
var (
	cfg      Config
	client   *isa.Client
	pipeline registry.Pipeline
	shutdown func(context.Context) error
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The config file to read.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output.")
}

var rootCmd = &cobra.Command{
	Use:   "isa-registry",
	Short: "isa-registry extracts student registries from the IS-Academia public reports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		shutdown, err = telemetry.SetupTracing(cmd.Context(), "isa-registry", cfg.Tracing)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		// spans of a failed run are flushed before serviceutil.Fatal exits
		serviceutil.OnFatal(flushTraces)

		tel := telemetry.SlogAPI{}
		client = isa.NewClient(cfg.clientOptions(), tel)
		pipeline = registry.NewPipeline(client, registry.Options{
			Unit:        cfg.Unit,
			MinYear:     cfg.MinYear,
			Concurrency: cfg.Concurrency,
		}, tel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushTraces()
	},
}

func flushTraces() {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush traces", "err", err)
	}
	shutdown = nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		serviceutil.Fatal("isa-registry failed", err)
	}
}
