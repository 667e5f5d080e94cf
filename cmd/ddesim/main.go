package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/experiment"
	"github.com/san-kum/ddesim/internal/storage"
	"github.com/san-kum/ddesim/internal/telemetry"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	dataDir  string
	verbose  bool
	traceOut bool

	env      config.Env
	logger   *slog.Logger
	shutdown func(context.Context) error
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "ddesim",
		Short:             "adaptive delay differential equation solver",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return flushTraces()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default $DDESIM_DATA or .ddesim)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log rejected and throttled steps")
	rootCmd.PersistentFlags().BoolVar(&traceOut, "trace", false, "write OpenTelemetry spans to stderr")

	rootCmd.AddCommand(
		newRunCmd(),
		newLiveCmd(),
		newListCmd(),
		newShowCmd(),
		newPlotCmd(),
		newExportCmd(),
		newAnalyzeCmd(),
		newDeleteCmd(),
		newModelsCmd(),
		newPresetsCmd(),
		newCheckCmd(),
		newSweepCmd(),
		newMonteCarloCmd(),
		newScenarioCmd(),
		newWatchCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_ = flushTraces()
		stop()
		os.Exit(1)
	}
}

// setup reads the environment, then lets flags override it.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	env, err = config.LoadEnv()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("data") {
		dataDir = env.DataDir
	}
	if !cmd.Flags().Changed("trace") {
		traceOut = env.Trace
	}

	level, err := env.Level()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if traceOut {
		shutdown, err = telemetry.Setup(cmd.Context(), os.Stderr, telemetry.Config{ServiceVersion: version})
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
	}
	return nil
}

func flushTraces() error {
	if shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := shutdown(ctx)
	shutdown = nil
	return err
}

func openStore() (*storage.Store, error) {
	return storage.Open(dataDir)
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "list built-in models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := experiment.NewRegistry()
			for _, name := range registry.ListModels() {
				m, err := registry.GetModel(name)
				if err != nil {
					return err
				}
				fmt.Printf("  %-14s dim=%d max_delay=%g\n", name, m.Dim(), m.MaxDelay())
			}
			fmt.Println("\nany .yaml system definition file can be used as a model")
			return nil
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				cfg := config.GetPreset(args[0], p)
				fmt.Printf("  %-12s duration=%g params=%v\n", p, cfg.Duration, cfg.Params)
			}
			return nil
		},
	}
}
