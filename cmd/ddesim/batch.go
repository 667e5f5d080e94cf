package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/san-kum/ddesim/internal/analysis"
	"github.com/san-kum/ddesim/internal/automation"
	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/equation"
	"github.com/san-kum/ddesim/internal/experiment"
	"github.com/san-kum/ddesim/internal/sim"
	"github.com/san-kum/ddesim/internal/tui"
	"github.com/spf13/cobra"
)

// batch flags
var (
	sweepParam     string
	sweepMin       float64
	sweepMax       float64
	sweepSteps     int
	sweepTransient float64
	workers        int
	perturbation   float64
	trials         int
	seed           int64
	debounce       time.Duration
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "validate a system definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := equation.Load(args[0])
			if err != nil {
				return err
			}
			sys, err := def.Compile()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			fmt.Printf("%s: ok\n", args[0])
			fmt.Printf("  name:       %s\n", sys.Name())
			fmt.Printf("  dimension:  %d\n", sys.Dim())
			fmt.Printf("  max delay:  %g\n", sys.MaxDelay())
			fmt.Printf("  parameters: %s\n", strings.Join(sys.ParamNames(), ", "))
			if order := sys.HelperOrder(); len(order) > 0 {
				fmt.Printf("  helpers:    %s\n", strings.Join(order, " -> "))
			}
			dy, err := sys.Eval(0, sys.DefaultState(), constantPast(sys.DefaultState()))
			if err != nil {
				return fmt.Errorf("evaluate at initial state: %w", err)
			}
			fmt.Printf("  f(0, y0):   %s\n", formatState(dy))
			return nil
		},
	}
}

type constantPast []float64

func (c constantPast) At(_ float64, i int) float64 { return c[i] }

func workerCount() int {
	if workers > 0 {
		return workers
	}
	return env.Workers
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run a model over a range of one parameter in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sweepParam == "" {
				return fmt.Errorf("--param is required")
			}
			cfg, err := buildConfig(cmd, modelArg(args))
			if err != nil {
				return err
			}

			sweep := &automation.ParameterSweep{
				Base:      cfg,
				ParamName: sweepParam,
				ParamMin:  sweepMin,
				ParamMax:  sweepMax,
				NumSteps:  sweepSteps,
				Component: component,
				Transient: sweepTransient,
				Workers:   workerCount(),
			}
			start := time.Now()
			results, err := automation.RunSweep(cmd.Context(), sweep, experiment.NewRegistry())
			if err != nil {
				return err
			}
			logger.Info("sweep finished", "runs", len(results), "elapsed", time.Since(start).Round(time.Millisecond))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tFINAL\tPEAKS\tSTEPS\tSTATUS\n", strings.ToUpper(sweepParam))
			for _, r := range results {
				status := "ok"
				if r.Failed {
					status = "failed"
				}
				fmt.Fprintf(w, "%.4g\t%s\t%d\t%s\t%s\n",
					r.ParamValue, formatState(r.FinalState), len(r.Peaks), humanize.Comma(int64(r.Stats.Accepted)), status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\npeaks of y%d against %s\n", component, sweepParam)
			fmt.Print(analysis.BifurcationToASCII(automation.Bifurcation(results), plotWidth, plotHeight))
			return nil
		},
	}
	addConfigFlags(cmd)
	cmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep")
	cmd.Flags().Float64Var(&sweepMin, "min", 0, "first parameter value")
	cmd.Flags().Float64Var(&sweepMax, "max", 1, "last parameter value")
	cmd.Flags().IntVar(&sweepSteps, "steps", 20, "number of parameter values")
	cmd.Flags().Float64Var(&sweepTransient, "transient", 0.5, "fraction of samples skipped before peaks are taken")
	cmd.Flags().IntVarP(&component, "component", "c", 0, "state component whose peaks are recorded")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel runs (default $DDESIM_WORKERS)")
	addPlotFlags(cmd)
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "run a model from randomly perturbed initial states",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, modelArg(args))
			if err != nil {
				return err
			}
			results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
				Base:         cfg,
				Perturbation: perturbation,
				NumTrials:    trials,
				Seed:         seed,
				Workers:      workerCount(),
			}, experiment.NewRegistry())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRIAL\tINITIAL\tFINAL\tSTABLE")
			for _, r := range results {
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", r.TrialID, formatState(r.InitState), formatState(r.FinalState), r.Stable)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			stable, unstable := automation.MonteCarloStats(results)
			fmt.Printf("\n%d stable, %d unstable\n", stable, unstable)
			return nil
		},
	}
	addConfigFlags(cmd)
	cmd.Flags().Float64Var(&perturbation, "perturbation", 0.1, "largest change per initial component")
	cmd.Flags().IntVarP(&trials, "trials", "n", 20, "number of trials")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel runs (default $DDESIM_WORKERS)")
	return cmd
}

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a scenario file and store each run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			outcomes, runErr := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), logger)

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			for i, o := range outcomes {
				id, err := st.Save(cmd.Context(), o.Config, o.Trajectory)
				if err != nil {
					return err
				}
				name := o.SaveAs
				if name == "" {
					name = fmt.Sprintf("step %d", i+1)
				}
				fmt.Printf("%-16s %s  %s samples\n", name, id, humanize.Comma(int64(o.Trajectory.Len())))
			}
			return runErr
		},
	}
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "re-run a system definition file whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			cfg, err := buildConfig(cmd, file)
			if err != nil {
				return err
			}

			opts := automation.DefaultWatchOptions()
			opts.Debounce = debounce
			opts.Logger = logger
			return automation.Watch(cmd.Context(), file, opts, func(ctx context.Context) error {
				return watchRun(ctx, cfg)
			})
		},
	}
	addConfigFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "wait for changes to settle")
	addPlotFlags(cmd)
	return cmd
}

// watchRun recompiles the model on every call so edits take effect.
func watchRun(ctx context.Context, cfg *config.Config) error {
	m, err := experiment.NewRegistry().GetModel(cfg.Model)
	if err != nil {
		return err
	}
	exp := experiment.New(cfg.Clone())
	if err := exp.Setup(m, sim.WithLogger(logger)); err != nil {
		return err
	}
	start := time.Now()
	tr, err := exp.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(summary(cfg, tr, time.Since(start), ""))
	if tr.Len() > 1 {
		fmt.Println(tui.Plot([][]float64{tr.Component(0)}, "y0", plotWidth, plotHeight))
	}
	return nil
}
