package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/san-kum/ddesim/internal/analysis"
	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/experiment"
	"github.com/san-kum/ddesim/internal/storage"
	"github.com/san-kum/ddesim/internal/tui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// output flags
var (
	exportFormat string
	outFile      string
	component    int
	plotWidth    int
	plotHeight   int
	embedLag     float64
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tCREATED\tDURATION\tSAMPLES\tSTEPS\tSTATUS")
			for _, run := range runs {
				status := "ok"
				if run.Failed {
					status = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%s\t%s\n",
					shortID(run.ID),
					run.Model,
					humanize.Time(run.CreatedAt),
					run.Duration,
					humanize.Comma(int64(run.Samples)),
					humanize.Comma(int64(run.Stats.Accepted)),
					status,
				)
			}
			return w.Flush()
		},
	}
}

func loadRun(cmd *cobra.Command, id string) (*storage.Run, []float64, []dde.State, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	defer st.Close()

	run, err := st.Get(cmd.Context(), id)
	if err != nil {
		return nil, nil, nil, err
	}
	times, states, err := st.Samples(cmd.Context(), run.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return run, times, states, nil
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run_id]",
		Short: "show the configuration and statistics of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			run, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("run:      %s\n", run.ID)
			fmt.Printf("model:    %s\n", run.Model)
			fmt.Printf("created:  %s (%s)\n", run.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(run.CreatedAt))
			fmt.Printf("samples:  %s\n", humanize.Comma(int64(run.Samples)))
			fmt.Printf("failed:   %v\n", run.Failed)
			fmt.Printf("steps:    %d accepted, %d rejected, %d throttled\n",
				run.Stats.Accepted, run.Stats.Rejected, run.Stats.Throttled)
			fmt.Printf("corrector iterations: %d, evaluations: %d, min pws factor: %g\n\n",
				run.Stats.Iterations, run.Stats.Evaluations, run.Stats.MinPWSFactor)

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(run.Config)
		},
	}
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the sampled solution of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, _, states, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			if len(states) == 0 {
				return fmt.Errorf("no data to plot")
			}

			fmt.Printf("run: %s\n", run.ID)
			fmt.Printf("model: %s\n", run.Model)
			fmt.Printf("samples: %d\n\n", len(states))

			numVars := min(len(states[0]), 6)
			for c := 0; c < numVars; c++ {
				fmt.Println(tui.Plot([][]float64{column(states, c)}, fmt.Sprintf("y%d vs time", c), plotWidth, plotHeight))
				fmt.Println()
			}
			return nil
		},
	}
	addPlotFlags(cmd)
	return cmd
}

func addPlotFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&plotWidth, "width", 80, "chart width")
	cmd.Flags().IntVar(&plotHeight, "height", 12, "chart height")
}

func column(states []dde.State, c int) []float64 {
	out := make([]float64, len(states))
	for i, s := range states {
		out[i] = s[c]
	}
	return out
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json, csv or svg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, times, states, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			switch strings.ToLower(exportFormat) {
			case "json":
				err = storage.ExportJSON(w, run, times, states)
			case "csv":
				err = storage.ExportCSV(w, times, states)
			case "svg":
				err = storage.ExportSVG(w, times, states, 10*plotWidth, 50*plotHeight)
			default:
				return fmt.Errorf("unknown format %q (json, csv, svg)", exportFormat)
			}
			if err != nil {
				return err
			}
			if outFile != "" {
				fmt.Fprintf(os.Stderr, "exported %s samples to %s\n", humanize.Comma(int64(len(times))), outFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json, csv or svg")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	addPlotFlags(cmd)
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summary, dominant period and delay portrait of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, times, states, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			if len(states) == 0 {
				return fmt.Errorf("no data to analyze")
			}
			if component < 0 || component >= len(states[0]) {
				return fmt.Errorf("component %d out of range [0, %d)", component, len(states[0]))
			}

			values := column(states, component)
			s := analysis.Summarize(values)
			fmt.Printf("run %s, component y%d\n", shortID(run.ID), component)
			fmt.Printf("  min %.6g  max %.6g  mean %.6g  std %.6g\n", s.Min, s.Max, s.Mean, s.Std)

			if period, ok := analysis.DominantPeriod(values, run.SampleDt); ok {
				fmt.Printf("  dominant period %.4g\n", period)
			} else {
				fmt.Println("  no dominant period")
			}
			peaks := analysis.DistinctPeaks(values, len(values)/2, 1e-3)
			fmt.Printf("  distinct peaks in second half: %d\n", len(peaks))

			lag := embedLag
			if lag <= 0 {
				lag = modelDelay(run.Config)
			}
			if lag > 0 {
				fmt.Printf("\ndelay portrait y(t) vs y(t-%g)\n", lag)
				fmt.Print(analysis.DelayEmbedding(times, values, lag).ASCII(plotWidth, plotHeight))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&component, "component", "c", 0, "state component to analyze")
	cmd.Flags().Float64Var(&embedLag, "lag", 0, "delay portrait lag (default: the tau parameter)")
	addPlotFlags(cmd)
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// modelDelay is the largest delay of the configured model, or 0 when the
// model cannot be built.
func modelDelay(cfg *config.Config) float64 {
	m, err := experiment.NewRegistry().GetModel(cfg.Model)
	if err != nil {
		return 0
	}
	if c, ok := m.(dde.Configurable); ok {
		for k, v := range cfg.Params {
			if c.SetParam(k, v) != nil {
				return 0
			}
		}
	}
	return m.MaxDelay()
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			run, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := st.Delete(cmd.Context(), run.ID); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", run.ID)
			return nil
		},
	}
}
