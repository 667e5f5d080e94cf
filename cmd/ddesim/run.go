package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/control"
	"github.com/san-kum/ddesim/internal/experiment"
	"github.com/san-kum/ddesim/internal/metrics"
	"github.com/san-kum/ddesim/internal/sim"
	"github.com/san-kum/ddesim/internal/tui"
	"github.com/spf13/cobra"
)

// run flags
var (
	configFile  string
	preset      string
	duration    float64
	sampleDt    float64
	paramFlags  []string
	initial     []float64
	atol        float64
	rtol        float64
	firstStep   float64
	minStep     float64
	maxStep     float64
	raise       bool
	showMetrics bool
	noSave      bool
	speed       int
)

func addConfigFlags(cmd *cobra.Command) {
	defaults := control.DefaultParams()
	cmd.Flags().StringVar(&configFile, "config", "", "run configuration file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "integrate to this time")
	cmd.Flags().Float64Var(&sampleDt, "sample-dt", config.DefaultSampleDt, "output sample spacing")
	cmd.Flags().StringArrayVarP(&paramFlags, "set", "s", nil, "model parameter name=value (repeatable)")
	cmd.Flags().Float64SliceVar(&initial, "initial", nil, "constant initial history, one value per component")
	cmd.Flags().Float64Var(&atol, "atol", defaults.ATol.At(0), "absolute tolerance")
	cmd.Flags().Float64Var(&rtol, "rtol", defaults.RTol.At(0), "relative tolerance")
	cmd.Flags().Float64Var(&firstStep, "first-step", defaults.FirstStep, "initial step size")
	cmd.Flags().Float64Var(&minStep, "min-step", defaults.MinStep, "smallest allowed step")
	cmd.Flags().Float64Var(&maxStep, "max-step", defaults.MaxStep, "largest allowed step")
	cmd.Flags().BoolVar(&raise, "raise", false, "fail instead of returning NaN when the step floor is hit")
}

// buildConfig layers defaults, preset, config file and changed flags, in
// that order.
func buildConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	if model == "" && configFile == "" {
		model = config.DefaultModel
	}
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if model != "" {
		cfg.Model = model
	}

	flags := cmd.Flags()
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("sample-dt") {
		cfg.SampleDt = sampleDt
	}
	if flags.Changed("initial") {
		cfg.Initial = initial
	}
	if len(paramFlags) > 0 {
		params, err := parseParams(paramFlags)
		if err != nil {
			return nil, err
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(params))
		}
		for k, v := range params {
			cfg.Params[k] = v
		}
	}

	in := &cfg.Integration
	if flags.Changed("atol") {
		in.ATol = control.Scalar(atol)
	}
	if flags.Changed("rtol") {
		in.RTol = control.Scalar(rtol)
	}
	if flags.Changed("first-step") {
		in.FirstStep = firstStep
	}
	if flags.Changed("min-step") {
		in.MinStep = minStep
	}
	if flags.Changed("max-step") {
		in.MaxStep = maxStep
	}
	if flags.Changed("raise") {
		in.RaiseException = raise
	}
	return cfg, cfg.Validate()
}

func parseParams(kvs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(kvs))
	for _, kv := range kvs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: expected name=value", kv)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a model and store the sampled solution",
		Long: "Integrate a built-in model or a system definition file. Parameters come from\n" +
			"defaults, then --preset, then --config, then explicitly set flags.",
		Args: cobra.MaximumNArgs(1),
		RunE: runSimulation,
	}
	addConfigFlags(cmd)
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print step metrics in Prometheus text format")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	return cmd
}

func modelArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, modelArg(args))
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	m, err := registry.GetModel(cfg.Model)
	if err != nil {
		return err
	}

	opts := []sim.Option{sim.WithLogger(logger)}
	reg := prometheus.NewRegistry()
	if showMetrics {
		opts = append(opts, sim.WithObserver(metrics.NewStepMetrics(reg, cfg.Model)))
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(m, opts...); err != nil {
		return err
	}

	logger.Info("running simulation", "model", cfg.Model, "duration", cfg.Duration)
	start := time.Now()
	tr, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID := ""
	if !noSave {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if runID, err = st.Save(cmd.Context(), cfg, tr); err != nil {
			return err
		}
	}

	fmt.Println(summary(cfg, tr, elapsed, runID))
	if showMetrics {
		return writeMetrics(reg)
	}
	return nil
}

func summary(cfg *config.Config, tr *sim.Trajectory, elapsed time.Duration, runID string) string {
	var s strings.Builder
	row := func(label, value string) {
		s.WriteString(tui.MetricLabel.Render(label) + tui.MetricValue.Render(value) + "\n")
	}

	status := tui.StatusRunning.Render("completed")
	if tr.Failed {
		status = tui.StatusFailed.Render("failed: step size under min_step")
	}
	s.WriteString(tui.Title.Render(cfg.Model) + "  " + status + "\n\n")
	if runID != "" {
		row("run id", runID)
	}
	row("elapsed", elapsed.Round(time.Microsecond).String())
	row("samples", humanize.Comma(int64(tr.Len())))
	if tr.Len() > 0 {
		last := tr.States[tr.Len()-1]
		row("final", fmt.Sprintf("t=%g y=%v", tr.Times[tr.Len()-1], formatState(last)))
	}
	st := tr.Stats
	row("accepted", humanize.Comma(int64(st.Accepted)))
	row("rejected", humanize.Comma(int64(st.Rejected)))
	row("throttled", humanize.Comma(int64(st.Throttled)))
	row("corrections", fmt.Sprintf("%s (%s iterations)", humanize.Comma(int64(st.Corrections)), humanize.Comma(int64(st.Iterations))))
	row("evaluations", humanize.Comma(int64(st.Evaluations)))
	row("next step", fmt.Sprintf("%.4g", st.NextStep))
	return tui.Panel.Render(strings.TrimRight(s.String(), "\n"))
}

func formatState(y []float64) string {
	parts := make([]string, len(y))
	for i, v := range y {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func writeMetrics(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return err
		}
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live [model]",
		Short: "integrate with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, modelArg(args))
			if err != nil {
				return err
			}
			m, err := experiment.NewRegistry().GetModel(cfg.Model)
			if err != nil {
				return err
			}
			// keep the alternate screen free of log lines
			exp := experiment.New(cfg)
			if err := exp.Setup(m, sim.WithLogger(discardLogger())); err != nil {
				return err
			}
			return tui.Run(tui.LiveConfig{
				Name:            cfg.Model,
				Driver:          exp.Driver(),
				SampleDt:        cfg.SampleDt,
				Duration:        cfg.Duration,
				SamplesPerFrame: speed,
			})
		},
	}
	addConfigFlags(cmd)
	cmd.Flags().IntVar(&speed, "speed", 1, "sample intervals per frame")
	return cmd
}
