package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/cartpole/internal/analysis"
	"github.com/san-kum/cartpole/internal/config"
	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/env"
	"github.com/san-kum/cartpole/internal/export"
	"github.com/san-kum/cartpole/internal/integrators"
	"github.com/san-kum/cartpole/internal/linmodel"
	"github.com/san-kum/cartpole/internal/metrics"
	"github.com/san-kum/cartpole/internal/optim"
	"github.com/san-kum/cartpole/internal/render"
	"github.com/san-kum/cartpole/internal/rollout"
	"github.com/san-kum/cartpole/internal/storage"
	"github.com/san-kum/cartpole/internal/viz"
)

var stateNames = []string{"cart position", "cart velocity", "pole angle", "pole angular velocity"}

func ensemble(cfg *config.Config) *rollout.Ensemble {
	return &rollout.Ensemble{
		NewEnv:    envFactory(cfg, logger),
		NewPolicy: policyFactory(cfg),
		NewMetrics: func() []dynamo.Metric {
			return metrics.Standard(cfg.Env.XThreshold, cfg.Env.ThetaThreshold)
		},
		Workers:    cfg.Rollout.Workers,
		MaxSteps:   cfg.Rollout.MaxSteps,
		ExtraSteps: cfg.Rollout.ExtraSteps,
		Logger:     logger,
	}
}

func runEpisodes(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %d episode(s) with %s policy...\n", cfg.Rollout.Episodes, cfg.Rollout.Policy)
	start := time.Now()

	eps, err := ensemble(cfg).Run(ctx, cfg.Rollout.Episodes)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	sum := rollout.Summarize(eps)

	st := storage.New(dataDir, logger)
	if err := st.Init(); err != nil {
		return err
	}
	name := preset
	if name == "" {
		name = "custom"
	}
	integ := cfg.Env.Integrator
	if integ == "" {
		integ = "euler"
	}
	runID, err := st.Save(storage.RunMetadata{
		Preset:     name,
		Seed:       *cfg.Rollout.Seed,
		Dt:         cfg.Physics.Tau,
		Integrator: integ,
		Policy:     cfg.Rollout.Policy,
		Strict:     cfg.Env.Strict,
		Episodes:   sum.Episodes,
		MeanReturn: sum.MeanReturn,
		StdReturn:  sum.StdReturn,
		Terminated: sum.Terminated,
		Metrics:    sum.Metrics,
	}, eps[0])
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("seed: %d\n", *cfg.Rollout.Seed)
	fmt.Printf("return: %.2f ± %.2f (mean length %.1f, %d/%d terminated)\n",
		sum.MeanReturn, sum.StdReturn, sum.MeanLength, sum.Terminated, sum.Episodes)
	fmt.Println("\nmetrics:")
	for _, name := range sum.MetricNames() {
		fmt.Printf("  %s: %.6f\n", name, sum.Metrics[name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir, logger).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tPOLICY\tINTEG\tEPISODES\tSTEPS\tRETURN")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.2f\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Policy,
			run.Integrator,
			run.Episodes,
			run.Steps,
			run.MeanReturn,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, *rollout.Episode, error) {
	st := storage.New(dataDir, logger)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	ep, err := st.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, ep, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, ep, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(ep.States) < 2 {
		return fmt.Errorf("run %s has too few samples to plot", meta.ID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("policy: %s\n", meta.Policy)
	fmt.Printf("samples: %d\n\n", len(ep.States))

	for idx, caption := range stateNames {
		graph := asciigraph.Plot(analysis.Column(ep.States, idx),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if len(ep.Rewards) > 1 {
		fmt.Println(asciigraph.Plot(ep.Rewards,
			asciigraph.Height(4),
			asciigraph.Width(80),
			asciigraph.Caption("reward"),
		))
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, ep, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if outPath == "" {
		return storage.ExportJSON(os.Stdout, *meta, ep)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := storage.ExportJSON(f, *meta, ep); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", outPath)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, ep, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(ep.States) < 4 {
		return fmt.Errorf("run %s has too few samples for analysis", meta.ID)
	}

	fmt.Printf("run: %s (%d samples, dt=%g)\n\n", meta.ID, len(ep.States), meta.Dt)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tDOMINANT FREQ (Hz)\tPOWER")
	for idx, name := range stateNames {
		freq, power := analysis.DominantFrequency(analysis.Column(ep.States, idx), meta.Dt)
		fmt.Fprintf(w, "%s\t%.4f\t%.4g\n", name, freq, power)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	portrait := analysis.NewPhasePortrait(ep.States, xAxis, yAxis)
	fmt.Printf("\nphase portrait (x%d vs x%d):\n", xAxis, yAxis)
	fmt.Print(portrait.ASCII(60, 20))

	if svgPath != "" {
		doc := export.TrajectorySVG(portrait.Points, 600, 400, "#00aa88")
		if err := os.WriteFile(svgPath, []byte(doc), 0644); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", svgPath)
	}
	return nil
}

func renderFrame(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	m, err := render.ParseMode(mode)
	if err != nil {
		return err
	}

	e, err := env.FromConfig(cfg, env.WithLogger(logger), env.WithRenderOutput(os.Stdout))
	if err != nil {
		return err
	}
	defer e.Close()

	pol, err := policyFactory(cfg)(0, e)
	if err != nil {
		return err
	}

	x := e.Reset()
	for i := 0; i < steps; i++ {
		res, err := e.Step(pol.Compute(x, e.Elapsed()).Scalar())
		if err != nil {
			return &dynamo.SimulationError{Step: i, Time: e.Elapsed(), State: x, Wrapped: err}
		}
		x = res.State
	}

	if m == render.Human {
		_, err := e.Render(render.Human)
		return err
	}

	if strings.EqualFold(filepath.Ext(outPath), ".svg") {
		xThreshold, _ := e.Thresholds()
		f := render.NewTransform(xThreshold).Frame(x[0], x[2])
		return os.WriteFile(outPath, []byte(export.FrameSVG(f)), 0644)
	}

	img, err := e.Render(render.RGBArray)
	if err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	fmt.Printf("wrote %s (state %v)\n", outPath, x)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// Log output would tear the alternate screen.
	e, err := env.FromConfig(cfg, env.WithLogger(zap.NewNop()))
	if err != nil {
		return err
	}
	defer e.Close()

	var pol dynamo.Controller
	if !manual {
		pol, err = policyFactory(cfg)(0, e)
		if err != nil {
			return err
		}
	}

	p := tea.NewProgram(viz.NewModel(e, pol, frameRate), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func tunePID(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Rollout.Policy = "pid"

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	grid, err := optim.NewGridSearch(
		[]string{"kp", "kd"},
		[][]float64{optim.Linspace(10, 100, 10), optim.Linspace(0, 20, 5)},
	)
	if err != nil {
		return err
	}

	fmt.Printf("evaluating %d gain pairs x %d episodes...\n", grid.Size(), cfg.Rollout.Episodes)
	best, score, err := grid.Search(ctx, func(ctx context.Context, p map[string]float64) (float64, error) {
		trial := *cfg
		trial.Rollout.Kp = p["kp"]
		trial.Rollout.Kd = p["kd"]
		eps, err := ensemble(&trial).Run(ctx, trial.Rollout.Episodes)
		if err != nil {
			return 0, err
		}
		ret := rollout.Summarize(eps).MeanReturn
		logger.Debug("tune.candidate", zap.Float64("kp", p["kp"]), zap.Float64("kd", p["kd"]), zap.Float64("return", ret))
		return ret, nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("best: kp=%.2f kd=%.2f (mean return %.2f)\n", best["kp"], best["kd"], score)
	return nil
}

func showModel(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("g") {
		cfg.Model.GPath = gPath
	}
	if cmd.Flags().Changed("h") {
		cfg.Model.HPath = hPath
	}

	cp := cfg.CartPole()
	integ, err := integrators.ByName(cfg.Env.Integrator)
	if err != nil {
		return err
	}
	rate := analysis.DivergenceRate(cp, integ, dynamo.State{0, 0, 0, 0}, 2, 1e-8, cp.Tau, 400)
	fmt.Printf("upright divergence rate: %.3f 1/s\n", rate)

	if cfg.Model.GPath == "" || cfg.Model.HPath == "" {
		fmt.Println("no linear model configured (set --g and --h)")
		return nil
	}
	m, err := linmodel.Load(cfg.Model.GPath, cfg.Model.HPath)
	if err != nil {
		return err
	}
	fmt.Println("\nF_t = [G | H]:")
	fmt.Println(m.Format())
	return nil
}
