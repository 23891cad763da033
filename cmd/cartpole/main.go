package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/cartpole/internal/config"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string

	integrator string
	policy     string
	strict     bool
	seed       int64
	episodes   int
	workers    int
	maxSteps   int
	extraSteps int
	kp         float64
	ki         float64
	kd         float64
	gPath      string
	hPath      string

	outPath   string
	steps     int
	mode      string
	frameRate int
	manual    bool
	xAxis     int
	yAxis     int
	svgPath   string

	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cartpole",
		Short:         "continuous-action cart-pole environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = newLogger(verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".cartpole", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run episodes and store the first trajectory",
		Args:  cobra.NoArgs,
		RunE:  runEpisodes,
	}
	envFlags(runCmd)
	runCmd.Flags().IntVar(&episodes, "episodes", config.DefaultEpisodes, "number of episodes")
	runCmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "parallel workers")
	runCmd.Flags().IntVar(&extraSteps, "extra-steps", 0, "steps to keep taking after done")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency and phase analysis of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&xAxis, "x-axis", 2, "state index for phase x-axis")
	analyzeCmd.Flags().IntVar(&yAxis, "y-axis", 3, "state index for phase y-axis")
	analyzeCmd.Flags().StringVar(&svgPath, "svg", "", "also write the phase portrait as SVG")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render the state after n steps to a PNG or SVG file, or the terminal",
		Args:  cobra.NoArgs,
		RunE:  renderFrame,
	}
	envFlags(renderCmd)
	renderCmd.Flags().IntVar(&steps, "steps", 0, "steps to take before rendering")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "frame.png", "output file (.png or .svg)")
	renderCmd.Flags().StringVar(&mode, "mode", "rgb_array", "render mode (human or rgb_array)")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "interactive terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	envFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", config.DefaultFPS, "frame rate")
	liveCmd.Flags().BoolVar(&manual, "manual", false, "start with keyboard control")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search PID gains for the configured start state",
		Args:  cobra.NoArgs,
		RunE:  tunePID,
	}
	envFlags(tuneCmd)
	tuneCmd.Flags().IntVar(&episodes, "episodes", 4, "episodes per candidate")
	tuneCmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "parallel workers")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Printf("  %-14s policy=%-6s init=%v strict=%v\n",
					name, cfg.Rollout.Policy, cfg.Env.InitState, cfg.Env.Strict)
			}
			return nil
		},
	}

	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "load the G and H matrices and print F_t = [G | H]",
		Args:  cobra.NoArgs,
		RunE:  showModel,
	}
	modelCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	modelCmd.Flags().StringVar(&gPath, "g", "", "G matrix file")
	modelCmd.Flags().StringVar(&hPath, "h", "", "H vector file")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportJSONCmd, analyzeCmd, renderCmd, liveCmd, tuneCmd, presetsCmd, modelCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// envFlags registers the flags shared by commands that build an environment.
func envFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&integrator, "integrator", "euler", "integrator (euler or rk4)")
	cmd.Flags().StringVar(&policy, "policy", "zero", "policy (zero, random, lqr, pid)")
	cmd.Flags().BoolVar(&strict, "strict", false, "error on step after done")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "step limit per episode")
	cmd.Flags().Float64Var(&kp, "kp", 60, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", 0, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", 6, "pid kd")
	cmd.Flags().StringVar(&gPath, "g", "", "G matrix file")
	cmd.Flags().StringVar(&hPath, "h", "", "H vector file")
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
