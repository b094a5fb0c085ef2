package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mandelmovie/coordinator"
	"mandelmovie/misc"
)

type movieOptions struct {
	centerX       float64
	centerY       float64
	configPath    string
	endScale      float64
	frames        int
	isolation     string
	logLevel      string
	maxIterations int
	noEncode      bool
	outputDir     string
	processes     int
	resume        bool
	runName       string
	startScale    float64
	timeout       int
	workers       int
}

func newMovieCommand() *cobra.Command {
	opts := movieOptions{}

	cmd := &cobra.Command{
		Use:   "movie",
		Short: "Render a zoom sequence and encode it into a movie",
		Example: `  mandelmovie movie -p 8
  mandelmovie movie --config seahorse.toml --resume
  mandelmovie movie --frames 10 --no-encode --isolation inprocess`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := coordinator.LoadSettings(opts.configPath)
			if err != nil {
				return err
			}
			if err := applyMovieFlags(&settings, cmd.Flags(), opts); err != nil {
				return err
			}

			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate mandelmovie executable: %w", err)
			}

			report, err := coordinator.MakeMovie(cmd.Context(), settings, executable)
			if err != nil {
				return err
			}
			printMovieSummary(cmd.OutOrStdout(), report)
			return report.Err()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML settings file")
	flags.IntVarP(&opts.workers, "workers", "n", 1, "Row workers inside each frame")
	flags.IntVarP(&opts.processes, "processes", "p", 0, "Maximum frames rendered at once (default: number of CPUs)")
	flags.IntVar(&opts.frames, "frames", 50, "Number of frames in the zoom")
	flags.Float64Var(&opts.startScale, "start", 2, "Scale of the zoom before the first frame")
	flags.Float64Var(&opts.endScale, "end", 0.00001, "Scale of the zoom after the last frame")
	flags.Float64VarP(&opts.centerX, "center-x", "x", 0.286932, "X coordinate of the zoom center")
	flags.Float64VarP(&opts.centerY, "center-y", "y", 0.014287, "Y coordinate of the zoom center")
	flags.IntVarP(&opts.maxIterations, "max", "m", 1000, "Maximum number of iterations per point")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Folder that holds run directories (default: current directory)")
	flags.StringVar(&opts.runName, "run-name", "", "Name of the run directory")
	flags.StringVar(&opts.isolation, "isolation", coordinator.IsolationProcess, "Frame isolation: process or inprocess")
	flags.BoolVar(&opts.noEncode, "no-encode", false, "Only render the frames")
	flags.BoolVar(&opts.resume, "resume", false, "Skip frames a previous run already rendered")
	flags.IntVar(&opts.timeout, "timeout", 0, "Seconds before a frame is abandoned (0 disables the watchdog)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log verbosity: minimal, normal or all")
	return cmd
}

// applyMovieFlags lets explicitly set flags win over the settings file. Zero means
// "use the default" inside Settings, so explicit zeros are rejected here.
func applyMovieFlags(s *coordinator.Settings, flags *pflag.FlagSet, opts movieOptions) error {
	positive := []struct {
		name  string
		value int
	}{
		{"workers", opts.workers},
		{"processes", opts.processes},
		{"frames", opts.frames},
		{"max", opts.maxIterations},
	}
	for _, flag := range positive {
		if flags.Changed(flag.name) && flag.value < 1 {
			return fmt.Errorf("%w: --%s must be at least 1, got %d", misc.ErrConfiguration, flag.name, flag.value)
		}
	}
	if flags.Changed("start") && !(opts.startScale > 0) {
		return fmt.Errorf("%w: --start must be positive, got %g", misc.ErrConfiguration, opts.startScale)
	}
	if flags.Changed("end") && !(opts.endScale > 0) {
		return fmt.Errorf("%w: --end must be positive, got %g", misc.ErrConfiguration, opts.endScale)
	}
	if flags.Changed("timeout") && opts.timeout < 0 {
		return fmt.Errorf("%w: --timeout must not be negative, got %d", misc.ErrConfiguration, opts.timeout)
	}
	if flags.Changed("isolation") && opts.isolation == "" {
		return fmt.Errorf("%w: --isolation must be %q or %q", misc.ErrConfiguration, coordinator.IsolationProcess, coordinator.IsolationInProcess)
	}

	if flags.Changed("workers") {
		s.Farm.WorkersPerFrame = opts.workers
	}
	if flags.Changed("processes") {
		s.Farm.MaxConcurrentFrames = opts.processes
	}
	if flags.Changed("frames") {
		s.Zoom.FrameCount = opts.frames
	}
	if flags.Changed("start") {
		s.Zoom.StartScale = opts.startScale
	}
	if flags.Changed("end") {
		s.Zoom.EndScale = opts.endScale
	}
	if flags.Changed("center-x") {
		s.View.CenterX = opts.centerX
	}
	if flags.Changed("center-y") {
		s.View.CenterY = opts.centerY
	}
	if flags.Changed("max") {
		s.View.MaxIterations = opts.maxIterations
	}
	if flags.Changed("output-dir") {
		s.SavePath = opts.outputDir
	}
	if flags.Changed("run-name") {
		s.RunName = opts.runName
	}
	if flags.Changed("isolation") {
		s.Farm.Isolation = opts.isolation
	}
	if opts.noEncode {
		s.Movie.Generate = false
	}
	if opts.resume {
		s.Farm.Resume = true
	}
	if flags.Changed("timeout") {
		s.Farm.FrameTimeoutSeconds = opts.timeout
	}
	if flags.Changed("log-level") {
		s.LogLevel = opts.logLevel
	}
	return nil
}
