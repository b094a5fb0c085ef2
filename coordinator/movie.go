package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"mandelmovie/encoder"
	"mandelmovie/ledger"
	"mandelmovie/misc"
	"mandelmovie/task"
	"mandelmovie/worker"
)

// MovieReport summarizes a movie run for the user.
type MovieReport struct {
	EncodeErr error
	Encoded   bool
	// FirstFrame and LastFrame bound the frames the encoder picked up. A numbered
	// sequence ends at its first missing frame.
	FirstFrame int
	LastFrame  int
	MoviePath  string
	Result     Result
	RunDir     string
}

// Partial reports whether an encoded movie is missing frames of the schedule.
func (r MovieReport) Partial() bool {
	if !r.Encoded {
		return false
	}
	return r.FirstFrame != 1 || r.LastFrame != r.Result.Attempted()
}

// Err is non-nil when any frame failed or the encoder did not produce the movie.
func (r MovieReport) Err() error {
	if len(r.Result.Failed) > 0 {
		return fmt.Errorf("%w: %d of %d frames failed: %v", misc.ErrWorkerFailure, len(r.Result.Failed), r.Result.Attempted(), r.Result.Failed)
	}
	return r.EncodeErr
}

// MakeMovie renders every frame of the zoom described by s and then runs the encoder
// over the numbered frames. executable is the mandelmovie binary used for process
// isolation. Only configuration problems abort the run; frame and encoder failures are
// reported in the MovieReport.
func MakeMovie(ctx context.Context, s Settings, executable string) (MovieReport, error) {
	if err := s.Verify(); err != nil {
		return MovieReport{}, err
	}
	schedule, err := GenerateSchedule(s.Zoom.StartScale, s.Zoom.EndScale, s.Zoom.FrameCount)
	if err != nil {
		return MovieReport{}, err
	}
	palette, err := s.ColorPalette()
	if err != nil {
		return MovieReport{}, err
	}

	runDir, err := OpenRunDirectory(s)
	if err != nil {
		return MovieReport{}, err
	}

	logger := misc.NewLogger("Coordinator", s.LogLevel, runDir.LogFile)
	defer func() {
		misc.CheckError(runDir.Release(), logger, misc.Warning)
		misc.CheckError(runDir.Close(), misc.NewLogger("Coordinator", s.LogLevel, nil), misc.Warning)
	}()
	logger.Debug(s.String())
	report := MovieReport{RunDir: runDir.Path}

	frameLedger, err := ledger.Open(filepath.Join(runDir.Path, ledger.FileName))
	if err != nil {
		logger.Warningf("Frame ledger unavailable, resume disabled: %s", err)
		frameLedger = nil
	} else {
		logger.Debugf("Recording frames in %s", frameLedger.Path())
		defer func() {
			misc.CheckError(frameLedger.Close(), logger, misc.Warning)
		}()
	}

	var launcher Launcher
	switch s.Farm.Isolation {
	case IsolationInProcess:
		launcher = NewInProcessLauncher(worker.NewWorker(palette, misc.NewLogger("Worker", s.LogLevel, runDir.LogFile)))
	default:
		launcher = NewProcessLauncher(executable, paletteArgs(s), misc.NewLogger("Launcher", s.LogLevel, runDir.LogFile))
	}

	c, err := NewCoordinator(launcher, Options{
		FrameTimeout:        s.FrameTimeout(),
		Ledger:              frameLedger,
		MaxConcurrentFrames: s.Farm.MaxConcurrentFrames,
		Resume:              s.Farm.Resume && frameLedger != nil,
		RunID:               runDir.RunID,
	}, logger)
	if err != nil {
		return MovieReport{}, err
	}

	logger.Infof("Starting run %s in %s", runDir.RunID, runDir.Path)
	report.Result, err = c.Run(ctx, schedule, s.Template(), runDir.FramePath)
	if err != nil {
		return MovieReport{}, err
	}

	if !s.Movie.Generate {
		return report, nil
	}
	if report.Result.Succeeded() == 0 {
		report.EncodeErr = fmt.Errorf("%w: no frames to encode", misc.ErrEncoding)
		return report, nil
	}

	report.MoviePath = s.Movie.Output
	if !filepath.IsAbs(report.MoviePath) {
		report.MoviePath = filepath.Join(runDir.Path, report.MoviePath)
	}
	enc := encoder.NewEncoder(s.Movie.Encoder, s.Movie.FrameRate, s.Movie.EncoderArgs, misc.NewLogger("Encoder", s.LogLevel, runDir.LogFile))
	report.EncodeErr = enc.Encode(ctx, runDir.FramePattern(), report.MoviePath)
	report.Encoded = report.EncodeErr == nil
	if report.Encoded {
		report.FirstFrame, report.LastFrame = encodedFrames(report.Result.Tasks)
		if report.Partial() {
			logger.Warningf("Movie %s only holds frames %d-%d of %d", report.MoviePath, report.FirstFrame, report.LastFrame, report.Result.Attempted())
		}
	}
	return report, nil
}

// encodedFrames returns the first run of consecutive Done frames, which is what an
// encoder reading a frame%d pattern consumes. tasks are ordered by frame index.
func encodedFrames(tasks []task.FrameTask) (int, int) {
	first, last := 0, 0
	for _, frameTask := range tasks {
		if frameTask.Status == task.Done {
			if first == 0 {
				first = frameTask.Frame.Index
			} else if frameTask.Frame.Index != last+1 {
				break
			}
			last = frameTask.Frame.Index
			continue
		}
		if first != 0 {
			break
		}
	}
	return first, last
}

// paletteArgs forwards the palette to render subprocesses.
func paletteArgs(s Settings) []string {
	var args []string
	if len(s.Palette.Colors) > 0 {
		args = append(args, "--palette", strings.Join(s.Palette.Colors, ","))
	}
	if s.Palette.EscapeColor != "" {
		args = append(args, "--escape-color", s.Palette.EscapeColor)
	}
	return args
}
