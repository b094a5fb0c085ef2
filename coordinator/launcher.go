package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/BrugadaSyndrome/bslogger"

	"mandelmovie/mandelbrot"
	"mandelmovie/misc"
	"mandelmovie/task"
	"mandelmovie/worker"
)

// Template holds everything about a frame except its scale.
type Template struct {
	CenterX       float64
	CenterY       float64
	Height        int
	MaxIterations int
	Width         int
	WorkerCount   int
}

// Request builds the render request for one frame of the zoom.
func (t Template) Request(scale float64) (mandelbrot.Request, error) {
	return mandelbrot.NewRequest(t.CenterX, t.CenterY, scale, t.Width, t.Height, t.MaxIterations, t.WorkerCount)
}

// Job is a single frame handed to a Launcher.
type Job struct {
	Frame      task.Frame
	OutputPath string
	Template   Template
}

// Launcher renders one frame to disk and blocks until it succeeded or failed.
type Launcher interface {
	Launch(ctx context.Context, job Job) error
}

// InProcessLauncher renders frames on goroutines of the current process. A render that
// has started always runs to completion, the context is only consulted before starting.
type InProcessLauncher struct {
	worker *worker.Worker
}

func NewInProcessLauncher(w *worker.Worker) *InProcessLauncher {
	return &InProcessLauncher{worker: w}
}

func (l *InProcessLauncher) Launch(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: frame %d: %v\n%s", misc.ErrWorkerFailure, job.Frame.Index, r, debug.Stack())
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	request, err := job.Template.Request(job.Frame.Scale)
	if err != nil {
		return err
	}
	image, err := l.worker.Render(request)
	if err != nil {
		return err
	}
	return image.Save(job.OutputPath)
}

// ProcessLauncher runs every frame as a separate "render" invocation of Executable, the
// same command a user would type. The exit status decides the outcome.
type ProcessLauncher struct {
	Executable string
	ExtraArgs  []string

	logger bslogger.Logger
}

func NewProcessLauncher(executable string, extraArgs []string, logger bslogger.Logger) *ProcessLauncher {
	return &ProcessLauncher{
		Executable: executable,
		ExtraArgs:  extraArgs,
		logger:     logger,
	}
}

// Args returns the render command line for job.
func (l *ProcessLauncher) Args(job Job) []string {
	args := []string{
		"render",
		"-x", formatFloat(job.Template.CenterX),
		"-y", formatFloat(job.Template.CenterY),
		"-s", formatFloat(job.Frame.Scale),
		"-W", strconv.Itoa(job.Template.Width),
		"-H", strconv.Itoa(job.Template.Height),
		"-m", strconv.Itoa(job.Template.MaxIterations),
		"-n", strconv.Itoa(job.Template.WorkerCount),
		"-o", job.OutputPath,
	}
	return append(args, l.ExtraArgs...)
}

func (l *ProcessLauncher) Launch(ctx context.Context, job Job) error {
	if strings.TrimSpace(l.Executable) == "" {
		return fmt.Errorf("%w: render executable is not set", misc.ErrConfiguration)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.Executable, l.Args(job)...)
	cmd.Stderr = &stderr
	l.logger.Debugf("Frame %d: %s %s", job.Frame.Index, l.Executable, strings.Join(cmd.Args[1:], " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start render for frame %d: %v", misc.ErrResourceExhaustion, job.Frame.Index, err)
	}
	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && detail != "" {
			return fmt.Errorf("%w: render for frame %d exited with %d: %s", misc.ErrWorkerFailure, job.Frame.Index, exitErr.ExitCode(), detail)
		}
		return fmt.Errorf("%w: render for frame %d: %v", misc.ErrWorkerFailure, job.Frame.Index, err)
	}
	return nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}
