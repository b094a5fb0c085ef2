package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/BrugadaSyndrome/bslogger"

	"mandelmovie/ledger"
	"mandelmovie/misc"
	"mandelmovie/task"
)

// Options tune a Coordinator. Only MaxConcurrentFrames is required.
type Options struct {
	FrameTimeout        time.Duration
	Heartbeat           time.Duration
	Ledger              *ledger.Ledger
	MaxConcurrentFrames int
	Resume              bool
	RunID               string
}

// Coordinator renders a zoom schedule with at most MaxConcurrentFrames frames in flight.
type Coordinator struct {
	launcher Launcher
	logger   bslogger.Logger
	options  Options
}

// Result lists every frame of a run ordered by frame index.
type Result struct {
	Elapsed     time.Duration
	Failed      []int
	PeakRunning int
	RunID       string
	Skipped     int
	Tasks       []task.FrameTask
}

func (r Result) Attempted() int {
	return len(r.Tasks)
}

func (r Result) Succeeded() int {
	return len(r.Tasks) - len(r.Failed)
}

type completion struct {
	err  error
	slot int
}

func NewCoordinator(launcher Launcher, options Options, logger bslogger.Logger) (*Coordinator, error) {
	if launcher == nil {
		return nil, fmt.Errorf("%w: a launcher is required", misc.ErrConfiguration)
	}
	if options.MaxConcurrentFrames < 1 {
		return nil, fmt.Errorf("%w: max concurrent frames must be at least 1, got %d", misc.ErrConfiguration, options.MaxConcurrentFrames)
	}
	if options.FrameTimeout < 0 {
		return nil, fmt.Errorf("%w: frame timeout must not be negative", misc.ErrConfiguration)
	}
	if options.Heartbeat <= 0 {
		options.Heartbeat = 30 * time.Second
	}
	return &Coordinator{
		launcher: launcher,
		logger:   logger,
		options:  options,
	}, nil
}

// Run renders every frame of schedule. A frame moves Pending -> Running only while it
// holds one of the MaxConcurrentFrames tokens, and gives the token back once it is Done
// or Failed. When all tokens are taken Run waits for whichever frame finishes first,
// then starts the next one. A failed frame never stops the others; its index is listed
// in Result.Failed. The returned error is only set for configuration problems, which
// are detected before anything is launched.
func (c *Coordinator) Run(ctx context.Context, schedule []task.Frame, template Template, outputPathFor func(index int) string) (Result, error) {
	tasks, err := c.prepare(schedule, template, outputPathFor)
	if err != nil {
		return Result{}, err
	}
	result := Result{RunID: c.options.RunID}
	startTime := time.Now()

	pending := make([]int, 0, len(tasks))
	if c.options.Resume {
		result.Skipped = c.markResumed(ctx, tasks)
	}
	for slot := range tasks {
		if tasks[slot].Status == task.Pending {
			pending = append(pending, slot)
		}
	}

	limit := c.options.MaxConcurrentFrames
	tokens := make(chan struct{}, limit)
	done := make(chan completion, limit)
	heartBeat := time.NewTicker(c.options.Heartbeat)
	defer heartBeat.Stop()

	c.logger.Infof("Rendering %d frames, %d at a time (%d already done)", len(pending), limit, result.Skipped)

	running := 0
	next := 0
	for next < len(pending) || running > 0 {
		if next < len(pending) && running < limit {
			tokens <- struct{}{}
			slot := pending[next]
			next++
			if err := tasks[slot].Start(); err != nil {
				<-tokens
				tasks[slot].Finish(err)
				continue
			}
			running++
			if running > result.PeakRunning {
				result.PeakRunning = running
			}
			job := Job{Frame: tasks[slot].Frame, OutputPath: tasks[slot].OutputPath, Template: template}
			c.logger.Debugf("Started frame %d (scale %g)", job.Frame.Index, job.Frame.Scale)
			go c.launch(ctx, slot, job, done)
			continue
		}

		select {
		case finished := <-done:
			running--
			<-tokens
			c.reap(ctx, &tasks[finished.slot], finished.err)
		case <-heartBeat.C:
			c.logger.Infof("Frames [Done: %d] [Failed: %d] [Running: %d] [Pending: %d]",
				countStatus(tasks, task.Done), countStatus(tasks, task.Failed), running, len(pending)-next)
		}
	}

	for _, t := range tasks {
		if t.Status == task.Failed {
			result.Failed = append(result.Failed, t.Frame.Index)
		}
	}
	result.Tasks = tasks
	result.Elapsed = time.Since(startTime)
	c.logger.Infof("Rendered %d/%d frames in %s", result.Succeeded(), result.Attempted(), result.Elapsed)
	return result, nil
}

func (c *Coordinator) prepare(schedule []task.Frame, template Template, outputPathFor func(index int) string) ([]task.FrameTask, error) {
	if len(schedule) == 0 {
		return nil, fmt.Errorf("%w: the zoom schedule is empty", misc.ErrConfiguration)
	}
	if outputPathFor == nil {
		return nil, fmt.Errorf("%w: no output path function", misc.ErrConfiguration)
	}

	frames := append([]task.Frame(nil), schedule...)
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })

	tasks := make([]task.FrameTask, len(frames))
	for i, frame := range frames {
		if i > 0 && frames[i-1].Index == frame.Index {
			return nil, fmt.Errorf("%w: frame index %d appears twice", misc.ErrConfiguration, frame.Index)
		}
		if _, err := template.Request(frame.Scale); err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		tasks[i] = task.NewFrameTask(frame, outputPathFor(frame.Index))
	}
	return tasks, nil
}

// markResumed flags frames the ledger already holds as Done, provided the scale and
// output path match and the file is still there.
func (c *Coordinator) markResumed(ctx context.Context, tasks []task.FrameTask) int {
	if c.options.Ledger == nil {
		return 0
	}
	completed, err := c.options.Ledger.Completed(ctx)
	if err != nil {
		c.logger.Warningf("Unable to read the frame ledger, rendering everything: %s", err)
		return 0
	}

	skipped := 0
	for i := range tasks {
		entry, ok := completed[tasks[i].Frame.Index]
		if !ok || entry.Scale != tasks[i].Frame.Scale || entry.OutputPath != tasks[i].OutputPath {
			continue
		}
		if !misc.FileExists(tasks[i].OutputPath) {
			continue
		}
		tasks[i].Status = task.Done
		tasks[i].Started = entry.StartedAt
		tasks[i].Finished = entry.FinishedAt
		skipped++
	}
	return skipped
}

func (c *Coordinator) launch(ctx context.Context, slot int, job Job, done chan<- completion) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: frame %d: %v\n%s", misc.ErrWorkerFailure, job.Frame.Index, r, debug.Stack())
		}
		done <- completion{err: err, slot: slot}
	}()

	frameCtx := ctx
	if c.options.FrameTimeout > 0 {
		var cancel context.CancelFunc
		frameCtx, cancel = context.WithTimeout(ctx, c.options.FrameTimeout)
		defer cancel()
	}

	err = c.launcher.Launch(frameCtx, job)
	if err != nil && errors.Is(frameCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: frame %d exceeded %s: %v", misc.ErrWorkerFailure, job.Frame.Index, c.options.FrameTimeout, err)
	}
}

func (c *Coordinator) reap(ctx context.Context, frameTask *task.FrameTask, err error) {
	frameTask.Finish(err)
	if err != nil {
		c.logger.Errorf("Frame %d failed: %s", frameTask.Frame.Index, err)
	} else {
		c.logger.Infof("Saved frame %d to %s in %s", frameTask.Frame.Index, frameTask.OutputPath, frameTask.Duration().Round(time.Millisecond))
	}

	if c.options.Ledger != nil {
		if recordErr := c.options.Ledger.Record(context.WithoutCancel(ctx), c.options.RunID, *frameTask); recordErr != nil {
			c.logger.Warningf("Unable to record frame %d: %s", frameTask.Frame.Index, recordErr)
		}
	}
}

func countStatus(tasks []task.FrameTask, status task.Status) int {
	count := 0
	for _, t := range tasks {
		if t.Status == status {
			count++
		}
	}
	return count
}
