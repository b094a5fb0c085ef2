package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BrugadaSyndrome/bslogger"

	"mandelmovie/ledger"
	"mandelmovie/mandelbrot"
	"mandelmovie/misc"
	"mandelmovie/task"
	"mandelmovie/worker"
)

type fakeLauncher struct {
	delay  time.Duration
	failOn map[int]bool
	panics map[int]bool

	mu       sync.Mutex
	launched []int
	running  atomic.Int32
	peak     atomic.Int32
}

func (f *fakeLauncher) Launch(ctx context.Context, job Job) error {
	now := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if now <= peak || f.peak.CompareAndSwap(peak, now) {
			break
		}
	}

	f.mu.Lock()
	f.launched = append(f.launched, job.Frame.Index)
	f.mu.Unlock()

	time.Sleep(f.delay)
	if f.panics[job.Frame.Index] {
		panic("simulated crash")
	}
	if f.failOn[job.Frame.Index] {
		return fmt.Errorf("%w: simulated failure of frame %d", misc.ErrWorkerFailure, job.Frame.Index)
	}
	return nil
}

func testLogger() bslogger.Logger {
	return misc.NewLogger("CoordinatorTest", "minimal", nil)
}

func testTemplate() Template {
	return Template{CenterX: 0.286932, CenterY: 0.014287, Width: 8, Height: 8, MaxIterations: 50, WorkerCount: 2}
}

func tenFrames(t *testing.T) []task.Frame {
	t.Helper()
	frames, err := GenerateSchedule(2, 0.00001, 10)
	if err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}
	return frames
}

func pathFor(dir string) func(int) string {
	return func(index int) string {
		return filepath.Join(dir, fmt.Sprintf("frame%d.bmp", index))
	}
}

func TestRunNeverExceedsConcurrencyLimit(t *testing.T) {
	launcher := &fakeLauncher{delay: 20 * time.Millisecond}
	c, err := NewCoordinator(launcher, Options{MaxConcurrentFrames: 3}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	result, err := c.Run(context.Background(), tenFrames(t), testTemplate(), pathFor(t.TempDir()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak := launcher.peak.Load(); peak > 3 {
		t.Fatalf("observed %d frames running at once", peak)
	}
	if result.PeakRunning > 3 || result.PeakRunning < 1 {
		t.Fatalf("unexpected peak running %d", result.PeakRunning)
	}
	if len(launcher.launched) != 10 {
		t.Fatalf("expected 10 launches, got %d", len(launcher.launched))
	}
	if result.Attempted() != 10 || result.Succeeded() != 10 || len(result.Failed) != 0 {
		t.Fatalf("unexpected result attempted=%d succeeded=%d failed=%v", result.Attempted(), result.Succeeded(), result.Failed)
	}
	for i, ft := range result.Tasks {
		if ft.Frame.Index != i+1 {
			t.Fatalf("task %d has frame index %d", i, ft.Frame.Index)
		}
		if !ft.Status.Terminal() {
			t.Fatalf("frame %d ended in %s", ft.Frame.Index, ft.Status)
		}
	}
}

func TestRunKeepsPoolSaturated(t *testing.T) {
	launcher := &fakeLauncher{delay: 30 * time.Millisecond}
	c, err := NewCoordinator(launcher, Options{MaxConcurrentFrames: 3}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	result, err := c.Run(context.Background(), tenFrames(t), testTemplate(), pathFor(t.TempDir()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PeakRunning != 3 {
		t.Fatalf("expected the pool to reach 3 running frames, got %d", result.PeakRunning)
	}
}

func TestRunIsolatesFailedFrame(t *testing.T) {
	launcher := &fakeLauncher{failOn: map[int]bool{4: true}, panics: map[int]bool{7: true}}
	c, err := NewCoordinator(launcher, Options{MaxConcurrentFrames: 3}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	result, err := c.Run(context.Background(), tenFrames(t), testTemplate(), pathFor(t.TempDir()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Failed) != 2 || result.Failed[0] != 4 || result.Failed[1] != 7 {
		t.Fatalf("expected frames 4 and 7 to fail, got %v", result.Failed)
	}
	if result.Succeeded() != 8 {
		t.Fatalf("expected 8 successful frames, got %d", result.Succeeded())
	}
	for _, ft := range result.Tasks {
		switch ft.Frame.Index {
		case 4, 7:
			if ft.Status != task.Failed || !errors.Is(ft.Err, misc.ErrWorkerFailure) {
				t.Fatalf("frame %d: status %s err %v", ft.Frame.Index, ft.Status, ft.Err)
			}
		default:
			if ft.Status != task.Done || ft.Err != nil {
				t.Fatalf("frame %d: status %s err %v", ft.Frame.Index, ft.Status, ft.Err)
			}
		}
	}
}

type slowLauncher struct{}

func (slowLauncher) Launch(ctx context.Context, job Job) error {
	if job.Frame.Index != 2 {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunWatchdogFailsSlowFrame(t *testing.T) {
	c, err := NewCoordinator(slowLauncher{}, Options{MaxConcurrentFrames: 2, FrameTimeout: 50 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	frames, _ := GenerateSchedule(2, 0.5, 3)
	result, err := c.Run(context.Background(), frames, testTemplate(), pathFor(t.TempDir()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0] != 2 {
		t.Fatalf("expected frame 2 to time out, got %v", result.Failed)
	}
}

func TestRunRejectsConfigurationErrors(t *testing.T) {
	if _, err := NewCoordinator(&fakeLauncher{}, Options{MaxConcurrentFrames: 0}, testLogger()); !errors.Is(err, misc.ErrConfiguration) {
		t.Fatalf("expected configuration error for zero concurrency, got %v", err)
	}

	launcher := &fakeLauncher{}
	c, err := NewCoordinator(launcher, Options{MaxConcurrentFrames: 2}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	dir := t.TempDir()

	if _, err := c.Run(context.Background(), nil, testTemplate(), pathFor(dir)); !errors.Is(err, misc.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty schedule, got %v", err)
	}
	bad := testTemplate()
	bad.Width = 0
	if _, err := c.Run(context.Background(), tenFrames(t), bad, pathFor(dir)); !errors.Is(err, misc.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad template, got %v", err)
	}
	duplicate := []task.Frame{{Index: 1, Scale: 1}, {Index: 1, Scale: 0.5}}
	if _, err := c.Run(context.Background(), duplicate, testTemplate(), pathFor(dir)); !errors.Is(err, misc.ErrConfiguration) {
		t.Fatalf("expected configuration error for duplicate index, got %v", err)
	}
	if len(launcher.launched) != 0 {
		t.Fatalf("nothing should launch on configuration errors, launched %v", launcher.launched)
	}
}

func TestRunOrdersTasksByIndex(t *testing.T) {
	c, err := NewCoordinator(&fakeLauncher{}, Options{MaxConcurrentFrames: 4}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	shuffled := []task.Frame{{Index: 3, Scale: 0.25}, {Index: 1, Scale: 1}, {Index: 2, Scale: 0.5}}
	result, err := c.Run(context.Background(), shuffled, testTemplate(), pathFor(t.TempDir()))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, ft := range result.Tasks {
		if ft.Frame.Index != i+1 {
			t.Fatalf("position %d holds frame %d", i, ft.Frame.Index)
		}
	}
}

func TestRunInProcessWritesFramesAndResumes(t *testing.T) {
	dir := t.TempDir()
	l, err := ledger.Open(filepath.Join(dir, ledger.FileName))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer l.Close()

	w := worker.NewWorker(mandelbrot.DefaultPalette(), testLogger())
	frames, err := GenerateSchedule(2, 0.01, 4)
	if err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}

	c, err := NewCoordinator(NewInProcessLauncher(w), Options{MaxConcurrentFrames: 2, Ledger: l, RunID: "first"}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	result, err := c.Run(context.Background(), frames, testTemplate(), pathFor(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures %v", result.Failed)
	}
	for _, ft := range result.Tasks {
		if _, err := os.Stat(ft.OutputPath); err != nil {
			t.Fatalf("frame %d missing: %v", ft.Frame.Index, err)
		}
	}

	if err := os.Remove(pathFor(dir)(3)); err != nil {
		t.Fatalf("remove frame 3: %v", err)
	}
	launcher := &fakeLauncher{}
	resumed, err := NewCoordinator(launcher, Options{MaxConcurrentFrames: 2, Ledger: l, Resume: true, RunID: "second"}, testLogger())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	result, err = resumed.Run(context.Background(), frames, testTemplate(), pathFor(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 3 {
		t.Fatalf("expected 3 frames to be skipped, got %d", result.Skipped)
	}
	if len(launcher.launched) != 1 || launcher.launched[0] != 3 {
		t.Fatalf("expected only frame 3 to be rendered again, got %v", launcher.launched)
	}
}
