package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"mandelmovie/misc"
	"mandelmovie/task"
)

func movieSettings(t *testing.T) Settings {
	t.Helper()
	s := DefaultSettings()
	s.SavePath = t.TempDir()
	s.RunName = "movie"
	s.LogLevel = "minimal"
	s.View.Width, s.View.Height, s.View.MaxIterations = 16, 12, 64
	s.Zoom.FrameCount = 5
	s.Farm.Isolation = IsolationInProcess
	s.Farm.MaxConcurrentFrames = 2
	s.Farm.WorkersPerFrame = 3
	return s
}

func TestMakeMovieRendersFramesAndEncodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	encoderStub := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\necho movie > \"$last\"\n"
	if err := os.WriteFile(encoderStub, []byte(script), 0o755); err != nil {
		t.Fatalf("write encoder stub: %v", err)
	}

	s := movieSettings(t)
	s.Movie.Encoder = encoderStub
	report, err := MakeMovie(context.Background(), s, "")
	if err != nil {
		t.Fatalf("MakeMovie: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report error: %v", err)
	}
	if report.Result.Attempted() != 5 || report.Result.Succeeded() != 5 {
		t.Fatalf("unexpected result %+v", report.Result)
	}
	for i := 1; i <= 5; i++ {
		frame := filepath.Join(report.RunDir, "frame"+strconv.Itoa(i)+".bmp")
		if _, err := os.Stat(frame); err != nil {
			t.Fatalf("missing %s: %v", frame, err)
		}
	}
	if !report.Encoded || report.MoviePath != filepath.Join(report.RunDir, "mandel.mpg") {
		t.Fatalf("unexpected movie report %+v", report)
	}
	if report.Partial() || report.FirstFrame != 1 || report.LastFrame != 5 {
		t.Fatalf("expected frames 1-5 in the movie, got %d-%d", report.FirstFrame, report.LastFrame)
	}
	if _, err := os.Stat(report.MoviePath); err != nil {
		t.Fatalf("movie not written: %v", err)
	}
}

func TestMakeMovieReportsMissingEncoder(t *testing.T) {
	s := movieSettings(t)
	s.Movie.Encoder = "clearly-not-present-encoder"
	report, err := MakeMovie(context.Background(), s, "")
	if err != nil {
		t.Fatalf("MakeMovie: %v", err)
	}
	if report.Result.Succeeded() != 5 {
		t.Fatalf("frames should survive an encoder failure, got %+v", report.Result)
	}
	if report.Encoded || !errors.Is(report.Err(), misc.ErrEncoding) {
		t.Fatalf("expected encoding failure, got %v", report.Err())
	}
}

func TestMakeMovieRejectsBadSettingsBeforeRendering(t *testing.T) {
	s := movieSettings(t)
	s.Zoom.EndScale = 5
	if _, err := MakeMovie(context.Background(), s, ""); !errors.Is(err, misc.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.SavePath, s.RunName)); !os.IsNotExist(err) {
		t.Fatalf("no run directory should be created, stat err %v", err)
	}
}

func TestEncodedFramesStopAtFirstGap(t *testing.T) {
	statuses := []task.Status{task.Done, task.Done, task.Failed, task.Done, task.Done}
	tasks := make([]task.FrameTask, len(statuses))
	for i, status := range statuses {
		tasks[i] = task.FrameTask{Frame: task.Frame{Index: i + 1}, Status: status}
	}

	first, last := encodedFrames(tasks)
	if first != 1 || last != 2 {
		t.Fatalf("expected frames 1-2, got %d-%d", first, last)
	}
	report := MovieReport{Encoded: true, FirstFrame: first, LastFrame: last, Result: Result{Tasks: tasks, Failed: []int{3}}}
	if !report.Partial() {
		t.Fatalf("a movie cut at frame 3 of 5 is partial")
	}

	tasks[0].Status = task.Failed
	tasks[2].Status = task.Done
	if first, last := encodedFrames(tasks); first != 2 || last != 5 {
		t.Fatalf("expected frames 2-5, got %d-%d", first, last)
	}
	if (MovieReport{Encoded: false, Result: Result{Tasks: tasks}}).Partial() {
		t.Fatalf("a movie that was never encoded is not partial")
	}
}
