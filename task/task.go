package task

import (
	"fmt"
	"time"
)

const (
	Pending Status = iota
	Running
	Done
	Failed
)

type Status int

func (s Status) String() string {
	names := []string{
		"Pending", "Running", "Done", "Failed",
	}
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return names[s]
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == Done || s == Failed
}

// Frame is one entry of a zoom schedule. Index starts at 1.
type Frame struct {
	Index int
	Scale float64
}

func (f Frame) String() string {
	return fmt.Sprintf("{Frame Index: %d Scale: %g}", f.Index, f.Scale)
}

// FrameTask tracks one frame through Pending -> Running -> Done | Failed.
type FrameTask struct {
	Err        error
	Finished   time.Time
	Frame      Frame
	OutputPath string
	Started    time.Time
	Status     Status
}

func NewFrameTask(frame Frame, outputPath string) FrameTask {
	return FrameTask{
		Frame:      frame,
		OutputPath: outputPath,
		Status:     Pending,
	}
}

// Start moves a pending task to Running.
func (t *FrameTask) Start() error {
	if t.Status != Pending {
		return fmt.Errorf("frame %d cannot start from status %s", t.Frame.Index, t.Status)
	}
	t.Status = Running
	t.Started = time.Now()
	return nil
}

// Finish records the outcome of a running task. A nil err means Done.
func (t *FrameTask) Finish(err error) {
	t.Finished = time.Now()
	t.Err = err
	if err != nil {
		t.Status = Failed
		return
	}
	t.Status = Done
}

func (t *FrameTask) Duration() time.Duration {
	if t.Started.IsZero() || t.Finished.IsZero() {
		return 0
	}
	return t.Finished.Sub(t.Started)
}

func (t *FrameTask) String() string {
	output := "{FrameTask "
	output += fmt.Sprintf("Index: %d ", t.Frame.Index)
	output += fmt.Sprintf("Scale: %g ", t.Frame.Scale)
	output += fmt.Sprintf("Output: %s ", t.OutputPath)
	output += fmt.Sprintf("Status: %s}", t.Status)
	return output
}
