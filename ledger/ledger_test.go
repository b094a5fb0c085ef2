package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mandelmovie/ledger"
	"mandelmovie/task"
)

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), ledger.FileName))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func finished(index int, scale float64, err error) task.FrameTask {
	ft := task.NewFrameTask(task.Frame{Index: index, Scale: scale}, filepath.Join("run", "frame.bmp"))
	_ = ft.Start()
	ft.Finish(err)
	return ft
}

func TestRecordAndCompleted(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	if err := l.Record(ctx, "run-1", finished(1, 0.5, nil)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, "run-1", finished(2, 0.25, errors.New("worker crashed"))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	completed, err := l.Completed(ctx)
	if err != nil {
		t.Fatalf("Completed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected one completed frame, got %d", len(completed))
	}
	entry, ok := completed[1]
	if !ok || entry.Scale != 0.5 || entry.RunID != "run-1" {
		t.Fatalf("unexpected completed entry %#v", entry)
	}
	if entry.StartedAt.IsZero() || entry.FinishedAt.IsZero() {
		t.Fatalf("expected timestamps, got %#v", entry)
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 || entries[1].Status != "Failed" || entries[1].Error != "worker crashed" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}

func TestRecordReplacesEarlierState(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	if err := l.Record(ctx, "run-1", finished(4, 0.1, errors.New("timeout"))); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, "run-2", finished(4, 0.1, nil)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries, err := l.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "Done" || entries[0].RunID != "run-2" || entries[0].Error != "" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}
