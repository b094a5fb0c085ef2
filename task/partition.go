package task

import (
	"fmt"

	"mandelmovie/misc"
)

// RowRange is the half-open span of image rows [Start, End) owned by one worker.
type RowRange struct {
	Start int
	End   int
}

func (r RowRange) Rows() int {
	return r.End - r.Start
}

func (r RowRange) String() string {
	return fmt.Sprintf("{RowRange Start: %d End: %d}", r.Start, r.End)
}

// Partition splits rows [0, height) into min(workerCount, height) contiguous ranges.
// The first height%workerCount ranges receive one extra row so every row is assigned
// and no two ranges differ by more than one row.
func Partition(height int, workerCount int) ([]RowRange, error) {
	if height < 1 {
		return nil, fmt.Errorf("%w: height must be at least 1, got %d", misc.ErrConfiguration, height)
	}
	if workerCount < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", misc.ErrConfiguration, workerCount)
	}
	if workerCount > height {
		workerCount = height
	}

	base := height / workerCount
	remainder := height % workerCount
	ranges := make([]RowRange, workerCount)
	start := 0
	for i := range ranges {
		rows := base
		if i < remainder {
			rows++
		}
		ranges[i] = RowRange{Start: start, End: start + rows}
		start += rows
	}
	return ranges, nil
}
