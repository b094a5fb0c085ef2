package worker

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/BrugadaSyndrome/bslogger"

	"mandelmovie/bitmap"
	"mandelmovie/mandelbrot"
	"mandelmovie/misc"
	"mandelmovie/task"
)

type escapeFunc func(x float64, y float64, maxIterations int) (int, bool)

// Worker renders whole images by fanning rows out over a fixed set of goroutines.
type Worker struct {
	escapeTime escapeFunc
	logger     bslogger.Logger
	palette    mandelbrot.Palette
}

func NewWorker(palette mandelbrot.Palette, logger bslogger.Logger) *Worker {
	return &Worker{
		escapeTime: mandelbrot.Iterations,
		logger:     logger,
		palette:    palette,
	}
}

// Render fills a new bitmap for request. Each row range gets its own goroutine and
// writes only the pixels of its rows, so the bitmap is shared without locking. Render
// waits for every goroutine and returns an error instead of a partial image if any of
// them failed.
func (w *Worker) Render(request mandelbrot.Request) (*bitmap.Bitmap, error) {
	if err := request.Verify(); err != nil {
		return nil, err
	}
	ranges, err := task.Partition(request.Height, request.WorkerCount)
	if err != nil {
		return nil, err
	}
	image, err := bitmap.New(request.Width, request.Height)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	failures := make([]error, len(ranges))
	var wg sync.WaitGroup
	wg.Add(len(ranges))
	for i, rows := range ranges {
		go func(slot int, rows task.RowRange) {
			defer wg.Done()
			failures[slot] = w.renderRows(request, rows, image)
		}(i, rows)
	}
	wg.Wait()

	for _, failure := range failures {
		if failure != nil {
			w.logger.Errorf("Render of %s failed: %s", request.String(), failure)
			return nil, failure
		}
	}

	w.logger.Debugf("Rendered %d rows with %d workers in %s", request.Height, len(ranges), time.Since(startTime))
	return image, nil
}

func (w *Worker) renderRows(request mandelbrot.Request, rows task.RowRange, image *bitmap.Bitmap) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: rows [%d, %d): %v\n%s", misc.ErrWorkerFailure, rows.Start, rows.End, r, debug.Stack())
		}
	}()

	for row := rows.Start; row < rows.End; row++ {
		for column := 0; column < request.Width; column++ {
			x, y := request.PointAt(column, row)
			count, _ := w.escapeTime(x, y, request.MaxIterations)
			image.Set(column, row, w.palette.ColorFor(count, request.MaxIterations))
		}
	}
	return nil
}
