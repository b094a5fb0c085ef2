package mandelbrot

import (
	"fmt"
	"math"

	"mandelmovie/misc"
)

// Request fully describes one image. Two renders of the same Request produce identical
// pixels regardless of how the rows are split between workers.
type Request struct {
	XMin          float64
	XMax          float64
	YMin          float64
	YMax          float64
	MaxIterations int
	Width         int
	Height        int
	WorkerCount   int
}

// NewRequest builds the view window centerX±scale, centerY±scale and verifies it.
func NewRequest(centerX, centerY, scale float64, width, height, maxIterations, workerCount int) (Request, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Request{}, fmt.Errorf("%w: scale must be positive, got %g", misc.ErrConfiguration, scale)
	}
	request := Request{
		XMin:          centerX - scale,
		XMax:          centerX + scale,
		YMin:          centerY - scale,
		YMax:          centerY + scale,
		MaxIterations: maxIterations,
		Width:         width,
		Height:        height,
		WorkerCount:   workerCount,
	}
	if err := request.Verify(); err != nil {
		return Request{}, err
	}
	return request, nil
}

func (r Request) Verify() error {
	if r.Width < 1 || r.Height < 1 {
		return fmt.Errorf("%w: image must be at least 1x1, got %dx%d", misc.ErrConfiguration, r.Width, r.Height)
	}
	if r.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", misc.ErrConfiguration, r.MaxIterations)
	}
	if r.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be at least 1, got %d", misc.ErrConfiguration, r.WorkerCount)
	}
	if !(r.XMax > r.XMin) || !(r.YMax > r.YMin) {
		return fmt.Errorf("%w: empty view window x=[%g, %g] y=[%g, %g]", misc.ErrConfiguration, r.XMin, r.XMax, r.YMin, r.YMax)
	}
	return nil
}

// PointAt converts the (column, row) pixel to its (x, y) point on the complex plane.
func (r Request) PointAt(column int, row int) (float64, float64) {
	x := r.XMin + float64(column)*(r.XMax-r.XMin)/float64(r.Width)
	y := r.YMin + float64(row)*(r.YMax-r.YMin)/float64(r.Height)
	return x, y
}

func (r Request) String() string {
	output := "{Request "
	output += fmt.Sprintf("X: [%g, %g] ", r.XMin, r.XMax)
	output += fmt.Sprintf("Y: [%g, %g] ", r.YMin, r.YMax)
	output += fmt.Sprintf("Size: %dx%d ", r.Width, r.Height)
	output += fmt.Sprintf("MaxIterations: %d ", r.MaxIterations)
	output += fmt.Sprintf("Workers: %d}", r.WorkerCount)
	return output
}
