package coordinator

import (
	"fmt"
	"math"

	"mandelmovie/misc"
	"mandelmovie/task"
)

// GenerateSchedule returns frameCount scales shrinking geometrically from startScale
// towards endScale. Every frame is the previous one multiplied by the same ratio so the
// zoom looks steady when played back:
//
//	ratio    = (endScale / startScale) ^ (1 / (frameCount + 1))
//	scale(i) = startScale * ratio^i    for i = 1..frameCount
func GenerateSchedule(startScale float64, endScale float64, frameCount int) ([]task.Frame, error) {
	if !(startScale > 0) || math.IsInf(startScale, 0) {
		return nil, fmt.Errorf("%w: start scale must be positive, got %g", misc.ErrConfiguration, startScale)
	}
	if !(endScale > 0) {
		return nil, fmt.Errorf("%w: end scale must be positive, got %g", misc.ErrConfiguration, endScale)
	}
	if endScale >= startScale {
		return nil, fmt.Errorf("%w: end scale %g must be smaller than start scale %g", misc.ErrConfiguration, endScale, startScale)
	}
	if frameCount < 1 {
		return nil, fmt.Errorf("%w: frame count must be at least 1, got %d", misc.ErrConfiguration, frameCount)
	}

	ratio := math.Pow(endScale/startScale, 1/float64(frameCount+1))
	frames := make([]task.Frame, frameCount)
	for i := range frames {
		index := i + 1
		frames[i] = task.Frame{
			Index: index,
			Scale: startScale * math.Pow(ratio, float64(index)),
		}
	}
	return frames, nil
}
