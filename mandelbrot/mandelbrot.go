package mandelbrot

// Boundary is the squared magnitude past which an orbit is considered escaped.
const Boundary = 4.0

// Iterations runs the escape time recurrence starting at (x0, y0). The count is the
// iteration at which the orbit left the radius 2 disc, or maxIterations when it never
// did within the limit.
// https://en.wikipedia.org/wiki/Plotting_algorithms_for_the_Mandelbrot_set#Unoptimized_na%C3%AFve_escape_time_algorithm
func Iterations(x0 float64, y0 float64, maxIterations int) (int, bool) {
	x, y := x0, y0
	x2, y2 := x*x, y*y
	if x2+y2 > Boundary {
		return 0, true
	}
	for iteration := 1; iteration <= maxIterations; iteration++ {
		y = 2*x*y + y0
		x = x2 - y2 + x0
		x2, y2 = x*x, y*y
		if x2+y2 > Boundary {
			return iteration, true
		}
	}
	return maxIterations, false
}
