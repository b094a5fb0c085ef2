package mandelbrot

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"mandelmovie/misc"
)

// Palette maps escape counts onto a gradient running through Stops. Points that never
// escape get EscapeColor.
type Palette struct {
	EscapeColor color.RGBA
	Stops       []color.RGBA
}

func DefaultPalette() Palette {
	return Palette{
		EscapeColor: color.RGBA{R: 0, G: 0, B: 0, A: 255},
		Stops: []color.RGBA{
			{R: 0, G: 7, B: 100, A: 255},
			{R: 32, G: 107, B: 203, A: 255},
			{R: 237, G: 255, B: 255, A: 255},
			{R: 255, G: 170, B: 0, A: 255},
			{R: 120, G: 2, B: 0, A: 255},
		},
	}
}

// ParsePalette builds a palette from "#rrggbb" strings. An empty escape string keeps black.
func ParsePalette(escape string, stops []string) (Palette, error) {
	palette := Palette{EscapeColor: color.RGBA{A: 255}}
	if strings.TrimSpace(escape) != "" {
		c, err := ParseHexColor(escape)
		if err != nil {
			return Palette{}, err
		}
		palette.EscapeColor = c
	}
	if len(stops) == 0 {
		return Palette{}, fmt.Errorf("%w: palette needs at least one color", misc.ErrConfiguration)
	}
	for _, stop := range stops {
		c, err := ParseHexColor(stop)
		if err != nil {
			return Palette{}, err
		}
		palette.Stops = append(palette.Stops, c)
	}
	return palette, nil
}

func ParseHexColor(value string) (color.RGBA, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: color %q is not in #rrggbb form", misc.ErrConfiguration, value)
	}
	rgb, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: color %q is not in #rrggbb form", misc.ErrConfiguration, value)
	}
	return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 255}, nil
}

// ColorFor returns the color of a pixel whose orbit escaped after count iterations.
// The square root spreads the low counts, which dominate most views, over more of the
// gradient.
func (p Palette) ColorFor(count int, maxIterations int) color.RGBA {
	if count >= maxIterations || len(p.Stops) == 0 {
		return p.EscapeColor
	}
	if count < 0 {
		count = 0
	}
	if len(p.Stops) == 1 {
		return p.Stops[0]
	}

	position := math.Sqrt(float64(count)/float64(maxIterations)) * float64(len(p.Stops)-1)
	index, fraction := math.Modf(position)
	i := int(index)
	if i >= len(p.Stops)-1 {
		return p.Stops[len(p.Stops)-1]
	}
	return misc.LinearInterpolationRGB(p.Stops[i], p.Stops[i+1], fraction)
}
