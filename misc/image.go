package misc

import (
	"image/color"
)

func LerpFloat64(v1 float64, v2 float64, fraction float64) float64 {
	return v1 + (v2-v1)*fraction
}

func LerpUint8(v1 uint8, v2 uint8, fraction float64) uint8 {
	v1f := float64(v1)
	v2f := float64(v2)
	return uint8(LerpFloat64(v1f, v2f, fraction) + 0.5)
}

func LinearInterpolationRGB(color1 color.RGBA, color2 color.RGBA, fraction float64) color.RGBA {
	var finalColor color.RGBA
	finalColor.R = LerpUint8(color1.R, color2.R, fraction)
	finalColor.G = LerpUint8(color1.G, color2.G, fraction)
	finalColor.B = LerpUint8(color1.B, color2.B, fraction)
	finalColor.A = 255
	return finalColor
}
