// Package bitmap holds the pixel grid a render writes into and knows how to persist it.
// Distinct workers may call Set concurrently as long as they never touch the same pixel.
package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"

	"mandelmovie/misc"
)

// MaxPixels bounds a single allocation at 1 GiB of RGBA data.
const MaxPixels = 1 << 28

type Bitmap struct {
	image *image.RGBA
}

func New(width int, height int) (*Bitmap, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: bitmap must be at least 1x1, got %dx%d", misc.ErrConfiguration, width, height)
	}
	if width > MaxPixels/height {
		return nil, fmt.Errorf("%w: bitmap of %dx%d exceeds %d pixels", misc.ErrResourceExhaustion, width, height, MaxPixels)
	}
	return &Bitmap{image: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

func (b *Bitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *Bitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *Bitmap) Set(column int, row int, c color.RGBA) {
	b.image.SetRGBA(column, row, c)
}

func (b *Bitmap) At(column int, row int) color.RGBA {
	return b.image.RGBAAt(column, row)
}

func (b *Bitmap) Image() *image.RGBA {
	return b.image
}

// Save encodes the bitmap in the format implied by the extension of path (bmp, png,
// jpg, gif, tif). The file only appears at path once it was written completely.
func (b *Bitmap) Save(path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("couldn't write to %s: %w", path, err)
	}
	err = misc.WriteFileAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, b.image, format)
	})
	if err != nil {
		return fmt.Errorf("couldn't write to %s: %w", path, err)
	}
	return nil
}
