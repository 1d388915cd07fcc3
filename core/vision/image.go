package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

// ErrUnsupportedImage is returned for data that is not a JPEG or PNG image
var ErrUnsupportedImage = errors.New("unsupported image format")

// DecodeImage reads a JPEG or PNG image. Transparency is dropped by drawing
// the image onto an opaque black canvas.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if errors.Is(err, image.ErrFormat) {
		return nil, ErrUnsupportedImage
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("failed to decode image: empty image")
	}

	rgb := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgb, rgb.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, bounds.Min, draw.Over)
	return rgb, nil
}
