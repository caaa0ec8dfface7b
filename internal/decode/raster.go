package decode

import (
	"image"

	"golang.org/x/image/draw"
)

// Raster is an RGBA pixel buffer, four bytes per pixel, rows packed with no padding.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// Valid reports whether the raster has a positive size and enough pixel data
func (r Raster) Valid() bool {
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return len(r.Pix) >= r.Width*r.Height*4
}

// Image wraps the raster as an *image.RGBA without copying
func (r Raster) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    r.Pix[:r.Width*r.Height*4],
		Stride: r.Width * 4,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}

// RasterFromImage copies any image into a fresh Raster
func RasterFromImage(img image.Image) Raster {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return Raster{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    dst.Pix,
	}
}

func (r Raster) clone() Raster {
	pix := make([]byte, r.Width*r.Height*4)
	copy(pix, r.Pix)
	return Raster{Width: r.Width, Height: r.Height, Pix: pix}
}
