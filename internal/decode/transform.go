package decode

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Invert returns a copy with every RGB channel replaced by 255-v. Alpha is untouched.
func Invert(r Raster) Raster {
	out := r.clone()
	for i := 0; i+3 < len(out.Pix); i += 4 {
		out.Pix[i] = 255 - out.Pix[i]
		out.Pix[i+1] = 255 - out.Pix[i+1]
		out.Pix[i+2] = 255 - out.Pix[i+2]
	}
	return out
}

// HighContrast converts to luma (0.299R + 0.587G + 0.114B) and thresholds at
// 128: luma >= 128 becomes white, everything else black.
func HighContrast(r Raster) Raster {
	out := r.clone()
	for i := 0; i+3 < len(out.Pix); i += 4 {
		luma := 0.299*float64(out.Pix[i]) + 0.587*float64(out.Pix[i+1]) + 0.114*float64(out.Pix[i+2])
		var v byte
		if luma >= 128 {
			v = 255
		}
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = v, v, v
	}
	return out
}

// Scale resamples the raster by factor using bilinear interpolation.
// The result is never smaller than 1x1.
func Scale(r Raster, factor float64) Raster {
	w := max(1, int(math.Round(float64(r.Width)*factor)))
	h := max(1, int(math.Round(float64(r.Height)*factor)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	src := r.Image()
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return Raster{Width: w, Height: h, Pix: dst.Pix}
}
