package decode

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Reader locates and decodes a single QR symbol in an image
type Reader interface {
	// Read returns the symbol text. tryHarder trades speed for a more
	// exhaustive search of the image.
	Read(img image.Image, tryHarder bool) (string, error)
}

// QRReader implements Reader with the gozxing QR code reader
type QRReader struct{}

// NewQRReader creates a new QRReader
func NewQRReader() *QRReader {
	return &QRReader{}
}

// Read decodes a QR symbol from img
func (q *QRReader) Read(img image.Image, tryHarder bool) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarizing image: %w", err)
	}

	var hints map[gozxing.DecodeHintType]interface{}
	if tryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}

	// The gozxing reader keeps decoder state, so each call gets its own.
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("reading QR code: %w", err)
	}
	return result.GetText(), nil
}
