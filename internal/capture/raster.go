package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	"github.com/gen2brain/heic"

	"github.com/yoshuavic8/church-checkin/internal/decode"
)

// DetectContentType normalizes the declared MIME type of an upload. An empty
// or generic type falls back to the file extension, then to content sniffing.
func DetectContentType(filename string, data []byte, declared string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}

	if isHEICFormat(data) {
		return "image/heic"
	}
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return sniffed
}

// IsImageType reports whether a normalized MIME type names an image
func IsImageType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

// MaxImagePixels caps the decoded area of a photo or frame (16 megapixels)
const MaxImagePixels = 16_000_000

// DecodeImage decodes JPEG, PNG, GIF and HEIC/HEIF data and applies the
// EXIF orientation, so phone photos come out the right way up. Images larger
// than MaxImagePixels are refused before any pixels are decoded.
func DecodeImage(data []byte, contentType string) (image.Image, error) {
	var img image.Image

	// Go's standard image package does not read HEIC (the iPhone default)
	if isHEICFormat(data) || isHEICMimeType(contentType) {
		cfg, err := heic.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("reading HEIC/HEIF header: %w", err)
		}
		if err := checkDimensions(cfg); err != nil {
			return nil, err
		}
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			if errors.Is(err, image.ErrFormat) {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF. Error: %w", err)
			}
			return nil, fmt.Errorf("reading image header: %w", err)
		}
		if err := checkDimensions(cfg); err != nil {
			return nil, err
		}
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	return applyOrientation(img, exifOrientation(data)), nil
}

func checkDimensions(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// Rasterize decodes an image file into a pixel buffer for the decode engine
func Rasterize(data []byte, contentType string) (decode.Raster, error) {
	img, err := DecodeImage(data, contentType)
	if err != nil {
		return decode.Raster{}, err
	}
	return decode.RasterFromImage(img), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// exifOrientation returns the EXIF Orientation tag (1-8), or 1 when absent
func exifOrientation(data []byte) int {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return 1
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return 1
	}

	for _, entry := range entries {
		if entry.TagName != "Orientation" {
			continue
		}
		if values, ok := entry.Value.([]uint16); ok && len(values) > 0 {
			return int(values[0])
		}
		if n, err := strconv.Atoi(strings.Trim(entry.Formatted, "[] ")); err == nil {
			return n
		}
	}
	return 1
}

// applyOrientation rotates/flips img so that it displays upright
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
