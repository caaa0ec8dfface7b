package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultMaxImageSize matches the upload cap for high-resolution phone photos
const DefaultMaxImageSize = 50 << 20

// NoCodeFoundMessage is reported when every decode pass over a photo misses
const NoCodeFoundMessage = "No QR code found in the photo. Try better lighting, hold the camera steady and fill the frame with the code."

// Upload is one image handed to the still-image strategy
type Upload struct {
	Filename    string
	Data        []byte
	ContentType string
}

// StillImageCapture decodes one uploaded or captured photo at a time
type StillImageCapture struct {
	decoder Decoder
	maxSize int
}

// NewStillImageCapture creates a StillImageCapture with the default size cap
func NewStillImageCapture(decoder Decoder) *StillImageCapture {
	return NewStillImageCaptureWithLimit(decoder, DefaultMaxImageSize)
}

// NewStillImageCaptureWithLimit creates a StillImageCapture with a custom size cap in bytes
func NewStillImageCaptureWithLimit(decoder Decoder, maxSize int) *StillImageCapture {
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	return &StillImageCapture{decoder: decoder, maxSize: maxSize}
}

// Kind returns KindStillImage
func (s *StillImageCapture) Kind() Kind {
	return KindStillImage
}

// Start opens a session that accepts photos through Submit
func (s *StillImageCapture) Start(ctx context.Context, cb Callbacks) *Handle {
	return newHandle(KindStillImage, cb)
}

// Stop closes the session
func (s *StillImageCapture) Stop(h *Handle) {
	h.stop()
}

// Submit decodes one photo. Callbacks fire before Submit returns; the result
// is also returned for synchronous callers.
func (s *StillImageCapture) Submit(h *Handle, up Upload) (string, bool) {
	if h == nil || !h.Active() {
		return "", false
	}

	contentType := DetectContentType(up.Filename, up.Data, up.ContentType)
	if !IsImageType(contentType) {
		h.cb.diagnostic(fmt.Sprintf("Only photos can be scanned; %q is %s. Choose a JPEG, PNG or HEIC image.", up.Filename, contentType))
		return "", false
	}
	if len(up.Data) == 0 {
		h.cb.diagnostic("The photo is empty. Take or choose the picture again.")
		return "", false
	}
	if len(up.Data) > s.maxSize {
		h.cb.diagnostic(fmt.Sprintf("The photo is too large. Maximum size is %dMB. Please compress or resize your image.", s.maxSize>>20))
		return "", false
	}

	raster, err := Rasterize(up.Data, contentType)
	if errors.Is(err, ErrImageTooLarge) {
		h.cb.diagnostic(fmt.Sprintf("The photo's resolution is too high. Maximum is %d megapixels; take the picture again at a lower resolution.", MaxImagePixels/1_000_000))
		return "", false
	}
	if err != nil {
		slog.Warn("Failed to rasterize photo",
			"filename", up.Filename,
			"content_type", contentType,
			"file_size", len(up.Data),
			"error", err,
		)
		h.cb.diagnostic("Could not read the photo. Take the picture again or choose a different image.")
		return "", false
	}

	payload, ok := s.decoder.Decode(raster)
	if !ok {
		h.cb.diagnostic(NoCodeFoundMessage)
		return "", false
	}

	h.cb.payload(payload)
	return payload, true
}
