package capture

import "errors"

var (
	// ErrStreamClosed is returned by a Stream once it has been released
	ErrStreamClosed = errors.New("camera stream closed")

	// ErrNotMJPEG is returned when a camera endpoint does not answer with a multipart stream
	ErrNotMJPEG = errors.New("camera did not return a multipart MJPEG stream")

	// ErrNotImage is returned when an upload is not an image
	ErrNotImage = errors.New("file is not an image")

	// ErrImageTooLarge is returned when an image's pixel area exceeds MaxImagePixels
	ErrImageTooLarge = errors.New("image resolution is too high")

	// ErrStrategyUnavailable is returned when switching to a strategy the selector does not hold
	ErrStrategyUnavailable = errors.New("capture strategy not available")

	// ErrStreamingUnavailable is returned when streaming is requested but the
	// capability report says the client cannot stream
	ErrStreamingUnavailable = errors.New("live camera scanning is not available on this device")

	// ErrInactive is returned when input arrives for a strategy that is not running
	ErrInactive = errors.New("capture strategy is not active")
)
