package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/yoshuavic8/church-checkin/internal/decode"
)

// DefaultPollInterval is how often the streaming loop pulls a frame
const DefaultPollInterval = 100 * time.Millisecond

const cameraUnavailableMessage = "Could not access the camera. Allow camera access, or switch to photo upload or manual entry."

// Stream is an open camera device
type Stream interface {
	// ReadFrame blocks until the next frame is available or ctx ends.
	ReadFrame(ctx context.Context) (image.Image, error)
	// Close releases the device. It must be safe to call more than once.
	Close() error
}

// Acquirer is one way of opening a camera. Cameras and browsers reject
// different request shapes, so a strategy holds several and tries them in order.
type Acquirer struct {
	Name    string
	Acquire func(ctx context.Context) (Stream, error)
}

// StreamingCapture reads frames from a live camera until one decodes
type StreamingCapture struct {
	decoder   Decoder
	acquirers []Acquirer
	interval  time.Duration
}

// NewStreamingCapture creates a StreamingCapture polling at DefaultPollInterval
func NewStreamingCapture(decoder Decoder, acquirers ...Acquirer) *StreamingCapture {
	return NewStreamingCaptureWithInterval(decoder, DefaultPollInterval, acquirers...)
}

// NewStreamingCaptureWithInterval creates a StreamingCapture with a custom poll interval
func NewStreamingCaptureWithInterval(decoder Decoder, interval time.Duration, acquirers ...Acquirer) *StreamingCapture {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StreamingCapture{
		decoder:   decoder,
		acquirers: acquirers,
		interval:  interval,
	}
}

// Kind returns KindStreaming
func (s *StreamingCapture) Kind() Kind {
	return KindStreaming
}

// Start opens the camera and begins polling. When no acquirer succeeds the
// returned handle is already inactive; Start can be called again to retry.
func (s *StreamingCapture) Start(ctx context.Context, cb Callbacks) *Handle {
	h := newHandle(KindStreaming, cb)

	stream := s.acquire(ctx, cb)
	if stream == nil {
		h.finish()
		return h
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.loopDone = make(chan struct{})
	h.setRelease(func() {
		if err := stream.Close(); err != nil {
			slog.Warn("Failed to release camera stream", "error", err)
		}
	})

	go s.run(loopCtx, h, stream)
	return h
}

// Stop ends the session and releases the camera before returning
func (s *StreamingCapture) Stop(h *Handle) {
	h.stop()
}

func (s *StreamingCapture) acquire(ctx context.Context, cb Callbacks) Stream {
	for i, a := range s.acquirers {
		if err := ctx.Err(); err != nil {
			break
		}
		stream, err := a.Acquire(ctx)
		if err == nil && stream != nil {
			slog.Debug("Camera acquired", "variant", a.Name)
			return stream
		}
		if err == nil {
			err = errors.New("no stream returned")
		}
		slog.Debug("Camera request failed", "variant", a.Name, "error", err)
		if i < len(s.acquirers)-1 {
			cb.diagnostic(fmt.Sprintf("Camera request %q failed (%v), trying another configuration.", a.Name, err))
		}
	}
	cb.diagnostic(cameraUnavailableMessage)
	return nil
}

// run owns the stream until the session ends. The payload callback fires
// after the stream is released and the loop is marked finished, so a
// callback may stop or restart strategies without waiting on this goroutine.
func (s *StreamingCapture) run(ctx context.Context, h *Handle, stream Stream) {
	payload, found := s.poll(ctx, h, stream)

	h.releaseResources()
	h.finish()
	h.cancel()
	close(h.loopDone)

	if found {
		h.cb.payload(payload)
	}
}

// poll decodes one frame per tick; decodes never overlap
func (s *StreamingCapture) poll(ctx context.Context, h *Handle, stream Stream) (string, bool) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
		}

		frame, err := stream.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", false
			}
			if errors.Is(err, io.EOF) || errors.Is(err, ErrStreamClosed) {
				h.cb.diagnostic("The camera stream ended. Start the scanner again to retry.")
				return "", false
			}
			if msg := err.Error(); msg != lastErr {
				h.cb.diagnostic(fmt.Sprintf("Could not read a camera frame: %v", err))
				lastErr = msg
			}
			continue
		}
		lastErr = ""
		if frame == nil {
			continue
		}

		if payload, ok := s.decoder.Decode(decode.RasterFromImage(frame)); ok {
			return payload, true
		}
	}
}
