package capture

import (
	"context"
	"image"
	"sync"
)

// FrameQueue is a Stream fed by frames a browser uploads from its own camera.
// It keeps only the most recent frames; a slow decoder skips stale ones.
type FrameQueue struct {
	frames chan image.Image

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewFrameQueue creates a queue holding at most size frames
func NewFrameQueue(size int) *FrameQueue {
	if size <= 0 {
		size = 1
	}
	return &FrameQueue{
		frames: make(chan image.Image, size),
		done:   make(chan struct{}),
	}
}

// Push adds a frame, discarding the oldest queued frame when full
func (q *FrameQueue) Push(img image.Image) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrStreamClosed
	}
	for {
		select {
		case q.frames <- img:
			return nil
		default:
		}
		select {
		case <-q.frames:
		default:
		}
	}
}

// ReadFrame waits for the next pushed frame
func (q *FrameQueue) ReadFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrStreamClosed
	case img := <-q.frames:
		return img, nil
	}
}

// Close stops accepting frames
func (q *FrameQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

// Closed reports whether the queue has been released
func (q *FrameQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// PushAcquirer opens a fresh FrameQueue per session and hands it to attach,
// which publishes it to whoever receives the client's frames.
func PushAcquirer(size int, attach func(*FrameQueue)) Acquirer {
	return Acquirer{
		Name: "client-push",
		Acquire: func(ctx context.Context) (Stream, error) {
			q := NewFrameQueue(size)
			if attach != nil {
				attach(q)
			}
			return q, nil
		},
	}
}
