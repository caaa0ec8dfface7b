package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/yoshuavic8/church-checkin/internal/decode"
)

// Kind names a capture strategy
type Kind string

const (
	KindStreaming  Kind = "streaming"
	KindStillImage Kind = "still-image"
	KindManual     Kind = "manual"
)

// ParseKind validates a strategy name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindStreaming, KindStillImage, KindManual:
		return k, nil
	default:
		return "", fmt.Errorf("unknown capture strategy %q", s)
	}
}

// Decoder turns a raster into a payload. *decode.Engine implements it.
type Decoder interface {
	Decode(r decode.Raster) (string, bool)
}

// Callbacks receive a strategy's results. Either field may be nil.
type Callbacks struct {
	// OnPayload is called with each payload the strategy obtains.
	OnPayload func(payload string)
	// OnDiagnostic is called with human-readable, non-fatal status messages.
	OnDiagnostic func(message string)
}

func (c Callbacks) payload(p string) {
	if c.OnPayload != nil {
		c.OnPayload(p)
	}
}

func (c Callbacks) diagnostic(msg string) {
	if c.OnDiagnostic != nil {
		c.OnDiagnostic(msg)
	}
}

// Strategy is one way of obtaining a payload. Start never fails; problems are
// reported through Callbacks.OnDiagnostic. Stop is synchronous and idempotent:
// once it returns, the strategy holds no device.
type Strategy interface {
	Kind() Kind
	Start(ctx context.Context, cb Callbacks) *Handle
	Stop(h *Handle)
}

// Handle is a running strategy session
type Handle struct {
	kind Kind
	cb   Callbacks

	cancel   context.CancelFunc
	loopDone chan struct{}

	done       chan struct{}
	finishOnce sync.Once

	releaseMu   sync.Mutex
	release     func()
	releaseOnce sync.Once
}

func newHandle(kind Kind, cb Callbacks) *Handle {
	return &Handle{
		kind: kind,
		cb:   cb,
		done: make(chan struct{}),
	}
}

// Kind returns the strategy kind that produced the handle
func (h *Handle) Kind() Kind {
	return h.kind
}

// Done is closed when the session ends
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Active reports whether the session is still running
func (h *Handle) Active() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *Handle) finish() {
	h.finishOnce.Do(func() { close(h.done) })
}

func (h *Handle) setRelease(fn func()) {
	h.releaseMu.Lock()
	defer h.releaseMu.Unlock()
	h.release = fn
}

// releaseResources runs the release hook at most once, whichever exit path gets there first
func (h *Handle) releaseResources() {
	h.releaseOnce.Do(func() {
		h.releaseMu.Lock()
		fn := h.release
		h.releaseMu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// stop cancels any capture loop, waits for it to exit, then releases resources
func (h *Handle) stop() {
	if h == nil {
		return
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.loopDone != nil {
		<-h.loopDone
	}
	h.releaseResources()
	h.finish()
}
