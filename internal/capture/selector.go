package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ActiveStrategy is the strategy a Selector currently runs and its session
type ActiveStrategy struct {
	Strategy Strategy
	Handle   *Handle
}

// Kind returns the active strategy's kind, or "" when nothing is active
func (a ActiveStrategy) Kind() Kind {
	if a.Strategy == nil {
		return ""
	}
	return a.Strategy.Kind()
}

// DefaultKind applies the selection policy: an explicit choice of manual or
// still-image always wins, streaming is used only when the report allows it,
// and still-image is the fallback. The second result explains a refused
// streaming choice.
func DefaultKind(report CaptureReport, choice *Kind) (Kind, string) {
	if choice != nil {
		switch *choice {
		case KindManual, KindStillImage:
			return *choice, ""
		case KindStreaming:
			if report.CanStream {
				return KindStreaming, ""
			}
			return KindStillImage, "Live camera scanning needs camera access over a secure connection. Using photo capture instead."
		}
	}
	if report.CanStream {
		return KindStreaming, ""
	}
	return KindStillImage, ""
}

// Selector owns at most one running strategy. Every swap stops the previous
// strategy before the next one starts, so only one of them ever holds the camera.
//
// Swaps are serialized by swapMu. Starting a strategy can take several camera
// round trips, so it runs outside mu; Active, Report and Available stay
// responsive and report no active strategy until the start completes.
type Selector struct {
	swapMu sync.Mutex

	mu         sync.Mutex
	strategies map[Kind]Strategy
	cb         Callbacks
	report     CaptureReport
	active     ActiveStrategy
}

// NewSelector creates a Selector over the given strategies. Callbacks are
// shared by every strategy it starts. Manual entry is added when missing.
func NewSelector(cb Callbacks, strategies ...Strategy) *Selector {
	m := make(map[Kind]Strategy, len(strategies)+1)
	for _, s := range strategies {
		m[s.Kind()] = s
	}
	if _, ok := m[KindManual]; !ok {
		m[KindManual] = NewManualEntry()
	}
	return &Selector{strategies: m, cb: cb}
}

// Select records the capability report and starts the strategy chosen by DefaultKind
func (s *Selector) Select(ctx context.Context, report CaptureReport, choice *Kind) (ActiveStrategy, error) {
	kind, notice := DefaultKind(report, choice)
	if notice != "" {
		s.cb.diagnostic(notice)
	}

	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.Lock()
	s.report = report
	if _, ok := s.strategies[kind]; !ok && kind == KindStreaming {
		// No camera strategy configured, fall back as if the device could not stream
		kind = KindStillImage
	}
	s.mu.Unlock()

	return s.swap(ctx, kind)
}

// Switch stops the active strategy and starts the one of the given kind
func (s *Selector) Switch(ctx context.Context, kind Kind) (ActiveStrategy, error) {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	return s.swap(ctx, kind)
}

// swap must be called with swapMu held
func (s *Selector) swap(ctx context.Context, kind Kind) (ActiveStrategy, error) {
	s.mu.Lock()
	next, ok := s.strategies[kind]
	if !ok {
		defer s.mu.Unlock()
		return s.active, fmt.Errorf("%w: %s", ErrStrategyUnavailable, kind)
	}
	if kind == KindStreaming && !s.report.CanStream {
		defer s.mu.Unlock()
		return s.active, ErrStreamingUnavailable
	}
	prev := s.active
	s.active = ActiveStrategy{}
	s.mu.Unlock()

	stopStrategy(prev)

	slog.Debug("Starting capture strategy", "kind", kind)
	started := ActiveStrategy{
		Strategy: next,
		Handle:   next.Start(ctx, s.cb),
	}

	s.mu.Lock()
	s.active = started
	s.mu.Unlock()
	return started, nil
}

// Active returns the running strategy
func (s *Selector) Active() ActiveStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Report returns the capability report passed to Select
func (s *Selector) Report() CaptureReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Available lists the strategies valid for the current report. Manual entry is always offered.
func (s *Selector) Available() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kinds []Kind
	for _, k := range []Kind{KindStreaming, KindStillImage, KindManual} {
		if _, ok := s.strategies[k]; !ok {
			continue
		}
		if k == KindStreaming && !s.report.CanStream {
			continue
		}
		kinds = append(kinds, k)
	}
	return kinds
}

// Close stops the running strategy. It waits for a swap in progress.
func (s *Selector) Close() {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.Lock()
	prev := s.active
	s.active = ActiveStrategy{}
	s.mu.Unlock()

	stopStrategy(prev)
}

func stopStrategy(a ActiveStrategy) {
	if a.Strategy == nil {
		return
	}
	a.Strategy.Stop(a.Handle)
}
