package checkin

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yoshuavic8/church-checkin/internal/capture"
)

const (
	maxDiagnostics = 20
	frameQueueSize = 2
)

// Diagnostic is a timestamped status message from a capture strategy
type Diagnostic struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// StationView is the JSON representation of a station
type StationView struct {
	ID          string                `json:"id"`
	Report      capture.CaptureReport `json:"report"`
	Strategy    capture.Kind          `json:"strategy"`
	Running     bool                  `json:"running"`
	Available   []capture.Kind        `json:"available"`
	Checkin     Outcome               `json:"checkin"`
	Diagnostics []Diagnostic          `json:"diagnostics"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Station is one operator device: a scanner selector feeding a coordinator
type Station struct {
	ID        string
	CreatedAt time.Time

	selector    *capture.Selector
	still       *capture.StillImageCapture
	manual      *capture.ManualEntry
	coordinator *Coordinator
	timeSource  TimeSource

	// ctx outlives individual requests so streaming sessions keep polling
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	frames      *capture.FrameQueue
	subject     uuid.UUID
	diagnostics []Diagnostic
}

func newStation(id string, decoder capture.Decoder, recorder AttendanceRecorder, generalSession uuid.UUID, timeSource TimeSource, pollInterval time.Duration) *Station {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Station{
		ID:         id,
		CreatedAt:  timeSource.Now(),
		still:      capture.NewStillImageCapture(decoder),
		manual:     capture.NewManualEntry(),
		timeSource: timeSource,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.coordinator = NewCoordinatorWithGeneral(recorder, SubjectFunc(s.storedSubject), generalSession)

	streaming := capture.NewStreamingCaptureWithInterval(decoder, pollInterval,
		capture.PushAcquirer(frameQueueSize, s.attachFrames))

	s.selector = capture.NewSelector(capture.Callbacks{
		OnPayload:    s.handlePayload,
		OnDiagnostic: s.addDiagnostic,
	}, streaming, s.still, s.manual)
	return s
}

func (s *Station) attachFrames(q *capture.FrameQueue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = q
}

// storedSubject returns the member set by SetSubject. ctx is always the
// station's own context, never a request's.
func (s *Station) storedSubject(context.Context) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subject == uuid.Nil {
		return uuid.Nil, ErrNoSubject
	}
	return s.subject, nil
}

// SetSubject records the signed-in member used for meeting-only payloads
func (s *Station) SetSubject(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = id
}

func (s *Station) handlePayload(payload string) {
	out, err := s.coordinator.Handle(s.ctx, payload)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			s.addDiagnostic("A check-in is already showing. Reset the scanner to scan another code.")
			return
		}
		slog.Error("Handling scan payload", "station", s.ID, "error", err)
		return
	}
	slog.Info("Scan processed", "station", s.ID, "state", out.State)
}

func (s *Station) addDiagnostic(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, Diagnostic{At: s.timeSource.Now(), Message: msg})
	if n := len(s.diagnostics); n > maxDiagnostics {
		s.diagnostics = append([]Diagnostic(nil), s.diagnostics[n-maxDiagnostics:]...)
	}
}

// Select starts the default strategy for report, or choice when given
func (s *Station) Select(report capture.CaptureReport, choice *capture.Kind) error {
	if _, err := s.selector.Select(s.ctx, report, choice); err != nil {
		return fmt.Errorf("selecting capture strategy: %w", err)
	}
	return nil
}

// SwitchStrategy stops the running strategy and starts kind
func (s *Station) SwitchStrategy(kind capture.Kind) error {
	if _, err := s.selector.Switch(s.ctx, kind); err != nil {
		return fmt.Errorf("switching capture strategy: %w", err)
	}
	return nil
}

// PushFrame hands a browser camera frame to the streaming session
func (s *Station) PushFrame(img image.Image) error {
	active := s.selector.Active()
	if active.Kind() != capture.KindStreaming || !active.Handle.Active() {
		return capture.ErrInactive
	}

	s.mu.Lock()
	q := s.frames
	s.mu.Unlock()
	if q == nil || q.Closed() {
		return capture.ErrInactive
	}
	return q.Push(img)
}

// SubmitImage decodes one photo through the still-image strategy
func (s *Station) SubmitImage(up capture.Upload) error {
	active := s.selector.Active()
	if active.Kind() != capture.KindStillImage {
		return capture.ErrInactive
	}
	if s.coordinator.State() != StateIdle {
		return ErrBusy
	}
	s.still.Submit(active.Handle, up)
	return nil
}

// EnterCode validates a typed code through the manual strategy
func (s *Station) EnterCode(text string) error {
	active := s.selector.Active()
	if active.Kind() != capture.KindManual {
		return capture.ErrInactive
	}
	if s.coordinator.State() != StateIdle {
		return ErrBusy
	}
	s.manual.Enter(active.Handle, text)
	return nil
}

// Reset returns the coordinator to Idle and restarts a finished strategy
func (s *Station) Reset() error {
	if err := s.coordinator.Reset(); err != nil {
		return err
	}
	active := s.selector.Active()
	if active.Strategy != nil && !active.Handle.Active() {
		return s.SwitchStrategy(active.Kind())
	}
	return nil
}

// Outcome returns the coordinator's current outcome
func (s *Station) Outcome() Outcome {
	return s.coordinator.Snapshot()
}

// View returns the station's current state
func (s *Station) View() StationView {
	active := s.selector.Active()

	s.mu.Lock()
	diagnostics := make([]Diagnostic, len(s.diagnostics))
	copy(diagnostics, s.diagnostics)
	s.mu.Unlock()

	return StationView{
		ID:          s.ID,
		Report:      s.selector.Report(),
		Strategy:    active.Kind(),
		Running:     active.Handle != nil && active.Handle.Active(),
		Available:   s.selector.Available(),
		Checkin:     s.coordinator.Snapshot(),
		Diagnostics: diagnostics,
		CreatedAt:   s.CreatedAt,
	}
}

// Close stops the running strategy and releases the camera. Cancelling
// first aborts a camera acquisition still in progress.
func (s *Station) Close() {
	s.cancel()
	s.selector.Close()
}
