package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// State is a step of the check-in state machine
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateSubmitting
	StateSuccess
	StateAlreadyCheckedIn
	StateRejected
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateDecoding:         "decoding",
	StateSubmitting:       "submitting",
	StateSuccess:          "success",
	StateAlreadyCheckedIn: "already-checked-in",
	StateRejected:         "rejected",
	StateFailed:           "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText lets states render by name in JSON responses
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown check-in state %q", text)
}

// Terminal reports whether s ends a check-in attempt
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateAlreadyCheckedIn, StateRejected, StateFailed:
		return true
	}
	return false
}

const (
	checkinFailedMessage  = "Check-in failed. Please try again."
	invalidCodeMessage    = "This is not a valid check-in code."
	noGeneralMessage      = "General attendance is not available at this station."
	signInRequiredMessage = "Sign in before checking in to this meeting."
)

// Outcome describes where a check-in attempt ended
type Outcome struct {
	State     State          `json:"state"`
	Message   string         `json:"message,omitempty"`
	Payload   string         `json:"payload,omitempty"`
	SessionID *uuid.UUID     `json:"session_id,omitempty"`
	SubjectID *uuid.UUID     `json:"member_id,omitempty"`
	Result    *CheckinResult `json:"result,omitempty"`
}

// SubjectResolver supplies the member to check in when the payload only
// names a meeting
type SubjectResolver interface {
	Subject(ctx context.Context) (uuid.UUID, error)
}

// SubjectFunc adapts a function to SubjectResolver
type SubjectFunc func(ctx context.Context) (uuid.UUID, error)

func (f SubjectFunc) Subject(ctx context.Context) (uuid.UUID, error) {
	return f(ctx)
}

type subjectKey struct{}

// WithSubject returns a context carrying the signed-in member
func WithSubject(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, subjectKey{}, id)
}

// ContextSubject resolves the member stored by WithSubject
var ContextSubject = SubjectFunc(func(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(subjectKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoSubject
	}
	return id, nil
})

// Coordinator turns one payload at a time into an attendance record
type Coordinator struct {
	recorder       AttendanceRecorder
	subjects       SubjectResolver
	generalSession uuid.UUID

	mu    sync.Mutex
	state State
	last  Outcome
}

// NewCoordinator creates a coordinator without a general attendance session
func NewCoordinator(recorder AttendanceRecorder, subjects SubjectResolver) *Coordinator {
	return NewCoordinatorWithGeneral(recorder, subjects, uuid.Nil)
}

// NewCoordinatorWithGeneral creates a coordinator that records GENERAL
// member codes against generalSession
func NewCoordinatorWithGeneral(recorder AttendanceRecorder, subjects SubjectResolver, generalSession uuid.UUID) *Coordinator {
	if subjects == nil {
		subjects = ContextSubject
	}
	return &Coordinator{
		recorder:       recorder,
		subjects:       subjects,
		generalSession: generalSession,
		state:          StateIdle,
		last:           Outcome{State: StateIdle},
	}
}

// Handle runs raw through Decoding and Submitting. It is accepted only while
// Idle; otherwise it returns ErrBusy and leaves the state alone. Rejected
// payloads never reach the recorder, and the recorder is never retried.
func (c *Coordinator) Handle(ctx context.Context, raw string) (Outcome, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return Outcome{State: state}, ErrBusy
	}
	c.transitionLocked(StateDecoding)
	c.mu.Unlock()

	payload, err := ParsePayload(raw)
	if err != nil {
		slog.Info("Rejected check-in code", "error", err)
		return c.finish(Outcome{State: StateRejected, Message: invalidCodeMessage, Payload: payload.Raw}), nil
	}

	out := Outcome{Payload: payload.Raw}

	session := payload.SessionID
	if payload.General {
		if c.generalSession == uuid.Nil {
			out.State = StateRejected
			out.Message = noGeneralMessage
			return c.finish(out), nil
		}
		session = c.generalSession
	}
	out.SessionID = &session

	subject := payload.SubjectID
	if payload.Kind != PayloadSubject {
		subject, err = c.subjects.Subject(ctx)
		if err != nil || subject == uuid.Nil {
			slog.Info("No member available for check-in", "session", session, "error", err)
			out.State = StateRejected
			out.Message = signInRequiredMessage
			return c.finish(out), nil
		}
	}
	out.SubjectID = &subject

	c.mu.Lock()
	c.transitionLocked(StateSubmitting)
	c.mu.Unlock()

	result, err := c.recorder.RecordCheckin(ctx, session, subject)
	switch {
	case err != nil:
		slog.Error("Recording check-in", "session", session, "member", subject, "error", err)
		out.State = StateFailed
		out.Message = failureMessage(result.Message, err)
	case result.AlreadyCheckedIn:
		out.State = StateAlreadyCheckedIn
		out.Message = result.Message
		out.Result = &result
	case result.Success:
		out.State = StateSuccess
		out.Message = result.Message
		out.Result = &result
	default:
		out.State = StateFailed
		out.Message = failureMessage(result.Message, nil)
		out.Result = &result
	}
	return c.finish(out), nil
}

func failureMessage(message string, err error) string {
	if message != "" {
		return message
	}
	if err != nil && !errors.Is(err, context.Canceled) && err.Error() != "" {
		return err.Error()
	}
	return checkinFailedMessage
}

func (c *Coordinator) finish(out Outcome) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(out.State)
	c.last = out
	return out
}

func (c *Coordinator) transitionLocked(next State) {
	slog.Debug("Check-in state changed", "from", c.state, "to", next)
	c.state = next
}

// Reset returns a terminal state to Idle. It is a no-op while Idle and
// returns ErrBusy while a payload is still being processed.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StateIdle:
		return nil
	case !c.state.Terminal():
		return ErrBusy
	}
	c.transitionLocked(StateIdle)
	c.last = Outcome{State: StateIdle}
	return nil
}

// State returns the current state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the outcome of the last finished attempt, or the current
// in-flight state
func (c *Coordinator) Snapshot() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		return Outcome{State: c.state}
	}
	return c.last
}
