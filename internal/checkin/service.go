package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yoshuavic8/church-checkin/internal/capture"
)

// Service manages scanner stations and the sessions they record against
type Service struct {
	db             DB
	decoder        capture.Decoder
	generalSession uuid.UUID
	pollInterval   time.Duration
	idGenerator    IDGenerator
	timeSource     TimeSource

	mu       sync.Mutex
	stations map[string]*Station
}

// Options tunes a Service
type Options struct {
	// GeneralSession receives MEMBER_CHECKIN codes that name GENERAL.
	GeneralSession uuid.UUID
	// PollInterval is the streaming frame poll period.
	PollInterval time.Duration
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, decoder capture.Decoder, opts Options) *Service {
	return NewServiceWithDeps(db, decoder, opts, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, decoder capture.Decoder, opts Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = capture.DefaultPollInterval
	}
	return &Service{
		db:             db,
		decoder:        decoder,
		generalSession: opts.GeneralSession,
		pollInterval:   opts.PollInterval,
		idGenerator:    idGen,
		timeSource:     timeSrc,
		stations:       make(map[string]*Station),
	}
}

// OpenStation creates a station and starts the strategy chosen for report
func (s *Service) OpenStation(report capture.CaptureReport, choice *capture.Kind, subject uuid.UUID) (*Station, error) {
	st := newStation(s.idGenerator.Generate(), s.decoder, s.db, s.generalSession, s.timeSource, s.pollInterval)
	st.SetSubject(subject)
	if err := st.Select(report, choice); err != nil {
		st.Close()
		return nil, err
	}

	s.mu.Lock()
	s.stations[st.ID] = st
	s.mu.Unlock()

	slog.Info("Opened scanner station",
		"station", st.ID,
		"strategy", st.View().Strategy,
		"can_stream", report.CanStream,
	)
	return st, nil
}

// Station returns an open station
func (s *Service) Station(id string) (*Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	return st, nil
}

// CloseStation stops a station's strategy and forgets it
func (s *Service) CloseStation(id string) error {
	s.mu.Lock()
	st, ok := s.stations[id]
	delete(s.stations, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrStationNotFound, id)
	}
	st.Close()
	slog.Info("Closed scanner station", "station", id)
	return nil
}

// Close stops every station
func (s *Service) Close() {
	s.mu.Lock()
	stations := s.stations
	s.stations = make(map[string]*Station)
	s.mu.Unlock()

	for _, st := range stations {
		st.Close()
	}
}

// CreateSession saves a new meeting
func (s *Service) CreateSession(label string, startsAt time.Time, expiresAt *time.Time) (*Session, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, errors.New("label is required")
	}
	if expiresAt != nil && !startsAt.IsZero() && expiresAt.Before(startsAt) {
		return nil, errors.New("expires_at must be after starts_at")
	}

	id, err := uuid.Parse(s.idGenerator.Generate())
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}
	now := s.timeSource.Now()
	if startsAt.IsZero() {
		startsAt = now
	}

	session := &Session{
		ID:        id,
		Label:     label,
		StartsAt:  startsAt,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.db.SaveSession(session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions
func (s *Service) ListSessions() ([]*Session, error) {
	sessions, err := s.db.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// SessionStatus reports whether a session accepts check-ins
func (s *Service) SessionStatus(ctx context.Context, id uuid.UUID) (SessionStatus, error) {
	status, err := s.db.GetSessionStatus(ctx, id)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("getting session status: %w", err)
	}
	return status, nil
}

// ListAttendance returns the members recorded present at a session
func (s *Service) ListAttendance(id uuid.UUID) ([]*Attendance, error) {
	if _, err := s.db.GetSession(id); err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	records, err := s.db.ListAttendance(id)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}
	return records, nil
}
