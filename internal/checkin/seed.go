package checkin

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of a session seed file:
//
//	sessions:
//	  - id: 123e4567-e89b-12d3-a456-426614174000
//	    label: Sunday Service
//	    starts_at: 2026-10-18T09:00:00Z
//	    expires_at: 2026-10-18T12:00:00Z
type seedFile struct {
	Sessions []seedSession `yaml:"sessions"`
}

type seedSession struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	StartsAt  string `yaml:"starts_at"`
	ExpiresAt string `yaml:"expires_at"`
	Closed    bool   `yaml:"closed"`
}

// LoadSeedFile reads sessions from a YAML seed file
func LoadSeedFile(path string) ([]*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes sessions from YAML
func ParseSeed(r io.Reader) ([]*Session, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding seed file: %w", err)
	}

	sessions := make([]*Session, 0, len(seed.Sessions))
	for i, s := range seed.Sessions {
		session, err := s.session()
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i+1, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s seedSession) session() (*Session, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing id %q: %w", s.ID, err)
	}
	if s.Label == "" {
		return nil, fmt.Errorf("missing label for %s", id)
	}

	session := &Session{ID: id, Label: s.Label, Closed: s.Closed}
	if s.StartsAt != "" {
		if session.StartsAt, err = time.Parse(time.RFC3339, s.StartsAt); err != nil {
			return nil, fmt.Errorf("parsing starts_at: %w", err)
		}
	}
	if s.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, s.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
		session.ExpiresAt = &expires
	}
	return session, nil
}

// SeedSessions saves sessions into db, keeping the creation time of any
// session that already exists
func SeedSessions(db DB, sessions []*Session, now time.Time) error {
	for _, s := range sessions {
		if existing, err := db.GetSession(s.ID); err == nil {
			s.CreatedAt = existing.CreatedAt
		} else {
			s.CreatedAt = now
		}
		if err := db.SaveSession(s); err != nil {
			return fmt.Errorf("saving session %s: %w", s.ID, err)
		}
	}
	return nil
}
