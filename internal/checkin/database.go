package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	sessionBucketName    = "sessions"
	attendanceBucketName = "attendance"
)

// AttendanceRecorder records check-ins. Calling it again for the same pair
// must not create a second record; it reports AlreadyCheckedIn instead.
type AttendanceRecorder interface {
	RecordCheckin(ctx context.Context, sessionID, subjectID uuid.UUID) (CheckinResult, error)
}

// SessionDirectory answers whether a session is open for check-in
type SessionDirectory interface {
	GetSessionStatus(ctx context.Context, sessionID uuid.UUID) (SessionStatus, error)
}

// DB defines the interface for database operations
type DB interface {
	AttendanceRecorder
	SessionDirectory

	// SaveSession creates or replaces a session
	SaveSession(session *Session) error

	// GetSession retrieves a session by ID
	GetSession(id uuid.UUID) (*Session, error)

	// ListSessions returns all sessions
	ListSessions() ([]*Session, error)

	// ListAttendance returns the present-records of a session
	ListAttendance(sessionID uuid.UUID) ([]*Attendance, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db         *bbolt.DB
	timeSource TimeSource
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	return NewBoltDBWithClock(path, &defaultTimeSource{})
}

// NewBoltDBWithClock creates a new BoltDB instance with a custom time source for testing
func NewBoltDBWithClock(path string, timeSource TimeSource) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(attendanceBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db, timeSource: timeSource}, nil
}

// attendanceKey groups a session's records under a common prefix
func attendanceKey(sessionID, subjectID uuid.UUID) []byte {
	return []byte(sessionID.String() + "/" + subjectID.String())
}

func getSession(tx *bbolt.Tx, id uuid.UUID) (*Session, error) {
	data := tx.Bucket([]byte(sessionBucketName)).Get([]byte(id.String()))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// RecordCheckin writes a present-record unless one already exists. The
// lookup and the write share one transaction, so concurrent scans of the
// same pair cannot both succeed.
func (b *BoltDB) RecordCheckin(ctx context.Context, sessionID, subjectID uuid.UUID) (CheckinResult, error) {
	if err := ctx.Err(); err != nil {
		return CheckinResult{}, err
	}

	var result CheckinResult
	err := b.db.Update(func(tx *bbolt.Tx) error {
		session, err := getSession(tx, sessionID)
		if err != nil {
			return err
		}
		result.SessionLabel = session.Label

		bucket := tx.Bucket([]byte(attendanceBucketName))
		key := attendanceKey(sessionID, subjectID)
		if bucket.Get(key) != nil {
			result.Success = true
			result.AlreadyCheckedIn = true
			result.Message = fmt.Sprintf("You are already checked in to %s.", session.Label)
			return nil
		}

		data, err := json.Marshal(&Attendance{
			SessionID:   sessionID,
			SubjectID:   subjectID,
			Status:      StatusPresent,
			CheckedInAt: b.timeSource.Now(),
		})
		if err != nil {
			return fmt.Errorf("marshaling attendance: %w", err)
		}
		if err := bucket.Put(key, data); err != nil {
			return fmt.Errorf("saving attendance: %w", err)
		}

		result.Success = true
		result.Message = fmt.Sprintf("Checked in to %s.", session.Label)
		return nil
	})
	if err != nil {
		return CheckinResult{}, err
	}
	return result, nil
}

// GetSessionStatus reports whether a session currently accepts check-ins
func (b *BoltDB) GetSessionStatus(ctx context.Context, sessionID uuid.UUID) (SessionStatus, error) {
	session, err := b.GetSession(sessionID)
	if err != nil {
		return SessionStatus{}, err
	}
	return SessionStatus{
		IsOpenForCheckin: session.OpenAt(b.timeSource.Now()),
		ExpiresAt:        session.ExpiresAt,
	}, nil
}

// SaveSession saves a session to the database
func (b *BoltDB) SaveSession(session *Session) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		return bucket.Put([]byte(session.ID.String()), data)
	})
}

// GetSession retrieves a session by ID
func (b *BoltDB) GetSession(id uuid.UUID) (*Session, error) {
	var session *Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		session, err = getSession(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns all sessions
func (b *BoltDB) ListSessions() ([]*Session, error) {
	sessions := make([]*Session, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("unmarshaling session: %w", err)
			}
			sessions = append(sessions, &session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListAttendance returns the present-records of a session
func (b *BoltDB) ListAttendance(sessionID uuid.UUID) ([]*Attendance, error) {
	records := make([]*Attendance, 0)
	prefix := []byte(sessionID.String() + "/")
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(attendanceBucketName)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record Attendance
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling attendance: %w", err)
			}
			records = append(records, &record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
