package checkin

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus is the recorded status of a member at a meeting
type AttendanceStatus string

const StatusPresent AttendanceStatus = "present"

// Session is a meeting that attendance is recorded against
type Session struct {
	ID        uuid.UUID  `json:"id"`
	Label     string     `json:"label"`
	StartsAt  time.Time  `json:"starts_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // check-in closes at this time
	Closed    bool       `json:"closed"`
	CreatedAt time.Time  `json:"created_at"`
}

// OpenAt reports whether the session accepts check-ins at t
func (s *Session) OpenAt(t time.Time) bool {
	if s.Closed {
		return false
	}
	return s.ExpiresAt == nil || t.Before(*s.ExpiresAt)
}

// SessionStatus gates whether a scanner should be offered for a session
type SessionStatus struct {
	IsOpenForCheckin bool       `json:"is_open_for_checkin"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// Attendance is one present-record; there is at most one per (session, member)
type Attendance struct {
	SessionID   uuid.UUID        `json:"session_id"`
	SubjectID   uuid.UUID        `json:"member_id"`
	Status      AttendanceStatus `json:"status"`
	CheckedInAt time.Time        `json:"checked_in_at"`
}

// CheckinResult is the attendance collaborator's answer to a check-in
type CheckinResult struct {
	Success          bool   `json:"success"`
	AlreadyCheckedIn bool   `json:"already_checked_in"`
	Message          string `json:"message"`
	SessionLabel     string `json:"session_label,omitempty"`
}
