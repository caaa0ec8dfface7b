package checkin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PayloadKind tags a parsed scan payload
type PayloadKind int

const (
	PayloadInvalid PayloadKind = iota
	// PayloadSession is MEETING_ID:<uuid>
	PayloadSession
	// PayloadSubject is MEMBER_CHECKIN:<member uuid>:<meeting uuid or GENERAL>
	PayloadSubject
	// PayloadURL is a live check-in link, .../attendance/<uuid>/live-checkin
	PayloadURL
	// PayloadRawUUID is a bare meeting UUID, usually typed by hand
	PayloadRawUUID
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadSession:
		return "session"
	case PayloadSubject:
		return "subject"
	case PayloadURL:
		return "url"
	case PayloadRawUUID:
		return "raw-uuid"
	default:
		return "invalid"
	}
}

// GeneralSessionToken stands in for a meeting UUID in member payloads that
// check in to general attendance rather than a specific meeting
const GeneralSessionToken = "GENERAL"

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	sessionPayloadPattern  = regexp.MustCompile(`^MEETING_ID:(` + uuidPattern + `)$`)
	subjectPayloadPattern  = regexp.MustCompile(`^MEMBER_CHECKIN:(` + uuidPattern + `):(` + uuidPattern + `|` + GeneralSessionToken + `)$`)
	liveCheckinPathPattern = regexp.MustCompile(`/attendance/(` + uuidPattern + `)/live-checkin`)
	bareUUIDPattern        = regexp.MustCompile(`^` + uuidPattern + `$`)
)

// Payload is a scan payload parsed into its identifiers
type Payload struct {
	Kind      PayloadKind
	Raw       string
	SessionID uuid.UUID
	// SubjectID is set only for PayloadSubject.
	SubjectID uuid.UUID
	// General is set when a PayloadSubject names GENERAL instead of a meeting.
	General bool
}

// ParsePayload parses raw against the accepted grammars. Anything that does
// not match returns an error wrapping ErrInvalidPayload. Only the line ending
// a keyboard-wedge scanner appends is stripped.
func ParsePayload(raw string) (Payload, error) {
	text := strings.TrimRight(raw, "\r\n")
	p := Payload{Raw: text}

	if m := sessionPayloadPattern.FindStringSubmatch(text); m != nil {
		p.Kind = PayloadSession
		return p, p.setSession(m[1])
	}

	if m := subjectPayloadPattern.FindStringSubmatch(text); m != nil {
		subject, err := uuid.Parse(m[1])
		if err != nil {
			return Payload{Raw: text}, fmt.Errorf("%w: member id: %v", ErrInvalidPayload, err)
		}
		p.Kind = PayloadSubject
		p.SubjectID = subject
		if m[2] == GeneralSessionToken {
			p.General = true
			return p, nil
		}
		return p, p.setSession(m[2])
	}

	if bareUUIDPattern.MatchString(text) {
		p.Kind = PayloadRawUUID
		return p, p.setSession(text)
	}

	if m := liveCheckinPathPattern.FindStringSubmatch(text); m != nil {
		p.Kind = PayloadURL
		return p, p.setSession(m[1])
	}

	return Payload{Raw: text}, fmt.Errorf("%w: %q", ErrInvalidPayload, truncate(text, 64))
}

func (p *Payload) setSession(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		p.Kind = PayloadInvalid
		return fmt.Errorf("%w: meeting id: %v", ErrInvalidPayload, err)
	}
	p.SessionID = id
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
