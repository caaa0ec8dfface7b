package checkin

import "errors"

var (
	// ErrInvalidPayload is returned for payloads that match none of the accepted grammars
	ErrInvalidPayload = errors.New("unrecognized check-in code")

	// ErrBusy is returned when a payload arrives while a check-in is still being processed
	ErrBusy = errors.New("a check-in is already in progress")

	// ErrSessionNotFound is returned when a meeting does not exist
	ErrSessionNotFound = errors.New("meeting not found")

	// ErrNoSubject is returned when no signed-in member is available to check in
	ErrNoSubject = errors.New("no signed-in member")

	// ErrStationNotFound is returned for unknown scanner stations
	ErrStationNotFound = errors.New("scanner station not found")
)
