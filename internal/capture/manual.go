package capture

import (
	"context"
	"regexp"
	"strings"
)

// InvalidCodeMessage is reported for typed codes that are not a meeting code
const InvalidCodeMessage = "That is not a valid meeting code. Enter the code shown under the QR code, e.g. 123e4567-e89b-12d3-a456-426614174000."

var manualCodePattern = regexp.MustCompile(`^(MEETING_ID:)?[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ManualEntry accepts an operator-typed meeting code. It never decodes pixels.
type ManualEntry struct{}

// NewManualEntry creates a ManualEntry
func NewManualEntry() *ManualEntry {
	return &ManualEntry{}
}

// Kind returns KindManual
func (m *ManualEntry) Kind() Kind {
	return KindManual
}

// Start opens a session that accepts codes through Enter
func (m *ManualEntry) Start(ctx context.Context, cb Callbacks) *Handle {
	return newHandle(KindManual, cb)
}

// Stop closes the session
func (m *ManualEntry) Stop(h *Handle) {
	h.stop()
}

// ValidManualCode reports whether text is a UUID or a MEETING_ID:-prefixed UUID
func ValidManualCode(text string) bool {
	return manualCodePattern.MatchString(strings.TrimSpace(text))
}

// Enter validates a typed code and reports it as the payload
func (m *ManualEntry) Enter(h *Handle, text string) (string, bool) {
	if h == nil || !h.Active() {
		return "", false
	}

	code := strings.TrimSpace(text)
	if !ValidManualCode(code) {
		h.cb.diagnostic(InvalidCodeMessage)
		return "", false
	}

	h.cb.payload(code)
	return code, true
}
