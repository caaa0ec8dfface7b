// Package decode extracts QR payloads from raw pixel buffers.
//
// The Engine runs a fixed ladder of enhancement passes over a Raster and
// returns the first payload any pass yields. Phone photos and webcam frames
// regularly defeat a single plain scan (glare, low contrast, inverted
// print, symbols too small or too large for the finder), so each rung
// targets one of those failure modes. The ladder order never changes, which
// keeps results reproducible for a given input.
package decode

import (
	"image"
	"log/slog"
	"strconv"
)

// Stage names, in the order the Engine tries them
const (
	StageIdentity      = "identity"
	StageBidirectional = "bidirectional"
	StageInverted      = "inverted"
	StageHighContrast  = "high-contrast"
)

// scaleFactors are the resampling factors tried in the final stage
var scaleFactors = []float64{0.5, 1.5, 2.0}

// ScaleStage returns the stage name for a resampling factor, e.g. "scale-1.5"
func ScaleStage(factor float64) string {
	return "scale-" + strconv.FormatFloat(factor, 'f', 1, 64)
}

// Attempt records one pass of the ladder over a raster
type Attempt struct {
	// Stages lists every stage that was tried, in order.
	Stages []string
	// Stage is the stage that produced the payload, empty on a miss.
	Stage   string
	Payload string
}

// Found reports whether any stage produced a payload
func (a Attempt) Found() bool {
	return a.Stage != ""
}

type stage struct {
	name string
	run  func() (string, bool)
}

// Engine decodes QR payloads through the enhancement ladder
type Engine struct {
	reader Reader
}

// NewEngine creates an Engine backed by the gozxing QR reader
func NewEngine() *Engine {
	return NewEngineWithReader(NewQRReader())
}

// NewEngineWithReader creates an Engine with a custom reader for testing
func NewEngineWithReader(reader Reader) *Engine {
	return &Engine{reader: reader}
}

// Decode returns the payload encoded in r, or false once every stage has missed
func (e *Engine) Decode(r Raster) (string, bool) {
	a := e.Attempt(r)
	return a.Payload, a.Found()
}

// Attempt runs the ladder and reports which stages were tried
func (e *Engine) Attempt(r Raster) Attempt {
	var a Attempt
	if !r.Valid() {
		return a
	}

	for _, s := range e.stages(r) {
		a.Stages = append(a.Stages, s.name)
		if payload, ok := s.run(); ok {
			a.Stage = s.name
			a.Payload = payload
			slog.Debug("QR payload decoded", "stage", s.name, "width", r.Width, "height", r.Height)
			return a
		}
	}
	return a
}

func (e *Engine) stages(r Raster) []stage {
	stages := []stage{
		{StageIdentity, func() (string, bool) {
			return e.scan(r.Image(), false)
		}},
		{StageBidirectional, func() (string, bool) {
			return e.scanBoth(r)
		}},
		{StageInverted, func() (string, bool) {
			return e.scan(Invert(r).Image(), false)
		}},
		{StageHighContrast, func() (string, bool) {
			return e.scan(HighContrast(r).Image(), false)
		}},
	}
	for _, factor := range scaleFactors {
		stages = append(stages, stage{ScaleStage(factor), func() (string, bool) {
			return e.scanBoth(Scale(r, factor))
		}})
	}
	return stages
}

// scanBoth tries the raster as-is and then inverted, both with the exhaustive search
func (e *Engine) scanBoth(r Raster) (string, bool) {
	if payload, ok := e.scan(r.Image(), true); ok {
		return payload, true
	}
	return e.scan(Invert(r).Image(), true)
}

// scan never lets a reader failure escape; a panic inside the reader is a miss
func (e *Engine) scan(img image.Image, tryHarder bool) (payload string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("QR reader panicked", "panic", rec)
			payload, ok = "", false
		}
	}()

	text, err := e.reader.Read(img, tryHarder)
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}
