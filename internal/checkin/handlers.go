package checkin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yoshuavic8/church-checkin/internal/capture"
)

const (
	// MemberHeader carries the signed-in member set by the upstream auth layer
	MemberHeader = "X-Member-ID"

	maxUploadSize = int64(capture.DefaultMaxImageSize)
	maxFrameSize  = int64(10 << 20)
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+MemberHeader+", "+capture.HeaderCaptureDevices+", "+capture.HeaderDisplayMode)
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// memberFromRequest reads the optional member header
func memberFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(MemberHeader)
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

// stationForRequest resolves the station in the path and records the caller's member
func (s *Server) stationForRequest(w http.ResponseWriter, r *http.Request) (*Station, bool) {
	member, err := memberFromRequest(r)
	if err != nil {
		jsonError(w, "Invalid "+MemberHeader+" header", http.StatusBadRequest)
		return nil, false
	}

	st, err := s.service.Station(r.PathValue("id"))
	if err != nil {
		jsonError(w, "Scanner station not found", http.StatusNotFound)
		return nil, false
	}
	st.SetSubject(member)
	return st, true
}

// captureErrorStatus maps strategy errors to HTTP status codes
func captureErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBusy):
		return http.StatusConflict, "A check-in is already showing. Reset the scanner to scan another code."
	case errors.Is(err, capture.ErrInactive), errors.Is(err, capture.ErrStreamClosed):
		return http.StatusConflict, "That scanner mode is not running. Switch to it or reset the scanner."
	case errors.Is(err, capture.ErrStreamingUnavailable):
		return http.StatusConflict, capture.ErrStreamingUnavailable.Error()
	case errors.Is(err, capture.ErrStrategyUnavailable):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleOpenStation probes the caller's capture capabilities and opens a station
func (s *Server) handleOpenStation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy string `json:"strategy"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	var choice *capture.Kind
	if req.Strategy != "" {
		kind, err := capture.ParseKind(req.Strategy)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		choice = &kind
	}

	member, err := memberFromRequest(r)
	if err != nil {
		jsonError(w, "Invalid "+MemberHeader+" header", http.StatusBadRequest)
		return
	}

	report := capture.Probe(capture.NewRequestEnvironment(r))
	st, err := s.service.OpenStation(report, choice, member)
	if err != nil {
		slog.Error("Error opening station", "error", err)
		code, msg := captureErrorStatus(err)
		jsonError(w, msg, code)
		return
	}

	writeJSON(w, http.StatusCreated, st.View())
}

// handleGetStation returns a station's strategy, check-in state and diagnostics
func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stationForRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

// handleCloseStation stops a station's strategy and drops it
func (s *Server) handleCloseStation(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseStation(r.PathValue("id")); err != nil {
		jsonError(w, "Scanner station not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSwitchStrategy swaps the running strategy
func (s *Server) handleSwitchStrategy(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stationForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	kind, err := capture.ParseKind(req.Kind)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := st.SwitchStrategy(kind); err != nil {
		code, msg := captureErrorStatus(err)
		jsonError(w, msg, code)
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

// handlePushFrame accepts one camera frame for the streaming strategy
func (s *Server) handlePushFrame(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stationForRequest(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameSize))
	if err != nil {
		jsonError(w, "Frame is too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := capture.DetectContentType("", data, r.Header.Get("Content-Type"))
	if !capture.IsImageType(contentType) {
		jsonError(w, capture.ErrNotImage.Error(), http.StatusUnsupportedMediaType)
		return
	}
	img, err := capture.DecodeImage(data, contentType)
	if errors.Is(err, capture.ErrImageTooLarge) {
		jsonError(w, "Frame resolution is too high", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		slog.Debug("Error decoding frame", "station", st.ID, "error", err)
		jsonError(w, "Could not read the camera frame", http.StatusBadRequest)
		return
	}

	if err := st.PushFrame(img); err != nil {
		code, msg := captureErrorStatus(err)
		jsonError(w, msg, code)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSubmitImage decodes an uploaded photo
func (s *Server) handleSubmitImage(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stationForRequest(w, r)
	if !ok {
		return
	}

	// Parse multipart form (max 50MB to handle high-resolution phone photos)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No photo was selected. Please choose a photo to scan."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	// Check file size before reading
	if header.Size > maxUploadSize {
		jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	err = st.SubmitImage(capture.Upload{
		Filename:    header.Filename,
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		code, msg := captureErrorStatus(err)
		jsonError(w, msg, code)
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

// handleManualEntry checks in with a typed code
func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stationForRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := st.EnterCode(req.Code); err != nil {
		code, msg := captureErrorStatus(err)
		jsonError(w, msg, code)
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

// handleResetStation clears the last check-in and restarts the scanner
func (s *Server) handleResetStation(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stationForRequest(w, r)
	if !ok {
		return
	}
	if err := st.Reset(); err != nil {
		code, msg := captureErrorStatus(err)
		jsonError(w, msg, code)
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

// handleListSessions returns all sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions()
	if err != nil {
		slog.Error("Error listing sessions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleCreateSession creates a meeting
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label     string     `json:"label"`
		StartsAt  time.Time  `json:"starts_at"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.service.CreateSession(req.Label, req.StartsAt, req.ExpiresAt)
	if err != nil {
		slog.Error("Error creating session", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// parseSessionID reads the session UUID from the path
func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		jsonError(w, "Invalid session ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// handleSessionStatus reports whether a session accepts check-ins
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	status, err := s.service.SessionStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			jsonError(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Error getting session status", "session", id, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListAttendance returns the members recorded present at a session
func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	records, err := s.service.ListAttendance(id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			jsonError(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Error listing attendance", "session", id, "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
