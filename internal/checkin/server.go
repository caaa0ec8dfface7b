package checkin

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Server handles HTTP requests for scanner stations and sessions
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Church Check-in"`)
			corsError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Scanner stations
	s.mux.HandleFunc("POST /api/stations", s.requireAuth(s.handleOpenStation))
	s.mux.HandleFunc("GET /api/stations/{id}", s.requireAuth(s.handleGetStation))
	s.mux.HandleFunc("DELETE /api/stations/{id}", s.requireAuth(s.handleCloseStation))
	s.mux.HandleFunc("PUT /api/stations/{id}/strategy", s.requireAuth(s.handleSwitchStrategy))
	s.mux.HandleFunc("POST /api/stations/{id}/frames", s.requireAuth(s.handlePushFrame))
	s.mux.HandleFunc("POST /api/stations/{id}/image", s.requireAuth(s.handleSubmitImage))
	s.mux.HandleFunc("POST /api/stations/{id}/manual", s.requireAuth(s.handleManualEntry))
	s.mux.HandleFunc("POST /api/stations/{id}/reset", s.requireAuth(s.handleResetStation))

	// Sessions
	s.mux.HandleFunc("GET /api/sessions/{id}/status", s.requireAuth(s.handleSessionStatus))
	s.mux.HandleFunc("GET /api/sessions/{id}/attendance", s.requireAuth(s.handleListAttendance))
	s.mux.HandleFunc("GET /api/sessions", s.requireAuth(s.handleListSessions))
	s.mux.HandleFunc("POST /api/sessions", s.requireAuth(s.handleCreateSession))
}

// Handler returns the mux wrapped with CORS handling, for use in an http.Server
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
