package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jonathan/bin-crew/internal/assignment"
	"github.com/jonathan/bin-crew/internal/certification"
	"github.com/jonathan/bin-crew/internal/config"
	"github.com/jonathan/bin-crew/internal/coverage"
	"github.com/jonathan/bin-crew/internal/earnings"
	"github.com/jonathan/bin-crew/internal/fieldwork"
	"github.com/jonathan/bin-crew/internal/routing"
	"github.com/jonathan/bin-crew/internal/schedule"
	"github.com/jonathan/bin-crew/internal/server/middleware"
	"github.com/jonathan/bin-crew/internal/server/ratelimit"
	"github.com/jonathan/bin-crew/internal/store"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

// Deps are the domain services the HTTP handlers call.
type Deps struct {
	Employees  store.Employees
	Engine     *assignment.Engine
	Gate       *certification.Gate
	Planner    *routing.Planner
	Geocoder   routing.Geocoder // nil disables POST /geocode
	Aggregator *earnings.Aggregator
	Fieldwork  *fieldwork.Service
	Coverage   *coverage.Table
	Location   *time.Location   // defines "today" for date defaults
	Now        func() time.Time // defaults to time.Now
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	deps        Deps
	logger      *zap.Logger
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService // nil when authentication is disabled
	handler     http.Handler
}

// Config holds server configuration
type Config struct {
	Port      string
	RateLimit *ratelimit.Config // nil uses the limiter defaults
	JWT       *config.JWTConfig // nil disables authentication
	Logger    *zap.Logger
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Gate == nil || deps.Planner == nil ||
		deps.Aggregator == nil || deps.Fieldwork == nil || deps.Employees == nil {
		return nil, fmt.Errorf("server: missing required dependency")
	}
	if deps.Coverage == nil {
		deps.Coverage = coverage.DefaultTable()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		deps:        deps,
		logger:      cfg.Logger,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Scheduling and lookup
	mux.HandleFunc("GET /schedule/next-date", s.handleNextDate)
	mux.HandleFunc("POST /geocode", s.handleGeocode)
	mux.HandleFunc("GET /coverage/check", s.handleCoverageCheck)
	mux.HandleFunc("GET /zones", s.handleListZones)
	mux.HandleFunc("POST /route/optimize", s.handleOptimizeRoute)

	// Assignment
	mux.Handle("POST /assignments", s.protect(s.handleAssign))
	mux.Handle("POST /employees/{id}/clock-in", s.protect(s.handleClockIn))

	// Certification
	mux.Handle("GET /employees/{id}/certification", s.protect(s.handleCertification))
	mux.Handle("POST /employees/{id}/certification/recheck", s.protect(s.handleRecheck))
	mux.Handle("POST /employees/{id}/training/{module_id}", s.protect(s.handleCompleteModule))

	// Routes and pay
	mux.Handle("GET /employees/{id}/route", s.protect(s.handleEmployeeRoute))
	mux.Handle("GET /employees/{id}/earnings", s.protect(s.handleEarnings))
	mux.Handle("GET /employees/{id}/earnings.xlsx", s.protect(s.handleEarningsExport))
	mux.Handle("GET /employees/{id}/workload", s.protect(s.handleWorkload))

	// Field work
	mux.Handle("POST /jobs/{id}/start", s.protect(s.handleStartJob))
	mux.Handle("POST /jobs/{id}/photos", s.protect(s.handleRecordPhoto))
	mux.Handle("POST /jobs/{id}/complete", s.protect(s.handleCompleteJob))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop rate limiter cleanup goroutine
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// protect applies JWT authentication when it is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// authorize reports whether the caller may act for employeeID, writing a 403
// when not. It always allows when authentication is disabled.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, employeeID string) bool {
	if s.jwtService == nil {
		return true
	}
	identity, err := middleware.GetIdentity(r)
	if err != nil || !identity.CanActFor(employeeID) {
		s.errorResponse(w, http.StatusForbidden, "not allowed to act for employee "+employeeID)
		return false
	}
	return true
}

// actingEmployee resolves which employee performs a field action. Authenticated
// technicians act as themselves; otherwise the request names the employee.
func (s *Server) actingEmployee(r *http.Request, requested string) (string, error) {
	if s.jwtService != nil {
		identity, err := middleware.GetIdentity(r)
		if err != nil {
			return "", &types.ValidationError{Field: "employee_id", Message: "is required"}
		}
		if !identity.IsDispatcher() {
			if requested != "" && requested != identity.EmployeeID {
				return "", &types.ConflictError{Entity: "employee", ID: requested, Reason: "token belongs to another employee"}
			}
			return identity.EmployeeID, nil
		}
	}
	if requested == "" {
		return "", &types.ValidationError{Field: "employee_id", Message: "is required"}
	}
	return requested, nil
}

// today returns the current date in the service time zone.
func (s *Server) today() string {
	return schedule.FormatDate(s.deps.Now().In(s.deps.Location))
}

// dateParam returns the "date" query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request) string {
	if d := r.URL.Query().Get("date"); d != "" {
		return d
	}
	return s.today()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, clientID, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps a domain error to its status. Certification refusals carry
// the full status so the client can point the employee at the missing modules.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)

	var certErr *types.CertificationError
	if errors.As(err, &certErr) {
		s.jsonResponse(w, status, map[string]any{
			"error":         err.Error(),
			"certification": certErr.Status,
		})
		return
	}

	var ve *types.ValidationError
	if errors.As(err, &ve) {
		s.jsonResponse(w, status, map[string]string{"error": err.Error(), "field": ve.Field})
		return
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}

// decodeJSON reads a JSON request body into dst. An empty body is accepted
// when optional is true.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	if r.Body == nil || (optional && r.ContentLength == 0) {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return &types.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, clientID string, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", clientID),
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
