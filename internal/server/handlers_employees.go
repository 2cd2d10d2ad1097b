package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/jonathan/bin-crew/internal/earnings"
	"github.com/jonathan/bin-crew/internal/types"
	"go.uber.org/zap"
)

// handleAssign handles POST /assignments. Partial success is still a 200; the
// result lists every per-job failure.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req types.AssignRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	if !s.authorize(w, r, req.EmployeeID) {
		return
	}

	result, err := s.deps.Engine.AssignJobs(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleClockIn handles POST /employees/{id}/clock-in. An uncertified employee
// gets a 403 carrying the certification detail; otherwise today's in-area jobs
// are assigned.
func (s *Server) handleClockIn(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	if _, err := s.deps.Gate.Require(r.Context(), employeeID); err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.deps.Engine.AutoAssignOnClockIn(r.Context(), employeeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleCertification handles GET /employees/{id}/certification
func (s *Server) handleCertification(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	status, err := s.deps.Gate.Status(r.Context(), employeeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// handleRecheck handles POST /employees/{id}/certification/recheck
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	result, err := s.deps.Gate.Recheck(r.Context(), employeeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleCompleteModule handles POST /employees/{id}/training/{module_id}
func (s *Server) handleCompleteModule(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	var req types.TrainingCompletionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, types.FromValidator(err))
		return
	}

	status, err := s.deps.Gate.CompleteModule(r.Context(), employeeID, r.PathValue("module_id"), req.Score)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// handleEmployeeRoute handles GET /employees/{id}/route?date=
func (s *Server) handleEmployeeRoute(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	route, err := s.deps.Planner.PlanRoute(r.Context(), employeeID, s.dateParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, route)
}

// handleEarnings handles GET /employees/{id}/earnings?date=
func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	result, err := s.deps.Aggregator.Earnings(r.Context(), employeeID, s.dateParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleEarningsExport handles GET /employees/{id}/earnings.xlsx?date=
func (s *Server) handleEarningsExport(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	date := s.dateParam(r)
	result, err := s.deps.Aggregator.Earnings(r.Context(), employeeID, date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Render fully before writing headers so a failure can still become a 500.
	var buf bytes.Buffer
	if err := earnings.ExportPayroll(&buf, []*types.Earnings{result}); err != nil {
		s.logger.Error("payroll export failed", zap.String("employee_id", employeeID), zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to render payroll export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="earnings-%s-%s.xlsx"`, employeeID, date))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("failed to write payroll export", zap.Error(err))
	}
}

// handleWorkload handles GET /employees/{id}/workload?date=
func (s *Server) handleWorkload(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("id")
	if !s.authorize(w, r, employeeID) {
		return
	}

	result, err := s.deps.Aggregator.Workload(r.Context(), employeeID, s.dateParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}
