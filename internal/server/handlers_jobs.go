package server

import (
	"net/http"

	"github.com/jonathan/bin-crew/internal/types"
)

// fieldActionRequest names the acting employee when no token does.
type fieldActionRequest struct {
	EmployeeID string `json:"employee_id"`
}

// photoUploadRequest is a photo record plus the acting employee.
type photoUploadRequest struct {
	types.PhotoRequest
	EmployeeID string `json:"employee_id"`
}

// handleStartJob handles POST /jobs/{id}/start
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req fieldActionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, err)
		return
	}
	employeeID, err := s.actingEmployee(r, req.EmployeeID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.deps.Fieldwork.Start(r.Context(), employeeID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleRecordPhoto handles POST /jobs/{id}/photos
func (s *Server) handleRecordPhoto(w http.ResponseWriter, r *http.Request) {
	var req photoUploadRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, err)
		return
	}
	employeeID, err := s.actingEmployee(r, req.EmployeeID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.deps.Fieldwork.RecordPhoto(r.Context(), employeeID, r.PathValue("id"), req.PhotoRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// handleCompleteJob handles POST /jobs/{id}/complete
func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	var req fieldActionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, err)
		return
	}
	employeeID, err := s.actingEmployee(r, req.EmployeeID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.deps.Fieldwork.Complete(r.Context(), employeeID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}
