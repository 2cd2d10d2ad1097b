// Package types provides type definitions for structured data used throughout the bin-crew system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a scheduled cleaning.
type JobStatus string

const (
	JobStatusUnassigned JobStatus = "unassigned"
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusRejected   JobStatus = "rejected"
)

// jobTransitions lists the statuses reachable from each status.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusUnassigned: {JobStatusPending, JobStatusCancelled},
	JobStatusPending:    {JobStatusPending, JobStatusUnassigned, JobStatusInProgress, JobStatusCancelled, JobStatusRejected},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
}

// ParseJobStatus converts a persisted or user-supplied status string into a JobStatus.
// An empty string is treated as unassigned, matching records created before the
// status field existed.
func ParseJobStatus(s string) (JobStatus, error) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(s)))
	if normalized == "" {
		return JobStatusUnassigned, nil
	}
	switch normalized {
	case JobStatusUnassigned, JobStatusPending, JobStatusInProgress,
		JobStatusCompleted, JobStatusCancelled, JobStatusRejected:
		return normalized, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusRejected
}

// IsAssignable reports whether an assignment write may (re)set a job in s to pending.
func (s JobStatus) IsAssignable() bool {
	return s == "" || s == JobStatusUnassigned || s == JobStatusPending
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Address is a customer service address.
type Address struct {
	Street    string   `json:"street"`
	City      string   `json:"city"`
	County    string   `json:"county,omitempty"`
	Zip       string   `json:"zip,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are known and usable.
func (a Address) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil && ValidCoordinates(*a.Latitude, *a.Longitude)
}

// ValidCoordinates reports whether lat and lon are finite and within WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// String renders the address as a single line suitable for geocoding.
func (a Address) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, a.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Job is a single scheduled bin-cleaning visit.
type Job struct {
	ID                   string     `json:"id"`
	CustomerName         string     `json:"customer_name,omitempty"`
	CustomerEmail        string     `json:"customer_email,omitempty"`
	Address              Address    `json:"address"`
	ScheduledDate        string     `json:"scheduled_date"` // YYYY-MM-DD
	TimeWindow           string     `json:"time_window,omitempty"`
	Status               JobStatus  `json:"status"`
	AssignedEmployeeID   string     `json:"assigned_employee_id,omitempty"`
	AssignedEmployeeName string     `json:"assigned_employee_name,omitempty"`
	InsidePhotoURL       string     `json:"inside_photo_url,omitempty"`
	OutsidePhotoURL      string     `json:"outside_photo_url,omitempty"`
	HasRequiredPhotos    bool       `json:"has_required_photos"`
	PartnerID            string     `json:"partner_id,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsAssigned reports whether the job currently has an assignee.
func (j *Job) IsAssigned() bool {
	return j.AssignedEmployeeID != ""
}

// Stop is a job enriched with its position in a route. Stops are never persisted.
type Stop struct {
	JobID        string    `json:"job_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	Address      Address   `json:"address"`
	TimeWindow   string    `json:"time_window,omitempty"`
	Status       JobStatus `json:"status,omitempty"`
	Position     int       `json:"position"`
}

// StopFromJob builds an unordered stop from a job.
func StopFromJob(j *Job) Stop {
	return Stop{
		JobID:        j.ID,
		CustomerName: j.CustomerName,
		Address:      j.Address,
		TimeWindow:   j.TimeWindow,
		Status:       j.Status,
	}
}

// Route is an ordered list of stops for one employee on one date.
type Route struct {
	EmployeeID string  `json:"employee_id"`
	Date       string  `json:"date"`
	Stops      []Stop  `json:"stops"`
	TotalMiles float64 `json:"total_miles"`
	Geocoded   int     `json:"geocoded"`
}
