//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Employee is a field technician who can receive job assignments.
type Employee struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Counties      []string  `json:"counties"`
	Zones         []string  `json:"zones"`
	PayRatePerJob float64   `json:"pay_rate_per_job"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TrainingRecord tracks one employee's progress on one training module.
type TrainingRecord struct {
	ID               string     `json:"id"`
	EmployeeID       string     `json:"employee_id"`
	ModuleID         string     `json:"module_id"`
	Score            int        `json:"score"`
	Passed           bool       `json:"passed"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ForcedRetraining bool       `json:"forced_retraining"`
	Expired          bool       `json:"expired"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CertificationState is the aggregate training state of an employee.
type CertificationState string

const (
	CertificationNotStarted CertificationState = "not_started"
	CertificationInProgress CertificationState = "in_progress"
	CertificationCertified  CertificationState = "certified"
	CertificationExpired    CertificationState = "expired"
)

// ModuleState is the state of a single required module for an employee.
type ModuleState string

const (
	ModuleSatisfied ModuleState = "satisfied"
	ModuleMissing   ModuleState = "missing"
	ModuleExpired   ModuleState = "expired"
)

// ModuleProgress describes one required module in a certification status.
type ModuleProgress struct {
	ModuleID    string      `json:"module_id"`
	Title       string      `json:"title"`
	State       ModuleState `json:"state"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// CertificationStatus is the gate decision for an employee.
type CertificationStatus struct {
	EmployeeID     string             `json:"employee_id"`
	Status         CertificationState `json:"status"`
	MissingModules []string           `json:"missing_modules"`
	ExpiredModules []string           `json:"expired_modules"`
	CanClockIn     bool               `json:"can_clock_in"`
	CanWorkRoutes  bool               `json:"can_work_routes"`
	Modules        []ModuleProgress   `json:"modules"`
}
