//nolint:revive // types is a standard Go package name pattern
package types

// StopEarning is the pay attributed to one photo-verified completed job.
type StopEarning struct {
	JobID        string  `json:"job_id"`
	CustomerName string  `json:"customer_name,omitempty"`
	Address      string  `json:"address"`
	Amount       float64 `json:"amount"`
}

// Earnings summarizes what an employee earned on a date.
type Earnings struct {
	EmployeeID     string        `json:"employee_id"`
	EmployeeName   string        `json:"employee_name,omitempty"`
	Date           string        `json:"date"`
	CompletedCount int           `json:"completed_count"`
	PayRatePerJob  float64       `json:"pay_rate_per_job"`
	TotalEarnings  float64       `json:"total_earnings"`
	Stops          []StopEarning `json:"stops"`
}

// Workload counts an employee's jobs on a date.
type Workload struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Assigned   int    `json:"assigned"`
	Completed  int    `json:"completed"`
	Remaining  int    `json:"remaining"`
	Unverified int    `json:"unverified"`
}
