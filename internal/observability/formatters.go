// Package observability provides logging setup and formatted output for verbose
// CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/bin-crew/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList writes up to maxItemsToShow items and a "more" line for the rest.
func writeList(sb *strings.Builder, items []string) {
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}

// PrintRoute outputs the ordered stops of a route.
func (p *Printer) PrintRoute(route *types.Route) {
	if route == nil {
		return
	}

	var sb strings.Builder
	if route.EmployeeID != "" {
		sb.WriteString(fmt.Sprintf("Employee: %s\n", route.EmployeeID))
	}
	if route.Date != "" {
		sb.WriteString(fmt.Sprintf("Date:     %s\n", route.Date))
	}
	sb.WriteString(fmt.Sprintf("Stops:    %d (%.1f mi)\n", len(route.Stops), route.TotalMiles))
	if route.Geocoded > 0 {
		sb.WriteString(fmt.Sprintf("Geocoded: %d\n", route.Geocoded))
	}
	sb.WriteString("\n")

	for _, s := range route.Stops {
		label := s.Address.String()
		if label == "" {
			label = s.JobID
		}
		marker := " "
		if !s.Address.HasCoordinates() {
			marker = "?"
		}
		sb.WriteString(fmt.Sprintf("%2d.%s %s\n", s.Position, marker, label))
	}

	p.printBox("OPTIMIZED ROUTE", sb.String())
}

// PrintEarnings outputs an earnings summary.
func (p *Printer) PrintEarnings(e *types.Earnings) {
	if e == nil {
		return
	}

	var sb strings.Builder
	name := e.EmployeeID
	if e.EmployeeName != "" {
		name = fmt.Sprintf("%s (%s)", e.EmployeeName, e.EmployeeID)
	}
	sb.WriteString(fmt.Sprintf("Employee:  %s\n", name))
	sb.WriteString(fmt.Sprintf("Date:      %s\n", e.Date))
	sb.WriteString(fmt.Sprintf("Completed: %d × $%.2f\n", e.CompletedCount, e.PayRatePerJob))
	sb.WriteString(fmt.Sprintf("Total:     $%.2f\n", e.TotalEarnings))

	if len(e.Stops) > 0 {
		sb.WriteString("\nPaid stops:\n")
		items := make([]string, len(e.Stops))
		for i, s := range e.Stops {
			items[i] = fmt.Sprintf("%s %s", s.JobID, s.Address)
		}
		writeList(&sb, items)
	}

	p.printBox("EARNINGS", sb.String())
}

// PrintCertification outputs a certification status with per-module state.
func (p *Printer) PrintCertification(status *types.CertificationStatus) {
	if status == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Employee:  %s\n", status.EmployeeID))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", status.Status))
	sb.WriteString(fmt.Sprintf("Clock in:  %t\n", status.CanClockIn))
	sb.WriteString("\n")

	for _, m := range status.Modules {
		icon := "✓"
		switch m.State {
		case types.ModuleExpired:
			icon = "!"
		case types.ModuleMissing:
			icon = "✗"
		}
		line := fmt.Sprintf("%s %s", icon, m.ModuleID)
		if m.ExpiresAt != nil {
			line += fmt.Sprintf(" (expires %s)", m.ExpiresAt.Format("2006-01-02"))
		}
		sb.WriteString(line + "\n")
	}

	p.printBox("CERTIFICATION", sb.String())
}

// PrintAssignResult outputs the outcome of an assignment batch.
func (p *Printer) PrintAssignResult(result *types.AssignResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Employee: %s\n", result.EmployeeID))
	sb.WriteString(fmt.Sprintf("Assigned: %d\n", result.AssignedCount))
	sb.WriteString(fmt.Sprintf("Failed:   %d\n", result.FailedCount))

	if len(result.Assigned) > 0 {
		sb.WriteString("\nAssigned:\n")
		writeList(&sb, result.Assigned)
	}
	if len(result.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		writeList(&sb, result.Errors)
	}

	p.printBox("ASSIGNMENT", sb.String())
}
