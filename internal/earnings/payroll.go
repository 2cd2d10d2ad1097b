package earnings

import (
	"fmt"
	"io"

	"github.com/jonathan/bin-crew/internal/types"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	stopsSheet   = "Stops"
)

var (
	summaryHeaders = []string{"Employee ID", "Employee", "Date", "Completed", "Rate", "Total"}
	stopHeaders    = []string{"Employee ID", "Date", "Job ID", "Customer", "Address", "Amount"}
)

// ExportPayroll writes an .xlsx workbook with one summary row per earnings record
// and one detail row per paid stop.
func ExportPayroll(w io.Writer, records []*types.Earnings) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if _, err := f.NewSheet(stopsSheet); err != nil {
		return fmt.Errorf("failed to create stops sheet: %w", err)
	}

	if err := writeRow(f, summarySheet, 1, toAny(summaryHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, stopsSheet, 1, toAny(stopHeaders)); err != nil {
		return err
	}

	summaryRow, stopRow := 2, 2
	var grandTotal float64
	for _, e := range records {
		if e == nil {
			continue
		}
		if err := writeRow(f, summarySheet, summaryRow, []any{
			e.EmployeeID, e.EmployeeName, e.Date, e.CompletedCount, e.PayRatePerJob, e.TotalEarnings,
		}); err != nil {
			return err
		}
		summaryRow++
		grandTotal += e.TotalEarnings

		for _, s := range e.Stops {
			if err := writeRow(f, stopsSheet, stopRow, []any{
				e.EmployeeID, e.Date, s.JobID, s.CustomerName, s.Address, s.Amount,
			}); err != nil {
				return err
			}
			stopRow++
		}
	}

	if err := writeRow(f, summarySheet, summaryRow, []any{"", "Total", "", "", "", grandTotal}); err != nil {
		return err
	}

	if err := f.SetColWidth(summarySheet, "A", "F", 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(stopsSheet, "A", "F", 18); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write payroll workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
