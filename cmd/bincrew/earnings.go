package main

import (
	"fmt"
	"os"

	"github.com/jonathan/bin-crew/internal/earnings"
	"github.com/jonathan/bin-crew/internal/observability"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	earningsDate string
	earningsXLSX string
)

var earningsCmd = &cobra.Command{
	Use:   "earnings [employee-id]...",
	Short: "Summarize earnings for a date",
	Long: `Print each employee's completed, photo-verified jobs and pay for the date.
With no IDs every active employee is included. --xlsx also writes a payroll
workbook with a summary sheet and a per-stop sheet.`,
	RunE: runEarnings,
}

func init() {
	earningsCmd.Flags().StringVar(&earningsDate, "date", "", "Date YYYY-MM-DD (default today)")
	earningsCmd.Flags().StringVar(&earningsXLSX, "xlsx", "", "Write a payroll workbook to this path")
	rootCmd.AddCommand(earningsCmd)
}

func runEarnings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date := earningsDate
	if date == "" {
		date = a.today()
	}

	ids := args
	if len(ids) == 0 {
		employees, err := a.store.ListEmployees(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to list employees: %w", err)
		}
		for _, emp := range employees {
			ids = append(ids, emp.ID)
		}
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	records := make([]*types.Earnings, 0, len(ids))
	for _, id := range ids {
		e, err := a.aggregator.Earnings(ctx, id, date)
		if err != nil {
			return err
		}
		printer.PrintEarnings(e)
		records = append(records, e)
	}

	if earningsXLSX == "" {
		return nil
	}
	f, err := os.Create(earningsXLSX)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := earnings.ExportPayroll(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	a.logger.Info("payroll workbook written", zap.String("path", earningsXLSX), zap.Int("employees", len(records)))
	return nil
}
