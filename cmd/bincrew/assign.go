package main

import (
	"github.com/jonathan/bin-crew/internal/observability"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/spf13/cobra"
)

var assignDate string

var assignCmd = &cobra.Command{
	Use:   "assign <employee-id> <job-id>...",
	Short: "Assign jobs to an employee",
	Long: `Assign one or more jobs to an employee. Jobs that cannot be assigned are
reported individually; the rest are still assigned.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAssign,
}

var clockInCmd = &cobra.Command{
	Use:   "clock-in <employee-id>",
	Short: "Clock an employee in and auto-assign today's jobs in their area",
	Args:  cobra.ExactArgs(1),
	RunE:  runClockIn,
}

func init() {
	assignCmd.Flags().StringVar(&assignDate, "date", "", "Reschedule the jobs to this date YYYY-MM-DD")
	rootCmd.AddCommand(assignCmd, clockInCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	req := types.AssignRequest{EmployeeID: args[0], JobIDs: args[1:], ScheduledDate: assignDate}
	if err := req.Validate(); err != nil {
		return types.FromValidator(err)
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.AssignJobs(cmd.Context(), req)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintAssignResult(result)
	return nil
}

func runClockIn(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	status, err := a.gate.Require(cmd.Context(), args[0])
	if err != nil {
		printer.PrintCertification(status)
		return err
	}
	result, err := a.engine.AutoAssignOnClockIn(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printer.PrintAssignResult(result)
	return nil
}
