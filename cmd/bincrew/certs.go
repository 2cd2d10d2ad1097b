package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/bin-crew/internal/certification"
	"github.com/jonathan/bin-crew/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect and maintain employee certifications",
}

var certsStatusCmd = &cobra.Command{
	Use:   "status <employee-id>",
	Short: "Show an employee's training status",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertsStatus,
}

var certsRecheckCmd = &cobra.Command{
	Use:   "recheck [employee-id]",
	Short: "Recompute certification flags from training records",
	Long: `Recompute the certified flag for one employee, or for every active employee
when no ID is given. Intended to run daily so expired modules revoke access.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCertsRecheck,
}

var certsCompleteCmd = &cobra.Command{
	Use:   "complete <employee-id> <module-id> <score>",
	Short: "Record a finished training module",
	Args:  cobra.ExactArgs(3),
	RunE:  runCertsComplete,
}

var certsRetrainCmd = &cobra.Command{
	Use:   "retrain <employee-id> <module-id>",
	Short: "Require an employee to retake a module",
	Args:  cobra.ExactArgs(2),
	RunE:  runCertsRetrain,
}

var certsModulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the required training modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		for _, m := range certification.RequiredModules() {
			fmt.Fprintf(out, "%-28s %s\n", m.ID, m.Title)
		}
		return nil
	},
}

func init() {
	certsCmd.AddCommand(certsStatusCmd, certsRecheckCmd, certsCompleteCmd, certsRetrainCmd, certsModulesCmd)
	rootCmd.AddCommand(certsCmd)
}

func runCertsStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.gate.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintCertification(status)
	return nil
}

func runCertsRecheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var results []*certification.RecheckResult
	if len(args) == 1 {
		result, err := a.gate.Recheck(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		results = append(results, result)
	} else {
		results, err = a.gate.RecheckAll(cmd.Context())
		if err != nil {
			return err
		}
	}

	changed := 0
	out := cmd.OutOrStdout()
	for _, r := range results {
		if !r.Changed() {
			continue
		}
		changed++
		fmt.Fprintf(out, "%s: can_clock_in=%t", r.EmployeeID, r.Status != nil && r.Status.CanClockIn)
		if len(r.Expired) > 0 {
			fmt.Fprintf(out, " expired=%s", strings.Join(r.Expired, ","))
		}
		if len(r.Backfilled) > 0 {
			fmt.Fprintf(out, " backfilled=%s", strings.Join(r.Backfilled, ","))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "rechecked %d employee(s), %d changed\n", len(results), changed)
	a.logger.Info("certification recheck finished", zap.Int("checked", len(results)), zap.Int("changed", changed))
	return nil
}

func runCertsComplete(cmd *cobra.Command, args []string) error {
	score, err := strconv.Atoi(args[2])
	if err != nil || score < 0 || score > 100 {
		return fmt.Errorf("score must be a number between 0 and 100, got %q", args[2])
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.gate.CompleteModule(cmd.Context(), args[0], args[1], score)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintCertification(status)
	return nil
}

func runCertsRetrain(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.gate.ForceRetraining(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintCertification(status)
	return nil
}
