package main

import (
	"fmt"
	"time"

	"github.com/jonathan/bin-crew/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	nextDateFrom  string
	nextDateCount int
)

var nextDateCmd = &cobra.Command{
	Use:   "next-date <trash-day> <frequency>",
	Short: "Print upcoming service dates for a customer",
	Long: `Print the next service dates for a customer whose trash goes out on the given
weekday, cleaned WEEKLY, BIWEEKLY or MONTHLY.

Example:
  bincrew next-date Tuesday BIWEEKLY --from 2024-03-12 --count 4`,
	Args: cobra.ExactArgs(2),
	RunE: runNextDate,
}

func init() {
	nextDateCmd.Flags().StringVar(&nextDateFrom, "from", "", "Reference date YYYY-MM-DD (default today)")
	nextDateCmd.Flags().IntVarP(&nextDateCount, "count", "n", 1, "Number of dates to print")
	rootCmd.AddCommand(nextDateCmd)
}

func runNextDate(cmd *cobra.Command, args []string) error {
	frequency, err := schedule.ParseFrequency(args[1])
	if err != nil {
		return err
	}

	reference := time.Now()
	if nextDateFrom != "" {
		reference, err = schedule.ParseDate(nextDateFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}

	dates, err := schedule.Occurrences(args[0], frequency, reference, nextDateCount)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, d := range dates {
		fmt.Fprintf(out, "%s  %s\n", schedule.FormatDate(d), d.Weekday())
	}
	return nil
}
