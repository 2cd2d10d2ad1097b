package main

import (
	"fmt"
	"strings"

	"github.com/jonathan/bin-crew/internal/coverage"
	"github.com/spf13/cobra"
)

var zonesFile string

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List coverage zones",
	Long:  `List the coverage zones with their counties and cities. --file validates and lists a custom zone table.`,
	Args:  cobra.NoArgs,
	RunE:  runZones,
}

var (
	coverageZones    []string
	coverageCounties []string
)

var coverageCmd = &cobra.Command{
	Use:   "coverage <county> [city]",
	Short: "Check whether an address is inside an employee's service area",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCoverage,
}

func init() {
	zonesCmd.PersistentFlags().StringVar(&zonesFile, "file", "", "Zone table YAML file (default built-in table)")
	coverageCmd.Flags().StringSliceVar(&coverageZones, "zone", nil, "Employee zone label (repeatable)")
	coverageCmd.Flags().StringSliceVar(&coverageCounties, "county", nil, "Employee county (repeatable)")
	zonesCmd.AddCommand(coverageCmd)
	rootCmd.AddCommand(zonesCmd)
}

func zoneTable() (*coverage.Table, error) {
	if zonesFile == "" {
		return coverage.DefaultTable(), nil
	}
	return coverage.LoadFile(zonesFile)
}

func runZones(cmd *cobra.Command, _ []string) error {
	table, err := zoneTable()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, z := range table.Zones() {
		fmt.Fprintf(out, "%s\n", z.Label)
		if len(z.Counties) > 0 {
			fmt.Fprintf(out, "  counties: %s\n", strings.Join(z.Counties, ", "))
		}
		if len(z.Cities) > 0 {
			fmt.Fprintf(out, "  cities:   %s\n", strings.Join(z.Cities, ", "))
		}
	}
	return nil
}

func runCoverage(cmd *cobra.Command, args []string) error {
	table, err := zoneTable()
	if err != nil {
		return err
	}
	county, city := args[0], ""
	if len(args) == 2 {
		city = args[1]
	}

	out := cmd.OutOrStdout()
	if matching := table.ZonesForAddress(county, city); len(matching) > 0 {
		fmt.Fprintf(out, "zones: %s\n", strings.Join(matching, ", "))
	} else {
		fmt.Fprintln(out, "zones: none")
	}
	fmt.Fprintf(out, "in coverage: %t\n", table.IsInCoverage(county, city, coverageZones, coverageCounties))
	return nil
}
