// Package main provides the bincrew command: the scheduling API server plus
// operator tools for dates, routes, certifications and payroll.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	seedPath   string
)

var rootCmd = &cobra.Command{
	Use:   "bincrew",
	Short: "Scheduling core for a bin-cleaning field crew",
	Long: `bincrew schedules recurring bin cleanings, assigns jobs to certified
technicians in their coverage area, plans daily routes and tallies earnings.

Configuration comes from an optional JSON file (--config) overridden by
environment variables. Without DATABASE_URL the commands run against an
in-memory store that can be seeded with --seed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "", "JSON or YAML file of employees, jobs and training records for the in-memory store")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
