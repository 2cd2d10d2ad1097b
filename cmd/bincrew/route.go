package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/bin-crew/internal/observability"
	"github.com/jonathan/bin-crew/internal/routing"
	"github.com/jonathan/bin-crew/internal/types"
	"github.com/spf13/cobra"
)

var (
	routeDate    string
	optimizeJSON bool
)

var routeCmd = &cobra.Command{
	Use:   "route <employee-id>",
	Short: "Plan an employee's route for a date",
	Long:  `Load the employee's jobs for the date, geocode missing coordinates and print the visiting order.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRoute,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize-route <stops.json|->",
	Short: "Order a list of stops without touching storage",
	Long: `Read a JSON array of stops (or an object with a "stops" field) and print the
optimized visiting order. Use - to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runOptimize,
}

func init() {
	routeCmd.Flags().StringVar(&routeDate, "date", "", "Route date YYYY-MM-DD (default today)")
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "Print the ordered route as JSON")
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(optimizeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	date := routeDate
	if date == "" {
		date = a.today()
	}
	route, err := a.planner.PlanRoute(cmd.Context(), args[0], date)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRoute(route)
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open stops file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	stops, err := readStops(r)
	if err != nil {
		return err
	}
	ordered := routing.OptimizeRoute(stops)
	route := &types.Route{Stops: ordered, TotalMiles: routing.TotalMiles(ordered)}
	if optimizeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(route)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintRoute(route)
	return nil
}

// readStops accepts either a bare array or {"stops": [...]}.
func readStops(r io.Reader) ([]types.Stop, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stops: %w", err)
	}

	var stops []types.Stop
	if err := json.Unmarshal(data, &stops); err != nil {
		var req types.OptimizeRouteRequest
		if err2 := json.Unmarshal(data, &req); err2 != nil {
			return nil, fmt.Errorf("failed to parse stops: %w", err)
		}
		if err := req.Validate(); err != nil {
			return nil, types.FromValidator(err)
		}
		stops = req.Stops
	}
	if len(stops) == 0 {
		return nil, fmt.Errorf("no stops to optimize")
	}
	return stops, nil
}
