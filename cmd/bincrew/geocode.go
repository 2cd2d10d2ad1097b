package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve an address to coordinates",
	Long: `Resolve a free-text address through the geocode cache and, on a miss, the
configured provider. Results are cached for later route planning.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGeocode,
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}

func runGeocode(cmd *cobra.Command, args []string) error {
	address := strings.Join(args, " ")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.geocoder.Geocode(cmd.Context(), address)
	if err != nil {
		return fmt.Errorf("geocode %q: %w", address, err)
	}
	source := "provider"
	if result.Cached {
		source = "cache"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.6f,%.6f (%s)\n", result.Latitude, result.Longitude, source)
	return nil
}
