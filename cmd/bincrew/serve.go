package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/bin-crew/internal/server"
	"github.com/jonathan/bin-crew/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the scheduling, assignment, field work
and earnings endpoints. Authentication is enabled when JWT_SECRET is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	jwtConfig, err := a.cfg.JWT()
	if err != nil {
		return fmt.Errorf("invalid auth configuration: %w", err)
	}
	if jwtConfig == nil {
		a.logger.Warn("JWT_SECRET not set, employee endpoints are unauthenticated")
	} else {
		a.logger.Info("token auth enabled", zap.Stringer("auth", jwtConfig))
	}

	port := a.cfg.Port
	if servePort != "" {
		port = servePort
	}

	srv, err := server.New(server.Config{
		Port:      port,
		RateLimit: ratelimit.LoadConfig(os.Getenv),
		JWT:       jwtConfig,
		Logger:    a.logger,
	}, server.Deps{
		Employees:  a.store,
		Engine:     a.engine,
		Gate:       a.gate,
		Planner:    a.planner,
		Geocoder:   a.geocoder,
		Aggregator: a.aggregator,
		Fieldwork:  a.fieldwork,
		Coverage:   a.coverage,
		Location:   a.location,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.logger.Info("starting bincrew",
		zap.String("port", port),
		zap.Bool("database", a.database != nil),
		zap.Bool("auth", jwtConfig != nil))
	return srv.Start(ctx)
}
