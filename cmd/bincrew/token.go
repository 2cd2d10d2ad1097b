package main

import (
	"fmt"

	"github.com/jonathan/bin-crew/internal/config"
	"github.com/jonathan/bin-crew/internal/server"
	"github.com/jonathan/bin-crew/internal/server/middleware"
	"github.com/spf13/cobra"
)

var (
	tokenEmployee string
	tokenRole     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token",
	Long: `Issue a signed token for an employee, or a dispatcher token with
--role dispatcher. Requires JWT_SECRET.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenEmployee, "employee", "e", "", "Employee ID the token acts as")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "Token role (dispatcher acts for any employee)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	if tokenRole != "" && tokenRole != middleware.RoleDispatcher {
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	jwtConfig, err := cfg.JWT()
	if err != nil {
		return err
	}
	if jwtConfig == nil {
		return fmt.Errorf("JWT_SECRET not set")
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(tokenEmployee, tokenRole)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
