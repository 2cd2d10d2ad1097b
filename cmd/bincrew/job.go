package main

import (
	"encoding/json"

	"github.com/jonathan/bin-crew/internal/types"
	"github.com/spf13/cobra"
)

var jobEmployee string

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Record field work on a job",
}

var jobStartCmd = &cobra.Command{
	Use:   "start <job-id>",
	Short: "Mark an assigned job in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFieldwork(cmd, func(a *app) (*types.Job, error) {
			return a.fieldwork.Start(cmd.Context(), jobEmployee, args[0])
		})
	},
}

var jobPhotoCmd = &cobra.Command{
	Use:   "photo <job-id> <inside|outside> <url>",
	Short: "Attach a before or after photo",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFieldwork(cmd, func(a *app) (*types.Job, error) {
			return a.fieldwork.RecordPhoto(cmd.Context(), jobEmployee, args[0], types.PhotoRequest{Kind: args[1], URL: args[2]})
		})
	},
}

var jobCompleteCmd = &cobra.Command{
	Use:   "complete <job-id>",
	Short: "Complete a job once both photos are recorded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFieldwork(cmd, func(a *app) (*types.Job, error) {
			return a.fieldwork.Complete(cmd.Context(), jobEmployee, args[0])
		})
	},
}

func init() {
	jobCmd.PersistentFlags().StringVarP(&jobEmployee, "employee", "e", "", "Acting employee ID (required)")
	if err := jobCmd.MarkPersistentFlagRequired("employee"); err != nil {
		panic(err)
	}
	jobCmd.AddCommand(jobStartCmd, jobPhotoCmd, jobCompleteCmd)
	rootCmd.AddCommand(jobCmd)
}

// withFieldwork runs fn against a wired app and prints the updated job as JSON.
func withFieldwork(cmd *cobra.Command, fn func(a *app) (*types.Job, error)) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := fn(a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(job)
}
