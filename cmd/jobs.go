package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civicworks/boundary-audit/internal/job"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect batch jobs",
}

var jobsListLimit int

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		jobs, err := job.NewStore(pool).List(ctx, jobsListLimit)
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Println("no jobs")
			return nil
		}

		fmt.Printf("%-36s  %-10s  %-9s  %-11s  %s\n", "ID", "KIND", "STATUS", "PROGRESS", "CREATED")
		for _, j := range jobs {
			fmt.Printf("%-36s  %-10s  %-9s  %5d/%-5d  %s\n",
				j.ID, j.Kind, j.Status, j.Processed, j.TotalRecords,
				j.CreatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one job in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id, err := uuid.Parse(args[0])
		if err != nil {
			return eris.Wrapf(err, "invalid job id %q", args[0])
		}

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		j, err := job.NewStore(pool).Get(ctx, id)
		if err != nil {
			return eris.Wrap(err, "jobs get")
		}
		if j == nil {
			return eris.Errorf("no job %s", id)
		}

		fmt.Printf("ID:          %s\n", j.ID)
		fmt.Printf("Kind:        %s\n", j.Kind)
		fmt.Printf("Status:      %s\n", j.Status)
		fmt.Printf("Progress:    %d/%d (offset %d)\n", j.Processed, j.TotalRecords, j.LastProcessedOffset)
		fmt.Printf("Succeeded:   %d\n", j.Succeeded)
		fmt.Printf("Failed:      %d\n", j.Failed)
		fmt.Printf("Cache hits:  %d\n", j.CacheHits)
		fmt.Printf("Created:     %s\n", j.CreatedAt.Format(time.RFC3339))
		if j.StartedAt != nil {
			fmt.Printf("Started:     %s\n", j.StartedAt.Format(time.RFC3339))
		}
		if j.CompletedAt != nil {
			fmt.Printf("Finished:    %s\n", j.CompletedAt.Format(time.RFC3339))
		}
		for _, e := range j.ErrorLog {
			fmt.Printf("  error: record %d: %s (%s)\n", e.RecordID, e.Message, e.At.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	jobsListCmd.Flags().IntVar(&jobsListLimit, "limit", 50, "maximum jobs to list")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	rootCmd.AddCommand(jobsCmd)
}
