package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/boundary-audit/internal/job"
	"github.com/civicworks/boundary-audit/internal/pipeline"
	"github.com/civicworks/boundary-audit/internal/resident"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve resident addresses to coordinates",
}

var (
	geocodeProvider  string
	geocodeBatchSize int64
	geocodeLimit     int64
	geocodeForce     bool
	geocodeJobID     string
)

var geocodeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run (or resume) a geocoding job",
	Long: `Creates a geocoding job over the resident table and runs it to completion,
checkpointing after every batch. Pass --job to resume an existing job from
its last checkpoint instead of creating a new one.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		orch, closeCache, err := buildOrchestrator(pool)
		if err != nil {
			return err
		}
		defer func() { _ = closeCache() }()

		residents := resident.NewStore(pool)
		jobs := job.NewStore(pool)

		j, err := resolveJob(ctx, jobs, geocodeJobID, job.KindGeocoding, func() (int64, error) {
			total, err := residents.Count(ctx)
			if err != nil {
				return 0, err
			}
			if geocodeLimit > 0 && geocodeLimit < total {
				total = geocodeLimit
			}
			return total, nil
		})
		if err != nil {
			return err
		}

		provider := geocodeProvider
		if provider == "" && len(cfg.Geocode.Providers) > 0 {
			provider = cfg.Geocode.Providers[0]
		}

		runner := pipeline.NewGeocodeRunner(jobs, residents, residents, orch, pipeline.GeocodeOptions{
			Provider: provider,
			Force:    geocodeForce,
		})

		zap.L().Info("starting geocoding job",
			zap.String("job_id", j.ID.String()),
			zap.String("provider", provider),
			zap.Int64("total", j.TotalRecords),
			zap.Int64("offset", j.LastProcessedOffset),
		)

		if err := runner.Run(ctx, j, batchSize(geocodeBatchSize)); err != nil {
			return eris.Wrap(err, "geocode run")
		}

		printJobSummary(j)
		return nil
	},
}

var geocodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show geocoding coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		residents := resident.NewStore(pool)
		total, err := residents.Count(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode status")
		}
		missing, err := residents.CountMissingCoordinates(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode status")
		}

		fmt.Printf("Residents:  %d\n", total)
		fmt.Printf("Geocoded:   %d\n", total-missing)
		fmt.Printf("Remaining:  %d\n", missing)
		return nil
	},
}

// resolveJob loads the job named by idStr, or creates a fresh one of the
// given kind when no id was passed.
func resolveJob(ctx context.Context, jobs *job.Store, idStr string, kind job.Kind, total func() (int64, error)) (*job.Job, error) {
	if idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid job id %q", idStr)
		}
		j, err := jobs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if j == nil {
			return nil, eris.Errorf("no job %s", id)
		}
		if j.Kind != kind {
			return nil, eris.Errorf("job %s is a %s job", id, j.Kind)
		}
		return j, nil
	}

	n, err := total()
	if err != nil {
		return nil, err
	}
	return jobs.Create(ctx, kind, n)
}

func batchSize(flag int64) int64 {
	if flag > 0 {
		return flag
	}
	return int64(cfg.Jobs.BatchSize)
}

func printJobSummary(j *job.Job) {
	fmt.Printf("Job %s %s\n", j.ID, j.Status)
	fmt.Printf("  processed:  %d/%d\n", j.Processed, j.TotalRecords)
	fmt.Printf("  succeeded:  %d\n", j.Succeeded)
	fmt.Printf("  failed:     %d\n", j.Failed)
	fmt.Printf("  cache hits: %d\n", j.CacheHits)
	if len(j.ErrorLog) > 0 {
		fmt.Printf("  errors:     %d (last: record %d: %s)\n",
			len(j.ErrorLog),
			j.ErrorLog[len(j.ErrorLog)-1].RecordID,
			j.ErrorLog[len(j.ErrorLog)-1].Message,
		)
	}
}

func init() {
	geocodeRunCmd.Flags().StringVar(&geocodeProvider, "provider", "", "geocode provider (default first configured)")
	geocodeRunCmd.Flags().Int64Var(&geocodeBatchSize, "batch-size", 0, "records per batch (default from config)")
	geocodeRunCmd.Flags().Int64Var(&geocodeLimit, "limit", 0, "cap the number of records for a new job")
	geocodeRunCmd.Flags().BoolVar(&geocodeForce, "force", false, "re-resolve residents that already have coordinates")
	geocodeRunCmd.Flags().StringVar(&geocodeJobID, "job", "", "resume an existing job id")

	geocodeCmd.AddCommand(geocodeRunCmd)
	geocodeCmd.AddCommand(geocodeStatusCmd)
	rootCmd.AddCommand(geocodeCmd)
}
