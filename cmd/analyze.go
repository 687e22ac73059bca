package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/boundary-audit/internal/analysis"
	"github.com/civicworks/boundary-audit/internal/boundary"
	"github.com/civicworks/boundary-audit/internal/job"
	"github.com/civicworks/boundary-audit/internal/pipeline"
	"github.com/civicworks/boundary-audit/internal/resident"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare registered boundaries against determined ones",
}

var (
	analyzeBatchSize int64
	analyzeLimit     int64
	analyzeJobID     string
)

var analyzeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run (or resume) an analysis job",
	Long: `Creates an analysis job over the resident table and runs it to completion.
Each geocoded resident's coordinate is resolved to its containing boundaries
and compared against the resident's registered assignments; residents without
a coordinate are recorded as unable-to-analyze. Pass --job to resume.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		residents := resident.NewStore(pool)
		jobs := job.NewStore(pool)
		analyzer := analysis.NewAnalyzer(boundary.NewResolver(pool), analysis.NewStore(pool))

		j, err := resolveJob(ctx, jobs, analyzeJobID, job.KindAnalysis, func() (int64, error) {
			total, err := residents.Count(ctx)
			if err != nil {
				return 0, err
			}
			if analyzeLimit > 0 && analyzeLimit < total {
				total = analyzeLimit
			}
			return total, nil
		})
		if err != nil {
			return err
		}

		runner := pipeline.NewAnalysisRunner(jobs, residents, analyzer)

		zap.L().Info("starting analysis job",
			zap.String("job_id", j.ID.String()),
			zap.Int64("total", j.TotalRecords),
			zap.Int64("offset", j.LastProcessedOffset),
		)

		if err := runner.Run(ctx, j, batchSize(analyzeBatchSize)); err != nil {
			return eris.Wrap(err, "analyze run")
		}

		printJobSummary(j)
		return nil
	},
}

var analyzeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show comparison outcome counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		counts, err := analysis.NewStore(pool).CountByStatus(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze status")
		}

		statuses := make([]string, 0, len(counts))
		for s := range counts {
			statuses = append(statuses, string(s))
		}
		sort.Strings(statuses)

		var total int64
		for _, s := range statuses {
			n := counts[analysis.MatchStatus(s)]
			total += n
			fmt.Printf("%-20s %d\n", s, n)
		}
		fmt.Printf("%-20s %d\n", "total", total)
		return nil
	},
}

func init() {
	analyzeRunCmd.Flags().Int64Var(&analyzeBatchSize, "batch-size", 0, "records per batch (default from config)")
	analyzeRunCmd.Flags().Int64Var(&analyzeLimit, "limit", 0, "cap the number of records for a new job")
	analyzeRunCmd.Flags().StringVar(&analyzeJobID, "job", "", "resume an existing job id")

	analyzeCmd.AddCommand(analyzeRunCmd)
	analyzeCmd.AddCommand(analyzeStatusCmd)
	rootCmd.AddCommand(analyzeCmd)
}
