package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/boundary-audit/internal/analysis"
	"github.com/civicworks/boundary-audit/internal/boundary"
	"github.com/civicworks/boundary-audit/internal/job"
	"github.com/civicworks/boundary-audit/internal/pipeline"
	"github.com/civicworks/boundary-audit/internal/resident"
)

var servePort int

// jobAPI is the job persistence surface the HTTP handlers use.
type jobAPI interface {
	Create(ctx context.Context, kind job.Kind, totalRecords int64) (*job.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*job.Job, error)
	List(ctx context.Context, limit int) ([]job.Job, error)
}

// jobDispatch launches a job run; the serve command dispatches it on a
// background goroutine.
type jobDispatch func(ctx context.Context, j *job.Job, batchSize int64) error

// jobTotals counts the records a new job of the given kind will cover.
type jobTotals func(ctx context.Context, kind job.Kind) (int64, error)

type jobResponse struct {
	ID                  uuid.UUID        `json:"id"`
	Kind                job.Kind         `json:"kind"`
	Status              job.Status       `json:"status"`
	TotalRecords        int64            `json:"total_records"`
	Processed           int64            `json:"processed"`
	Succeeded           int64            `json:"succeeded"`
	Failed              int64            `json:"failed"`
	CacheHits           int64            `json:"cache_hits"`
	LastProcessedOffset int64            `json:"last_processed_offset"`
	ErrorLog            []job.ErrorEntry `json:"error_log,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	StartedAt           *time.Time       `json:"started_at,omitempty"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
}

func toJobResponse(j *job.Job) jobResponse {
	return jobResponse{
		ID:                  j.ID,
		Kind:                j.Kind,
		Status:              j.Status,
		TotalRecords:        j.TotalRecords,
		Processed:           j.Processed,
		Succeeded:           j.Succeeded,
		Failed:              j.Failed,
		CacheHits:           j.CacheHits,
		LastProcessedOffset: j.LastProcessedOffset,
		ErrorLog:            j.ErrorLog,
		CreatedAt:           j.CreatedAt,
		StartedAt:           j.StartedAt,
		CompletedAt:         j.CompletedAt,
	}
}

// inflightJobs tracks job ids with an active runner, so a job row is only
// ever owned by one runner at a time.
type inflightJobs struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func newInflightJobs() *inflightJobs {
	return &inflightJobs{ids: make(map[uuid.UUID]struct{})}
}

// acquire reserves id, reporting false when a run is already active.
func (f *inflightJobs) acquire(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; ok {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *inflightJobs) release(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newServeMux builds the job-control routes. runCtx outlives individual
// requests so dispatched jobs survive the request that launched them.
func newServeMux(runCtx context.Context, jobs jobAPI, totals jobTotals, dispatch jobDispatch) *http.ServeMux {
	mux := http.NewServeMux()
	inflight := newInflightJobs()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /jobs", func(w http.ResponseWriter, r *http.Request) {
		list, err := jobs.List(r.Context(), 50)
		if err != nil {
			http.Error(w, `{"error":"list jobs failed"}`, http.StatusInternalServerError)
			return
		}
		out := make([]jobResponse, 0, len(list))
		for i := range list {
			out = append(out, toJobResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Kind  job.Kind `json:"kind"`
			Limit int64    `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if !job.ValidKind(req.Kind) {
			http.Error(w, `{"error":"kind must be geocoding or analysis"}`, http.StatusBadRequest)
			return
		}

		total, err := totals(r.Context(), req.Kind)
		if err != nil {
			http.Error(w, `{"error":"count records failed"}`, http.StatusInternalServerError)
			return
		}
		if req.Limit > 0 && req.Limit < total {
			total = req.Limit
		}

		j, err := jobs.Create(r.Context(), req.Kind, total)
		if err != nil {
			http.Error(w, `{"error":"create job failed"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, toJobResponse(j))
	})

	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
			return
		}
		j, err := jobs.Get(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"get job failed"}`, http.StatusInternalServerError)
			return
		}
		if j == nil {
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(j))
	})

	mux.HandleFunc("POST /jobs/{id}/run", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
			return
		}

		var req struct {
			BatchSize int64 `json:"batch_size"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
		}

		j, err := jobs.Get(r.Context(), id)
		if err != nil {
			http.Error(w, `{"error":"get job failed"}`, http.StatusInternalServerError)
			return
		}
		if j == nil {
			http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
			return
		}
		if j.Status == job.StatusCompleted {
			http.Error(w, `{"error":"job already completed"}`, http.StatusConflict)
			return
		}
		if !inflight.acquire(j.ID) {
			http.Error(w, `{"error":"job run already in progress"}`, http.StatusConflict)
			return
		}

		go func() {
			defer inflight.release(j.ID)
			if err := dispatch(runCtx, j, req.BatchSize); err != nil {
				zap.L().Error("dispatched job failed",
					zap.String("job_id", j.ID.String()),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("dispatched job finished",
				zap.String("job_id", j.ID.String()),
				zap.Int64("processed", j.Processed),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"job_id": j.ID.String(),
		})
	})

	return mux
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job-control HTTP server",
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
		analyzer := analysis.NewAnalyzer(boundary.NewResolver(pool), analysis.NewStore(pool))

		totals := func(ctx context.Context, kind job.Kind) (int64, error) {
			return residents.Count(ctx)
		}

		provider := ""
		if len(cfg.Geocode.Providers) > 0 {
			provider = cfg.Geocode.Providers[0]
		}

		dispatch := func(ctx context.Context, j *job.Job, batch int64) error {
			if batch <= 0 {
				batch = int64(cfg.Jobs.BatchSize)
			}
			switch j.Kind {
			case job.KindGeocoding:
				runner := pipeline.NewGeocodeRunner(jobs, residents, residents, orch,
					pipeline.GeocodeOptions{Provider: provider})
				return runner.Run(ctx, j, batch)
			case job.KindAnalysis:
				runner := pipeline.NewAnalysisRunner(jobs, residents, analyzer)
				return runner.Run(ctx, j, batch)
			default:
				return eris.Errorf("unknown job kind %q", j.Kind)
			}
		}

		mux := newServeMux(ctx, jobs, totals, dispatch)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
