package watcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yproz/spp-monitor/internal/config"
	"github.com/yproz/spp-monitor/internal/models"
	"github.com/yproz/spp-monitor/internal/parserapi"
	"github.com/yproz/spp-monitor/internal/service"
)

// JobStore is the slice of the job repository the poller drives.
type JobStore interface {
	ListActive(ctx context.Context) ([]models.CollectionJob, error)
	ListCompletedUningested(ctx context.Context, maxAttempts int) ([]models.CollectionJob, error)
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, lastError *string) error
	MarkCompleted(ctx context.Context, jobID string, resultURL string, completedAt time.Time) error
	MarkIngested(ctx context.Context, jobID string) error
	IncrementIngestAttempts(ctx context.Context, jobID string) error
	TimeOutStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AccountStore resolves job accounts.
type AccountStore interface {
	GetByID(ctx context.Context, accountID int64) (*models.Account, error)
}

// ClientStore resolves provider credentials.
type ClientStore interface {
	GetByID(ctx context.Context, clientID string) (*models.Client, error)
}

// Provider is the status/result side of the provider API.
type Provider interface {
	GetStatus(ctx context.Context, apiKey, externalTaskID string) (*parserapi.StatusResult, error)
	FetchResult(ctx context.Context, reportURL string) (*parserapi.ReportPayload, error)
}

// Ingestor writes a fetched payload as a snapshot.
type Ingestor interface {
	Ingest(ctx context.Context, job *models.CollectionJob, account *models.Account, payload *parserapi.ReportPayload) (*models.Snapshot, error)
}

// Gate decides whether a completed job triggers a summary.
type Gate interface {
	OnJobCompleted(ctx context.Context, job *models.CollectionJob) (*service.Decision, error)
}

// Collector triggers a full collection run across all clients.
type Collector interface {
	CollectAll(ctx context.Context) (int, error)
}

// Watcher reconciles outstanding collection jobs against the provider on a
// fixed cadence. Jobs are processed independently: one job's failure never
// blocks the rest of the pass, and per-account state transitions stay
// serialized because each job is handled by exactly one goroutine per pass.
type Watcher struct {
	cfg       *config.Config
	jobs      JobStore
	accounts  AccountStore
	clients   ClientStore
	provider  Provider
	ingestor  Ingestor
	gate      Gate
	collector Collector
	now       func() time.Time

	collected map[int]string // scheduled hour -> last date it ran
}

func New(
	cfg *config.Config,
	jobs JobStore,
	accounts AccountStore,
	clients ClientStore,
	provider Provider,
	ingestor Ingestor,
	gate Gate,
	collector Collector,
) *Watcher {
	return &Watcher{
		cfg:       cfg,
		jobs:      jobs,
		accounts:  accounts,
		clients:   clients,
		provider:  provider,
		ingestor:  ingestor,
		gate:      gate,
		collector: collector,
		now:       time.Now,
		collected: make(map[int]string),
	}
}

// Start begins the polling loop until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	log.Println("Starting collection job watcher...")

	// Process any outstanding jobs from previous runs
	if err := w.PollPass(ctx); err != nil {
		log.Printf("Warning: failed to process jobs on startup: %v", err)
	}

	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Watcher shutting down...")
			return ctx.Err()
		case <-ticker.C:
			w.runScheduledCollections(ctx)
			if err := w.PollPass(ctx); err != nil {
				log.Printf("Error during poll pass: %v", err)
			}
		}
	}
}

// runScheduledCollections fires one CollectAll per configured UTC hour per
// day. A pass after the scheduled hour still triggers it, so a restart
// around the boundary does not skip the day's run.
func (w *Watcher) runScheduledCollections(ctx context.Context) {
	if w.collector == nil {
		return
	}

	now := w.now().UTC()
	day := now.Format("2006-01-02")

	for _, hour := range w.cfg.CollectHours {
		if now.Hour() < hour || w.collected[hour] == day {
			continue
		}
		n, err := w.collector.CollectAll(ctx)
		if err != nil {
			log.Printf("Scheduled collection at hour %d failed: %v", hour, err)
			continue
		}
		w.collected[hour] = day
		log.Printf("Scheduled collection at hour %d submitted %d job(s)", hour, n)
	}
}

// PollPass runs one reconciliation pass: stale jobs are timed out, active
// jobs checked against the provider, and completed-but-uningested jobs
// retried. Per-job work fans out on a bounded worker pool.
func (w *Watcher) PollPass(ctx context.Context) error {
	cutoff := w.now().Add(-time.Duration(w.cfg.JobTimeout) * time.Second)
	if n, err := w.jobs.TimeOutStale(ctx, cutoff); err != nil {
		log.Printf("Failed to time out stale jobs: %v", err)
	} else if n > 0 {
		log.Printf("Timed out %d stale job(s)", n)
	}

	active, err := w.jobs.ListActive(ctx)
	if err != nil {
		return err
	}

	uningested, err := w.jobs.ListCompletedUningested(ctx, w.cfg.MaxIngestRetries)
	if err != nil {
		return err
	}

	if len(active) == 0 && len(uningested) == 0 {
		return nil
	}

	log.Printf("Poll pass: %d active job(s), %d awaiting ingestion", len(active), len(uningested))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.WorkerPoolSize)

	for _, job := range active {
		job := job
		g.Go(func() error {
			if err := w.processActiveJob(gctx, &job); err != nil {
				log.Printf("Failed to process job %s: %v", job.ID, err)
			}
			return nil
		})
	}

	for _, job := range uningested {
		job := job
		g.Go(func() error {
			if err := w.retryIngestion(gctx, &job); err != nil {
				log.Printf("Failed to retry ingestion for job %s: %v", job.ID, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// processActiveJob drives one submitted/polling job through a provider
// status check.
func (w *Watcher) processActiveJob(ctx context.Context, job *models.CollectionJob) error {
	account, err := w.accounts.GetByID(ctx, job.AccountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	client, err := w.clients.GetByID(ctx, job.ClientID)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}
	if client.ParserAPIKey == nil {
		return w.failJob(ctx, job, "client has no parser API key")
	}

	status, err := w.provider.GetStatus(ctx, *client.ParserAPIKey, job.ExternalTaskID)
	if err != nil {
		if parserapi.IsPermanent(err) {
			return w.failJob(ctx, job, err.Error())
		}
		// Transient: the next poll pass retries naturally.
		return err
	}

	switch status.Status {
	case parserapi.TaskRunning:
		if job.Status == models.JobStatusSubmitted {
			return w.jobs.UpdateStatus(ctx, job.ID, models.JobStatusPolling, nil)
		}
		return nil

	case parserapi.TaskDone:
		return w.handleCompleted(ctx, job, account, status.ReportURL)

	case parserapi.TaskError:
		return w.failJob(ctx, job, "provider reported task error")

	case parserapi.TaskNotFound:
		return w.failJob(ctx, job, "task not found at provider")

	default:
		return fmt.Errorf("unknown task status %q", status.Status)
	}
}

// handleCompleted fetches the payload and records completion. The payload
// fetch happens before the completed transition, so a failed fetch keeps the
// job polling and the next pass retries; once completed, the job is ingested
// at most once thanks to the price record uniqueness key.
func (w *Watcher) handleCompleted(ctx context.Context, job *models.CollectionJob, account *models.Account, reportURL string) error {
	payload, err := w.provider.FetchResult(ctx, reportURL)
	if err != nil {
		if parserapi.IsPermanent(err) {
			return w.failJob(ctx, job, err.Error())
		}
		return fmt.Errorf("failed to fetch result: %w", err)
	}

	completedAt := w.now()
	if err := w.jobs.MarkCompleted(ctx, job.ID, reportURL, completedAt); err != nil {
		return err
	}
	job.Status = models.JobStatusCompleted
	job.ResultURL = &reportURL
	job.CompletedAt = &completedAt

	log.Printf("Job %s completed (task %s), ingesting %d rows", job.ID, job.ExternalTaskID, len(payload.Data))
	return w.ingestAndNotify(ctx, job, account, payload)
}

// retryIngestion re-fetches the stored payload for a completed job whose
// ingestion has not succeeded yet.
func (w *Watcher) retryIngestion(ctx context.Context, job *models.CollectionJob) error {
	if job.ResultURL == nil {
		return w.failJob(ctx, job, "completed job has no result URL")
	}

	account, err := w.accounts.GetByID(ctx, job.AccountID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	payload, err := w.provider.FetchResult(ctx, *job.ResultURL)
	if err != nil {
		return w.recordIngestFailure(ctx, job, err)
	}

	return w.ingestAndNotify(ctx, job, account, payload)
}

// ingestAndNotify writes the snapshot and presents the completion to the
// notification gate. Ingestion failures are counted and bounded; the raw
// report stays reachable through the job's result URL for inspection.
func (w *Watcher) ingestAndNotify(ctx context.Context, job *models.CollectionJob, account *models.Account, payload *parserapi.ReportPayload) error {
	if _, err := w.ingestor.Ingest(ctx, job, account, payload); err != nil {
		return w.recordIngestFailure(ctx, job, err)
	}

	if err := w.jobs.MarkIngested(ctx, job.ID); err != nil {
		return err
	}
	job.Ingested = true

	decision, err := w.gate.OnJobCompleted(ctx, job)
	if err != nil {
		return fmt.Errorf("notification gate: %w", err)
	}
	if decision.Due {
		log.Printf("Notification cycle fired for client %s (job %s, delivered: %t)",
			job.ClientID, job.ID, decision.Delivered)
	}
	return nil
}

func (w *Watcher) recordIngestFailure(ctx context.Context, job *models.CollectionJob, cause error) error {
	if err := w.jobs.IncrementIngestAttempts(ctx, job.ID); err != nil {
		log.Printf("Warning: failed to increment ingest attempts for job %s: %v", job.ID, err)
	}
	job.IngestAttempts++

	if job.IngestAttempts >= w.cfg.MaxIngestRetries {
		log.Printf("Job %s exhausted %d ingestion attempts, failing", job.ID, job.IngestAttempts)
		return w.failJob(ctx, job, fmt.Sprintf("ingestion failed after %d attempts: %v", job.IngestAttempts, cause))
	}
	return fmt.Errorf("ingestion failed (attempt %d): %w", job.IngestAttempts, cause)
}

// failJob records a terminal failure. Failed jobs stay visible as
// "collection failed for account" rather than silently disappearing.
func (w *Watcher) failJob(ctx context.Context, job *models.CollectionJob, reason string) error {
	log.Printf("Collection failed for account %d (job %s): %s", job.AccountID, job.ID, reason)
	if err := w.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed, &reason); err != nil {
		return err
	}
	job.Status = models.JobStatusFailed
	return nil
}
