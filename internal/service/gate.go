package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yproz/spp-monitor/internal/models"
)

// CycleStore records notification claims.
type CycleStore interface {
	Claim(ctx context.Context, cycle models.NotificationCycle) (bool, error)
}

// Summarizer builds the client-level summary handed to the reporter.
type Summarizer interface {
	Summarize(ctx context.Context, client *models.Client) (*models.ClientSummary, error)
}

// Decision is the outcome of presenting one completion event to the gate.
type Decision struct {
	Due       bool // a summary had not been sent for this job yet
	Delivered bool
	Summary   *models.ClientSummary
}

// NotificationGate decides, exactly once per completed and ingested job,
// that a summary is due. The claim is recorded before delivery: a crash
// between claim and delivery loses at most one message, never duplicates one.
type NotificationGate struct {
	clients    ClientStore
	cycles     CycleStore
	summarizer Summarizer
	reporter   Reporter
	now        func() time.Time
}

func NewNotificationGate(clients ClientStore, cycles CycleStore, summarizer Summarizer, reporter Reporter) *NotificationGate {
	return &NotificationGate{
		clients:    clients,
		cycles:     cycles,
		summarizer: summarizer,
		reporter:   reporter,
		now:        time.Now,
	}
}

// OnJobCompleted fires at most once per job id. Replays of the same
// completion event return a not-due decision without touching the reporter.
func (g *NotificationGate) OnJobCompleted(ctx context.Context, job *models.CollectionJob) (*Decision, error) {
	claimed, err := g.cycles.Claim(ctx, models.NotificationCycle{
		ClientID:   job.ClientID,
		AccountID:  job.AccountID,
		JobID:      job.ID,
		NotifiedAt: g.now(),
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Printf("Job %s already notified for client %s, skipping", job.ID, job.ClientID)
		return &Decision{Due: false}, nil
	}

	client, err := g.clients.GetByID(ctx, job.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	summary, err := g.summarizer.Summarize(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to build summary: %w", err)
	}

	decision := &Decision{Due: true, Summary: summary}

	// The claim is already durable. A delivery failure here is logged and the
	// summary is not resent: missed delivery is preferred over a duplicate.
	if err := g.reporter.Deliver(ctx, summary); err != nil {
		log.Printf("Delivery failed for client %s job %s (already claimed, will not resend): %v",
			job.ClientID, job.ID, err)
		return decision, nil
	}

	decision.Delivered = true
	log.Printf("Summary delivered for client %s (job %s)", job.ClientID, job.ID)
	return decision, nil
}
