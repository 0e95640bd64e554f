package service

import (
	"context"
	"log"

	"github.com/yproz/spp-monitor/internal/models"
)

// Reporter delivers a fired summary to the external reporting collaborator
// (the chat interface in production). Delivery happens after the notification
// claim is recorded, so implementations may be retried externally but the
// engine itself never resends a claimed summary.
type Reporter interface {
	Deliver(ctx context.Context, summary *models.ClientSummary) error
}

// LogReporter writes summaries to the process log. Used when no delivery
// collaborator is wired, and as the operator-visible fallback.
type LogReporter struct{}

func NewLogReporter() *LogReporter {
	return &LogReporter{}
}

func (r *LogReporter) Deliver(_ context.Context, summary *models.ClientSummary) error {
	log.Printf("Summary for client %s (%s): tracked=%d decreased=%d increased=%d unchanged=%d new=%d missing=%d at %s",
		summary.ClientID, summary.ClientName, summary.TotalTracked,
		summary.Counts.Decreased, summary.Counts.Increased, summary.Counts.Unchanged,
		summary.Counts.New, summary.Counts.Missing,
		summary.SnapshotTimestamp.Format("2006-01-02 15:04:05"))
	return nil
}
