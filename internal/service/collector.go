package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yproz/spp-monitor/internal/models"
)

// CollectableClientStore lists clients able to place provider orders.
type CollectableClientStore interface {
	GetByID(ctx context.Context, clientID string) (*models.Client, error)
	ListCollectable(ctx context.Context) ([]models.Client, error)
}

// JobSubmitter submits one collection run per account.
type JobSubmitter interface {
	Submit(ctx context.Context, account models.Account) (*models.CollectionJob, error)
}

// DatedRecordStore reads back snapshots by calendar day.
type DatedRecordStore interface {
	ListForDate(ctx context.Context, clientID string, day time.Time) ([]models.PriceRecord, error)
}

// Collector maps the command-trigger surface onto the engine: "collect now
// for client X" and "report for date D".
type Collector struct {
	clients   CollectableClientStore
	accounts  AccountStore
	records   DatedRecordStore
	submitter JobSubmitter
}

func NewCollector(clients CollectableClientStore, accounts AccountStore, records DatedRecordStore, submitter JobSubmitter) *Collector {
	return &Collector{
		clients:   clients,
		accounts:  accounts,
		records:   records,
		submitter: submitter,
	}
}

// CollectClient submits one collection run per account of the client.
// Per-account failures are logged and do not stop the remaining accounts.
func (c *Collector) CollectClient(ctx context.Context, clientID string) (int, error) {
	client, err := c.clients.GetByID(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if client.ParserAPIKey == nil {
		return 0, fmt.Errorf("client %s has no parser API key", clientID)
	}

	accounts, err := c.accounts.ListByClient(ctx, client.ID)
	if err != nil {
		return 0, err
	}

	submitted := 0
	for _, account := range accounts {
		if _, err := c.submitter.Submit(ctx, account); err != nil {
			log.Printf("Failed to submit for client %s account %d: %v", client.ID, account.ID, err)
			continue
		}
		submitted++
	}

	log.Printf("Collection triggered for client %s: %d/%d accounts submitted",
		client.ID, submitted, len(accounts))
	return submitted, nil
}

// CollectAll triggers collection for every client holding a provider API key.
func (c *Collector) CollectAll(ctx context.Context) (int, error) {
	clients, err := c.clients.ListCollectable(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, client := range clients {
		n, err := c.CollectClient(ctx, client.ID)
		if err != nil {
			log.Printf("Failed to collect for client %s: %v", client.ID, err)
			continue
		}
		total += n
	}
	return total, nil
}

// DailyReport returns the latest observation per product for a client on the
// given day, for the detailed tabular export built by the delivery
// collaborator. Unmatched rows are excluded from report content.
func (c *Collector) DailyReport(ctx context.Context, clientID string, day time.Time) ([]models.PriceRecord, error) {
	records, err := c.records.ListForDate(ctx, clientID, day)
	if err != nil {
		return nil, err
	}

	filtered := records[:0]
	for _, rec := range records {
		if rec.Unmatched {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered, nil
}
