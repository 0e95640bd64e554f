package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yproz/spp-monitor/internal/models"
)

// SnapshotStore reads back ingested snapshots for comparison.
type SnapshotStore interface {
	LatestSnapshots(ctx context.Context, accountID int64, n int) ([]models.Snapshot, error)
}

// AccountStore lists a client's accounts for the client-level summary.
type AccountStore interface {
	ListByClient(ctx context.Context, clientID string) ([]models.Account, error)
}

type Differ struct {
	snapshots SnapshotStore
	accounts  AccountStore
}

func NewDiffer(snapshots SnapshotStore, accounts AccountStore) *Differ {
	return &Differ{
		snapshots: snapshots,
		accounts:  accounts,
	}
}

// Diff compares the account's latest snapshot against the immediately
// preceding one. Every product of the newer snapshot falls into exactly one
// of new/increased/decreased/unchanged; products present only in the older
// snapshot come back as missing. Unmatched rows never enter the comparison.
//
// Direction convention: a higher discount percent in the newer snapshot is
// reported as increased SPP. Discounts are compared rounded to one decimal.
func (d *Differ) Diff(ctx context.Context, accountID int64) ([]models.ProductDelta, error) {
	snapshots, err := d.snapshots.LatestSnapshots(ctx, accountID, 2)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	newer := snapshots[0]
	var older *models.Snapshot
	if len(snapshots) > 1 {
		older = &snapshots[1]
	}

	previous := make(map[string]models.PriceRecord)
	if older != nil {
		for _, rec := range older.Records {
			if rec.Unmatched {
				continue
			}
			previous[rec.ProductCode] = rec
		}
	}

	deltas := make([]models.ProductDelta, 0, len(newer.Records))
	seen := make(map[string]bool, len(newer.Records))

	for _, rec := range newer.Records {
		if rec.Unmatched {
			continue
		}
		seen[rec.ProductCode] = true

		delta := models.ProductDelta{
			ProductCode:     rec.ProductCode,
			ProductName:     rec.ProductName,
			ShelfPrice:      rec.ShelfPrice,
			ShowcasePrice:   rec.ShowcasePrice,
			DiscountPercent: rec.DiscountPercent,
		}

		prev, existed := previous[rec.ProductCode]
		if !existed {
			delta.Change = models.ChangeNew
		} else {
			delta.PreviousDiscount = prev.DiscountPercent
			delta.Change = classify(rec.DiscountPercent, prev.DiscountPercent)
		}
		deltas = append(deltas, delta)
	}

	// Products that dropped out of the latest collection.
	for code, prev := range previous {
		if seen[code] {
			continue
		}
		deltas = append(deltas, models.ProductDelta{
			ProductCode:      code,
			ProductName:      prev.ProductName,
			Change:           models.ChangeMissing,
			ShelfPrice:       prev.ShelfPrice,
			ShowcasePrice:    prev.ShowcasePrice,
			PreviousDiscount: prev.DiscountPercent,
		})
	}

	return deltas, nil
}

// classify compares two discount percents rounded to one decimal place.
// An undefined discount on either side cannot assert movement and is
// reported as unchanged, keeping it out of the increase/decrease counts.
func classify(current, previous *decimal.Decimal) models.ChangeKind {
	if current == nil || previous == nil {
		return models.ChangeUnchanged
	}
	cur := current.Round(1)
	prev := previous.Round(1)
	switch {
	case cur.GreaterThan(prev):
		return models.ChangeIncreased
	case cur.LessThan(prev):
		return models.ChangeDecreased
	default:
		return models.ChangeUnchanged
	}
}

// Summarize aggregates per-account deltas into the client-level summary the
// reporting collaborator receives.
func (d *Differ) Summarize(ctx context.Context, client *models.Client) (*models.ClientSummary, error) {
	accounts, err := d.accounts.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, err
	}

	summary := &models.ClientSummary{
		ClientID:    client.ID,
		ClientName:  client.Name,
		GroupChatID: client.GroupChatID,
	}

	var latest time.Time
	var previous *time.Time

	for _, account := range accounts {
		deltas, err := d.Diff(ctx, account.ID)
		if err != nil {
			log.Printf("Failed to diff account %d for client %s: %v", account.ID, client.ID, err)
			continue
		}
		for _, delta := range deltas {
			switch delta.Change {
			case models.ChangeNew:
				summary.Counts.New++
			case models.ChangeIncreased:
				summary.Counts.Increased++
			case models.ChangeDecreased:
				summary.Counts.Decreased++
			case models.ChangeUnchanged:
				summary.Counts.Unchanged++
			case models.ChangeMissing:
				summary.Counts.Missing++
			}
			if delta.Change != models.ChangeMissing {
				summary.TotalTracked++
			}
		}
		summary.Deltas = append(summary.Deltas, deltas...)

		snapshots, err := d.snapshots.LatestSnapshots(ctx, account.ID, 2)
		if err != nil {
			return nil, err
		}
		if len(snapshots) > 0 && snapshots[0].CompletedAt.After(latest) {
			latest = snapshots[0].CompletedAt
		}
		if len(snapshots) > 1 {
			ts := snapshots[1].CompletedAt
			if previous == nil || ts.After(*previous) {
				previous = &ts
			}
		}
	}

	if len(summary.Deltas) == 0 {
		return nil, fmt.Errorf("no snapshots for client %s", client.ID)
	}

	summary.SnapshotTimestamp = latest
	summary.PreviousTimestamp = previous
	return summary, nil
}
