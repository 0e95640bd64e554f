package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yproz/spp-monitor/internal/models"
	"github.com/yproz/spp-monitor/internal/parserapi"
)

// ErrEmptyPayload signals a report with no product rows. Treated as a
// malformed payload: retried a bounded number of times, then the job fails
// with the report URL preserved for inspection.
var ErrEmptyPayload = errors.New("report payload contains no product rows")

// ProductCodeStore returns the known product codes for an account.
type ProductCodeStore interface {
	CodesByAccount(ctx context.Context, accountID int64) (map[string]bool, error)
}

// PriceRecordWriter persists price records idempotently.
type PriceRecordWriter interface {
	BulkInsert(ctx context.Context, records []models.PriceRecord) error
}

type Ingestor struct {
	products ProductCodeStore
	records  PriceRecordWriter
}

func NewIngestor(products ProductCodeStore, records PriceRecordWriter) *Ingestor {
	return &Ingestor{
		products: products,
		records:  records,
	}
}

// Ingest normalizes a report payload into price records and writes them under
// the (client, job, product code) key. Conflicting writes are no-ops, so
// running the same ingestion twice yields the same record set as running it
// once. Rows with unknown product codes are kept but flagged unmatched.
func (i *Ingestor) Ingest(ctx context.Context, job *models.CollectionJob, account *models.Account, payload *parserapi.ReportPayload) (*models.Snapshot, error) {
	if payload == nil || len(payload.Data) == 0 {
		return nil, ErrEmptyPayload
	}

	knownCodes, err := i.products.CodesByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	observedAt := time.Now()
	if job.CompletedAt != nil {
		observedAt = *job.CompletedAt
	}

	records := make([]models.PriceRecord, 0, len(payload.Data))
	var skipped, unmatched int

	for _, item := range payload.Data {
		if len(item.Offers) == 0 {
			skipped++
			continue
		}
		offer := item.Offers[0]

		shelf, shelfOK := priceFromOffer(offer, account.ShelfField())
		showcase, showcaseOK := priceFromOffer(offer, account.ShowcaseField())
		if !showcaseOK {
			// No showcase price observed; the shelf price is what buyers see.
			showcase = shelf
			showcaseOK = shelfOK
		}
		if !shelfOK && !showcaseOK {
			log.Printf("Skipping product %s: no valid price in offer", item.Code)
			skipped++
			continue
		}

		record := models.PriceRecord{
			ClientID:      job.ClientID,
			JobID:         job.ID,
			AccountID:     account.ID,
			ProductCode:   item.Code,
			ProductName:   item.Name,
			ShelfPrice:    shelf,
			ShowcasePrice: showcase,
			ObservedAt:    observedAt,
		}
		if discount, defined := models.ComputeDiscountPercent(shelf, showcase); defined {
			record.DiscountPercent = &discount
		}
		if !knownCodes[item.Code] {
			record.Unmatched = true
			unmatched++
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, ErrEmptyPayload
	}

	if err := i.records.BulkInsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	log.Printf("Ingested job %s: %d records (%d unmatched, %d skipped)",
		job.ID, len(records), unmatched, skipped)

	return &models.Snapshot{
		JobID:       job.ID,
		AccountID:   account.ID,
		CompletedAt: observedAt,
		Records:     records,
	}, nil
}

// priceFromOffer extracts a positive price from a loosely typed offer field.
// Provider reports carry prices as numbers or numeric strings; zero, empty,
// and absent values all count as "no price".
func priceFromOffer(offer map[string]interface{}, field string) (decimal.Decimal, bool) {
	raw, ok := offer[field]
	if !ok || raw == nil {
		return decimal.Zero, false
	}

	var d decimal.Decimal
	switch v := raw.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case string:
		if v == "" {
			return decimal.Zero, false
		}
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		d = parsed
	default:
		return decimal.Zero, false
	}

	if d.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	return d, true
}
