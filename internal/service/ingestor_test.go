package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yproz/spp-monitor/internal/models"
	"github.com/yproz/spp-monitor/internal/parserapi"
)

type mockProductCodeStore struct {
	codes map[string]bool
}

func (m *mockProductCodeStore) CodesByAccount(ctx context.Context, accountID int64) (map[string]bool, error) {
	return m.codes, nil
}

// mockRecordWriter applies the (client, job, product code) uniqueness key the
// way the database constraint does: conflicting rows are silently skipped.
type mockRecordWriter struct {
	mu      sync.Mutex
	records map[string]models.PriceRecord
	err     error
}

func newMockRecordWriter() *mockRecordWriter {
	return &mockRecordWriter{records: make(map[string]models.PriceRecord)}
}

func (m *mockRecordWriter) BulkInsert(ctx context.Context, records []models.PriceRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		key := rec.ClientID + "|" + rec.JobID + "|" + rec.ProductCode
		if _, exists := m.records[key]; exists {
			continue
		}
		m.records[key] = rec
	}
	return nil
}

func testJob() *models.CollectionJob {
	completed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &models.CollectionJob{
		ID:          "job-1",
		ClientID:    "SEB",
		AccountID:   1,
		Status:      models.JobStatusCompleted,
		CompletedAt: &completed,
	}
}

func testPayload() *parserapi.ReportPayload {
	return &parserapi.ReportPayload{
		Data: []parserapi.ReportItem{
			{Code: "A1", Name: "Widget", Offers: []map[string]interface{}{
				{"Price": 1000.0, "PromoPrice": 800.0},
			}},
			{Code: "A2", Name: "Gadget", Offers: []map[string]interface{}{
				{"Price": "500", "PromoPrice": ""},
			}},
		},
	}
}

func TestIngestor_Ingest_Success(t *testing.T) {
	writer := newMockRecordWriter()
	ing := NewIngestor(&mockProductCodeStore{codes: map[string]bool{"A1": true, "A2": true}}, writer)

	account := testAccount()
	snapshot, err := ing.Ingest(context.Background(), testJob(), &account, testPayload())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(snapshot.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snapshot.Records))
	}

	first := snapshot.Records[0]
	if first.DiscountPercent == nil {
		t.Fatal("expected discount to be defined")
	}
	if !first.DiscountPercent.Round(1).Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected 20%% discount, got %s", first.DiscountPercent)
	}

	// A2 has no promo price; the shelf price is the showcase price.
	second := snapshot.Records[1]
	if !second.ShowcasePrice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected showcase fallback to shelf price, got %s", second.ShowcasePrice)
	}
	if second.DiscountPercent == nil || !second.DiscountPercent.IsZero() {
		t.Errorf("expected 0%% discount, got %v", second.DiscountPercent)
	}

	if !snapshot.CompletedAt.Equal(*testJob().CompletedAt) {
		t.Errorf("expected snapshot timestamped by job completion, got %s", snapshot.CompletedAt)
	}
}

func TestIngestor_Ingest_Idempotent(t *testing.T) {
	writer := newMockRecordWriter()
	ing := NewIngestor(&mockProductCodeStore{codes: map[string]bool{"A1": true, "A2": true}}, writer)

	account := testAccount()
	if _, err := ing.Ingest(context.Background(), testJob(), &account, testPayload()); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	firstCount := len(writer.records)

	if _, err := ing.Ingest(context.Background(), testJob(), &account, testPayload()); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if len(writer.records) != firstCount {
		t.Errorf("re-ingesting the same payload changed the record set: %d -> %d",
			firstCount, len(writer.records))
	}
}

func TestIngestor_Ingest_ZeroShelfPriceUndefinedDiscount(t *testing.T) {
	writer := newMockRecordWriter()
	ing := NewIngestor(&mockProductCodeStore{codes: map[string]bool{"A1": true}}, writer)

	payload := &parserapi.ReportPayload{
		Data: []parserapi.ReportItem{
			{Code: "A1", Offers: []map[string]interface{}{
				{"Price": 0.0, "PromoPrice": 300.0},
			}},
		},
	}

	account := testAccount()
	snapshot, err := ing.Ingest(context.Background(), testJob(), &account, payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(snapshot.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snapshot.Records))
	}
	if snapshot.Records[0].DiscountPercent != nil {
		t.Errorf("expected undefined discount for zero shelf price, got %s",
			snapshot.Records[0].DiscountPercent)
	}
}

func TestIngestor_Ingest_UnknownProductFlaggedUnmatched(t *testing.T) {
	writer := newMockRecordWriter()
	ing := NewIngestor(&mockProductCodeStore{codes: map[string]bool{"A1": true}}, writer)

	account := testAccount()
	snapshot, err := ing.Ingest(context.Background(), testJob(), &account, testPayload())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var unmatched int
	for _, rec := range snapshot.Records {
		if rec.Unmatched {
			unmatched++
			if rec.ProductCode != "A2" {
				t.Errorf("expected A2 to be unmatched, got %s", rec.ProductCode)
			}
		}
	}
	if unmatched != 1 {
		t.Errorf("expected 1 unmatched record, got %d", unmatched)
	}
}

func TestIngestor_Ingest_EmptyPayload(t *testing.T) {
	ing := NewIngestor(&mockProductCodeStore{codes: map[string]bool{}}, newMockRecordWriter())

	account := testAccount()
	if _, err := ing.Ingest(context.Background(), testJob(), &account, &parserapi.ReportPayload{}); err != ErrEmptyPayload {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := ing.Ingest(context.Background(), testJob(), &account, nil); err != ErrEmptyPayload {
		t.Errorf("expected ErrEmptyPayload for nil payload, got %v", err)
	}
}

func TestIngestor_Ingest_SkipsRowsWithoutPrices(t *testing.T) {
	writer := newMockRecordWriter()
	ing := NewIngestor(&mockProductCodeStore{codes: map[string]bool{"A1": true, "A2": true}}, writer)

	payload := &parserapi.ReportPayload{
		Data: []parserapi.ReportItem{
			{Code: "A1", Offers: []map[string]interface{}{{"Price": 100.0}}},
			{Code: "A2", Offers: []map[string]interface{}{{"Price": "", "PromoPrice": nil}}},
			{Code: "A3"}, // no offers at all
		},
	}

	account := testAccount()
	snapshot, err := ing.Ingest(context.Background(), testJob(), &account, payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(snapshot.Records) != 1 {
		t.Fatalf("expected only the priced row, got %d records", len(snapshot.Records))
	}
	if snapshot.Records[0].ProductCode != "A1" {
		t.Errorf("expected A1, got %s", snapshot.Records[0].ProductCode)
	}
}

func TestPriceFromOffer(t *testing.T) {
	tests := []struct {
		name  string
		offer map[string]interface{}
		field string
		want  string
		ok    bool
	}{
		{"float value", map[string]interface{}{"Price": 99.9}, "Price", "99.9", true},
		{"string value", map[string]interface{}{"Price": "150"}, "Price", "150", true},
		{"zero is no price", map[string]interface{}{"Price": 0.0}, "Price", "", false},
		{"zero string is no price", map[string]interface{}{"Price": "0"}, "Price", "", false},
		{"empty string", map[string]interface{}{"Price": ""}, "Price", "", false},
		{"missing field", map[string]interface{}{}, "Price", "", false},
		{"nil value", map[string]interface{}{"Price": nil}, "Price", "", false},
		{"garbage string", map[string]interface{}{"Price": "abc"}, "Price", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := priceFromOffer(tt.offer, tt.field)
			if ok != tt.ok {
				t.Fatalf("expected ok=%t, got %t", tt.ok, ok)
			}
			if !tt.ok {
				return
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("expected %s, got %s", want, got)
			}
		})
	}
}
