package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yproz/spp-monitor/internal/models"
)

type mockSnapshotStore struct {
	byAccount map[int64][]models.Snapshot
}

func (m *mockSnapshotStore) LatestSnapshots(ctx context.Context, accountID int64, n int) ([]models.Snapshot, error) {
	snapshots := m.byAccount[accountID]
	if len(snapshots) > n {
		snapshots = snapshots[:n]
	}
	return snapshots, nil
}

type mockAccountLister struct {
	accounts []models.Account
}

func (m *mockAccountLister) ListByClient(ctx context.Context, clientID string) ([]models.Account, error) {
	return m.accounts, nil
}

func pct(v string) *decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return &d
}

func record(code string, discount *decimal.Decimal) models.PriceRecord {
	return models.PriceRecord{ProductCode: code, DiscountPercent: discount}
}

func snapshot(at time.Time, records ...models.PriceRecord) models.Snapshot {
	return models.Snapshot{CompletedAt: at, Records: records}
}

func TestDiffer_Diff_DiscountRise(t *testing.T) {
	newerAt := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	olderAt := newerAt.Add(-24 * time.Hour)

	store := &mockSnapshotStore{byAccount: map[int64][]models.Snapshot{
		1: {
			snapshot(newerAt, record("A1", pct("30")), record("A2", pct("10"))),
			snapshot(olderAt, record("A1", pct("20"))),
		},
	}}

	d := NewDiffer(store, &mockAccountLister{})
	deltas, err := d.Diff(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	changes := map[string]models.ChangeKind{}
	for _, delta := range deltas {
		changes[delta.ProductCode] = delta.Change
	}

	if changes["A1"] != models.ChangeIncreased {
		t.Errorf("expected A1 increased (20%% -> 30%%), got %s", changes["A1"])
	}
	if changes["A2"] != models.ChangeNew {
		t.Errorf("expected A2 new, got %s", changes["A2"])
	}
}

func TestDiffer_Diff_EveryProductClassifiedOnce(t *testing.T) {
	newerAt := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	olderAt := newerAt.Add(-24 * time.Hour)

	store := &mockSnapshotStore{byAccount: map[int64][]models.Snapshot{
		1: {
			snapshot(newerAt,
				record("UP", pct("25")),
				record("DOWN", pct("5")),
				record("SAME", pct("15")),
				record("FRESH", pct("40")),
			),
			snapshot(olderAt,
				record("UP", pct("20")),
				record("DOWN", pct("10")),
				record("SAME", pct("15")),
				record("GONE", pct("30")),
			),
		},
	}}

	d := NewDiffer(store, &mockAccountLister{})
	deltas, err := d.Diff(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := map[string]models.ChangeKind{
		"UP":    models.ChangeIncreased,
		"DOWN":  models.ChangeDecreased,
		"SAME":  models.ChangeUnchanged,
		"FRESH": models.ChangeNew,
		"GONE":  models.ChangeMissing,
	}

	if len(deltas) != len(want) {
		t.Fatalf("expected %d deltas, got %d", len(want), len(deltas))
	}
	for _, delta := range deltas {
		if delta.Change != want[delta.ProductCode] {
			t.Errorf("product %s: expected %s, got %s", delta.ProductCode, want[delta.ProductCode], delta.Change)
		}
	}
}

func TestDiffer_Diff_NoSnapshots(t *testing.T) {
	d := NewDiffer(&mockSnapshotStore{byAccount: map[int64][]models.Snapshot{}}, &mockAccountLister{})

	deltas, err := d.Diff(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deltas != nil {
		t.Errorf("expected nil deltas for account with no snapshots, got %v", deltas)
	}
}

func TestDiffer_Diff_FirstSnapshotAllNew(t *testing.T) {
	store := &mockSnapshotStore{byAccount: map[int64][]models.Snapshot{
		1: {snapshot(time.Now(), record("A1", pct("20")), record("A2", pct("10")))},
	}}

	d := NewDiffer(store, &mockAccountLister{})
	deltas, err := d.Diff(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	for _, delta := range deltas {
		if delta.Change != models.ChangeNew {
			t.Errorf("expected %s new on first snapshot, got %s", delta.ProductCode, delta.Change)
		}
	}
}

func TestDiffer_Diff_UnmatchedExcluded(t *testing.T) {
	newerAt := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	olderAt := newerAt.Add(-24 * time.Hour)

	stray := record("STRAY", pct("50"))
	stray.Unmatched = true

	store := &mockSnapshotStore{byAccount: map[int64][]models.Snapshot{
		1: {
			snapshot(newerAt, record("A1", pct("20")), stray),
			snapshot(olderAt, record("A1", pct("20")), stray),
		},
	}}

	d := NewDiffer(store, &mockAccountLister{})
	deltas, err := d.Diff(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(deltas) != 1 {
		t.Fatalf("expected unmatched rows excluded, got %d deltas", len(deltas))
	}
	if deltas[0].ProductCode != "A1" {
		t.Errorf("expected A1 only, got %s", deltas[0].ProductCode)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		current  *decimal.Decimal
		previous *decimal.Decimal
		want     models.ChangeKind
	}{
		{"higher discount is increased", pct("30"), pct("20"), models.ChangeIncreased},
		{"lower discount is decreased", pct("10"), pct("20"), models.ChangeDecreased},
		{"equal is unchanged", pct("20"), pct("20"), models.ChangeUnchanged},
		{"sub-tenth difference rounds away", pct("20.04"), pct("20.01"), models.ChangeUnchanged},
		{"tenth difference survives rounding", pct("20.15"), pct("20.04"), models.ChangeIncreased},
		{"undefined current is unchanged", nil, pct("20"), models.ChangeUnchanged},
		{"undefined previous is unchanged", pct("20"), nil, models.ChangeUnchanged},
		{"both undefined is unchanged", nil, nil, models.ChangeUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.current, tt.previous); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDiffer_Summarize(t *testing.T) {
	newerAt := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	olderAt := newerAt.Add(-24 * time.Hour)

	store := &mockSnapshotStore{byAccount: map[int64][]models.Snapshot{
		1: {
			snapshot(newerAt, record("A1", pct("30")), record("A2", pct("10"))),
			snapshot(olderAt, record("A1", pct("20")), record("GONE", pct("5"))),
		},
		2: {
			snapshot(newerAt.Add(-time.Hour), record("B1", pct("15"))),
			snapshot(olderAt.Add(-time.Hour), record("B1", pct("15"))),
		},
	}}
	accounts := &mockAccountLister{accounts: []models.Account{
		{ID: 1, ClientID: "SEB"},
		{ID: 2, ClientID: "SEB"},
	}}

	d := NewDiffer(store, accounts)
	summary, err := d.Summarize(context.Background(), &models.Client{ID: "SEB", Name: "Test Client"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if summary.Counts.Increased != 1 || summary.Counts.New != 1 ||
		summary.Counts.Unchanged != 1 || summary.Counts.Missing != 1 {
		t.Errorf("unexpected counts: %+v", summary.Counts)
	}
	if summary.TotalTracked != 3 {
		t.Errorf("expected 3 tracked products (missing excluded), got %d", summary.TotalTracked)
	}
	if !summary.SnapshotTimestamp.Equal(newerAt) {
		t.Errorf("expected newest snapshot timestamp %s, got %s", newerAt, summary.SnapshotTimestamp)
	}
	if summary.PreviousTimestamp == nil || !summary.PreviousTimestamp.Equal(olderAt) {
		t.Errorf("expected previous timestamp %s, got %v", olderAt, summary.PreviousTimestamp)
	}
}

func TestDiffer_Summarize_NoSnapshots(t *testing.T) {
	d := NewDiffer(
		&mockSnapshotStore{byAccount: map[int64][]models.Snapshot{}},
		&mockAccountLister{accounts: []models.Account{{ID: 1, ClientID: "SEB"}}},
	)

	if _, err := d.Summarize(context.Background(), &models.Client{ID: "SEB"}); err == nil {
		t.Fatal("expected error when client has no snapshots, got nil")
	}
}
