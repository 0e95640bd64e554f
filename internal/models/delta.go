package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChangeKind string

// Direction convention: a higher discount percent in the newer snapshot is
// reported as ChangeIncreased (the SPP grew). Lower means ChangeDecreased.
const (
	ChangeNew       ChangeKind = "new"       // present only in the newer snapshot
	ChangeIncreased ChangeKind = "increased" // discount percent went up
	ChangeDecreased ChangeKind = "decreased" // discount percent went down
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeMissing   ChangeKind = "missing" // present only in the older snapshot
)

// ProductDelta is the per-product outcome of comparing the two most recent
// snapshots of an account.
type ProductDelta struct {
	ProductCode      string
	ProductName      string
	Change           ChangeKind
	ShelfPrice       decimal.Decimal
	ShowcasePrice    decimal.Decimal
	DiscountPercent  *decimal.Decimal // current snapshot; nil when undefined
	PreviousDiscount *decimal.Decimal // older snapshot; nil for new products or undefined
}

// SummaryCounts aggregates delta classifications for a client-level summary.
type SummaryCounts struct {
	Decreased int
	Increased int
	Unchanged int
	New       int
	Missing   int
}

// ClientSummary is what the reporting collaborator receives when the
// notification gate fires.
type ClientSummary struct {
	ClientID          string
	ClientName        string
	GroupChatID       int64
	Counts            SummaryCounts
	TotalTracked      int
	SnapshotTimestamp time.Time
	PreviousTimestamp *time.Time
	Deltas            []ProductDelta
}
