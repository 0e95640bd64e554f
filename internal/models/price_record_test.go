package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeDiscountPercent(t *testing.T) {
	tests := []struct {
		name     string
		shelf    string
		showcase string
		want     string
		defined  bool
	}{
		{
			name:     "twenty percent discount",
			shelf:    "1000",
			showcase: "800",
			want:     "20",
			defined:  true,
		},
		{
			name:     "thirty percent discount",
			shelf:    "1000",
			showcase: "700",
			want:     "30",
			defined:  true,
		},
		{
			name:     "no discount",
			shelf:    "500",
			showcase: "500",
			want:     "0",
			defined:  true,
		},
		{
			name:     "fractional discount",
			shelf:    "999",
			showcase: "899",
			want:     "10.01",
			defined:  true,
		},
		{
			name:     "zero shelf price is undefined",
			shelf:    "0",
			showcase: "100",
			defined:  false,
		},
		{
			name:     "negative shelf price is undefined",
			shelf:    "-10",
			showcase: "5",
			defined:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shelf, _ := decimal.NewFromString(tt.shelf)
			showcase, _ := decimal.NewFromString(tt.showcase)

			got, defined := ComputeDiscountPercent(shelf, showcase)
			if defined != tt.defined {
				t.Fatalf("expected defined=%t, got %t", tt.defined, defined)
			}
			if !tt.defined {
				return
			}

			want, _ := decimal.NewFromString(tt.want)
			if !got.Round(2).Equal(want) {
				t.Errorf("expected discount %s, got %s", want, got.Round(2))
			}
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusTimedOut}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
		if s.Active() {
			t.Errorf("expected %s not to be active", s)
		}
	}

	active := []JobStatus{JobStatusSubmitted, JobStatusPolling}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
		if !s.Active() {
			t.Errorf("expected %s to be active", s)
		}
	}
}
