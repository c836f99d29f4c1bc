package treasury

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizeContributions(t *testing.T) {
	tests := []struct {
		name            string
		amounts         []float64
		expected        float64
		wantTotal       float64
		wantOutstanding float64
		wantPercent     float64
	}{
		{
			name:            "partial progress",
			amounts:         []float64{500, 300, 400},
			expected:        3000,
			wantTotal:       1200,
			wantOutstanding: 1800,
			wantPercent:     40,
		},
		{
			name:            "target met exactly",
			amounts:         []float64{1500, 1500},
			expected:        3000,
			wantTotal:       3000,
			wantOutstanding: 0,
			wantPercent:     100,
		},
		{
			name:            "target exceeded caps at 100",
			amounts:         []float64{2000, 2000},
			expected:        3000,
			wantTotal:       4000,
			wantOutstanding: 0,
			wantPercent:     100,
		},
		{
			name:            "no contributions",
			amounts:         nil,
			expected:        3000,
			wantTotal:       0,
			wantOutstanding: 3000,
			wantPercent:     0,
		},
		{
			name:            "no target set",
			amounts:         []float64{500, 300},
			expected:        0,
			wantTotal:       800,
			wantOutstanding: 0,
			wantPercent:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeContributions(tt.amounts, tt.expected)
			if !almostEqual(got.Total, tt.wantTotal) {
				t.Errorf("Total = %v, want %v", got.Total, tt.wantTotal)
			}
			if !almostEqual(got.Outstanding, tt.wantOutstanding) {
				t.Errorf("Outstanding = %v, want %v", got.Outstanding, tt.wantOutstanding)
			}
			if !almostEqual(got.PercentCompletion, tt.wantPercent) {
				t.Errorf("PercentCompletion = %v, want %v", got.PercentCompletion, tt.wantPercent)
			}
		})
	}
}

func TestSummarizeLoans(t *testing.T) {
	loans := []LoanForSummary{
		{Amount: 10000, Balance: 11000, InterestRate: 10, Status: "active"},
		{Amount: 5000, Balance: 2750, InterestRate: 10, Status: "active"},
		{Amount: 8000, Balance: 8800, InterestRate: 10, Status: "overdue"},
		{Amount: 3000, Balance: 0, InterestRate: 10, Status: "repaid"},
		{Amount: 4000, Balance: 0, InterestRate: 10, Status: "rejected"},
		{Amount: 6000, Balance: 0, InterestRate: 10, Status: "pending"},
	}

	got := SummarizeLoans(loans)

	if !almostEqual(got.ActiveTotal, 13750) {
		t.Errorf("ActiveTotal = %v, want 13750", got.ActiveTotal)
	}
	if !almostEqual(got.ExpectedInterest, 1375) {
		t.Errorf("ExpectedInterest = %v, want 1375", got.ExpectedInterest)
	}
	if !almostEqual(got.OverdueTotal, 8800) {
		t.Errorf("OverdueTotal = %v, want 8800", got.OverdueTotal)
	}
	if !almostEqual(got.RepaidTotal, 3000) {
		t.Errorf("RepaidTotal = %v, want 3000", got.RepaidTotal)
	}
}

func TestSummarizeLoansEmpty(t *testing.T) {
	got := SummarizeLoans(nil)
	if got.ActiveTotal != 0 || got.ExpectedInterest != 0 || got.OverdueTotal != 0 || got.RepaidTotal != 0 {
		t.Errorf("Expected zero summary for empty portfolio, got %+v", got)
	}
}
