// Package treasury computes aggregate figures for dashboards: contribution
// totals against a group's monthly target and loan portfolio summaries. It
// is pure computation with no storage access.
package treasury

// ContributionSummary holds the aggregate figures for a set of
// contributions measured against an expected total.
type ContributionSummary struct {
	Total             float64 // Sum of all contribution amounts
	Expected          float64 // Target for the period; 0 = no target set
	Outstanding       float64 // How far short of the target, never negative
	PercentCompletion float64 // 0-100, capped at 100
}

// SummarizeContributions aggregates contribution amounts against an expected
// total. With no target set (expected == 0) the outstanding amount and
// completion percentage are both zero rather than undefined.
func SummarizeContributions(amounts []float64, expected float64) ContributionSummary {
	summary := ContributionSummary{Expected: expected}
	for _, amount := range amounts {
		summary.Total += amount
	}

	if expected <= 0 {
		return summary
	}

	if outstanding := expected - summary.Total; outstanding > 0 {
		summary.Outstanding = outstanding
	}

	percentage := summary.Total / expected * 100
	if percentage > 100 {
		percentage = 100
	}
	summary.PercentCompletion = percentage

	return summary
}

// LoanForSummary carries the minimal loan fields needed for portfolio math.
type LoanForSummary struct {
	Amount       float64
	Balance      float64
	InterestRate float64 // Percent
	Status       string  // "active", "overdue", "repaid", ...
}

// LoanSummary holds the aggregate figures for a loan portfolio.
type LoanSummary struct {
	ActiveTotal      float64 // Outstanding balance across active loans
	ExpectedInterest float64 // Interest still expected on active balances
	OverdueTotal     float64 // Outstanding balance across overdue loans
	RepaidTotal      float64 // Original amounts of fully repaid loans
}

// SummarizeLoans aggregates a loan portfolio the way the treasury dashboard
// presents it. Overdue loans are excluded from the active figures.
func SummarizeLoans(loans []LoanForSummary) LoanSummary {
	var summary LoanSummary
	for _, loan := range loans {
		switch loan.Status {
		case "active":
			summary.ActiveTotal += loan.Balance
			summary.ExpectedInterest += loan.Balance * loan.InterestRate / 100
		case "overdue":
			summary.OverdueTotal += loan.Balance
		case "repaid":
			summary.RepaidTotal += loan.Amount
		}
	}
	return summary
}
