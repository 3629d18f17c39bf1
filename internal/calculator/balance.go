package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/models"
)

// ComputeBalanceSheet aggregates one owner's expenses over a period.
//
// Algorithm:
//   - Skip records dated outside the period
//   - Sum amounts per category and overall using exact decimal arithmetic
//   - Verify the per-category totals add up to the overall total
//
// The caller passes the records of a single read. A record that belongs to
// another owner, has a negative amount or lacks a category is a
// DataIntegrityError; no partial sheet is returned.
func ComputeBalanceSheet(ownerID string, period models.Period, expenses []models.Expense) (models.BalanceSheet, error) {
	sheet := models.NewBalanceSheet(ownerID, period)

	for i := range expenses {
		e := &expenses[i]
		if e.OwnerID != ownerID {
			return models.BalanceSheet{}, apperr.Integrity("expense %s belongs to %s, not %s", e.ID, e.OwnerID, ownerID)
		}
		if !period.Contains(e.Date) {
			continue
		}
		if err := checkRecord(e); err != nil {
			return models.BalanceSheet{}, err
		}

		sheet.Categories[e.Category] = sheet.Categories[e.Category].Add(e.Amount)
		sheet.TotalSpent = sheet.TotalSpent.Add(e.Amount)
		sheet.ExpenseCount++
	}

	if err := verifySheet(&sheet); err != nil {
		return models.BalanceSheet{}, err
	}
	return sheet, nil
}

// ComputeOverallBalanceSheet computes one balance sheet per user.
// Users without records get a zero sheet. Every entry is exactly what
// ComputeBalanceSheet returns for that user alone, so no amount can leak
// between users; a record whose owner is not in users is a DataIntegrityError.
func ComputeOverallBalanceSheet(users []models.User, period models.Period, expenses []models.Expense) (models.OverallBalanceSheet, error) {
	byOwner := make(map[string][]models.Expense, len(users))
	for _, u := range users {
		byOwner[u.ID] = nil
	}
	for _, e := range expenses {
		if _, ok := byOwner[e.OwnerID]; !ok {
			return models.OverallBalanceSheet{}, apperr.Integrity("expense %s belongs to unknown owner %s", e.ID, e.OwnerID)
		}
		byOwner[e.OwnerID] = append(byOwner[e.OwnerID], e)
	}

	overall := models.OverallBalanceSheet{
		Period:        period,
		TotalSpent:    decimal.Zero,
		BalanceSheets: make(map[string]models.BalanceSheet, len(byOwner)),
	}
	for ownerID, records := range byOwner {
		sheet, err := ComputeBalanceSheet(ownerID, period, records)
		if err != nil {
			return models.OverallBalanceSheet{}, err
		}
		overall.BalanceSheets[ownerID] = sheet
		overall.TotalSpent = overall.TotalSpent.Add(sheet.TotalSpent)
	}

	return overall, nil
}

func checkRecord(e *models.Expense) error {
	if e.Amount.IsNegative() {
		return apperr.Integrity("expense %s has negative amount %s", e.ID, e.Amount)
	}
	if e.Category == "" {
		return apperr.Integrity("expense %s has no category", e.ID)
	}
	return nil
}

// verifySheet checks sum(categories) == total and that no category is
// empty or negative.
func verifySheet(sheet *models.BalanceSheet) error {
	sum := decimal.Zero
	for category, amount := range sheet.Categories {
		if category == "" {
			return apperr.Integrity("balance sheet for %s has an empty category", sheet.OwnerID)
		}
		if amount.IsNegative() {
			return apperr.Integrity("balance sheet for %s has negative total %s in %q", sheet.OwnerID, amount, category)
		}
		sum = sum.Add(amount)
	}
	if !sum.Equal(sheet.TotalSpent) {
		return apperr.Integrity("balance sheet for %s: categories sum to %s but total is %s", sheet.OwnerID, sum, sheet.TotalSpent)
	}
	return nil
}
