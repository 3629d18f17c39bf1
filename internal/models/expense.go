package models

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
)

const (
	maxCategoryLen    = 64
	maxDescriptionLen = 200
)

// Expense is a single dated monetary transaction owned by exactly one user.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// OwnerID is the ID of the user the expense belongs to.
	OwnerID string

	// Amount is the money spent. Never negative.
	Amount decimal.Decimal

	// Category groups expenses in balance sheets. Stored trimmed and lower-cased.
	Category string

	// Description is an optional free-text note.
	Description string

	// Date is the calendar day the money was spent.
	Date Date

	// CreatedAt is the Unix timestamp when the record was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last explicit update.
	UpdatedAt int64
}

// NormalizeCategory trims and lower-cases a category name.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Normalize canonicalizes the category and trims the description in place.
func (e *Expense) Normalize() {
	e.Category = NormalizeCategory(e.Category)
	e.Description = strings.TrimSpace(e.Description)
}

// Validate rejects malformed records. Stores call it before every write.
func (e *Expense) Validate() error {
	if e.OwnerID == "" {
		return apperr.Invalid("owner_id", "is required")
	}
	if e.Amount.IsNegative() {
		return apperr.Invalid("amount", "must not be negative")
	}
	if e.Category == "" {
		return apperr.Invalid("category", "is required")
	}
	if len(e.Category) > maxCategoryLen {
		return apperr.Invalid("category", "must be at most %d characters", maxCategoryLen)
	}
	if len(e.Description) > maxDescriptionLen {
		return apperr.Invalid("description", "must be at most %d characters", maxDescriptionLen)
	}
	if e.Date.IsZero() {
		return apperr.Invalid("date", "is required")
	}
	return nil
}

// ExpenseFilter selects expenses for listing. Zero fields do not filter.
type ExpenseFilter struct {
	OwnerID  string
	Period   Period
	Category string
}

// Matches reports whether e passes the filter.
func (f ExpenseFilter) Matches(e *Expense) bool {
	if f.OwnerID != "" && e.OwnerID != f.OwnerID {
		return false
	}
	if f.Category != "" && e.Category != NormalizeCategory(f.Category) {
		return false
	}
	return f.Period.Contains(e.Date)
}
