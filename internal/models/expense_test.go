package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
)

func validExpense() Expense {
	return Expense{
		OwnerID:  "u1",
		Amount:   decimal.RequireFromString("12.50"),
		Category: "food",
		Date:     MustParseDate("2025-01-01"),
	}
}

func TestExpenseValidate(t *testing.T) {
	good := validExpense()
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zero := validExpense()
	zero.Amount = decimal.Zero
	if err := zero.Validate(); err != nil {
		t.Errorf("zero amount should be allowed, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e *Expense)
		field  string
	}{
		{"missing owner", func(e *Expense) { e.OwnerID = "" }, "owner_id"},
		{"negative amount", func(e *Expense) { e.Amount = decimal.RequireFromString("-0.01") }, "amount"},
		{"missing category", func(e *Expense) { e.Category = "" }, "category"},
		{"long category", func(e *Expense) { e.Category = strings.Repeat("c", 65) }, "category"},
		{"long description", func(e *Expense) { e.Description = strings.Repeat("d", 201) }, "description"},
		{"missing date", func(e *Expense) { e.Date = Date{} }, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validExpense()
			tt.mutate(&e)
			err := e.Validate()
			if !apperr.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr := err.(*apperr.ValidationError); verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestExpenseNormalize(t *testing.T) {
	e := Expense{Category: "  Food ", Description: "  lunch  "}
	e.Normalize()
	if e.Category != "food" {
		t.Errorf("Category = %q, want food", e.Category)
	}
	if e.Description != "lunch" {
		t.Errorf("Description = %q, want lunch", e.Description)
	}
}

func TestExpenseFilterMatches(t *testing.T) {
	e := validExpense()

	tests := []struct {
		name   string
		filter ExpenseFilter
		want   bool
	}{
		{"empty filter", ExpenseFilter{}, true},
		{"owner match", ExpenseFilter{OwnerID: "u1"}, true},
		{"owner mismatch", ExpenseFilter{OwnerID: "u2"}, false},
		{"category case-insensitive", ExpenseFilter{Category: "FOOD"}, true},
		{"category mismatch", ExpenseFilter{Category: "rent"}, false},
		{"period match", ExpenseFilter{Period: MonthPeriod(e.Date)}, true},
		{"period mismatch", ExpenseFilter{Period: Period{From: MustParseDate("2025-02-01")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(&e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserValidate(t *testing.T) {
	u := NewUser("  Alice ", "hash")
	if u.Username != "alice" {
		t.Errorf("Username = %q, want alice", u.Username)
	}
	if u.ID == "" || u.CreatedAt == 0 {
		t.Error("expected generated ID and CreatedAt")
	}
	if err := u.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for _, name := range []string{"ab", strings.Repeat("x", 65), "bob smith"} {
		bad := &User{Username: name, PasswordHash: "hash"}
		if err := bad.Validate(); !apperr.IsValidation(err) {
			t.Errorf("Validate(%q) = %v, want validation error", name, err)
		}
	}
}
