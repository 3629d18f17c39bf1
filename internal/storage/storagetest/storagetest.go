// Package storagetest holds a conformance suite that every storage.Store
// backend runs from its own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

// Run exercises store against the storage.Store contract. newStore must
// return an empty store; it is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateUser assigns ID and normalizes", testCreateUser},
		{"CreateUser rejects duplicate username", testDuplicateUser},
		{"CreateUser rejects invalid user", testInvalidUser},
		{"GetUser reports missing users", testMissingUser},
		{"CreateExpense round trips exact amounts", testExpenseRoundTrip},
		{"CreateExpense validates input", testExpenseValidation},
		{"CreateExpense requires existing owner", testExpenseUnknownOwner},
		{"UpdateExpense keeps owner and creation time", testUpdateExpense},
		{"DeleteExpense removes record", testDeleteExpense},
		{"ListExpenses filters and orders newest first", testListExpenses},
		{"DeleteUser cascades to expenses", testDeleteUserCascade},
		{"Snapshot reads one owner", testSnapshotOwner},
		{"Snapshot reads all users including idle ones", testSnapshotAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s)
		})
	}
}

func mustUser(t *testing.T, s storage.Store, username string) *models.User {
	t.Helper()
	u := models.NewUser(username, "hash-"+username)
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return u
}

func mustExpense(t *testing.T, s storage.Store, ownerID, amount, category, date string) *models.Expense {
	t.Helper()
	e := &models.Expense{
		OwnerID:  ownerID,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Date:     models.MustParseDate(date),
	}
	if err := s.CreateExpense(context.Background(), e); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return e
}

func testCreateUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := &models.User{Username: "Alice", PasswordHash: "x"}
	u.Username = models.NormalizeUsername(u.Username)
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID == "" {
		t.Error("Expected user ID to be generated")
	}
	if u.CreatedAt == 0 {
		t.Error("Expected CreatedAt to be set")
	}

	byName, err := s.GetUserByUsername(ctx, "  ALICE ")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if byName.ID != u.ID {
		t.Errorf("Expected ID %s, got %s", u.ID, byName.ID)
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Username != "alice" || byID.PasswordHash != "x" {
		t.Errorf("Unexpected user: %+v", byID)
	}
}

func testDuplicateUser(t *testing.T, s storage.Store) {
	mustUser(t, s, "bob")
	err := s.CreateUser(context.Background(), models.NewUser("BOB", "other"))
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func testInvalidUser(t *testing.T, s storage.Store) {
	err := s.CreateUser(context.Background(), models.NewUser("ab", "hash"))
	if !apperr.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func testMissingUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetUserByID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUserByID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetUserByUsername: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteUser(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteUser: expected ErrNotFound, got %v", err)
	}
}

func testExpenseRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "carol")

	e := &models.Expense{
		OwnerID:     u.ID,
		Amount:      decimal.RequireFromString("123.456789"),
		Category:    "  Groceries ",
		Description: " weekly shop ",
		Date:        models.MustParseDate("2025-03-01"),
	}
	if err := s.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if e.ID == "" || e.CreatedAt == 0 || e.UpdatedAt == 0 {
		t.Errorf("Expected ID and timestamps to be set: %+v", e)
	}

	got, err := s.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("123.456789")) {
		t.Errorf("Expected amount 123.456789, got %s", got.Amount)
	}
	if got.Category != "groceries" {
		t.Errorf("Expected category groceries, got %q", got.Category)
	}
	if got.Description != "weekly shop" {
		t.Errorf("Expected trimmed description, got %q", got.Description)
	}
	if got.Date.String() != "2025-03-01" {
		t.Errorf("Expected date 2025-03-01, got %s", got.Date)
	}
	if got.OwnerID != u.ID {
		t.Errorf("Expected owner %s, got %s", u.ID, got.OwnerID)
	}

	if _, err := s.GetExpense(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testExpenseValidation(t *testing.T, s storage.Store) {
	u := mustUser(t, s, "dave")

	tests := []struct {
		name    string
		expense models.Expense
		field   string
	}{
		{
			name:    "negative amount",
			expense: models.Expense{OwnerID: u.ID, Amount: decimal.NewFromInt(-1), Category: "food", Date: models.MustParseDate("2025-01-01")},
			field:   "amount",
		},
		{
			name:    "blank category",
			expense: models.Expense{OwnerID: u.ID, Amount: decimal.NewFromInt(1), Category: "   ", Date: models.MustParseDate("2025-01-01")},
			field:   "category",
		},
		{
			name:    "missing date",
			expense: models.Expense{OwnerID: u.ID, Amount: decimal.NewFromInt(1), Category: "food"},
			field:   "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.expense
			err := s.CreateExpense(context.Background(), &e)
			var verr *apperr.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}
}

func testExpenseUnknownOwner(t *testing.T, s storage.Store) {
	e := &models.Expense{
		OwnerID:  "ghost",
		Amount:   decimal.NewFromInt(5),
		Category: "food",
		Date:     models.MustParseDate("2025-01-01"),
	}
	if err := s.CreateExpense(context.Background(), e); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testUpdateExpense(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "erin")
	other := mustUser(t, s, "frank")
	e := mustExpense(t, s, u.ID, "10.00", "food", "2025-02-01")

	update := &models.Expense{
		ID:       e.ID,
		OwnerID:  other.ID,
		Amount:   decimal.RequireFromString("12.50"),
		Category: "Dining",
		Date:     models.MustParseDate("2025-02-02"),
	}
	if err := s.UpdateExpense(ctx, update); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	got, err := s.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.OwnerID != u.ID {
		t.Errorf("Owner changed to %s", got.OwnerID)
	}
	if got.CreatedAt != e.CreatedAt {
		t.Errorf("CreatedAt changed from %d to %d", e.CreatedAt, got.CreatedAt)
	}
	if !got.Amount.Equal(decimal.RequireFromString("12.5")) || got.Category != "dining" || got.Date.String() != "2025-02-02" {
		t.Errorf("Update not applied: %+v", got)
	}

	missing := &models.Expense{ID: "missing", OwnerID: u.ID, Amount: decimal.NewFromInt(1), Category: "x", Date: e.Date}
	if err := s.UpdateExpense(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testDeleteExpense(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "gina")
	e := mustExpense(t, s, u.ID, "3", "food", "2025-01-05")

	if err := s.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteExpense(ctx, e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func testListExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "hank")
	other := mustUser(t, s, "ivy")

	jan := mustExpense(t, s, u.ID, "1", "food", "2025-01-15")
	feb := mustExpense(t, s, u.ID, "2", "transport", "2025-02-10")
	mar := mustExpense(t, s, u.ID, "3", "food", "2025-03-01")
	mustExpense(t, s, other.ID, "4", "food", "2025-02-11")

	tests := []struct {
		name   string
		filter models.ExpenseFilter
		want   []string
	}{
		{
			name:   "owner only",
			filter: models.ExpenseFilter{OwnerID: u.ID},
			want:   []string{mar.ID, feb.ID, jan.ID},
		},
		{
			name:   "category is case insensitive",
			filter: models.ExpenseFilter{OwnerID: u.ID, Category: "FOOD"},
			want:   []string{mar.ID, jan.ID},
		},
		{
			name: "inclusive period",
			filter: models.ExpenseFilter{OwnerID: u.ID, Period: models.Period{
				From: models.MustParseDate("2025-02-10"),
				To:   models.MustParseDate("2025-03-01"),
			}},
			want: []string{mar.ID, feb.ID},
		},
		{
			name:   "open ended period",
			filter: models.ExpenseFilter{OwnerID: u.ID, Period: models.Period{To: models.MustParseDate("2025-01-31")}},
			want:   []string{jan.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListExpenses(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListExpenses failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d expenses, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}

	all, err := s.ListExpenses(ctx, models.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("Expected 4 expenses across users, got %d", len(all))
	}
}

func testDeleteUserCascade(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "jack")
	keep := mustUser(t, s, "kate")
	e := mustExpense(t, s, u.ID, "9", "food", "2025-01-01")
	kept := mustExpense(t, s, keep.ID, "1", "food", "2025-01-01")

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := s.GetUserByID(ctx, u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected user to be gone, got %v", err)
	}
	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected expense to be gone, got %v", err)
	}
	if _, err := s.GetExpense(ctx, kept.ID); err != nil {
		t.Errorf("Other user's expense should survive: %v", err)
	}
}

func testSnapshotOwner(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "liam")
	other := mustUser(t, s, "mia")
	mustExpense(t, s, u.ID, "5", "food", "2025-03-01")
	mustExpense(t, s, u.ID, "7", "food", "2025-04-01")
	mustExpense(t, s, other.ID, "11", "food", "2025-03-02")

	snap, err := s.Snapshot(ctx, storage.SnapshotQuery{
		OwnerID: u.ID,
		Period:  models.MonthPeriod(models.MustParseDate("2025-03-15")),
	})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Users) != 1 || snap.Users[0].ID != u.ID {
		t.Fatalf("Expected only %s, got %+v", u.ID, snap.Users)
	}
	if len(snap.Expenses) != 1 || !snap.Expenses[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected the single March expense, got %+v", snap.Expenses)
	}

	missing, err := s.Snapshot(ctx, storage.SnapshotQuery{OwnerID: "ghost"})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(missing.Users) != 0 || len(missing.Expenses) != 0 {
		t.Errorf("Expected empty snapshot for unknown owner, got %+v", missing)
	}
}

func testSnapshotAll(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustUser(t, s, "nora")
	b := mustUser(t, s, "oscar")
	mustUser(t, s, "pat")
	mustExpense(t, s, a.ID, "1.10", "food", "2025-03-01")
	mustExpense(t, s, b.ID, "2.20", "rent", "2025-03-02")

	snap, err := s.Snapshot(ctx, storage.SnapshotQuery{})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap.Users) != 3 {
		t.Errorf("Expected 3 users, got %d", len(snap.Users))
	}
	if len(snap.Expenses) != 2 {
		t.Errorf("Expected 2 expenses, got %d", len(snap.Expenses))
	}
	total := decimal.Zero
	for _, e := range snap.Expenses {
		total = total.Add(e.Amount)
	}
	if !total.Equal(decimal.RequireFromString("3.30")) {
		t.Errorf("Expected total 3.30, got %s", total)
	}
}
