package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
	"github.com/mmynk/dailyexpenses/internal/storage/memory"
)

func setupReportService(t *testing.T) (*ReportService, *snapshotStore, *metrics.Metrics) {
	t.Helper()
	store := &snapshotStore{Store: memory.New()}
	m := metrics.New()
	svc := NewReportService(store, nil, m)
	svc.now = fixedClock(2025, 3, 13)
	return svc, store, m
}

func addExpense(t *testing.T, store storage.Store, ownerID, amount, category, date string) {
	t.Helper()
	e := &models.Expense{OwnerID: ownerID, Amount: dec(amount), Category: category, Date: models.MustParseDate(date)}
	if err := store.CreateExpense(context.Background(), e); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
}

func TestReportServiceBalanceSheet(t *testing.T) {
	svc, store, _ := setupReportService(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")
	addExpense(t, store, alice.ID, "12.50", "food", "2025-03-01")
	addExpense(t, store, alice.ID, "7.25", "food", "2025-03-02")
	addExpense(t, store, alice.ID, "5.00", "transport", "2025-03-03")

	sheet, err := svc.BalanceSheet(ctx, alice.ID, models.Period{})
	if err != nil {
		t.Fatalf("BalanceSheet failed: %v", err)
	}
	if !sheet.TotalSpent.Equal(dec("24.75")) {
		t.Errorf("Expected total 24.75, got %s", sheet.TotalSpent)
	}
	if !sheet.Categories["food"].Equal(dec("19.75")) || !sheet.Categories["transport"].Equal(dec("5")) {
		t.Errorf("Unexpected categories: %v", sheet.Categories)
	}
	if store.calls != 1 {
		t.Errorf("Expected exactly one snapshot read, got %d", store.calls)
	}

	again, err := svc.BalanceSheet(ctx, alice.ID, models.Period{})
	if err != nil {
		t.Fatalf("BalanceSheet failed: %v", err)
	}
	if !again.TotalSpent.Equal(sheet.TotalSpent) || len(again.Categories) != len(sheet.Categories) {
		t.Errorf("Recomputation differs: %+v vs %+v", again, sheet)
	}
}

func TestReportServiceBalanceSheetErrors(t *testing.T) {
	svc, store, _ := setupReportService(t)
	ctx := context.Background()
	bob := createUser(t, store, "bob")

	sheet, err := svc.BalanceSheet(ctx, bob.ID, models.Period{})
	if err != nil {
		t.Fatalf("BalanceSheet failed: %v", err)
	}
	if !sheet.TotalSpent.IsZero() || len(sheet.Categories) != 0 {
		t.Errorf("Expected zero sheet, got %+v", sheet)
	}

	if _, err := svc.BalanceSheet(ctx, "ghost", models.Period{}); !apperr.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}

	inverted := models.Period{From: models.MustParseDate("2025-02-01"), To: models.MustParseDate("2025-01-01")}
	if _, err := svc.BalanceSheet(ctx, bob.ID, inverted); !apperr.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}

	storeErr := errors.New("disk on fire")
	store.snapshot = func(context.Context, storage.SnapshotQuery) (*storage.Snapshot, error) {
		return nil, storeErr
	}
	if _, err := svc.BalanceSheet(ctx, bob.ID, models.Period{}); !errors.Is(err, storeErr) {
		t.Errorf("Expected store error to propagate, got %v", err)
	}
}

func TestReportServiceOverallBalanceSheet(t *testing.T) {
	svc, store, _ := setupReportService(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")
	bob := createUser(t, store, "bob")
	carol := createUser(t, store, "carol")
	addExpense(t, store, alice.ID, "10", "food", "2025-03-01")
	addExpense(t, store, bob.ID, "2.5", "rent", "2025-03-01")
	addExpense(t, store, bob.ID, "99", "rent", "2025-01-01")

	march := models.MonthPeriod(models.MustParseDate("2025-03-01"))
	overall, err := svc.OverallBalanceSheet(ctx, march)
	if err != nil {
		t.Fatalf("OverallBalanceSheet failed: %v", err)
	}
	if len(overall.BalanceSheets) != 3 {
		t.Fatalf("Expected 3 sheets, got %d", len(overall.BalanceSheets))
	}
	if !overall.TotalSpent.Equal(dec("12.5")) {
		t.Errorf("Expected total 12.5, got %s", overall.TotalSpent)
	}

	for _, u := range []*models.User{alice, bob, carol} {
		single, err := svc.BalanceSheet(ctx, u.ID, march)
		if err != nil {
			t.Fatalf("BalanceSheet(%s) failed: %v", u.Username, err)
		}
		got := overall.BalanceSheets[u.ID]
		if !got.TotalSpent.Equal(single.TotalSpent) {
			t.Errorf("%s: overall %s != individual %s", u.Username, got.TotalSpent, single.TotalSpent)
		}
		for cat, amt := range single.Categories {
			if !got.Categories[cat].Equal(amt) {
				t.Errorf("%s/%s: overall %s != individual %s", u.Username, cat, got.Categories[cat], amt)
			}
		}
	}
}

func TestReportServiceIntegrityErrors(t *testing.T) {
	svc, store, m := setupReportService(t)
	ctx := context.Background()

	store.snapshot = func(context.Context, storage.SnapshotQuery) (*storage.Snapshot, error) {
		return &storage.Snapshot{
			Users: []models.User{{ID: "u1", Username: "alice"}},
			Expenses: []models.Expense{
				{ID: "e1", OwnerID: "u2", Amount: decimal.NewFromInt(1), Category: "food", Date: models.MustParseDate("2025-03-01")},
			},
		}, nil
	}

	if _, err := svc.OverallBalanceSheet(ctx, models.Period{}); !apperr.IsDataIntegrity(err) {
		t.Errorf("Expected data integrity error, got %v", err)
	}
	if _, err := svc.BalanceSheet(ctx, "u1", models.Period{}); !apperr.IsDataIntegrity(err) {
		t.Errorf("Expected data integrity error, got %v", err)
	}

	if got := testutil.ToFloat64(m.IntegrityErrors.WithLabelValues(reportOverallBalanceSheet)); got != 1 {
		t.Errorf("Expected one overall integrity error recorded, got %v", got)
	}
}

func TestReportServiceDashboard(t *testing.T) {
	svc, store, _ := setupReportService(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")
	addExpense(t, store, alice.ID, "10", "food", "2025-03-13")
	addExpense(t, store, alice.ID, "4", "food", "2025-03-12")
	addExpense(t, store, alice.ID, "20", "rent", "2025-02-10")
	addExpense(t, store, alice.ID, "500", "rent", "2024-01-01")

	summary, err := svc.Dashboard(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if summary.AsOf.String() != "2025-03-13" {
		t.Errorf("Expected as-of 2025-03-13, got %s", summary.AsOf)
	}
	if len(summary.RecentTotals) != 3 {
		t.Fatalf("Expected 3 windows, got %d", len(summary.RecentTotals))
	}
	month := summary.RecentTotals[2]
	if month.Window != models.WindowMonth || !month.Total.Equal(dec("14")) || !month.PreviousTotal.Equal(dec("20")) {
		t.Errorf("Unexpected month window: %+v", month)
	}
	if !month.Delta.Equal(dec("-6")) {
		t.Errorf("Expected delta -6, got %s", month.Delta)
	}
	if len(summary.Monthly) != 6 {
		t.Errorf("Expected 6 months of history, got %d", len(summary.Monthly))
	}

	if _, err := svc.Dashboard(ctx, "ghost"); !apperr.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}
