package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/models"
)

// MonthlyHistory is how many calendar months, including the current one,
// the dashboard's monthly series covers.
const MonthlyHistory = 6

// windowBounds pairs a dashboard window with its prior equivalent window.
type windowBounds struct {
	window   models.Window
	current  models.Period
	previous models.Period
}

// dashboardWindows returns the day, week and month windows ending at asOf.
// A prior window starts one day/week/month earlier and spans the same
// number of elapsed days, clamped to the end of its month.
func dashboardWindows(asOf models.Date) []windowBounds {
	yesterday := asOf.AddDays(-1)

	weekStart := asOf.StartOfWeek()
	weekElapsed := (int(asOf.Weekday()) + 6) % 7
	prevWeekStart := weekStart.AddDays(-7)

	monthStart := asOf.StartOfMonth()
	prevMonthStart := monthsBefore(asOf, 1)
	prevMonthEnd := prevMonthStart.AddDays(asOf.Day() - 1)
	if last := prevMonthStart.EndOfMonth(); prevMonthEnd.After(last) {
		prevMonthEnd = last
	}

	return []windowBounds{
		{
			window:   models.WindowDay,
			current:  models.Period{From: asOf, To: asOf},
			previous: models.Period{From: yesterday, To: yesterday},
		},
		{
			window:   models.WindowWeek,
			current:  models.Period{From: weekStart, To: asOf},
			previous: models.Period{From: prevWeekStart, To: prevWeekStart.AddDays(weekElapsed)},
		},
		{
			window:   models.WindowMonth,
			current:  models.Period{From: monthStart, To: asOf},
			previous: models.Period{From: prevMonthStart, To: prevMonthEnd},
		},
	}
}

// monthsBefore returns the first day of the month n months before d's month.
func monthsBefore(d models.Date, n int) models.Date {
	return models.NewDate(d.Year(), d.Month()-time.Month(n), 1)
}

// DashboardRange returns the dates ComputeDashboard reads, so callers can
// fetch them in a single query.
func DashboardRange(asOf models.Date) models.Period {
	from := monthsBefore(asOf, MonthlyHistory-1)
	for _, w := range dashboardWindows(asOf) {
		if w.previous.From.Before(from) {
			from = w.previous.From
		}
	}
	return models.Period{From: from, To: asOf}
}

// ComputeDashboard builds the rolling totals, category trends and monthly
// series for one owner as of a given day. Every window is computed with
// ComputeBalanceSheet, so the same integrity checks apply.
func ComputeDashboard(ownerID string, asOf models.Date, expenses []models.Expense) (models.DashboardSummary, error) {
	summary := models.DashboardSummary{
		OwnerID:       ownerID,
		AsOf:          asOf,
		TrendByPeriod: make(map[models.Window][]models.CategoryTrend, len(models.Windows)),
	}

	for _, w := range dashboardWindows(asOf) {
		current, err := ComputeBalanceSheet(ownerID, w.current, expenses)
		if err != nil {
			return models.DashboardSummary{}, err
		}
		previous, err := ComputeBalanceSheet(ownerID, w.previous, expenses)
		if err != nil {
			return models.DashboardSummary{}, err
		}

		summary.RecentTotals = append(summary.RecentTotals, models.WindowTotal{
			Window:        w.window,
			Current:       w.current,
			Previous:      w.previous,
			Total:         current.TotalSpent,
			PreviousTotal: previous.TotalSpent,
			Delta:         current.TotalSpent.Sub(previous.TotalSpent),
		})
		summary.TrendByPeriod[w.window] = categoryTrends(current, previous)
	}

	for i := MonthlyHistory - 1; i >= 0; i-- {
		start := monthsBefore(asOf, i)
		end := start.EndOfMonth()
		if end.After(asOf) {
			end = asOf
		}
		sheet, err := ComputeBalanceSheet(ownerID, models.Period{From: start, To: end}, expenses)
		if err != nil {
			return models.DashboardSummary{}, err
		}
		summary.Monthly = append(summary.Monthly, models.MonthTotal{
			Year:  start.Year(),
			Month: int(start.Month()),
			Total: sheet.TotalSpent,
		})
	}

	return summary, nil
}

// categoryTrends lists every category present in either sheet, sorted by name.
func categoryTrends(current, previous models.BalanceSheet) []models.CategoryTrend {
	names := make(map[string]struct{}, len(current.Categories)+len(previous.Categories))
	for c := range current.Categories {
		names[c] = struct{}{}
	}
	for c := range previous.Categories {
		names[c] = struct{}{}
	}

	trends := make([]models.CategoryTrend, 0, len(names))
	for c := range names {
		cur := amountOrZero(current.Categories, c)
		prev := amountOrZero(previous.Categories, c)
		trends = append(trends, models.CategoryTrend{
			Category: c,
			Current:  cur,
			Previous: prev,
			Delta:    cur.Sub(prev),
		})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Category < trends[j].Category })
	return trends
}

func amountOrZero(m map[string]decimal.Decimal, key string) decimal.Decimal {
	if v, ok := m[key]; ok {
		return v
	}
	return decimal.Zero
}
