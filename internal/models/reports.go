package models

import "github.com/shopspring/decimal"

// BalanceSheet aggregates one owner's expenses over a period.
// The values in Categories always sum to TotalSpent.
type BalanceSheet struct {
	OwnerID      string
	Period       Period
	TotalSpent   decimal.Decimal
	Categories   map[string]decimal.Decimal
	ExpenseCount int
}

// NewBalanceSheet returns a zero-valued sheet for owner and period.
func NewBalanceSheet(ownerID string, period Period) BalanceSheet {
	return BalanceSheet{
		OwnerID:    ownerID,
		Period:     period,
		TotalSpent: decimal.Zero,
		Categories: make(map[string]decimal.Decimal),
	}
}

// OverallBalanceSheet holds one BalanceSheet per user.
type OverallBalanceSheet struct {
	Period        Period
	TotalSpent    decimal.Decimal
	BalanceSheets map[string]BalanceSheet
}

// Window names the rolling periods a dashboard reports on.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Windows lists the dashboard windows in display order.
var Windows = []Window{WindowDay, WindowWeek, WindowMonth}

// WindowTotal compares spending in a window with the prior equivalent window.
type WindowTotal struct {
	Window        Window
	Current       Period
	Previous      Period
	Total         decimal.Decimal
	PreviousTotal decimal.Decimal
	Delta         decimal.Decimal
}

// CategoryTrend compares one category across a window and its prior window.
type CategoryTrend struct {
	Category string
	Current  decimal.Decimal
	Previous decimal.Decimal
	Delta    decimal.Decimal
}

// MonthTotal is the spending of one calendar month.
type MonthTotal struct {
	Year  int
	Month int
	Total decimal.Decimal
}

// DashboardSummary is a time-windowed rollup of one owner's spending.
type DashboardSummary struct {
	OwnerID       string
	AsOf          Date
	RecentTotals  []WindowTotal
	TrendByPeriod map[Window][]CategoryTrend
	Monthly       []MonthTotal
}
