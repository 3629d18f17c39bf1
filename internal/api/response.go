package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/models"
)

// money renders amounts as fixed-point strings. Rounding happens here and
// nowhere else; aggregation runs at full precision.
type money int32

func (places money) format(d decimal.Decimal) string {
	return d.StringFixed(int32(places))
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: unixString(u.CreatedAt),
	}
}

type registerResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}

type loginResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
}

type expenseResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func (m money) expense(e *models.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Amount:      m.format(e.Amount),
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date.String(),
		CreatedAt:   unixString(e.CreatedAt),
		UpdatedAt:   unixString(e.UpdatedAt),
	}
}

type expenseListResponse struct {
	Expenses []expenseResponse `json:"expenses"`
	Count    int               `json:"count"`
	Total    string            `json:"total"`
}

func (m money) expenseList(expenses []models.Expense) expenseListResponse {
	resp := expenseListResponse{Expenses: make([]expenseResponse, 0, len(expenses)), Count: len(expenses)}
	total := decimal.Zero
	for i := range expenses {
		resp.Expenses = append(resp.Expenses, m.expense(&expenses[i]))
		total = total.Add(expenses[i].Amount)
	}
	resp.Total = m.format(total)
	return resp
}

type balanceSheetResponse struct {
	OwnerID      string            `json:"owner_id"`
	Period       models.Period     `json:"period"`
	TotalSpent   string            `json:"total_spent"`
	Categories   map[string]string `json:"categories"`
	ExpenseCount int               `json:"expense_count"`
}

func (m money) balanceSheet(s models.BalanceSheet) balanceSheetResponse {
	cats := make(map[string]string, len(s.Categories))
	for c, amt := range s.Categories {
		cats[c] = m.format(amt)
	}
	return balanceSheetResponse{
		OwnerID:      s.OwnerID,
		Period:       s.Period,
		TotalSpent:   m.format(s.TotalSpent),
		Categories:   cats,
		ExpenseCount: s.ExpenseCount,
	}
}

type overallBalanceSheetResponse struct {
	Period        models.Period                   `json:"period"`
	TotalSpent    string                          `json:"total_spent"`
	BalanceSheets map[string]balanceSheetResponse `json:"balance_sheets"`
}

func (m money) overall(o models.OverallBalanceSheet) overallBalanceSheetResponse {
	sheets := make(map[string]balanceSheetResponse, len(o.BalanceSheets))
	for id, s := range o.BalanceSheets {
		sheets[id] = m.balanceSheet(s)
	}
	return overallBalanceSheetResponse{
		Period:        o.Period,
		TotalSpent:    m.format(o.TotalSpent),
		BalanceSheets: sheets,
	}
}

type windowTotalResponse struct {
	Window        models.Window `json:"window"`
	Current       models.Period `json:"current"`
	Previous      models.Period `json:"previous"`
	Total         string        `json:"total"`
	PreviousTotal string        `json:"previous_total"`
	Delta         string        `json:"delta"`
}

type categoryTrendResponse struct {
	Category string `json:"category"`
	Current  string `json:"current"`
	Previous string `json:"previous"`
	Delta    string `json:"delta"`
}

type monthTotalResponse struct {
	Month string `json:"month"`
	Total string `json:"total"`
}

type dashboardResponse struct {
	OwnerID       string                                    `json:"owner_id"`
	AsOf          models.Date                               `json:"as_of"`
	RecentTotals  []windowTotalResponse                     `json:"recent_totals"`
	TrendByPeriod map[models.Window][]categoryTrendResponse `json:"trend_by_period"`
	Monthly       []monthTotalResponse                      `json:"monthly"`
}

func (m money) dashboard(d models.DashboardSummary) dashboardResponse {
	resp := dashboardResponse{
		OwnerID:       d.OwnerID,
		AsOf:          d.AsOf,
		RecentTotals:  make([]windowTotalResponse, 0, len(d.RecentTotals)),
		TrendByPeriod: make(map[models.Window][]categoryTrendResponse, len(d.TrendByPeriod)),
		Monthly:       make([]monthTotalResponse, 0, len(d.Monthly)),
	}
	for _, w := range d.RecentTotals {
		resp.RecentTotals = append(resp.RecentTotals, windowTotalResponse{
			Window:        w.Window,
			Current:       w.Current,
			Previous:      w.Previous,
			Total:         m.format(w.Total),
			PreviousTotal: m.format(w.PreviousTotal),
			Delta:         m.format(w.Delta),
		})
	}
	for w, trends := range d.TrendByPeriod {
		out := make([]categoryTrendResponse, 0, len(trends))
		for _, t := range trends {
			out = append(out, categoryTrendResponse{
				Category: t.Category,
				Current:  m.format(t.Current),
				Previous: m.format(t.Previous),
				Delta:    m.format(t.Delta),
			})
		}
		resp.TrendByPeriod[w] = out
	}
	for _, mt := range d.Monthly {
		resp.Monthly = append(resp.Monthly, monthTotalResponse{
			Month: fmt.Sprintf("%04d-%02d", mt.Year, mt.Month),
			Total: m.format(mt.Total),
		})
	}
	return resp
}

func unixString(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
