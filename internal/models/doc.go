// Package models defines the core domain models for the expense tracker.
//
// # Stored Models
//
//   - User: a registered account that owns expenses
//   - Expense: a single dated monetary transaction attributed to one user
//
// # Derived Models
//
// Derived models are recomputed on demand from stored expenses and never
// persisted:
//   - BalanceSheet: totals overall and per category for one owner and period
//   - OverallBalanceSheet: one BalanceSheet per user
//   - DashboardSummary: time-windowed rollups with trends against the prior period
//
// # Conventions
//
//  1. Money is always decimal.Decimal; never float64.
//  2. Dates are calendar dates (Date) without a time zone.
//  3. Relationships use ID strings, not pointers.
//  4. Timestamps are Unix seconds.
package models
