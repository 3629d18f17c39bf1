// Package audit periodically recomputes the overall balance sheet so that
// inconsistent stored data is noticed before a user asks for a report.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/models"
)

// Reporter produces the overall balance sheet.
type Reporter interface {
	OverallBalanceSheet(ctx context.Context, period models.Period) (models.OverallBalanceSheet, error)
}

// Result summarizes one audit run.
type Result struct {
	Users    int
	Expenses int
	Total    string
}

// Auditor runs the integrity audit on a cron schedule.
type Auditor struct {
	reports Reporter
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
	cron    *cron.Cron
	now     func() time.Time
}

// New creates an Auditor. m may be nil.
func New(reports Reporter, m *metrics.Metrics, logger *slog.Logger) *Auditor {
	cl := cronLogger{logger: logger}
	return &Auditor{
		reports: reports,
		metrics: m,
		logger:  logger,
		timeout: 5 * time.Minute,
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		now: time.Now,
	}
}

// Run audits every user's expenses over all time. A DataIntegrityError is
// returned unchanged so callers can tell it apart from storage failures.
func (a *Auditor) Run(ctx context.Context) (Result, error) {
	overall, err := a.reports.OverallBalanceSheet(ctx, models.Period{})
	if err != nil {
		return Result{}, err
	}

	res := Result{Users: len(overall.BalanceSheets), Total: overall.TotalSpent.String()}
	for _, sheet := range overall.BalanceSheets {
		res.Expenses += sheet.ExpenseCount
	}

	if a.metrics != nil {
		a.metrics.AuditUsers.Set(float64(res.Users))
		a.metrics.AuditExpenses.Set(float64(res.Expenses))
		a.metrics.AuditLastSuccess.Set(float64(a.now().Unix()))
	}
	return res, nil
}

// Schedule registers the audit under spec, a standard five-field cron
// expression or a descriptor such as "@daily".
func (a *Auditor) Schedule(spec string) error {
	_, err := a.cron.AddFunc(spec, a.runScheduled)
	if err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins running scheduled audits in the background.
func (a *Auditor) Start() {
	a.cron.Start()
}

// Stop halts the scheduler and waits for a running audit to finish or ctx
// to end.
func (a *Auditor) Stop(ctx context.Context) error {
	select {
	case <-a.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Auditor) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := a.now()
	res, err := a.Run(ctx)
	switch {
	case apperr.IsDataIntegrity(err):
		a.logger.Error("Audit found inconsistent expense data", "error", err)
	case err != nil:
		a.logger.Warn("Audit failed", "error", err)
	default:
		a.logger.Info("Audit completed",
			"users", res.Users,
			"expenses", res.Expenses,
			"total_spent", res.Total,
			"duration", time.Since(start),
		)
	}
}

// cronLogger routes the scheduler's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
