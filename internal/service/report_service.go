package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/calculator"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

const (
	reportBalanceSheet        = "balance_sheet"
	reportOverallBalanceSheet = "overall_balance_sheet"
	reportDashboard           = "dashboard"
)

// ReportService reads a consistent snapshot from the store and hands it to
// the calculator. Each report issues exactly one Snapshot call.
type ReportService struct {
	store   storage.Store
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
}

// NewReportService creates a ReportService. m may be nil.
func NewReportService(store storage.Store, loc *time.Location, m *metrics.Metrics) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		store:   store,
		metrics: m,
		loc:     loc,
		now:     time.Now,
	}
}

// Today returns the current calendar date in the service's time zone.
func (s *ReportService) Today() models.Date {
	return models.DateOf(s.now().In(s.loc))
}

// BalanceSheet aggregates ownerID's expenses over period.
func (s *ReportService) BalanceSheet(ctx context.Context, ownerID string, period models.Period) (models.BalanceSheet, error) {
	defer s.metrics.ObserveAggregation(reportBalanceSheet, time.Now())

	if err := period.Validate(); err != nil {
		return models.BalanceSheet{}, err
	}

	snap, err := s.store.Snapshot(ctx, storage.SnapshotQuery{OwnerID: ownerID, Period: period})
	if err != nil {
		return models.BalanceSheet{}, s.fail(reportBalanceSheet, fmt.Errorf("failed to read expenses: %w", err))
	}
	if len(snap.Users) == 0 {
		return models.BalanceSheet{}, apperr.NotFound("user", ownerID)
	}

	sheet, err := calculator.ComputeBalanceSheet(ownerID, period, snap.Expenses)
	if err != nil {
		return models.BalanceSheet{}, s.fail(reportBalanceSheet, err)
	}
	return sheet, nil
}

// OverallBalanceSheet aggregates every user's expenses over period.
func (s *ReportService) OverallBalanceSheet(ctx context.Context, period models.Period) (models.OverallBalanceSheet, error) {
	defer s.metrics.ObserveAggregation(reportOverallBalanceSheet, time.Now())

	if err := period.Validate(); err != nil {
		return models.OverallBalanceSheet{}, err
	}

	snap, err := s.store.Snapshot(ctx, storage.SnapshotQuery{Period: period})
	if err != nil {
		return models.OverallBalanceSheet{}, s.fail(reportOverallBalanceSheet, fmt.Errorf("failed to read expenses: %w", err))
	}

	overall, err := calculator.ComputeOverallBalanceSheet(snap.Users, period, snap.Expenses)
	if err != nil {
		return models.OverallBalanceSheet{}, s.fail(reportOverallBalanceSheet, err)
	}
	return overall, nil
}

// Dashboard summarizes ownerID's recent spending as of today.
func (s *ReportService) Dashboard(ctx context.Context, ownerID string) (models.DashboardSummary, error) {
	defer s.metrics.ObserveAggregation(reportDashboard, time.Now())

	asOf := s.Today()
	snap, err := s.store.Snapshot(ctx, storage.SnapshotQuery{
		OwnerID: ownerID,
		Period:  calculator.DashboardRange(asOf),
	})
	if err != nil {
		return models.DashboardSummary{}, s.fail(reportDashboard, fmt.Errorf("failed to read expenses: %w", err))
	}
	if len(snap.Users) == 0 {
		return models.DashboardSummary{}, apperr.NotFound("user", ownerID)
	}

	summary, err := calculator.ComputeDashboard(ownerID, asOf, snap.Expenses)
	if err != nil {
		return models.DashboardSummary{}, s.fail(reportDashboard, err)
	}
	return summary, nil
}

// fail counts integrity errors by report before returning err unchanged.
// Logging is left to the caller: the HTTP layer and the audit job each log
// the errors they receive.
func (s *ReportService) fail(report string, err error) error {
	if apperr.IsDataIntegrity(err) {
		s.metrics.IntegrityError(report)
	}
	return err
}
