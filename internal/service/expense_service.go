package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/events"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

// ExpenseInput carries the caller-supplied fields of an expense.
// A zero Date means "today".
type ExpenseInput struct {
	Amount      decimal.Decimal
	Category    string
	Description string
	Date        models.Date
}

// ExpenseService manages a user's own expense records.
type ExpenseService struct {
	store     storage.Store
	publisher events.Publisher
	logger    *slog.Logger
	loc       *time.Location
	places    int32
	now       func() time.Time
}

// NewExpenseService creates an ExpenseService. A nil publisher disables events;
// loc decides which calendar day "today" is. Amounts may carry at most places
// decimal digits, so per-category totals and the overall total render
// consistently at that precision.
func NewExpenseService(store storage.Store, publisher events.Publisher, loc *time.Location, places int32, logger *slog.Logger) *ExpenseService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		loc:       loc,
		places:    places,
		now:       time.Now,
	}
}

func (s *ExpenseService) apply(e *models.Expense, in ExpenseInput) error {
	if !in.Amount.Equal(in.Amount.Truncate(s.places)) {
		return apperr.Invalid("amount", "must have at most %d decimal places", s.places)
	}
	e.Amount = in.Amount
	e.Category = in.Category
	e.Description = in.Description
	e.Date = in.Date
	if e.Date.IsZero() {
		e.Date = models.DateOf(s.now().In(s.loc))
	}
	return nil
}

// Create records a new expense for ownerID.
func (s *ExpenseService) Create(ctx context.Context, ownerID string, in ExpenseInput) (*models.Expense, error) {
	e := &models.Expense{OwnerID: ownerID}
	if err := s.apply(e, in); err != nil {
		return nil, err
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return nil, notFound(err, "user", ownerID)
	}

	s.logger.Info("Expense created", "expense_id", e.ID, "user_id", ownerID, "category", e.Category)
	s.publish(ctx, events.ExpenseCreated, e)
	return e, nil
}

// Get returns one of ownerID's expenses. Expenses of other users are
// reported as not found.
func (s *ExpenseService) Get(ctx context.Context, ownerID, id string) (*models.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, notFound(err, "expense", id)
	}
	if e.OwnerID != ownerID {
		return nil, apperr.NotFound("expense", id)
	}
	return e, nil
}

// Update replaces the fields of one of ownerID's expenses.
func (s *ExpenseService) Update(ctx context.Context, ownerID, id string, in ExpenseInput) (*models.Expense, error) {
	e, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(e, in); err != nil {
		return nil, err
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return nil, notFound(err, "expense", id)
	}

	s.logger.Info("Expense updated", "expense_id", id, "user_id", ownerID)
	s.publish(ctx, events.ExpenseUpdated, e)
	return e, nil
}

// Delete removes one of ownerID's expenses.
func (s *ExpenseService) Delete(ctx context.Context, ownerID, id string) error {
	e, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return notFound(err, "expense", id)
	}

	s.logger.Info("Expense deleted", "expense_id", id, "user_id", ownerID)
	s.publish(ctx, events.ExpenseDeleted, e)
	return nil
}

// List returns ownerID's expenses matching filter, newest first.
func (s *ExpenseService) List(ctx context.Context, ownerID string, filter models.ExpenseFilter) ([]models.Expense, error) {
	filter.OwnerID = ownerID
	return s.ListAll(ctx, filter)
}

// ListAll returns every user's expenses matching filter, newest first.
func (s *ExpenseService) ListAll(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	if err := filter.Period.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, filter)
}

// publish sends an event; a broker failure is logged and does not fail the caller.
func (s *ExpenseService) publish(ctx context.Context, t events.Type, e *models.Expense) {
	if err := s.publisher.Publish(ctx, events.NewEvent(t, e, s.now())); err != nil {
		s.logger.Warn("Failed to publish expense event", "type", t, "expense_id", e.ID, "error", err)
	}
}
