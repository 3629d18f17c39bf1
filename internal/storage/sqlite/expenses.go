package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

const expenseColumns = "id, owner_id, amount, category, description, date, created_at, updated_at"

// CreateExpense inserts a new expense. The owner must exist.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = expense.CreatedAt
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.OwnerID, expense.Amount.String(), expense.Category,
		expense.Description, expense.Date.String(), expense.CreatedAt, expense.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// UpdateExpense rewrites amount, category, description and date.
// Owner and creation time never change.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID string
	var createdAt int64
	err = tx.QueryRowContext(ctx,
		"SELECT owner_id, created_at FROM expenses WHERE id = ?", expense.ID,
	).Scan(&ownerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load expense: %w", err)
	}

	expense.OwnerID = ownerID
	expense.CreatedAt = createdAt
	expense.UpdatedAt = time.Now().Unix()

	_, err = tx.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, category = ?, description = ?, date = ?, updated_at = ? WHERE id = ?",
		expense.Amount.String(), expense.Category, expense.Description, expense.Date.String(),
		expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense by ID.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireAffected(res)
}

// ListExpenses returns the expenses matching filter, newest first.
func (s *SQLiteStore) ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	return queryExpenses(ctx, s.db, filter)
}

// Snapshot reads users and expenses inside one transaction so that a
// concurrent write cannot land between the two reads.
func (s *SQLiteStore) Snapshot(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &storage.Snapshot{}

	userQuery := "SELECT " + userColumns + " FROM users ORDER BY username"
	var args []any
	if q.OwnerID != "" {
		userQuery = "SELECT " + userColumns + " FROM users WHERE id = ?"
		args = append(args, q.OwnerID)
	}
	rows, err := tx.QueryContext(ctx, userQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		snap.Users = append(snap.Users, *user)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	if q.OwnerID != "" && len(snap.Users) == 0 {
		return snap, nil
	}

	snap.Expenses, err = queryExpenses(ctx, tx, models.ExpenseFilter{OwnerID: q.OwnerID, Period: q.Period})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryExpenses(ctx context.Context, q querier, filter models.ExpenseFilter) ([]models.Expense, error) {
	var conds []string
	var args []any
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, models.NormalizeCategory(filter.Category))
	}
	if !filter.Period.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.Period.From.String())
	}
	if !filter.Period.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, filter.Period.To.String())
	}

	query := "SELECT " + expenseColumns + " FROM expenses"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC, id DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// scanExpense decodes one row. A stored amount or date that no longer parses
// is reported as a data integrity error rather than silently zeroed.
func scanExpense(sc scanner) (*models.Expense, error) {
	var (
		expense      models.Expense
		amount, date string
	)
	err := sc.Scan(&expense.ID, &expense.OwnerID, &amount, &expense.Category,
		&expense.Description, &date, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return nil, err
	}

	expense.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, apperr.Integrity("expense %s has unreadable amount %q", expense.ID, amount)
	}
	expense.Date, err = models.ParseDate(date)
	if err != nil {
		return nil, apperr.Integrity("expense %s has unreadable date %q", expense.ID, date)
	}
	return &expense, nil
}
