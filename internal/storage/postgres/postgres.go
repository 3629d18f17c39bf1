// Package postgres provides a PostgreSQL-backed implementation of the storage.Store interface.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

var _ storage.Store = (*PostgresStore)(nil)

const (
	userColumns    = "id, username, password_hash, created_at"
	expenseColumns = "id, owner_id, amount::text, category, description, date, created_at, updated_at"

	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore implements storage.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, applies migrations and returns the store.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Username = models.NormalizeUsername(user.Username)
	if err := user.Validate(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)",
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if pgCode(err) == uniqueViolation {
		return storage.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", models.NormalizeUsername(username))
}

func (s *PostgresStore) getUser(ctx context.Context, column, value string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = $1", value)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}
	return user, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO expenses (id, owner_id, amount, category, description, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		expense.ID, expense.OwnerID, expense.Amount.String(), expense.Category,
		expense.Description, expense.Date.Time, expense.CreatedAt, expense.UpdatedAt,
	)
	if pgCode(err) == foreignKeyViolation {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", id)
	expense, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

func (s *PostgresStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}
	expense.UpdatedAt = time.Now().Unix()

	err := s.pool.QueryRow(ctx,
		`UPDATE expenses SET amount = $1, category = $2, description = $3, date = $4, updated_at = $5
		WHERE id = $6 RETURNING owner_id, created_at`,
		expense.Amount.String(), expense.Category, expense.Description, expense.Date.Time,
		expense.UpdatedAt, expense.ID,
	).Scan(&expense.OwnerID, &expense.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	return queryExpenses(ctx, s.pool, filter)
}

// Snapshot runs both reads in a read-only REPEATABLE READ transaction.
func (s *PostgresStore) Snapshot(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	query := "SELECT " + userColumns + " FROM users ORDER BY username"
	var args []any
	if q.OwnerID != "" {
		query = "SELECT " + userColumns + " FROM users WHERE id = $1"
		args = append(args, q.OwnerID)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	snap := &storage.Snapshot{}
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

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryExpenses(ctx context.Context, q querier, filter models.ExpenseFilter) ([]models.Expense, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.OwnerID != "" {
		add("owner_id = $%d", filter.OwnerID)
	}
	if filter.Category != "" {
		add("category = $%d", models.NormalizeCategory(filter.Category))
	}
	if !filter.Period.From.IsZero() {
		add("date >= $%d", filter.Period.From.Time)
	}
	if !filter.Period.To.IsZero() {
		add("date <= $%d", filter.Period.To.Time)
	}

	query := "SELECT " + expenseColumns + " FROM expenses"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC, id DESC"

	rows, err := q.Query(ctx, query, args...)
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

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var (
		expense models.Expense
		amount  string
		date    time.Time
	)
	err := row.Scan(&expense.ID, &expense.OwnerID, &amount, &expense.Category,
		&expense.Description, &date, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return nil, err
	}
	expense.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, apperr.Integrity("expense %s has unreadable amount %q", expense.ID, amount)
	}
	expense.Date = models.DateOf(date)
	return &expense, nil
}
