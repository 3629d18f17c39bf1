// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/dailyexpenses/internal/models"
)

var (
	// ErrNotFound is returned when a user or expense does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a username is already taken.
	ErrDuplicate = errors.New("already exists")
)

// SnapshotQuery scopes a Snapshot read. An empty OwnerID reads every user.
type SnapshotQuery struct {
	OwnerID string
	Period  models.Period
}

// Snapshot is the result of one consistent read of users and their expenses.
// When the query names an owner that does not exist, Users is empty.
type Snapshot struct {
	Users    []models.User
	Expenses []models.Expense
}

// Store defines the interface for user and expense storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// MongoDB, memory) without changing the service layer.
//
// Writes validate their input and return an *apperr.ValidationError for
// malformed records.
type Store interface {
	// CreateUser persists a new user. Returns ErrDuplicate if the username is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if missing.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByUsername retrieves a user by username. Returns ErrNotFound if missing.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// DeleteUser removes a user and all of their expenses.
	DeleteUser(ctx context.Context, id string) error

	// CreateExpense persists a new expense.
	// The ID, CreatedAt and UpdatedAt fields are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense by ID. Returns ErrNotFound if missing.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// UpdateExpense replaces the mutable fields of an existing expense.
	// Returns ErrNotFound if it does not exist.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense. Returns ErrNotFound if it does not exist.
	DeleteExpense(ctx context.Context, id string) error

	// ListExpenses returns the expenses matching filter, newest first.
	ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error)

	// Snapshot reads users and their expenses in a single consistent pass.
	Snapshot(ctx context.Context, q SnapshotQuery) (*Snapshot, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// PrepareExpense normalizes and validates an expense before a write.
// Backends call it from CreateExpense and UpdateExpense.
func PrepareExpense(expense *models.Expense) error {
	expense.Normalize()
	return expense.Validate()
}
