// Package memory provides an in-process implementation of storage.Store.
// It is used by tests and for quick local runs; data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps users and expenses in maps guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	expenses map[string]models.Expense
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		expenses: make(map[string]models.Expense),
	}
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return storage.ErrDuplicate
		}
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = models.NormalizeUsername(username)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for eid, e := range s.expenses {
		if e.OwnerID == id {
			delete(s.expenses, eid)
		}
	}
	return nil
}

func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = expense.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[expense.OwnerID]; !ok {
		return storage.ErrNotFound
	}
	s.expenses[expense.ID] = *expense
	return nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := storage.PrepareExpense(expense); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[expense.ID]
	if !ok {
		return storage.ErrNotFound
	}
	expense.OwnerID = existing.OwnerID
	expense.CreatedAt = existing.CreatedAt
	expense.UpdatedAt = time.Now().Unix()
	s.expenses[expense.ID] = *expense
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, filter models.ExpenseFilter) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterLocked(filter), nil
}

// Snapshot copies the matching users and expenses under one read lock.
func (s *Store) Snapshot(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &storage.Snapshot{}
	if q.OwnerID != "" {
		u, ok := s.users[q.OwnerID]
		if !ok {
			return snap, nil
		}
		snap.Users = []models.User{u}
	} else {
		for _, u := range s.users {
			snap.Users = append(snap.Users, u)
		}
		sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].Username < snap.Users[j].Username })
	}

	snap.Expenses = s.filterLocked(models.ExpenseFilter{OwnerID: q.OwnerID, Period: q.Period})
	return snap, nil
}

func (s *Store) filterLocked(filter models.ExpenseFilter) []models.Expense {
	var out []models.Expense
	for _, e := range s.expenses {
		if filter.Matches(&e) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(expenses []models.Expense) {
	sort.Slice(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
