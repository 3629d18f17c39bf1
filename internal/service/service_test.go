package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/storage"
	"github.com/mmynk/dailyexpenses/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// snapshotStore lets a test replace Snapshot while keeping the rest of a
// memory store.
type snapshotStore struct {
	*memory.Store
	snapshot func(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error)
	calls    int
}

func (s *snapshotStore) Snapshot(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error) {
	s.calls++
	if s.snapshot != nil {
		return s.snapshot(ctx, q)
	}
	return s.Store.Snapshot(ctx, q)
}

func createUser(t *testing.T, store storage.Store, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := models.NewUser(username, string(hash))
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 12, 0, 0, 0, time.UTC) }
}
