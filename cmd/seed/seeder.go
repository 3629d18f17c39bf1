package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/service"
)

var categories = []string{
	"food", "groceries", "transport", "rent", "utilities",
	"entertainment", "health", "travel", "shopping", "coffee",
}

// seedOptions controls how much data is generated.
type seedOptions struct {
	Users           int
	ExpensesPerUser int
	Days            int
	Password        string
	Seed            int64
}

type seedAccount struct {
	ID       string
	Username string
}

// seeder creates fake accounts and expenses through the services so every
// generated record passes the same validation as API input.
type seeder struct {
	auth     *service.AuthService
	expenses *service.ExpenseService
	faker    *gofakeit.Faker
	places   int32
}

func newSeeder(auth *service.AuthService, expenses *service.ExpenseService, seed int64, places int32) *seeder {
	return &seeder{auth: auth, expenses: expenses, faker: gofakeit.New(seed), places: places}
}

// run registers opts.Users accounts and gives each opts.ExpensesPerUser
// expenses dated within the opts.Days days up to today.
func (s *seeder) run(ctx context.Context, opts seedOptions, today models.Date) ([]seedAccount, int, error) {
	var accounts []seedAccount
	created := 0

	for i := 0; i < opts.Users; i++ {
		username := s.username(i)
		session, err := s.auth.Register(ctx, username, opts.Password)
		if err != nil {
			return accounts, created, fmt.Errorf("failed to register %s: %w", username, err)
		}
		accounts = append(accounts, seedAccount{ID: session.User.ID, Username: session.User.Username})

		for j := 0; j < opts.ExpensesPerUser; j++ {
			if _, err := s.expenses.Create(ctx, session.User.ID, s.expense(today, opts.Days)); err != nil {
				return accounts, created, fmt.Errorf("failed to create expense for %s: %w", username, err)
			}
			created++
		}
	}

	return accounts, created, nil
}

// username is unique per index; the faker only supplies the prefix.
func (s *seeder) username(i int) string {
	base := strings.ToLower(s.faker.Username())
	if len(base) > 20 {
		base = base[:20]
	}
	return fmt.Sprintf("%s_%d", base, i+1)
}

func (s *seeder) expense(today models.Date, days int) service.ExpenseInput {
	if days < 1 {
		days = 1
	}
	return service.ExpenseInput{
		Amount:      decimal.NewFromFloat(s.faker.Price(0.5, 250)).Round(s.places),
		Category:    s.faker.RandomString(categories),
		Description: s.faker.Sentence(4),
		Date:        today.AddDays(-s.faker.Number(0, days-1)),
	}
}
