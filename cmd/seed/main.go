// Command seed fills the configured store with fake users and expenses
// for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/mmynk/dailyexpenses/internal/auth"
	"github.com/mmynk/dailyexpenses/internal/config"
	"github.com/mmynk/dailyexpenses/internal/events"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/service"
	"github.com/mmynk/dailyexpenses/internal/storage/backend"
	"github.com/mmynk/dailyexpenses/pkg/logging"
)

func main() {
	opts := seedOptions{}
	flag.IntVar(&opts.Users, "users", 5, "number of accounts to create")
	flag.IntVar(&opts.ExpensesPerUser, "expenses", 40, "expenses per account")
	flag.IntVar(&opts.Days, "days", 180, "spread expenses over this many days up to today")
	flag.StringVar(&opts.Password, "password", "password123", "password for every generated account")
	flag.Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, false)

	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Seeding the memory backend has no lasting effect")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	loc := cfg.Location()
	jwtManager := auth.NewJWTManager(cfg.JWTSecretKey, cfg.JWTAccessTokenExpiry)
	s := newSeeder(
		service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger),
		service.NewExpenseService(store, events.Nop{}, loc, cfg.CurrencyPlaces, logger),
		opts.Seed,
		cfg.CurrencyPlaces,
	)

	start := time.Now()
	accounts, count, err := s.run(ctx, opts, models.DateOf(time.Now().In(loc)))
	if err != nil {
		logger.Error("Seeding failed", "error", err, "accounts", len(accounts), "expenses", count)
		os.Exit(1)
	}

	for _, a := range accounts {
		logger.Info("Seeded account", "username", a.Username, "id", a.ID)
	}
	logger.Info("Seeding complete",
		"backend", cfg.DataBackend,
		"accounts", len(accounts),
		"expenses", count,
		"seed", opts.Seed,
		"duration", time.Since(start),
	)
}
