// Package api exposes the expense tracker over HTTP.
package api

import (
	"context"
	"log/slog"

	"github.com/mmynk/dailyexpenses/internal/auth"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/service"
)

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer needs. Every field is required.
type Deps struct {
	Auth           *service.AuthService
	Expenses       *service.ExpenseService
	Reports        *service.ReportService
	JWT            *auth.JWTManager
	Health         Pinger
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	CurrencyPlaces int32
	CORSOrigins    []string
}

// Server holds the HTTP handlers.
type Server struct {
	auth     *service.AuthService
	expenses *service.ExpenseService
	reports  *service.ReportService
	jwt      *auth.JWTManager
	health   Pinger
	metrics  *metrics.Metrics
	logger   *slog.Logger
	money    money
}

// NewServer creates a Server from deps.
func NewServer(deps Deps) *Server {
	return &Server{
		auth:     deps.Auth,
		expenses: deps.Expenses,
		reports:  deps.Reports,
		jwt:      deps.JWT,
		health:   deps.Health,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		money:    money(deps.CurrencyPlaces),
	}
}
