package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/middleware"
)

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
	public  bool
}

// routes is the complete routing table.
func (s *Server) routes() []route {
	return []route{
		{http.MethodPost, "/register", s.handleRegister, true},
		{http.MethodPost, "/login", s.handleLogin, true},

		{http.MethodGet, "/user/{user_id}", s.handleGetUser, false},
		{http.MethodDelete, "/user/{user_id}", s.handleDeleteUser, false},

		{http.MethodPost, "/expense", s.handleCreateExpense, false},
		{http.MethodGet, "/expense/{expense_id}", s.handleGetExpense, false},
		{http.MethodPut, "/expense/{expense_id}", s.handleUpdateExpense, false},
		{http.MethodDelete, "/expense/{expense_id}", s.handleDeleteExpense, false},
		{http.MethodGet, "/expenses", s.handleListExpenses, false},
		{http.MethodGet, "/overall-expenses", s.handleListAllExpenses, false},

		{http.MethodGet, "/balance-sheet", s.handleBalanceSheet, false},
		{http.MethodGet, "/overall-balance-sheet", s.handleOverallBalanceSheet, false},
		{http.MethodGet, "/dashboard", s.handleDashboard, false},

		{http.MethodGet, "/", s.handleIndex, true},
		{http.MethodGet, "/static/openapi.json", s.handleOpenAPI, true},
		{http.MethodGet, "/healthz", s.handleHealth, true},
		{http.MethodGet, "/metrics", s.metrics.Handler().ServeHTTP, true},
	}
}

// Handler builds the router with CORS applied, wrapped in logging and
// metrics so requests that match no route are recorded as well.
func (s *Server) Handler(corsOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RecordRoute)

	requireAuth := middleware.RequireAuth(s.jwt, s.writeError)
	for _, rt := range s.routes() {
		var h http.Handler = rt.handler
		if !rt.public {
			h = requireAuth(h)
		}
		r.Handle(rt.path, h).Methods(rt.method)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.writeError(w, req, apperr.NotFound("route", req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
			Code:    "method_not_allowed",
			Message: req.Method + " is not supported on " + req.URL.Path,
		}})
	})

	var h http.Handler = middleware.CORS(corsOrigins)(r)
	h = middleware.Metrics(s.metrics)(h)
	return middleware.Logging(s.logger)(h)
}

// NewRouter is shorthand for NewServer(deps).Handler(deps.CORSOrigins).
func NewRouter(deps Deps) http.Handler {
	return NewServer(deps).Handler(deps.CORSOrigins)
}
