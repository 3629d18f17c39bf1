package api

import (
	_ "embed"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmynk/dailyexpenses/internal/middleware"
)

//go:embed web/index.html
var indexHTML []byte

//go:embed web/openapi.json
var openAPIJSON []byte

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		User:        newUserResponse(session.User),
		AccessToken: session.AccessToken,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		User:        newUserResponse(session.User),
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(session.ExpiresIn.Seconds()),
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.GetUser(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["user_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.DeleteUser(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["user_id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := s.expenses.Create(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/expense/"+e.ID)
	writeJSON(w, http.StatusCreated, s.money.expense(e))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.Get(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["expense_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.expense(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := s.expenses.Update(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["expense_id"], in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.expense(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["expense_id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expenses, err := s.expenses.List(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.expenseList(expenses))
}

func (s *Server) handleListAllExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expenses, err := s.expenses.ListAll(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.expenseList(expenses))
}

func (s *Server) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asCSV, err := wantsCSV(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	period, err := periodFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sheet, err := s.reports.BalanceSheet(r.Context(), middleware.GetUserID(r.Context()), period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if asCSV {
		if err := writeCSV(w, "balance-sheet.csv", s.money.balanceSheetRows(sheet)); err != nil {
			s.logger.Warn("Failed to write CSV", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.money.balanceSheet(sheet))
}

func (s *Server) handleOverallBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asCSV, err := wantsCSV(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	period, err := periodFromQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	overall, err := s.reports.OverallBalanceSheet(r.Context(), period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if asCSV {
		if err := writeCSV(w, "overall-balance-sheet.csv", s.money.overallRows(overall)); err != nil {
			s.logger.Warn("Failed to write CSV", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, s.money.overall(overall))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.Dashboard(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.money.dashboard(summary))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(openAPIJSON)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.logger.Warn("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
