package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/auth"
	"github.com/mmynk/dailyexpenses/internal/events"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/service"
	"github.com/mmynk/dailyexpenses/internal/storage"
	"github.com/mmynk/dailyexpenses/internal/storage/memory"
	"github.com/mmynk/dailyexpenses/internal/storage/sqlite"
)

type testClient struct {
	t      *testing.T
	server *httptest.Server
	events *events.Recorder
}

// setupTestServer creates a test server backed by a temporary SQLite database.
func setupTestServer(t *testing.T) *testClient {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := auth.NewJWTManager("test-secret-key-that-is-long-enough", time.Hour)
	rec := &events.Recorder{}

	handler := NewRouter(Deps{
		Auth:           service.NewAuthService(auth.NewPasswordAuthenticator(store), jwt, store, logger),
		Expenses:       service.NewExpenseService(store, rec, time.UTC, 2, logger),
		Reports:        service.NewReportService(store, time.UTC, nil),
		JWT:            jwt,
		Health:         store,
		Metrics:        metrics.New(),
		Logger:         logger,
		CurrencyPlaces: 2,
		CORSOrigins:    []string{"*"},
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testClient{t: t, server: server, events: rec}
}

func (c *testClient) do(method, path, token string, body any) (*http.Response, []byte) {
	c.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// expect performs a request, checks the status and decodes the JSON body into out.
func (c *testClient) expect(status int, method, path, token string, body any, out any) {
	c.t.Helper()
	resp, data := c.do(method, path, token, body)
	if resp.StatusCode != status {
		c.t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, status, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.t.Fatalf("%s %s: decode %s: %v", method, path, data, err)
		}
	}
}

func (c *testClient) expectError(status int, code, method, path, token string, body any) {
	c.t.Helper()
	var got errorBody
	c.expect(status, method, path, token, body, &got)
	if got.Error.Code != code {
		c.t.Errorf("%s %s: expected error code %s, got %s (%s)", method, path, code, got.Error.Code, got.Error.Message)
	}
	if got.Error.Message == "" {
		c.t.Errorf("%s %s: expected an error message", method, path)
	}
}

// register creates an account and returns its ID and token.
func (c *testClient) register(username string) (string, string) {
	c.t.Helper()
	var resp registerResponse
	c.expect(http.StatusCreated, "POST", "/register", "", credentialsRequest{Username: username, Password: "password123"}, &resp)
	return resp.User.ID, resp.AccessToken
}

func (c *testClient) createExpense(token string, body map[string]any) expenseResponse {
	c.t.Helper()
	var e expenseResponse
	c.expect(http.StatusCreated, "POST", "/expense", token, body, &e)
	return e
}

func TestRegisterAndLogin(t *testing.T) {
	c := setupTestServer(t)

	var reg registerResponse
	c.expect(http.StatusCreated, "POST", "/register", "", map[string]string{"username": "Alice", "password": "password123"}, &reg)
	if reg.User.Username != "alice" || reg.User.ID == "" || reg.AccessToken == "" {
		t.Errorf("unexpected register response: %+v", reg)
	}

	var login loginResponse
	c.expect(http.StatusOK, "POST", "/login", "", map[string]string{"username": "alice", "password": "password123"}, &login)
	if login.TokenType != "Bearer" || login.ExpiresIn != 3600 || login.User.ID != reg.User.ID {
		t.Errorf("unexpected login response: %+v", login)
	}

	c.expectError(http.StatusConflict, "conflict", "POST", "/register", "", map[string]string{"username": "ALICE", "password": "password123"})
	c.expectError(http.StatusBadRequest, "validation_error", "POST", "/register", "", map[string]string{"username": "bob", "password": "short"})
	c.expectError(http.StatusBadRequest, "validation_error", "POST", "/register", "", "{not json")
	c.expectError(http.StatusUnauthorized, "unauthorized", "POST", "/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
}

func TestAuthRequired(t *testing.T) {
	c := setupTestServer(t)

	for _, path := range []string{"/expenses", "/balance-sheet", "/overall-balance-sheet", "/dashboard", "/overall-expenses"} {
		c.expectError(http.StatusUnauthorized, "unauthorized", "GET", path, "", nil)
	}
	c.expectError(http.StatusUnauthorized, "unauthorized", "GET", "/expenses", "not-a-token", nil)
}

func TestExpenseLifecycle(t *testing.T) {
	c := setupTestServer(t)
	_, alice := c.register("alice")
	_, bob := c.register("bob")

	created := c.createExpense(alice, map[string]any{"amount": "12.5", "category": " Food ", "date": "2025-03-01", "description": "lunch"})
	if created.Amount != "12.50" || created.Category != "food" || created.Date != "2025-03-01" {
		t.Errorf("unexpected created expense: %+v", created)
	}

	var got expenseResponse
	c.expect(http.StatusOK, "GET", "/expense/"+created.ID, alice, nil, &got)
	if got.ID != created.ID || got.Description != "lunch" {
		t.Errorf("unexpected expense: %+v", got)
	}

	// Another user's record behaves as if it does not exist.
	c.expectError(http.StatusNotFound, "not_found", "GET", "/expense/"+created.ID, bob, nil)
	c.expectError(http.StatusNotFound, "not_found", "PUT", "/expense/"+created.ID, bob, map[string]any{"amount": 1, "category": "x"})
	c.expectError(http.StatusNotFound, "not_found", "DELETE", "/expense/"+created.ID, bob, nil)

	var updated expenseResponse
	c.expect(http.StatusOK, "PUT", "/expense/"+created.ID, alice, map[string]any{"amount": 20, "category": "dining", "date": "2025-03-02"}, &updated)
	if updated.Amount != "20.00" || updated.Category != "dining" || updated.Date != "2025-03-02" {
		t.Errorf("unexpected updated expense: %+v", updated)
	}

	c.expect(http.StatusNoContent, "DELETE", "/expense/"+created.ID, alice, nil, nil)
	c.expectError(http.StatusNotFound, "not_found", "GET", "/expense/"+created.ID, alice, nil)

	var types []events.Type
	for _, e := range c.events.Events() {
		types = append(types, e.Type)
	}
	want := []events.Type{events.ExpenseCreated, events.ExpenseUpdated, events.ExpenseDeleted}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestExpenseValidation(t *testing.T) {
	c := setupTestServer(t)
	_, token := c.register("alice")

	tests := []struct {
		name string
		body any
	}{
		{"missing amount", map[string]any{"category": "food"}},
		{"negative amount", map[string]any{"amount": "-1", "category": "food"}},
		{"amount not a number", map[string]any{"amount": "ten", "category": "food"}},
		{"exponent amount", map[string]any{"amount": "1e3", "category": "food"}},
		{"missing category", map[string]any{"amount": "1"}},
		{"bad date", map[string]any{"amount": "1", "category": "food", "date": "03/01/2025"}},
		{"category wrong type", map[string]any{"amount": "1", "category": 5}},
		{"empty body", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &testClient{t: t, server: c.server, events: c.events}
			sub.expectError(http.StatusBadRequest, "validation_error", "POST", "/expense", token, tt.body)
		})
	}
}

func TestListExpenses(t *testing.T) {
	c := setupTestServer(t)
	_, alice := c.register("alice")
	_, bob := c.register("bob")

	c.createExpense(alice, map[string]any{"amount": "1", "category": "food", "date": "2025-02-28"})
	c.createExpense(alice, map[string]any{"amount": "2", "category": "food", "date": "2025-03-01"})
	c.createExpense(alice, map[string]any{"amount": "3", "category": "rent", "date": "2025-03-02"})
	c.createExpense(bob, map[string]any{"amount": "4", "category": "food", "date": "2025-03-03"})

	var mine expenseListResponse
	c.expect(http.StatusOK, "GET", "/expenses", alice, nil, &mine)
	if mine.Count != 3 || mine.Total != "6.00" {
		t.Errorf("expected 3 expenses totalling 6.00, got %d / %s", mine.Count, mine.Total)
	}
	if mine.Expenses[0].Date != "2025-03-02" {
		t.Errorf("expected newest first, got %s", mine.Expenses[0].Date)
	}

	var march expenseListResponse
	c.expect(http.StatusOK, "GET", "/expenses?month=2025-03&category=FOOD", alice, nil, &march)
	if march.Count != 1 || march.Total != "2.00" {
		t.Errorf("expected one March food expense, got %+v", march)
	}

	var all expenseListResponse
	c.expect(http.StatusOK, "GET", "/overall-expenses?from=2025-03-01&to=2025-03-31", alice, nil, &all)
	if all.Count != 3 || all.Total != "9.00" {
		t.Errorf("expected 3 March expenses across users totalling 9.00, got %d / %s", all.Count, all.Total)
	}

	c.expectError(http.StatusBadRequest, "validation_error", "GET", "/expenses?month=2025-3", alice, nil)
	c.expectError(http.StatusBadRequest, "validation_error", "GET", "/expenses?month=2025-03&from=2025-03-01", alice, nil)
	c.expectError(http.StatusBadRequest, "validation_error", "GET", "/expenses?from=2025-04-01&to=2025-03-01", alice, nil)
}

func TestBalanceSheet(t *testing.T) {
	c := setupTestServer(t)
	aliceID, alice := c.register("alice")

	c.createExpense(alice, map[string]any{"amount": "12.50", "category": "food", "date": "2025-03-01"})
	c.createExpense(alice, map[string]any{"amount": 7.25, "category": "food", "date": "2025-03-02"})
	c.createExpense(alice, map[string]any{"amount": "5.00", "category": "transport", "date": "2025-03-03"})

	var sheet balanceSheetResponse
	c.expect(http.StatusOK, "GET", "/balance-sheet", alice, nil, &sheet)
	if sheet.OwnerID != aliceID || sheet.TotalSpent != "24.75" || sheet.ExpenseCount != 3 {
		t.Errorf("unexpected sheet: %+v", sheet)
	}
	if sheet.Categories["food"] != "19.75" || sheet.Categories["transport"] != "5.00" {
		t.Errorf("unexpected categories: %v", sheet.Categories)
	}

	var early balanceSheetResponse
	c.expect(http.StatusOK, "GET", "/balance-sheet?to=2025-03-01", alice, nil, &early)
	if early.TotalSpent != "12.50" {
		t.Errorf("expected 12.50 up to March 1st, got %s", early.TotalSpent)
	}

	resp, data := c.do("GET", "/balance-sheet?format=csv", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected CSV content type, got %s", ct)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	want := [][]string{
		{"owner_id", "category", "total"},
		{aliceID, "food", "19.75"},
		{aliceID, "transport", "5.00"},
		{aliceID, "TOTAL", "24.75"},
	}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %v", len(want), rows)
	}
	for i := range want {
		if strings.Join(rows[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d: expected %v, got %v", i, want[i], rows[i])
		}
	}

	c.expectError(http.StatusBadRequest, "validation_error", "GET", "/balance-sheet?format=xml", alice, nil)
}

func TestBalanceSheetCategoriesAddUpToTotal(t *testing.T) {
	c := setupTestServer(t)
	_, token := c.register("alice")

	// Sub-cent amounts would round per category and stop adding up.
	for _, category := range []string{"food", "transport"} {
		c.expectError(http.StatusBadRequest, "validation_error", "POST", "/expense", token,
			map[string]any{"amount": "0.005", "category": category, "date": "2025-03-01"})
	}

	c.createExpense(token, map[string]any{"amount": "0.01", "category": "food", "date": "2025-03-01"})
	c.createExpense(token, map[string]any{"amount": "0.0100", "category": "transport", "date": "2025-03-01"})

	var sheet balanceSheetResponse
	c.expect(http.StatusOK, "GET", "/balance-sheet", token, nil, &sheet)
	if sheet.TotalSpent != "0.02" || sheet.ExpenseCount != 2 {
		t.Fatalf("unexpected sheet: %+v", sheet)
	}

	sum := decimal.Zero
	for _, amount := range sheet.Categories {
		sum = sum.Add(decimal.RequireFromString(amount))
	}
	if sum.StringFixed(2) != sheet.TotalSpent {
		t.Errorf("categories %v add up to %s, total is %s", sheet.Categories, sum.StringFixed(2), sheet.TotalSpent)
	}
}

func TestOverallBalanceSheet(t *testing.T) {
	c := setupTestServer(t)
	aliceID, alice := c.register("alice")
	bobID, bob := c.register("bob")
	carolID, _ := c.register("carol")

	c.createExpense(alice, map[string]any{"amount": "10", "category": "food", "date": "2025-03-01"})
	c.createExpense(bob, map[string]any{"amount": "2.5", "category": "rent", "date": "2025-03-01"})

	var overall overallBalanceSheetResponse
	c.expect(http.StatusOK, "GET", "/overall-balance-sheet?month=2025-03", alice, nil, &overall)
	if overall.TotalSpent != "12.50" {
		t.Errorf("expected total 12.50, got %s", overall.TotalSpent)
	}
	if len(overall.BalanceSheets) != 3 {
		t.Fatalf("expected 3 sheets, got %d", len(overall.BalanceSheets))
	}
	if overall.BalanceSheets[aliceID].TotalSpent != "10.00" || overall.BalanceSheets[bobID].TotalSpent != "2.50" {
		t.Errorf("unexpected per-user totals: %+v", overall.BalanceSheets)
	}
	if carol := overall.BalanceSheets[carolID]; carol.TotalSpent != "0.00" || len(carol.Categories) != 0 {
		t.Errorf("expected zero sheet for carol, got %+v", carol)
	}
	if overall.Period.From.String() != "2025-03-01" || overall.Period.To.String() != "2025-03-31" {
		t.Errorf("unexpected period: %+v", overall.Period)
	}

	resp, data := c.do("GET", "/overall-balance-sheet?format=csv", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	last := rows[len(rows)-1]
	if last[0] != "" || last[1] != "TOTAL" || last[2] != "12.50" {
		t.Errorf("unexpected grand total row: %v", last)
	}
}

func TestDashboard(t *testing.T) {
	c := setupTestServer(t)
	aliceID, alice := c.register("alice")

	today := time.Now().UTC().Format("2006-01-02")
	c.createExpense(alice, map[string]any{"amount": "3.10", "category": "coffee", "date": today})

	var dash dashboardResponse
	c.expect(http.StatusOK, "GET", "/dashboard", alice, nil, &dash)
	if dash.OwnerID != aliceID {
		t.Errorf("expected owner %s, got %s", aliceID, dash.OwnerID)
	}
	if len(dash.RecentTotals) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(dash.RecentTotals))
	}
	for _, w := range dash.RecentTotals {
		if w.Total != "3.10" {
			t.Errorf("%s: expected total 3.10, got %s", w.Window, w.Total)
		}
	}
	if len(dash.Monthly) != 6 || dash.Monthly[5].Total != "3.10" {
		t.Errorf("unexpected monthly series: %+v", dash.Monthly)
	}
	if trends := dash.TrendByPeriod["day"]; len(trends) != 1 || trends[0].Category != "coffee" {
		t.Errorf("unexpected day trends: %+v", trends)
	}
}

func TestUserResource(t *testing.T) {
	c := setupTestServer(t)
	aliceID, alice := c.register("alice")
	bobID, _ := c.register("bob")

	var me userResponse
	c.expect(http.StatusOK, "GET", "/user/"+aliceID, alice, nil, &me)
	if me.Username != "alice" {
		t.Errorf("expected alice, got %s", me.Username)
	}
	c.expectError(http.StatusForbidden, "forbidden", "GET", "/user/"+bobID, alice, nil)
	c.expectError(http.StatusForbidden, "forbidden", "DELETE", "/user/"+bobID, alice, nil)

	c.createExpense(alice, map[string]any{"amount": "1", "category": "food", "date": "2025-01-01"})
	c.expect(http.StatusNoContent, "DELETE", "/user/"+aliceID, alice, nil, nil)

	// The token is still valid but the account is gone.
	c.expectError(http.StatusNotFound, "not_found", "GET", "/balance-sheet", alice, nil)
	c.expectError(http.StatusUnauthorized, "unauthorized", "POST", "/login", "", map[string]string{"username": "alice", "password": "password123"})
}

func TestPublicEndpoints(t *testing.T) {
	c := setupTestServer(t)

	resp, data := c.do("GET", "/", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "Daily Expenses") {
		t.Errorf("index: status %d", resp.StatusCode)
	}

	resp, data = c.do("GET", "/static/openapi.json", "", nil)
	var doc map[string]any
	if resp.StatusCode != http.StatusOK || json.Unmarshal(data, &doc) != nil || doc["openapi"] == nil {
		t.Errorf("openapi: status %d", resp.StatusCode)
	}

	var health map[string]string
	c.expect(http.StatusOK, "GET", "/healthz", "", nil, &health)
	if health["status"] != "ok" {
		t.Errorf("expected ok, got %v", health)
	}

	resp, data = c.do("GET", "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "daily_expenses_http_requests_total") {
		t.Errorf("metrics: status %d", resp.StatusCode)
	}

	c.expectError(http.StatusNotFound, "not_found", "GET", "/nope", "", nil)

	resp, _ = c.do("PATCH", "/expenses", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}

	resp, _ = c.do("OPTIONS", "/expenses", "", nil)
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: status %d", resp.StatusCode)
	}

	_, data = c.do("GET", "/metrics", "", nil)
	for _, want := range []string{
		`daily_expenses_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
		`daily_expenses_http_requests_total{method="PATCH",route="unmatched",status="405"} 1`,
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics: expected %s", want)
		}
	}
}

// orphanStore returns an expense whose owner is not among the users of
// every full snapshot.
type orphanStore struct {
	*memory.Store
}

func (s orphanStore) Snapshot(ctx context.Context, q storage.SnapshotQuery) (*storage.Snapshot, error) {
	snap, err := s.Store.Snapshot(ctx, q)
	if err != nil || q.OwnerID != "" {
		return snap, err
	}
	snap.Expenses = append(snap.Expenses, models.Expense{
		ID:       "orphan-1",
		OwnerID:  "ghost",
		Amount:   decimal.RequireFromString("1.00"),
		Category: "food",
		Date:     models.MustParseDate("2025-03-01"),
	})
	return snap, nil
}

func TestIntegrityErrorLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := orphanStore{Store: memory.New()}
	jwt := auth.NewJWTManager("test-secret-key-that-is-long-enough", time.Hour)
	m := metrics.New()

	server := httptest.NewServer(NewRouter(Deps{
		Auth:           service.NewAuthService(auth.NewPasswordAuthenticator(store), jwt, store, logger),
		Expenses:       service.NewExpenseService(store, nil, time.UTC, 2, logger),
		Reports:        service.NewReportService(store, time.UTC, m),
		JWT:            jwt,
		Health:         store,
		Metrics:        m,
		Logger:         logger,
		CurrencyPlaces: 2,
		CORSOrigins:    []string{"*"},
	}))
	t.Cleanup(server.Close)
	c := &testClient{t: t, server: server, events: &events.Recorder{}}

	_, token := c.register("alice")
	c.expectError(http.StatusInternalServerError, "data_integrity_error", "GET", "/overall-balance-sheet", token, nil)

	if n := strings.Count(buf.String(), "unknown owner ghost"); n != 1 {
		t.Errorf("expected the integrity error logged once, found %d times:\n%s", n, buf.String())
	}
	if got := testutil.ToFloat64(m.IntegrityErrors.WithLabelValues("overall_balance_sheet")); got != 1 {
		t.Errorf("expected one counted integrity error, got %v", got)
	}
}
