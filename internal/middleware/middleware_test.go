package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/dailyexpenses/internal/auth"
	"github.com/mmynk/dailyexpenses/internal/metrics"
	"github.com/mmynk/dailyexpenses/internal/models"
)

func TestRequireAuth(t *testing.T) {
	jwt := auth.NewJWTManager("test-secret-key-that-is-long-enough", time.Hour)
	token, err := jwt.Generate(&models.User{ID: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var gotErr error
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	handler := RequireAuth(jwt, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context()) + "/" + GetUsername(r.Context())))
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
		wantErr    error
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "user-1/alice", nil},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "user-1/alice", nil},
		{"missing header", "", http.StatusUnauthorized, "", auth.ErrMissingToken},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "", auth.ErrInvalidToken},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "", auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotErr = nil
			req := httptest.NewRequest(http.MethodGet, "/expenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("Expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
			if tt.wantErr != nil && !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, gotErr)
			}
		})
	}
}

func TestLoggingAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := metrics.New()

	r := mux.NewRouter()
	r.Use(RecordRoute)
	r.HandleFunc("/expense/{expense_id}", func(w http.ResponseWriter, r *http.Request) {
		WithUser(r.Context(), "user-7", "bob")
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)
	h := Logging(logger)(Metrics(m)(r))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expense/abc", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "route=/expense/{expense_id}", "status=404", "user_id=user-7"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %q, got %s", want, out)
		}
	}

	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/expense/{expense_id}", "404"))
	if got != 1 {
		t.Errorf("Expected one recorded request, got %v", got)
	}
}

func TestLoggingAndMetricsUnmatchedRoutes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	m := metrics.New()

	r := mux.NewRouter()
	r.Use(RecordRoute)
	r.HandleFunc("/expenses", func(w http.ResponseWriter, r *http.Request) {}).Methods(http.MethodGet)
	h := Logging(logger)(Metrics(m)(r))

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPatch, "/expenses", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.status {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.status, rec.Code)
		}
	}

	out := buf.String()
	for _, want := range []string{"route=/nope", "status=404", "route=/expenses", "status=405"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %q, got %s", want, out)
		}
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("Expected one unmatched 404, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("PATCH", "unmatched", "405")); got != 1 {
		t.Errorf("Expected one unmatched 405, got %v", got)
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard", []string{"*"}, "http://a.example", http.MethodGet, "*", http.StatusTeapot},
		{"listed origin", []string{"http://a.example"}, "http://a.example", http.MethodGet, "http://a.example", http.StatusTeapot},
		{"unlisted origin", []string{"http://a.example"}, "http://b.example", http.MethodGet, "", http.StatusTeapot},
		{"preflight", []string{"*"}, "http://a.example", http.MethodOptions, "*", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/expenses", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Expected origin %q, got %q", tt.wantOrigin, got)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
