package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/models"
	"github.com/mmynk/dailyexpenses/internal/service"
)

const maxBodyBytes = 1 << 20

// numberPattern accepts plain decimal notation only: no exponents, no
// thousands separators.
var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Amount decodes a money value given as a JSON string or number without
// passing through float64.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return apperr.Invalid("amount", "is required")
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if !numberPattern.MatchString(s) {
		return apperr.Invalid("amount", "must be a decimal number such as 12.50")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return apperr.Invalid("amount", "must be a decimal number such as 12.50")
	}
	a.Decimal = d
	return nil
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type expenseRequest struct {
	Amount      *Amount     `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        models.Date `json:"date"`
}

func (req *expenseRequest) input() (service.ExpenseInput, error) {
	if req.Amount == nil {
		return service.ExpenseInput{}, apperr.Invalid("amount", "is required")
	}
	return service.ExpenseInput{
		Amount:      req.Amount.Decimal,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
	}, nil
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperr.Invalid("body", "could not be read")
	}
	if len(body) > maxBodyBytes {
		return apperr.Invalid("body", "must be at most %d bytes", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Invalid("body", "is required")
	}

	if err := json.Unmarshal(body, v); err != nil {
		var verr *apperr.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.Invalid(typeErr.Field, "has the wrong type")
		}
		return apperr.Invalid("body", "must be a JSON object")
	}
	return nil
}

// periodFromQuery reads from, to and month. month=YYYY-MM covers that
// whole calendar month and cannot be combined with from or to.
func periodFromQuery(r *http.Request) (models.Period, error) {
	q := r.URL.Query()
	var p models.Period

	if month := q.Get("month"); month != "" {
		if q.Get("from") != "" || q.Get("to") != "" {
			return p, apperr.Invalid("month", "cannot be combined with from or to")
		}
		start, err := models.ParseDate(month + "-01")
		if err != nil || len(month) != 7 {
			return p, apperr.Invalid("month", "must be YYYY-MM")
		}
		return models.MonthPeriod(start), nil
	}

	for _, f := range []struct {
		name string
		dst  *models.Date
	}{{"from", &p.From}, {"to", &p.To}} {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		d, err := models.ParseDate(v)
		if err != nil {
			return p, apperr.Invalid(f.name, "%v", err)
		}
		*f.dst = d
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func filterFromQuery(r *http.Request) (models.ExpenseFilter, error) {
	period, err := periodFromQuery(r)
	if err != nil {
		return models.ExpenseFilter{}, err
	}
	return models.ExpenseFilter{
		Period:   period,
		Category: r.URL.Query().Get("category"),
	}, nil
}

// wantsCSV reports whether the caller asked for format=csv. Unknown formats
// are rejected.
func wantsCSV(r *http.Request) (bool, error) {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		return false, nil
	case "csv":
		return true, nil
	}
	return false, apperr.Invalid("format", "must be json or csv")
}
