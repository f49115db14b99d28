// Package summary aggregates confirmed transactions into monthly totals.
package summary

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Sign modes reported with a summary.
const (
	SignModeStandard        = "standard"
	SignModePositiveExpense = "positive-expense"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Ledger lists confirmed transactions in [from, to).
type Ledger interface {
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error)
}

// Day is one day's totals. Expense is negative or zero.
type Day struct {
	Date       string  `json:"date"`
	Income     float64 `json:"income"`
	Expense    float64 `json:"expense"`
	ExpenseAbs float64 `json:"expenseAbs"`
	Count      int     `json:"count"`
}

// Average holds per-day income and expense magnitudes.
type Average struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Averages divides totals by calendar days and by days with activity.
type Averages struct {
	Calendar Average `json:"calendar"`
	Active   Average `json:"active"`
}

// Summary is the monthly report for one user.
type Summary struct {
	Month      string   `json:"month"`
	Income     float64  `json:"income"`
	Expense    float64  `json:"expense"`
	ExpenseAbs float64  `json:"expenseAbs"`
	Net        float64  `json:"net"`
	TxCount    int      `json:"txCount"`
	Days       []Day    `json:"days"`
	Averages   Averages `json:"averages"`
	SignMode   string   `json:"signMode"`
}

// Service builds summaries from the ledger.
type Service struct {
	ledger Ledger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source used for the default month.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type dayTotals struct {
	income  decimal.Decimal
	expense decimal.Decimal
	count   int
}

// Summary aggregates a user's transactions for month ("YYYY-MM", or the
// current month when empty).
//
// When the month has no negative amounts but some income, the data is
// assumed to record expenses as positive numbers: everything is reported
// as expense and SignMode is positive-expense. This is a heuristic; a
// month of genuine income only is reported the same way.
func (s *Service) Summary(ctx context.Context, userID, month string) (*Summary, error) {
	from, err := s.monthStart(month)
	if err != nil {
		return nil, err
	}
	to := from.AddDate(0, 1, 0)

	txs, err := s.ledger.ListTransactions(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	byDay := make(map[string]*dayTotals)
	var order []string
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		key := tx.OccurredAt.UTC().Format("2006-01-02")
		d, ok := byDay[key]
		if !ok {
			d = &dayTotals{}
			byDay[key] = d
			order = append(order, key)
		}
		d.count++
		switch {
		case tx.Amount.IsPositive():
			d.income = d.income.Add(tx.Amount)
			income = income.Add(tx.Amount)
		case tx.Amount.IsNegative():
			d.expense = d.expense.Add(tx.Amount)
			expense = expense.Add(tx.Amount)
		}
	}

	sort.Strings(order)

	signMode := SignModeStandard
	if expense.IsZero() && income.IsPositive() {
		signMode = SignModePositiveExpense
		expense = income.Neg()
		income = decimal.Zero
		for _, d := range byDay {
			d.expense = d.income.Neg()
			d.income = decimal.Zero
		}
	}

	out := &Summary{
		Month:      from.Format("2006-01"),
		Income:     money(income),
		Expense:    money(expense),
		ExpenseAbs: money(expense.Abs()),
		Net:        money(income.Add(expense)),
		TxCount:    len(txs),
		Days:       make([]Day, 0, len(order)),
		SignMode:   signMode,
	}
	for _, key := range order {
		d := byDay[key]
		out.Days = append(out.Days, Day{
			Date:       key,
			Income:     money(d.income),
			Expense:    money(d.expense),
			ExpenseAbs: money(d.expense.Abs()),
			Count:      d.count,
		})
	}

	calendarDays := decimal.NewFromInt(int64(to.Sub(from).Hours() / 24))
	activeDays := decimal.NewFromInt(int64(max(len(order), 1)))
	out.Averages = Averages{
		Calendar: Average{Income: money(income.Div(calendarDays)), Expense: money(expense.Abs().Div(calendarDays))},
		Active:   Average{Income: money(income.Div(activeDays)), Expense: money(expense.Abs().Div(activeDays))},
	}
	return out, nil
}

func (s *Service) monthStart(month string) (time.Time, error) {
	if month == "" {
		now := s.now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	if !monthPattern.MatchString(month) {
		return time.Time{}, domain.ErrInvalidMonth
	}
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, domain.ErrInvalidMonth
	}
	return t.UTC(), nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
