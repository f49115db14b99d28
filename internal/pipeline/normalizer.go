package pipeline

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCategoryScore is used when a category carries no confidence.
const DefaultCategoryScore = 0.5

var currencyAliases = map[string]string{
	"RMB": "CNY",
	"CNY": "CNY",
	"¥":   "CNY",
	"￥":   "CNY",
	"元":   "CNY",
	"人民币": "CNY",
}

// Normalizer turns extracted candidates into draft transactions.
type Normalizer struct {
	defaultCurrency  string
	fallbackCategory string
	snippetLimit     int
	categorizer      Categorizer
	newID            func() string
}

// NewNormalizer creates a Normalizer. categorizer may be nil.
func NewNormalizer(cfg config.Pipeline, categorizer Categorizer) *Normalizer {
	return &Normalizer{
		defaultCurrency:  cfg.DefaultCurrency,
		fallbackCategory: cfg.FallbackCategory,
		snippetLimit:     cfg.RawSnippetLimit,
		categorizer:      categorizer,
		newID:            func() string { return uuid.New().String() },
	}
}

// Normalize converts candidates for one job. Candidates whose date cannot
// be parsed are dropped.
func (n *Normalizer) Normalize(userID, jobID string, items []Extracted) []domain.DraftTransaction {
	out := make([]domain.DraftTransaction, 0, len(items))
	for _, it := range items {
		occurred, ok := ParseDate(it.Date)
		if !ok {
			continue
		}

		category, score := n.category(it.Candidate)
		source := it.Description
		if n.snippetLimit > 0 {
			source = domain.Truncate(source, n.snippetLimit)
		}

		out = append(out, domain.DraftTransaction{
			ID:            n.newID(),
			UserID:        userID,
			JobID:         jobID,
			OccurredAt:    occurred,
			Description:   strings.TrimSpace(it.Description),
			Merchant:      trimmedOrNil(it.Merchant),
			Amount:        decimal.NewFromFloat(CanonicalAmount(it.Amount, it.Type)).Round(2),
			Currency:      NormalizeCurrency(it.Currency, n.defaultCurrency),
			Category:      &category,
			CategoryScore: &score,
			Raw: domain.RawPayload{
				Kind:       it.Kind,
				SourceText: source,
				Chunk:      it.Chunk,
			},
		})
	}
	return out
}

func (n *Normalizer) category(c domain.Candidate) (string, float64) {
	if c.Category != nil && strings.TrimSpace(*c.Category) != "" {
		score := DefaultCategoryScore
		if c.CategoryScore != nil {
			score = ClampScore(*c.CategoryScore)
		}
		return strings.TrimSpace(*c.Category), score
	}
	if n.categorizer != nil {
		if cat, score, ok := n.categorizer.Categorize(c.Description, c.Merchant); ok {
			return cat, ClampScore(score)
		}
	}
	return n.fallbackCategory, DefaultCategoryScore
}

// timeSuffix matches the time-of-day part that may follow a YYYY-MM-DD date.
var timeSuffix = regexp.MustCompile(`^[T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?$`)

// ParseDate reads a YYYY-MM-DD calendar date. A time-of-day suffix, such as
// the remainder of an RFC3339 timestamp, is ignored; any other trailing
// text rejects the date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return time.Time{}, false
	}
	day, rest := s[:10], s[10:]
	if rest != "" && !timeSuffix.MatchString(rest) {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// CanonicalAmount applies the sign convention: expenses are negative and
// income is positive. Without a type the amount keeps its sign.
func CanonicalAmount(amount float64, typ *string) float64 {
	if typ == nil {
		return amount
	}
	switch strings.ToLower(strings.TrimSpace(*typ)) {
	case "expense":
		if amount > 0 {
			return -amount
		}
	case "income":
		if amount < 0 {
			return math.Abs(amount)
		}
	}
	return amount
}

// NormalizeCurrency maps known aliases to ISO codes and upper-cases the
// rest. An empty value yields def.
func NormalizeCurrency(raw *string, def string) string {
	if raw == nil {
		return def
	}
	c := strings.ToUpper(strings.TrimSpace(*raw))
	if c == "" {
		return def
	}
	if iso, ok := currencyAliases[c]; ok {
		return iso
	}
	return c
}

// ClampScore bounds a confidence to [0, 1].
func ClampScore(s float64) float64 {
	if math.IsNaN(s) {
		return DefaultCategoryScore
	}
	return math.Max(0, math.Min(1, s))
}

// CategoryTotals sums draft amounts per category.
func CategoryTotals(drafts []domain.DraftTransaction) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, d := range drafts {
		key := ""
		if d.Category != nil {
			key = *d.Category
		}
		totals[key] = totals[key].Add(d.Amount)
	}
	return totals
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
