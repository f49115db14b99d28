package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/jsonrepair"
	"github.com/rs/zerolog"
)

// Client sends statement text to a Completer and decodes the repaired
// response into candidate records.
type Client struct {
	completer Completer
	log       zerolog.Logger
}

// NewClient wraps a completer.
func NewClient(completer Completer, log zerolog.Logger) *Client {
	return &Client{completer: completer, log: log}
}

// Extract returns the candidates found in text. Records missing a date,
// a description or a numeric amount are dropped; an unparseable response
// is an error wrapping domain.ErrExtraction.
func (c *Client) Extract(ctx context.Context, text string) ([]domain.Candidate, error) {
	raw, err := c.completer.Complete(ctx, SystemPrompt(), text)
	if err != nil {
		return nil, fmt.Errorf("Extract: %w: %w", domain.ErrExtraction, err)
	}

	var out map[string]interface{}
	if err := jsonrepair.Parse(raw, &out); err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}

	cands, dropped := candidatesFromOutput(out)
	if dropped > 0 {
		c.log.Debug().Int("dropped", dropped).Int("kept", len(cands)).Msg("Dropped incomplete records")
	}
	return cands, nil
}

// candidatesFromOutput reads { "transactions": [...] }. A missing or
// non-array key yields no candidates.
func candidatesFromOutput(out map[string]interface{}) ([]domain.Candidate, int) {
	list, ok := out["transactions"].([]interface{})
	if !ok {
		return nil, 0
	}

	result := make([]domain.Candidate, 0, len(list))
	dropped := 0
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			dropped++
			continue
		}
		cand, err := candidateFromObject(obj)
		if err != nil {
			dropped++
			continue
		}
		result = append(result, cand)
	}
	return result, dropped
}

func candidateFromObject(obj map[string]interface{}) (domain.Candidate, error) {
	date, err := getStringField(obj, "date", true)
	if err != nil {
		return domain.Candidate{}, err
	}
	desc, err := getStringField(obj, "description", true)
	if err != nil {
		return domain.Candidate{}, err
	}
	amount, err := getAmountField(obj, "amount")
	if err != nil {
		return domain.Candidate{}, err
	}

	cand := domain.Candidate{
		Date:        strings.TrimSpace(date),
		Description: strings.TrimSpace(desc),
		Amount:      amount,
	}
	// Optional fields of the wrong type are treated as absent.
	cand.Currency, _ = getOptionalStringField(obj, "currency")
	cand.Merchant, _ = getOptionalStringField(obj, "merchant")
	cand.Type, _ = getOptionalStringField(obj, "type")
	cand.Category, _ = getOptionalStringField(obj, "category")
	cand.CategoryScore, _ = getOptionalFloat64Field(obj, "categoryScore")
	return cand, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

var amountCleaner = strings.NewReplacer(",", "", "¥", "", "￥", "", "$", "", " ", "", "元", "")

// getAmountField accepts a JSON number or a numeric string such as "1,234.50".
func getAmountField(m map[string]interface{}, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(amountCleaner.Replace(strings.TrimSpace(val)), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %q", key, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}
