package jsonrepair

import (
	"strings"
	"testing"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Transactions []struct {
		Date        string  `json:"date"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
	} `json:"transactions"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCount int
		wantDate  string
	}{
		{
			name:      "well formed",
			raw:       `{"transactions":[{"date":"2025-01-01","description":"coffee","amount":-12}]}`,
			wantCount: 1,
			wantDate:  "2025-01-01",
		},
		{
			name:      "leading prose",
			raw:       `Here is the JSON you asked for: {"transactions":[]}`,
			wantCount: 0,
		},
		{
			name:      "truncated inside nested object",
			raw:       `{"transactions":[{"date":"2025-01-01"`,
			wantCount: 1,
			wantDate:  "2025-01-01",
		},
		{
			name:      "truncated after comma",
			raw:       `{"transactions":[{"date":"2025-01-02","amount":5},`,
			wantCount: 1,
			wantDate:  "2025-01-02",
		},
		{
			name:      "truncated inside string",
			raw:       `{"transactions":[{"date":"2025-01-03","description":"taxi to`,
			wantCount: 1,
			wantDate:  "2025-01-03",
		},
		{
			name:      "trailing fragment after last brace",
			raw:       `{"transactions":[{"date":"2025-01-04"}]} trailing words`,
			wantCount: 1,
			wantDate:  "2025-01-04",
		},
		{
			name:      "fancy quotes",
			raw:       `{“transactions”:[{“date”:“2025-01-05”}]}`,
			wantCount: 1,
			wantDate:  "2025-01-05",
		},
		{
			name:      "markdown fence",
			raw:       "```json\n{\"transactions\":[{\"date\":\"2025-01-06\"}]}\n```",
			wantCount: 1,
			wantDate:  "2025-01-06",
		},
		{
			name:      "prose on both sides with two objects",
			raw:       `Result: {"transactions":[{"date":"2025-01-07"}]} and also {"x":1}`,
			wantCount: 1,
			wantDate:  "2025-01-07",
		},
		{
			name:      "braces inside strings",
			raw:       `note {"transactions":[{"date":"2025-01-08","description":"a } b {"}]} end`,
			wantCount: 1,
			wantDate:  "2025-01-08",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			require.NoError(t, Parse(tt.raw, &got))
			require.Len(t, got.Transactions, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantDate, got.Transactions[0].Date)
			}
		})
	}
}

func TestParse_NoObjectFails(t *testing.T) {
	tests := []string{
		"I could not find any transactions.",
		"",
		"[1, 2, 3]",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			var got payload
			err := Parse(raw, &got)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrExtraction)

			var re *RepairError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, raw, re.Snippet)
		})
	}
}

func TestParse_SnippetIsBounded(t *testing.T) {
	raw := "no json here " + strings.Repeat("x", 5000)

	var got payload
	err := Parse(raw, &got)

	var re *RepairError
	require.ErrorAs(t, err, &re)
	assert.Len(t, re.Snippet, SnippetLimit)
	assert.Contains(t, err.Error(), "raw=no json here")
}

func TestCandidates_Order(t *testing.T) {
	raw := `Sure! {"transactions":[{"date":"2025-01-01"`
	c := Candidates(raw)

	require.GreaterOrEqual(t, len(c), 3)
	assert.Equal(t, raw, c[0])
	assert.Equal(t, `{"transactions":[{"date":"2025-01-01"`, c[1])
	assert.Equal(t, `{"transactions":[{"date":"2025-01-01"}]}`, c[2])
}

func TestBalanceClosers(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		needed bool
	}{
		{`{"a":[1,2`, `{"a":[1,2]}`, true},
		{`{"a":{"b":[{"c":1}`, `{"a":{"b":[{"c":1}]}}`, true},
		{`{"a":`, `{"a":null}`, true},
		{`{"a":"x\`, `{"a":"x\\"}`, true},
		{`{"a":1}`, `{"a":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, needed := balanceClosers(tt.in)
			assert.Equal(t, tt.needed, needed)
			assert.Equal(t, tt.want, got)
		})
	}
}
