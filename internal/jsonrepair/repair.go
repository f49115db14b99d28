// Package jsonrepair recovers a JSON object from loosely formatted model
// output: surrounding prose, markdown fences, truncation and typographic
// quotes.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/smart-ledger/internal/domain"
)

// SnippetLimit bounds how much raw text is carried in a RepairError.
const SnippetLimit = 2000

// RepairError is returned when no candidate parses.
type RepairError struct {
	Attempts int
	Cause    error
	Snippet  string
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("jsonrepair: no parseable object after %d attempts: %v; raw=%s", e.Attempts, e.Cause, e.Snippet)
}

func (e *RepairError) Unwrap() error {
	return domain.ErrExtraction
}

// Parse decodes the first candidate of raw that is a valid JSON object
// into v. Candidates are tried in the order returned by Candidates.
func Parse(raw string, v any) error {
	candidates := Candidates(raw)
	var firstErr error
	for _, c := range candidates {
		if !strings.HasPrefix(c, "{") || !json.Valid([]byte(c)) {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid JSON object")
			}
			continue
		}
		err := json.Unmarshal([]byte(c), v)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("empty input")
	}
	return &RepairError{
		Attempts: len(candidates),
		Cause:    firstErr,
		Snippet:  domain.Truncate(raw, SnippetLimit),
	}
}

// Candidates lists repair attempts for raw in order:
// the text as given, fences removed, prose before the first '{' removed,
// missing closers appended, fragment after the last '}' removed,
// typographic quotes normalized, and the first balanced {...} block.
func Candidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	add(trimmed)
	unfenced := stripFences(trimmed)
	add(unfenced)

	stripped := unfenced
	if i := strings.Index(unfenced, "{"); i > 0 {
		stripped = unfenced[i:]
		add(stripped)
	}

	for _, base := range []string{stripped, trimmed} {
		if closed, ok := balanceClosers(base); ok {
			add(closed)
		}
	}

	for _, base := range []string{stripped, trimmed} {
		if last := strings.LastIndex(base, "}"); last > -1 && last < len(base)-1 {
			add(base[:last+1])
		}
	}

	quoted := normalizeQuotes(stripped)
	add(quoted)
	if closed, ok := balanceClosers(quoted); ok {
		add(closed)
	}

	if block, ok := firstBalancedBlock(unfenced); ok {
		add(block)
	}
	if block, ok := firstBalancedBlock(quoted); ok {
		add(block)
	}

	return out
}

func stripFences(s string) string {
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

var fancyQuotes = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"„", `"`,
	"‟", `"`,
	"″", `"`,
	"＂", `"`,
)

func normalizeQuotes(s string) string {
	return fancyQuotes.Replace(s)
}

// balanceClosers appends the closers needed to terminate every open
// object, array and string, innermost first. It reports false when the
// text has nothing left open.
func balanceClosers(s string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == ch {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) == 0 && !inString {
		return s, false
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}

	body := strings.TrimRight(b.String(), " \t\r\n")
	switch {
	case strings.HasSuffix(body, ","):
		body = strings.TrimSuffix(body, ",")
	case strings.HasSuffix(body, ":"):
		body += "null"
	}

	b.Reset()
	b.WriteString(body)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

// firstBalancedBlock returns the first {...} span whose braces balance,
// ignoring braces inside string literals.
func firstBalancedBlock(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
