// Package textextract pulls plain text out of uploaded statements.
package textextract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrLegacySpreadsheet is returned for binary .xls workbooks, which are
// accepted at upload but cannot be read.
var ErrLegacySpreadsheet = errors.New("unsupported legacy spreadsheet format (.xls); re-export as .xlsx or .csv")

// Extractor reads statement bytes.
type Extractor interface {
	// Lines returns one text line per spreadsheet row or PDF text line.
	Lines(ctx context.Context, data []byte, filename string) ([]string, error)
	// Text returns the document as a single string.
	Text(ctx context.Context, data []byte, filename string) (string, error)
}

// DocumentExtractor dispatches on the filename extension.
type DocumentExtractor struct{}

// New returns the default extractor.
func New() *DocumentExtractor {
	return &DocumentExtractor{}
}

func (e *DocumentExtractor) Lines(ctx context.Context, data []byte, filename string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return xlsxLines(data)
	case ".csv":
		return csvLines(data)
	case ".xls":
		return nil, ErrLegacySpreadsheet
	case ".pdf":
		text, err := pdfText(data)
		if err != nil {
			return nil, err
		}
		return strings.Split(text, "\n"), nil
	default:
		return nil, fmt.Errorf("Lines: unsupported extension %q", filepath.Ext(filename))
	}
}

func (e *DocumentExtractor) Text(ctx context.Context, data []byte, filename string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return pdfText(data)
	}
	lines, err := e.Lines(ctx, data, filename)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	digit      = regexp.MustCompile(`\d`)
)

// FilterSignalLines collapses whitespace and keeps only non-empty lines
// that contain at least one digit.
func FilterSignalLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(whitespace.ReplaceAllString(l, " "))
		if l == "" || !digit.MatchString(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Truncate caps text at limit runes.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}
