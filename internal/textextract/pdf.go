package textextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfText extracts text page by page, falling back to whole-document
// extraction when the per-page pass yields nothing.
func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfText: malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdfText: open: %w", err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		pt, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if pt = strings.TrimSpace(pt); pt != "" {
			pages = append(pages, pt)
		}
	}
	if len(pages) > 0 {
		return strings.Join(pages, "\n"), nil
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdfText: plain text: %w", err)
	}
	all, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("pdfText: read: %w", err)
	}
	return strings.TrimSpace(string(all)), nil
}
