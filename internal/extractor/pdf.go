package extractor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFTextLines reads the text layer of every page. A document without a text
// layer yields no lines and no error; only unreadable documents fail.
func PDFTextLines(content []byte) (lines []string, pages int, err error) {
	// The pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			lines, pages, err = nil, 0, fmt.Errorf("pdf reader: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}

	pages = reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return lines, pages, fmt.Errorf("page %d: %w", i, err)
		}
		lines = append(lines, splitLines(text)...)
	}
	return lines, pages, nil
}
