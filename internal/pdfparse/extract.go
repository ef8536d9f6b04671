package pdfparse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinReadableChars is the threshold below which an extracted document is
// treated as a scanned or image-only PDF.
const MinReadableChars = 50

// Result holds the extracted text of a PDF.
type Result struct {
	Text       string
	Pages      int
	LowQuality bool
}

// Extract pulls plain text out of a PDF, page by page. It never fails on
// individual pages that cannot be decoded; those pages contribute no text.
func Extract(data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("pdfparse: open document: %w", err)
	}

	pages := reader.NumPage()
	var sb strings.Builder
	var readable int
	for i := 1; i <= pages; i++ {
		if i > 1 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- PAGE %d ---\n", i)
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		readable += len(strings.TrimSpace(text))
	}

	return Result{
		Text:       sb.String(),
		Pages:      pages,
		LowQuality: readable < MinReadableChars,
	}, nil
}
