package rag

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	invoiceNumberRe = regexp.MustCompile(`(?i)invoice\s*(?:no|number|#)[:\s]*([\w\-]+)`)
	issueDateRe     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})\b`)
	grandTotalRe    = regexp.MustCompile(`(?i)(?:grand\s*total|total\s*due|amount\s*due)[:\s]*\$?([\d,]+\.?\d*)`)
)

// MetadataHints carries best-effort values scraped from raw invoice text.
// They are advisory only and never trusted for totals.
type MetadataHints struct {
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	IssueDate     string   `json:"issue_date,omitempty"`
	GrandTotal    *float64 `json:"grand_total,omitempty"`
}

// ExtractHints scans text for an invoice number, an issue date, and a grand
// total.
func ExtractHints(text string) MetadataHints {
	var hints MetadataHints
	if m := invoiceNumberRe.FindStringSubmatch(text); m != nil {
		hints.InvoiceNumber = strings.TrimSpace(m[1])
	}
	if m := issueDateRe.FindStringSubmatch(text); m != nil {
		hints.IssueDate = strings.TrimSpace(m[1])
	}
	if m := grandTotalRe.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			hints.GrandTotal = &v
		}
	}
	return hints
}
