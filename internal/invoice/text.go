package invoice

import (
	"fmt"
	"strings"
)

// renderText flattens a structured invoice into plain text for the retrieval
// index.
func renderText(inv Data) string {
	var lines []string

	if inv.InvoiceNumber != "" {
		lines = append(lines, fmt.Sprintf("Invoice: %s", inv.InvoiceNumber))
	}
	if inv.IssueDate != "" {
		lines = append(lines, fmt.Sprintf("Date: %s", inv.IssueDate))
	}

	if from := joinContact(inv.From.Name, inv.From.Address, inv.From.Email, inv.From.Phone); from != "" {
		lines = append(lines, fmt.Sprintf("From: %s", from))
	}
	if to := joinContact(inv.To.Name, inv.To.Address, inv.To.Email, inv.To.Phone); to != "" {
		lines = append(lines, fmt.Sprintf("Bill To: %s", to))
	}

	if len(inv.LineItems) > 0 {
		lines = append(lines, "", "Line Items:")
		for _, item := range inv.LineItems {
			lines = append(lines, fmt.Sprintf("  - %s: %s %s x $%.2f = $%.2f",
				item.Description, trimFloat(item.Quantity), item.Unit, item.UnitPrice, item.Subtotal))
		}
	}

	lines = append(lines, "", fmt.Sprintf("Total: $%.2f", inv.Totals.GrandTotal))

	if inv.Notes != "" {
		lines = append(lines, "", fmt.Sprintf("Notes: %s", inv.Notes))
	}
	return strings.Join(lines, "\n")
}

func joinContact(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
