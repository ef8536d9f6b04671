package llm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/invoice-assistant/internal/invoice"
)

// schemaExample is embedded verbatim in the system prompt so the model knows
// the exact output shape.
const schemaExample = `{
  "invoice": {
    "invoice_number": "Invoice-#1",
    "issue_date": "2025-11-01",
    "status": "draft",
    "from": {
      "name": "",
      "address": "",
      "email": "",
      "phone": "",
      "logo_path": null
    },
    "to": {
      "client_id": null,
      "name": "",
      "address": "",
      "email": "",
      "phone": ""
    },
    "line_items": [
      {
        "description": "",
        "quantity": 1,
        "unit": "item",
        "unit_price": 0.0,
        "discount_pct": 0.0,
        "tax_pct": 0.0,
        "subtotal": 0.0
      }
    ],
    "totals": {
      "subtotal": 0.0,
      "discount_total": 0.0,
      "tax_total": 0.0,
      "grand_total": 0.0
    },
    "notes": null
  }
}`

func buildSystemPrompt(in invoice.GenerateInput, now time.Time) string {
	profileJSON, _ := json.MarshalIndent(in.BusinessProfile, "", "  ")
	if in.BusinessProfile == nil {
		profileJSON = []byte("{}")
	}
	clientsJSON, _ := json.MarshalIndent(in.Clients, "", "  ")
	if in.Clients == nil {
		clientsJSON = []byte("[]")
	}
	ragBlock := in.RAGContext
	if ragBlock == "" {
		ragBlock = "(no historical invoices available)"
	}

	return fmt.Sprintf(`You are an invoice generation assistant. Return ONLY valid JSON matching the schema below.
No explanations, no markdown fences, no trailing commas.

Rules:
- Calculate each line item subtotal: quantity * unit_price
- Use today's date (%s) as issue_date if the user does not specify one
- Use null (never "") for unknown optional fields
- Set invoice_number to "%s" exactly and do not change it
- Populate the "from" block from the BUSINESS PROFILE below
- When the user names a known client, populate "to" from the CLIENT BOOK entry including client_id

SCHEMA:
%s

BUSINESS PROFILE:
%s

CLIENT BOOK:
%s

HISTORICAL INVOICE CONTEXT:
%s`,
		now.Format("2006-01-02"),
		in.NextInvoiceNumber,
		schemaExample,
		profileJSON,
		clientsJSON,
		ragBlock,
	)
}
