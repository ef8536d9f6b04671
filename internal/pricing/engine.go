package pricing

import "errors"

// ErrInvalidInput is returned when a quantity or price is negative, or a
// percentage falls outside [0,100].
var ErrInvalidInput = errors.New("pricing: invalid input")

// LineItem describes a single billable entry on an invoice. DiscountPct and
// TaxPct default to zero so the same shape serves invoices with and without
// discount/tax columns.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price"`
	DiscountPct float64 `json:"discount_pct,omitempty"`
	TaxPct      float64 `json:"tax_pct,omitempty"`
	Subtotal    float64 `json:"subtotal"`
}

// Totals aggregates computed invoice components.
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	DiscountTotal float64 `json:"discount_total,omitempty"`
	TaxTotal      float64 `json:"tax_total,omitempty"`
	GrandTotal    float64 `json:"grand_total"`
}

// LineSubtotal computes quantity * unitPrice * (1 - discountPct/100).
func LineSubtotal(quantity, unitPrice, discountPct float64) (float64, error) {
	if quantity < 0 || unitPrice < 0 {
		return 0, ErrInvalidInput
	}
	if discountPct < 0 || discountPct > 100 {
		return 0, ErrInvalidInput
	}
	return quantity * unitPrice * (1 - discountPct/100), nil
}

// LineTax computes the tax amount on an already-discounted line subtotal.
func LineTax(lineSubtotal, taxPct float64) (float64, error) {
	if taxPct < 0 || taxPct > 100 {
		return 0, ErrInvalidInput
	}
	return lineSubtotal * taxPct / 100, nil
}

// Recalculate recomputes every line subtotal and the invoice totals from
// scratch. Incoming subtotal values are ignored: this is the authoritative
// calculation the editor and export path both rely on. An empty slice yields
// zero totals. Sums are not rounded here; rounding is a presentation concern
// applied once at display time.
func Recalculate(items []LineItem) ([]LineItem, Totals, error) {
	out := make([]LineItem, len(items))
	var totals Totals
	for i, it := range items {
		sub, err := LineSubtotal(it.Quantity, it.UnitPrice, it.DiscountPct)
		if err != nil {
			return nil, Totals{}, err
		}
		tax, err := LineTax(sub, it.TaxPct)
		if err != nil {
			return nil, Totals{}, err
		}
		it.Subtotal = sub
		out[i] = it
		totals.Subtotal += sub
		totals.DiscountTotal += it.Quantity * it.UnitPrice * it.DiscountPct / 100
		totals.TaxTotal += tax
	}
	totals.GrandTotal = totals.Subtotal + totals.TaxTotal
	return out, totals, nil
}

// Aggregate computes invoice totals without touching the line slice.
func Aggregate(items []LineItem) (Totals, error) {
	_, totals, err := Recalculate(items)
	return totals, err
}
