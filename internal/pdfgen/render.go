package pdfgen

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/noah-isme/invoice-assistant/internal/invoice"
)

// Renderer draws invoices as A4 PDFs.
type Renderer struct{}

// Render lays out the invoice and returns raw PDF bytes. The totals on inv
// are printed as-is; callers recalculate before rendering. The logo is
// optional and skipped when the file does not exist.
func (Renderer) Render(inv invoice.Data, opts invoice.RenderOptions) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	if logoPath := opts.LogoPath; logoPath != "" {
		if _, err := os.Stat(logoPath); err == nil {
			imgType := strings.TrimPrefix(strings.ToUpper(filepath.Ext(logoPath)), ".")
			if imgType == "JPEG" {
				imgType = "JPG"
			}
			pdf.ImageOptions(logoPath, 10, 10, 30, 0, false,
				gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}, 0, "")
			pdf.SetY(10)
		}
	}

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(190, 12, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if inv.InvoiceNumber != "" {
		pdf.CellFormat(190, 5, inv.InvoiceNumber, "", 1, "R", false, 0, "")
	}
	if inv.IssueDate != "" {
		pdf.CellFormat(190, 5, fmt.Sprintf("Issued: %s", inv.IssueDate), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	renderParty(pdf, "From", contactLines(inv.From.Name, inv.From.Address, inv.From.Email, inv.From.Phone), 10)
	renderParty(pdf, "Bill To", contactLines(inv.To.Name, inv.To.Address, inv.To.Email, inv.To.Phone), 105)
	pdf.Ln(8)

	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(62, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(18, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(18, 7, "Unit", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(18, 7, "Disc %", "1", 0, "R", true, 0, "")
	pdf.CellFormat(18, 7, "Tax %", "1", 0, "R", true, 0, "")
	pdf.CellFormat(30, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, li := range inv.LineItems {
		pdf.CellFormat(62, 6, li.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, trimFloat(li.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(18, 6, li.Unit, "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", li.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(18, 6, trimFloat(li.DiscountPct), "1", 0, "R", false, 0, "")
		pdf.CellFormat(18, 6, trimFloat(li.TaxPct), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", li.Subtotal), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	currency := opts.Currency
	if currency == "" {
		currency = "USD"
	}
	totalsRow(pdf, "Subtotal", inv.Totals.Subtotal, currency, false)
	if inv.Totals.DiscountTotal > 0 {
		totalsRow(pdf, "Discount", -inv.Totals.DiscountTotal, currency, false)
	}
	if inv.Totals.TaxTotal > 0 {
		totalsRow(pdf, "Tax", inv.Totals.TaxTotal, currency, false)
	}
	totalsRow(pdf, "Grand Total", inv.Totals.GrandTotal, currency, true)

	if strings.TrimSpace(inv.Notes) != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(190, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(190, 5, inv.Notes, "", "L", false)
	}

	payLines := paymentLines(opts)
	if len(payLines) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(190, 6, "Payment", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, line := range payLines {
			pdf.CellFormat(190, 5, line, "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdfgen: render %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func renderParty(pdf *gofpdf.Fpdf, title string, lines []string, x float64) {
	y := pdf.GetY()
	pdf.SetXY(x, y)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(85, 6, title, "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for i, line := range lines {
		pdf.SetXY(x, y+6+float64(i)*5)
		pdf.CellFormat(85, 5, line, "", 0, "L", false, 0, "")
	}
	if x < 100 {
		pdf.SetXY(10, y)
	} else {
		pdf.SetY(y + 6 + float64(maxLines)*5)
	}
}

// maxLines keeps the From and Bill To columns the same height.
const maxLines = 4

func contactLines(name, address, email, phone string) []string {
	var lines []string
	for _, v := range []string{name, address, email, phone} {
		if strings.TrimSpace(v) != "" {
			lines = append(lines, v)
		}
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}

func totalsRow(pdf *gofpdf.Fpdf, label string, amount float64, currency string, bold bool) {
	if bold {
		pdf.SetFont("Arial", "B", 11)
	} else {
		pdf.SetFont("Arial", "", 10)
	}
	pdf.CellFormat(142, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(24, 6, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(24, 6, fmt.Sprintf("%.2f %s", amount, currency), "", 1, "R", false, 0, "")
}

func paymentLines(pay invoice.RenderOptions) []string {
	var lines []string
	if pay.PaymentTerms != "" {
		lines = append(lines, fmt.Sprintf("Terms: %s", pay.PaymentTerms))
	}
	if pay.BankName != "" {
		lines = append(lines, fmt.Sprintf("Bank: %s", pay.BankName))
	}
	if pay.AccountName != "" {
		lines = append(lines, fmt.Sprintf("Account Name: %s", pay.AccountName))
	}
	if pay.AccountNumber != "" {
		lines = append(lines, fmt.Sprintf("Account Number: %s", pay.AccountNumber))
	}
	if pay.RoutingNumber != "" {
		lines = append(lines, fmt.Sprintf("Routing Number: %s", pay.RoutingNumber))
	}
	if pay.PaymentNotes != "" {
		lines = append(lines, pay.PaymentNotes)
	}
	return lines
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
