package pdfgen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/invoice"
	"github.com/noah-isme/invoice-assistant/internal/pdfgen"
	"github.com/noah-isme/invoice-assistant/internal/pdfparse"
	"github.com/noah-isme/invoice-assistant/internal/pricing"
)

func sampleInvoice() invoice.Data {
	items := []pricing.LineItem{
		{Description: "Office cleaning", Quantity: 10, Unit: "hour", UnitPrice: 150},
		{Description: "Supplies", Quantity: 1, Unit: "item", UnitPrice: 400},
	}
	items, totals, _ := pricing.Recalculate(items)
	return invoice.Data{
		InvoiceNumber: "Invoice-7",
		IssueDate:     "2026-08-29",
		Status:        invoice.StatusDraft,
		From:          invoice.BusinessContact{Name: "Bright Cleaning LLC", Email: "billing@bright.example"},
		To:            invoice.ClientContact{Name: "Acme Corp", Address: "12 Main St"},
		LineItems:     items,
		Totals:        totals,
		Notes:         "Thank you for your business.",
	}
}

func TestRenderProducesReadablePDF(t *testing.T) {
	data, err := pdfgen.Renderer{}.Render(sampleInvoice(), invoice.RenderOptions{
		Currency:     "USD",
		PaymentTerms: "Net 30",
		BankName:     "First Bank",
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	result, err := pdfparse.Extract(data)
	require.NoError(t, err)
	require.False(t, result.LowQuality)
	require.Contains(t, result.Text, "Invoice-7")
	require.Contains(t, result.Text, "Office cleaning")
	require.Contains(t, result.Text, "Acme Corp")
	require.Contains(t, result.Text, "1900.00 USD")
	require.Contains(t, result.Text, "Net 30")
}

func TestRenderSkipsMissingLogo(t *testing.T) {
	data, err := pdfgen.Renderer{}.Render(sampleInvoice(), invoice.RenderOptions{
		LogoPath: "/nonexistent/logo.png",
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)
}

func TestRenderEmptyInvoice(t *testing.T) {
	data, err := pdfgen.Renderer{}.Render(invoice.Data{}, invoice.RenderOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
