package invoice

import (
	"errors"
	"time"

	"github.com/noah-isme/invoice-assistant/internal/pricing"
)

// ErrDraftInvalid indicates the generator exhausted its attempts without
// producing a parseable invoice draft.
var ErrDraftInvalid = errors.New("invoice: generator returned no valid draft")

// ErrGeneratorNotConfigured indicates draft generation has no API key.
var ErrGeneratorNotConfigured = errors.New("invoice: generator not configured")

// Record sources.
const (
	SourceUploaded  = "uploaded"
	SourceGenerated = "generated"
)

// Record statuses.
const (
	StatusProcessing  = "processing"
	StatusIndexed     = "indexed"
	StatusParseFailed = "parse_failed"
	StatusDraft       = "draft"
	StatusExported    = "exported"
)

// Record is a row in the invoice history.
type Record struct {
	ID            int64      `json:"id"`
	Filename      string     `json:"filename"`
	FilePath      string     `json:"file_path"`
	Source        string     `json:"source"`
	InvoiceNumber *string    `json:"invoice_number,omitempty"`
	ClientName    *string    `json:"client_name,omitempty"`
	IssueDate     *string    `json:"issue_date,omitempty"`
	GrandTotal    *float64   `json:"grand_total,omitempty"`
	Currency      string     `json:"currency"`
	DocID         *string    `json:"doc_id,omitempty"`
	Status        string     `json:"status"`
	InvoiceJSON   *string    `json:"invoice_json,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// BusinessContact is the issuing party block on an invoice.
type BusinessContact struct {
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LogoPath string `json:"logo_path,omitempty"`
}

// ClientContact is the billed party block on an invoice.
type ClientContact struct {
	ClientID *int64 `json:"client_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Data is the invoice document itself: the editor payload, the export
// request body, and the contract the generator must produce.
type Data struct {
	InvoiceNumber string             `json:"invoice_number,omitempty"`
	IssueDate     string             `json:"issue_date,omitempty"`
	Status        string             `json:"status,omitempty"`
	From          BusinessContact    `json:"from"`
	To            ClientContact      `json:"to"`
	LineItems     []pricing.LineItem `json:"line_items"`
	Totals        pricing.Totals     `json:"totals"`
	Notes         string             `json:"notes,omitempty"`
}

// UploadResult reports the outcome for one file of a bulk upload.
type UploadResult struct {
	Filename string  `json:"filename"`
	Success  bool    `json:"success"`
	Record   *Record `json:"record,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// BulkUploadResponse is the body of POST /invoices/upload.
type BulkUploadResponse struct {
	Results   []UploadResult `json:"results"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// GenerateRequest is the body of POST /invoices/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required,min=1,max=2000"`
}

// GenerateResponse carries the drafted invoice and how much retrieved
// context informed it.
type GenerateResponse struct {
	Invoice     Data `json:"invoice"`
	RAGDocsUsed int  `json:"rag_docs_used"`
}

// GenerateInput is everything besides the user prompt that shapes a draft.
type GenerateInput struct {
	BusinessProfile   map[string]any
	Clients           []map[string]any
	RAGContext        string
	NextInvoiceNumber string
}

// RenderOptions carries presentation details handed to the PDF renderer.
type RenderOptions struct {
	LogoPath      string
	Currency      string
	PaymentTerms  string
	BankName      string
	AccountName   string
	AccountNumber string
	RoutingNumber string
	PaymentNotes  string
}
