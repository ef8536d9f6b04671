package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-assistant/internal/client"
	"github.com/noah-isme/invoice-assistant/internal/common"
	"github.com/noah-isme/invoice-assistant/internal/obs"
	"github.com/noah-isme/invoice-assistant/internal/pdfparse"
	"github.com/noah-isme/invoice-assistant/internal/pricing"
	"github.com/noah-isme/invoice-assistant/internal/rag"
	"github.com/noah-isme/invoice-assistant/internal/settings"
	"github.com/noah-isme/invoice-assistant/internal/storage"
)

// RecordStore persists invoice records.
type RecordStore interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	GetByNumber(ctx context.Context, number string) (Record, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// FileStore keeps the PDF files.
type FileStore interface {
	Save(filename string, r io.Reader) (string, string, error)
	SaveNamed(filename string, data []byte) (string, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

// ChunkIndex stores and evicts retrieval chunks per document.
type ChunkIndex interface {
	Add(ctx context.Context, docID, filename string, chunks []string) error
	Delete(ctx context.Context, docID string) error
}

// ContextSource builds the retrieval context block for a prompt.
type ContextSource interface {
	Context(ctx context.Context, prompt string) (string, int, error)
}

// Generator drafts an invoice from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, in GenerateInput) (Data, error)
}

// Renderer draws an invoice into PDF bytes.
type Renderer interface {
	Render(inv Data, opts RenderOptions) ([]byte, error)
}

// ProfileSource supplies the business profile.
type ProfileSource interface {
	Get(ctx context.Context) (settings.BusinessSettings, error)
}

// ClientSource supplies the client book.
type ClientSource interface {
	List(ctx context.Context, search string) ([]client.Client, error)
}

// IndexEnqueuer schedules background re-indexing of an exported record.
type IndexEnqueuer interface {
	EnqueueIndex(ctx context.Context, recordID int64) error
}

// Service orchestrates the invoice pipelines.
type Service struct {
	Records   RecordStore
	Files     FileStore
	Chunks    ChunkIndex
	Retriever ContextSource
	Generator Generator
	Renderer  Renderer
	Profile   ProfileSource
	Clients   ClientSource
	Enqueuer  IndexEnqueuer
	Logger    zerolog.Logger

	ChunkSize       int
	ChunkOverlap    int
	DefaultCurrency string
	IndexOnExport   bool
}

func (s *Service) currency() string {
	if s.DefaultCurrency != "" {
		return s.DefaultCurrency
	}
	return "USD"
}

// Upload ingests one PDF: save, record, extract, chunk, index, hint.
// Failures are reported per file, never as a request-level error.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) UploadResult {
	_, path, err := s.Files.Save(filename, bytes.NewReader(data))
	if err != nil {
		s.observeUpload("save_failed")
		return UploadResult{Filename: filename, Error: err.Error()}
	}

	docID := uuid.NewString()
	rec, err := s.Records.Insert(ctx, Record{
		Filename: filename,
		FilePath: path,
		Source:   SourceUploaded,
		Currency: s.currency(),
		DocID:    &docID,
		Status:   StatusProcessing,
	})
	if err != nil {
		s.observeUpload("error")
		return UploadResult{Filename: filename, Error: err.Error()}
	}

	extracted, err := pdfparse.Extract(data)
	if err != nil || extracted.LowQuality {
		rec.Status = StatusParseFailed
		if updated, uerr := s.Records.Update(ctx, rec); uerr == nil {
			rec = updated
		}
		s.observeUpload("parse_failed")
		msg := "PDF appears to be scanned/image-only with no text layer."
		if err != nil {
			msg = fmt.Sprintf("could not parse PDF: %v", err)
		}
		return UploadResult{Filename: filename, Record: &rec, Error: msg}
	}

	chunks := rag.Chunk(extracted.Text, s.ChunkSize, s.ChunkOverlap)
	if err := s.Chunks.Add(ctx, docID, filename, chunks); err != nil {
		s.observeUpload("error")
		rec.Status = StatusParseFailed
		if updated, uerr := s.Records.Update(ctx, rec); uerr == nil {
			rec = updated
		}
		return UploadResult{Filename: filename, Record: &rec, Error: err.Error()}
	}
	if obs.ChunksIndexed != nil {
		obs.ChunksIndexed.Add(float64(len(chunks)))
	}

	hints := rag.ExtractHints(extracted.Text)
	if hints.InvoiceNumber != "" {
		rec.InvoiceNumber = &hints.InvoiceNumber
	}
	if hints.IssueDate != "" {
		rec.IssueDate = &hints.IssueDate
	}
	rec.GrandTotal = hints.GrandTotal
	rec.Status = StatusIndexed
	rec, err = s.Records.Update(ctx, rec)
	if err != nil {
		s.observeUpload("error")
		return UploadResult{Filename: filename, Error: err.Error()}
	}

	s.observeUpload("ok")
	s.Logger.Info().Str("filename", filename).Str("doc_id", docID).
		Int("chunks", len(chunks)).Msg("invoice indexed")
	return UploadResult{Filename: filename, Success: true, Record: &rec}
}

// List returns the invoice history, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.Records.List(ctx)
}

// OpenPDF returns the stored PDF stream for a record.
func (s *Service) OpenPDF(ctx context.Context, id int64) (io.ReadCloser, Record, error) {
	rec, err := s.Records.Get(ctx, id)
	if err != nil {
		return nil, Record{}, err
	}
	rc, err := s.Files.Open(rec.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, Record{}, common.NotFound("PDF file not found on disk")
	}
	if err != nil {
		return nil, Record{}, err
	}
	return rc, rec, nil
}

// Generate drafts a new invoice from a prompt using the business profile,
// the client book, and retrieved history.
func (s *Service) Generate(ctx context.Context, prompt string) (Data, int, error) {
	count, err := s.Records.Count(ctx)
	if err != nil {
		return Data{}, 0, err
	}
	nextNumber := fmt.Sprintf("Invoice-#%d", count+1)

	profile := map[string]any{}
	if s.Profile != nil {
		if bs, err := s.Profile.Get(ctx); err != nil {
			s.Logger.Warn().Err(err).Msg("business profile unavailable for generation")
		} else {
			profile = bs.Profile()
		}
	}

	var clientBook []map[string]any
	if s.Clients != nil {
		if all, err := s.Clients.List(ctx, ""); err != nil {
			s.Logger.Warn().Err(err).Msg("client book unavailable for generation")
		} else {
			clientBook = client.ContextEntries(all)
		}
	}

	ragContext := ""
	docsUsed := 0
	if s.Retriever != nil {
		ragContext, docsUsed, err = s.Retriever.Context(ctx, prompt)
		if err != nil {
			s.Logger.Warn().Err(err).Msg("retrieval context unavailable for generation")
			ragContext, docsUsed = "", 0
		}
	}

	draft, err := s.Generator.Generate(ctx, prompt, GenerateInput{
		BusinessProfile:   profile,
		Clients:           clientBook,
		RAGContext:        ragContext,
		NextInvoiceNumber: nextNumber,
	})
	if err != nil {
		s.observeGenerate("error")
		return Data{}, 0, err
	}

	s.observeGenerate("ok")
	s.Logger.Info().Str("invoice_number", nextNumber).Int("rag_docs", docsUsed).
		Msg("invoice draft generated")
	return draft, docsUsed, nil
}

// Export recalculates totals, renders the PDF, stores it, and upserts the
// record by invoice number. It returns the PDF bytes and download filename.
func (s *Service) Export(ctx context.Context, inv Data) ([]byte, string, Record, error) {
	items, totals, err := pricing.Recalculate(inv.LineItems)
	if err != nil {
		return nil, "", Record{}, common.BadRequest(err.Error(), "line_items")
	}
	inv.LineItems = items
	inv.Totals = totals

	opts := RenderOptions{Currency: s.currency()}
	if s.Profile != nil {
		if bs, err := s.Profile.Get(ctx); err == nil {
			opts = renderOptions(bs)
		}
	}

	start := time.Now()
	pdfBytes, err := s.Renderer.Render(inv, opts)
	if obs.PDFRenderLatency != nil {
		obs.PDFRenderLatency.Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		s.observeExport("render_failed")
		return nil, "", Record{}, fmt.Errorf("render invoice PDF: %w", err)
	}

	filename := exportFilename(inv.InvoiceNumber)
	path, err := s.Files.SaveNamed(filename, pdfBytes)
	if err != nil {
		s.observeExport("error")
		return nil, "", Record{}, err
	}

	invoiceJSON, err := json.Marshal(inv)
	if err != nil {
		s.observeExport("error")
		return nil, "", Record{}, fmt.Errorf("marshal invoice: %w", err)
	}
	jsonStr := string(invoiceJSON)

	rec, err := s.upsertExported(ctx, inv, filename, path, jsonStr, opts.Currency)
	if err != nil {
		s.observeExport("error")
		return nil, "", Record{}, err
	}

	if s.IndexOnExport && s.Enqueuer != nil {
		if err := s.Enqueuer.EnqueueIndex(ctx, rec.ID); err != nil {
			s.Logger.Warn().Err(err).Int64("record_id", rec.ID).Msg("index task enqueue failed")
		}
	}

	s.observeExport("ok")
	s.Logger.Info().Str("invoice_number", inv.InvoiceNumber).Str("path", path).
		Msg("invoice exported")
	return pdfBytes, filename, rec, nil
}

// Index (re)indexes an exported record into the retrieval store from its
// stored JSON.
func (s *Service) Index(ctx context.Context, id int64) (Record, error) {
	rec, err := s.Records.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.InvoiceJSON == nil || strings.TrimSpace(*rec.InvoiceJSON) == "" {
		return Record{}, common.Unprocessable(
			"no invoice data available for this record; re-export the invoice to enable indexing", nil)
	}

	var inv Data
	if err := json.Unmarshal([]byte(*rec.InvoiceJSON), &inv); err != nil {
		return Record{}, common.Unprocessable("stored invoice data is corrupt", err)
	}

	if rec.DocID != nil && *rec.DocID != "" {
		if err := s.Chunks.Delete(ctx, *rec.DocID); err != nil {
			return Record{}, err
		}
	}

	docID := uuid.NewString()
	chunks := rag.Chunk(renderText(inv), s.ChunkSize, s.ChunkOverlap)
	if err := s.Chunks.Add(ctx, docID, rec.Filename, chunks); err != nil {
		return Record{}, err
	}
	if obs.ChunksIndexed != nil {
		obs.ChunksIndexed.Add(float64(len(chunks)))
	}

	rec.DocID = &docID
	rec, err = s.Records.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.Logger.Info().Int64("record_id", id).Str("doc_id", docID).
		Int("chunks", len(chunks)).Msg("exported invoice indexed")
	return rec, nil
}

// Delete removes a record, its chunks, and (best effort) its PDF file.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rec, err := s.Records.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.DocID != nil && *rec.DocID != "" {
		if err := s.Chunks.Delete(ctx, *rec.DocID); err != nil {
			return err
		}
	}
	if err := s.Files.Remove(rec.FilePath); err != nil {
		s.Logger.Warn().Err(err).Str("path", rec.FilePath).Msg("pdf delete failed")
	}
	return s.Records.Delete(ctx, id)
}

func (s *Service) upsertExported(ctx context.Context, inv Data, filename, path, invoiceJSON, currency string) (Record, error) {
	var number *string
	if inv.InvoiceNumber != "" {
		number = &inv.InvoiceNumber
	}
	var clientName *string
	if inv.To.Name != "" {
		clientName = &inv.To.Name
	}
	var issueDate *string
	if inv.IssueDate != "" {
		issueDate = &inv.IssueDate
	}
	grandTotal := inv.Totals.GrandTotal

	if number != nil {
		existing, err := s.Records.GetByNumber(ctx, *number)
		switch {
		case err == nil:
			existing.Filename = filename
			existing.FilePath = path
			existing.ClientName = clientName
			existing.IssueDate = issueDate
			existing.GrandTotal = &grandTotal
			existing.Currency = currency
			existing.Status = StatusExported
			existing.InvoiceJSON = &invoiceJSON
			return s.Records.Update(ctx, existing)
		case !errors.Is(err, ErrRecordNotFound):
			return Record{}, err
		}
	}

	return s.Records.Insert(ctx, Record{
		Filename:      filename,
		FilePath:      path,
		Source:        SourceGenerated,
		InvoiceNumber: number,
		ClientName:    clientName,
		IssueDate:     issueDate,
		GrandTotal:    &grandTotal,
		Currency:      currency,
		Status:        StatusExported,
		InvoiceJSON:   &invoiceJSON,
	})
}

func renderOptions(bs settings.BusinessSettings) RenderOptions {
	opts := RenderOptions{
		Currency:     bs.DefaultCurrency,
		PaymentTerms: bs.PaymentTerms,
	}
	if bs.LogoPath != nil {
		opts.LogoPath = *bs.LogoPath
	}
	if bs.BankName != nil {
		opts.BankName = *bs.BankName
	}
	if bs.AccountName != nil {
		opts.AccountName = *bs.AccountName
	}
	if bs.AccountNumber != nil {
		opts.AccountNumber = *bs.AccountNumber
	}
	if bs.RoutingNumber != nil {
		opts.RoutingNumber = *bs.RoutingNumber
	}
	if bs.PaymentNotes != nil {
		opts.PaymentNotes = *bs.PaymentNotes
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return opts
}

func exportFilename(number string) string {
	name := strings.TrimSpace(number)
	if name == "" {
		name = "invoice"
	}
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, " ", "_")
	return name + ".pdf"
}

func (s *Service) observeUpload(result string) {
	if obs.UploadsTotal != nil {
		obs.UploadsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeGenerate(result string) {
	if obs.GenerateTotal != nil {
		obs.GenerateTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeExport(result string) {
	if obs.ExportsTotal != nil {
		obs.ExportsTotal.WithLabelValues(result).Inc()
	}
}
