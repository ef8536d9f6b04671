package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/invoice-assistant/internal/common"
)

const defaultMaxUploadBytes = 25 << 20

// Handler exposes the invoice endpoints.
type Handler struct {
	Service *Service

	// MaxUploadBytes caps the whole multipart upload body. Zero means 25 MB.
	MaxUploadBytes int64
}

// Upload handles POST /api/v1/invoices/upload. Each file succeeds or fails
// independently; the response always carries the per-file breakdown.
func (h Handler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		common.WriteError(w, common.BadRequest("invalid multipart body", "files"))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		common.WriteError(w, common.BadRequest("no files provided", "files"))
		return
	}

	resp := BulkUploadResponse{Total: len(files)}
	for _, fh := range files {
		result := h.uploadOne(r, fh)
		if result.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
		resp.Results = append(resp.Results, result)
	}
	common.JSON(w, http.StatusOK, resp)
}

func (h Handler) uploadOne(r *http.Request, fh *multipart.FileHeader) UploadResult {
	if !isPDF(fh) {
		return UploadResult{Filename: fh.Filename, Error: "only PDF files are accepted"}
	}
	f, err := fh.Open()
	if err != nil {
		return UploadResult{Filename: fh.Filename, Error: err.Error()}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return UploadResult{Filename: fh.Filename, Error: err.Error()}
	}
	if len(data) == 0 {
		return UploadResult{Filename: fh.Filename, Error: "file is empty"}
	}
	return h.Service.Upload(r.Context(), fh.Filename, data)
}

// ListResponse is the paginated invoice history.
type ListResponse struct {
	Items      []Record          `json:"items"`
	Pagination common.Pagination `json:"pagination"`
}

// List handles GET /api/v1/invoices.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	common.JSON(w, http.StatusOK, ListResponse{
		Items:      common.Paginate(records, page, perPage),
		Pagination: common.Pagination{Page: page, PerPage: perPage, TotalItems: len(records)},
	})
}

// GetPDF handles GET /api/v1/invoices/{id}/pdf, streaming the stored file.
func (h Handler) GetPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}
	rc, rec, err := h.Service.OpenPDF(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
	if _, err := io.Copy(w, rc); err != nil {
		h.Service.Logger.Warn().Err(err).Int64("record_id", id).Msg("pdf stream interrupted")
	}
}

// Generate handles POST /api/v1/invoices/generate.
func (h Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", ""))
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}

	draft, docsUsed, err := h.Service.Generate(r.Context(), req.Prompt)
	if err != nil {
		h.writeGenerateError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, GenerateResponse{Invoice: draft, RAGDocsUsed: docsUsed})
}

// Export handles POST /api/v1/invoices/export, returning the rendered PDF
// as an attachment.
func (h Handler) Export(w http.ResponseWriter, r *http.Request) {
	var inv Data
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", ""))
		return
	}
	if len(inv.LineItems) == 0 {
		common.WriteError(w, common.BadRequest("invoice has no line items", "line_items"))
		return
	}

	pdfBytes, filename, _, err := h.Service.Export(r.Context(), inv)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdfBytes)
}

// Index handles POST /api/v1/invoices/{id}/index.
func (h Handler) Index(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.Index(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/invoices/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRecordNotFound) {
		common.WriteError(w, common.NotFound("invoice record not found"))
		return
	}
	common.WriteError(w, err)
}

func (h Handler) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrGeneratorNotConfigured):
		common.WriteError(w, common.NewAppError("NOT_CONFIGURED",
			"invoice generation is not configured; set the generator API key",
			http.StatusServiceUnavailable, err))
	case errors.Is(err, ErrDraftInvalid):
		common.WriteError(w, common.Unprocessable(
			"the generator could not produce a valid invoice draft; try rephrasing the request", err))
	default:
		common.WriteError(w, common.NewAppError("UPSTREAM_ERROR",
			"invoice generation failed", http.StatusBadGateway, err))
	}
}

func parseRecordID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := common.ParseInt64(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		common.WriteError(w, common.BadRequest("invalid id", "id"))
		return 0, false
	}
	return id, true
}

func isPDF(fh *multipart.FileHeader) bool {
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return false
	}
	ct := fh.Header.Get("Content-Type")
	return ct == "" || ct == "application/pdf" || ct == "application/octet-stream"
}
