package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (Handler, *fakeRecords, *fakeFiles, *fakeChunks) {
	t.Helper()
	svc, records, files, chunks := newService(t)
	svc.Renderer = &fakeRenderer{}
	return Handler{Service: svc}, records, files, chunks
}

func doRequest(h http.HandlerFunc, r *http.Request, params map[string]string) *httptest.ResponseRecorder {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}

func multipartUpload(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestUploadHandlerReportsPerFileResults(t *testing.T) {
	h, _, _, _ := newHandler(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"good.pdf": invoicePDF(t, "Invoice Number: INV-9 sent to Globex Industries for services rendered"),
		"junk.pdf": []byte("garbage bytes"),
		"note.txt": []byte("not a pdf"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(h.Upload, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BulkUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 2, resp.Failed)

	byName := map[string]UploadResult{}
	for _, r := range resp.Results {
		byName[r.Filename] = r
	}
	assert.True(t, byName["good.pdf"].Success)
	assert.Contains(t, byName["note.txt"].Error, "only PDF")
	assert.False(t, byName["junk.pdf"].Success)
}

func TestUploadHandlerRequiresFiles(t *testing.T) {
	h, _, _, _ := newHandler(t)

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(h.Upload, req, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestListHandlerReturnsHistory(t *testing.T) {
	h, records, _, _ := newHandler(t)
	_, err := records.Insert(context.Background(), Record{Filename: "a.pdf", Status: StatusIndexed})
	require.NoError(t, err)

	rec := doRequest(h.List, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Items, 1)
	assert.Equal(t, "a.pdf", listed.Items[0].Filename)
	assert.Equal(t, 1, listed.Pagination.TotalItems)

	rec = doRequest(h.List, httptest.NewRequest(http.MethodGet, "/api/v1/invoices?page=2&limit=1", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Items)
}

func TestGetPDFStreamsStoredFile(t *testing.T) {
	h, records, files, _ := newHandler(t)
	_, path, err := files.Save("a.pdf", strings.NewReader("%PDF-content"))
	require.NoError(t, err)
	stored, err := records.Insert(context.Background(), Record{Filename: "a.pdf", FilePath: path})
	require.NoError(t, err)

	rec := doRequest(h.GetPDF, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/1/pdf", nil),
		map[string]string{"id": fmt.Sprint(stored.ID)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "a.pdf")
	assert.Equal(t, "%PDF-content", rec.Body.String())
}

func TestGetPDFUnknownRecord(t *testing.T) {
	h, _, _, _ := newHandler(t)

	rec := doRequest(h.GetPDF, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/99/pdf", nil),
		map[string]string{"id": "99"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestGenerateHandlerReturnsDraft(t *testing.T) {
	h, _, _, _ := newHandler(t)
	h.Service.Generator = &fakeGenerator{draft: Data{InvoiceNumber: "Invoice-#1"}}
	h.Service.Retriever = fakeRetriever{docs: 3}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate",
		strings.NewReader(`{"prompt":"invoice acme for 10 hours"}`))
	rec := doRequest(h.Generate, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invoice-#1", resp.Invoice.InvoiceNumber)
	assert.Equal(t, 3, resp.RAGDocsUsed)
}

func TestGenerateHandlerValidatesPrompt(t *testing.T) {
	h, _, _, _ := newHandler(t)
	h.Service.Generator = &fakeGenerator{}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate",
		strings.NewReader(`{"prompt":"   "}`))
	rec := doRequest(h.Generate, req, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no api key", ErrGeneratorNotConfigured, http.StatusServiceUnavailable, "NOT_CONFIGURED"},
		{"invalid draft", fmt.Errorf("after retries: %w", ErrDraftInvalid), http.StatusUnprocessableEntity, "UNPROCESSABLE"},
		{"upstream down", errors.New("connection refused"), http.StatusBadGateway, "UPSTREAM_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _, _, _ := newHandler(t)
			h.Service.Generator = &fakeGenerator{err: tc.err}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/generate",
				strings.NewReader(`{"prompt":"invoice acme"}`))
			rec := doRequest(h.Generate, req, nil)
			require.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rec))
		})
	}
}

func TestExportHandlerReturnsAttachment(t *testing.T) {
	h, _, _, _ := newHandler(t)

	payload, err := json.Marshal(exportInvoice())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/export", bytes.NewReader(payload))
	rec := doRequest(h.Export, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Invoice-#12.pdf")
	assert.NotZero(t, rec.Body.Len())
}

func TestExportHandlerRequiresLineItems(t *testing.T) {
	h, _, _, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/export",
		strings.NewReader(`{"invoice_number":"Invoice-#1","line_items":[]}`))
	rec := doRequest(h.Export, req, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestIndexHandlerRejectsRecordWithoutJSON(t *testing.T) {
	h, records, _, _ := newHandler(t)
	stored, err := records.Insert(context.Background(), Record{Filename: "a.pdf"})
	require.NoError(t, err)

	rec := doRequest(h.Index, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/1/index", nil),
		map[string]string{"id": fmt.Sprint(stored.ID)})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "UNPROCESSABLE", errorCode(t, rec))
}

func TestDeleteHandlerReturnsNoContent(t *testing.T) {
	h, records, _, _ := newHandler(t)
	stored, err := records.Insert(context.Background(), Record{Filename: "a.pdf"})
	require.NoError(t, err)

	rec := doRequest(h.Delete, httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/1", nil),
		map[string]string{"id": fmt.Sprint(stored.ID)})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())

	rec = doRequest(h.Delete, httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/1", nil),
		map[string]string{"id": fmt.Sprint(stored.ID)})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteHandlerRejectsBadID(t *testing.T) {
	h, _, _, _ := newHandler(t)

	rec := doRequest(h.Delete, httptest.NewRequest(http.MethodDelete, "/api/v1/invoices/abc", nil),
		map[string]string{"id": "abc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
