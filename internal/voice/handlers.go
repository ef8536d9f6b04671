package voice

import (
	"errors"
	"io"
	"net/http"

	"github.com/noah-isme/invoice-assistant/internal/common"
	"github.com/noah-isme/invoice-assistant/internal/obs"
)

// Handler exposes the voice transcription endpoint.
type Handler struct {
	Client         Client
	MaxUploadBytes int64
}

// Transcribe handles POST /api/v1/voice/transcribe.
func (h Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		common.WriteError(w, common.BadRequest("audio file is required", "audio"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		common.WriteError(w, common.BadRequest("could not read audio file", "audio"))
		return
	}
	if len(audio) == 0 {
		common.WriteError(w, common.BadRequest("empty audio file", "audio"))
		return
	}

	filename := header.Filename
	if filename == "" {
		filename = "recording.webm"
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/webm"
	}

	transcript, err := h.Client.Transcribe(r.Context(), filename, contentType, audio)
	if err != nil {
		h.observe("error")
		common.WriteError(w, mapTranscribeError(err))
		return
	}
	h.observe("ok")
	common.JSON(w, http.StatusOK, map[string]string{"transcript": transcript})
}

func (h Handler) observe(result string) {
	if obs.TranscribeTotal != nil {
		obs.TranscribeTotal.WithLabelValues(result).Inc()
	}
}

func mapTranscribeError(err error) error {
	var upstream *UpstreamError
	switch {
	case errors.Is(err, ErrNotConfigured):
		return common.NewAppError("NOT_CONFIGURED", "transcription is not configured", http.StatusServiceUnavailable, err)
	case errors.Is(err, ErrTimeout):
		return common.NewAppError("TIMEOUT", "transcription timed out", http.StatusGatewayTimeout, err)
	case errors.As(err, &upstream):
		return common.NewAppError("UPSTREAM_ERROR", "transcription provider error", http.StatusBadGateway, err)
	case errors.Is(err, ErrJobFailed):
		return common.NewAppError("UPSTREAM_ERROR", "transcription job failed", http.StatusBadGateway, err)
	default:
		return err
	}
}
