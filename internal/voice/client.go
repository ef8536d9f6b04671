package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-assistant/internal/resilience"
)

// ErrNotConfigured indicates no Speechmatics API key is set.
var ErrNotConfigured = errors.New("voice: api key not configured")

// ErrJobFailed indicates the transcription job ended in a terminal non-done state.
var ErrJobFailed = errors.New("voice: transcription job failed")

// ErrTimeout indicates the job did not finish within the polling window.
var ErrTimeout = errors.New("voice: transcription job timed out")

// UpstreamError carries a non-2xx status from the transcription provider.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("voice: upstream status %d: %s", e.StatusCode, e.Body)
}

// Client submits batch transcription jobs to a Speechmatics-compatible API
// and polls them to completion.
type Client struct {
	APIKey       string
	BaseURL      string
	HTTP         resilience.HTTPClient
	Logger       zerolog.Logger
	PollInterval time.Duration
	PollMax      time.Duration
}

type jobConfig struct {
	Type                string              `json:"type"`
	TranscriptionConfig map[string]string   `json:"transcription_config"`
	LanguageIDConfig    map[string][]string `json:"language_identification_config"`
}

// Transcribe sends the audio and returns the plain-text transcript.
// Language is auto-detected between English and Spanish.
func (c Client) Transcribe(ctx context.Context, filename, contentType string, audio []byte) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", ErrNotConfigured
	}

	jobID, err := c.submitJob(ctx, filename, contentType, audio)
	if err != nil {
		return "", err
	}
	c.Logger.Info().Str("job_id", jobID).Msg("transcription job submitted")

	if err := c.waitForJob(ctx, jobID); err != nil {
		return "", err
	}
	return c.fetchTranscript(ctx, jobID)
}

func (c Client) submitJob(ctx context.Context, filename, contentType string, audio []byte) (string, error) {
	cfg, err := json.Marshal(jobConfig{
		Type:                "transcription",
		TranscriptionConfig: map[string]string{"language": "auto"},
		LanguageIDConfig:    map[string][]string{"expected_languages": {"en", "es"}},
	})
	if err != nil {
		return "", fmt.Errorf("voice: marshal job config: %w", err)
	}

	// Strip codec parameters, e.g. "audio/webm;codecs=opus" -> "audio/webm"
	ct := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if ct == "" {
		ct = "audio/webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="data_file"; filename=%q`, filename))
	hdr.Set("Content-Type", ct)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("voice: build multipart: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("voice: write audio part: %w", err)
	}
	if err := mw.WriteField("config", string(cfg)); err != nil {
		return "", fmt.Errorf("voice: write config field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("voice: close multipart: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/jobs", mw.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("voice: decode job response: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("voice: job response missing id")
	}
	return out.ID, nil
}

func (c Client) waitForJob(ctx context.Context, jobID string) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	max := c.PollMax
	if max <= 0 {
		max = 90 * time.Second
	}
	deadline := time.Now().Add(max)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}

		resp, err := c.do(ctx, http.MethodGet, "/jobs/"+jobID, "", nil)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			resp.Body.Close()
			return err
		}
		var out struct {
			Job struct {
				Status string `json:"status"`
			} `json:"job"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("voice: decode job status: %w", decodeErr)
		}

		switch out.Job.Status {
		case "done":
			return nil
		case "rejected", "deleted", "expired":
			return fmt.Errorf("%w: status %s", ErrJobFailed, out.Job.Status)
		}
	}
}

func (c Client) fetchTranscript(ctx context.Context, jobID string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/transcript?format=txt", "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("voice: read transcript: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}

func (c Client) do(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reader)
	if err != nil {
		return nil, fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("voice: request %s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &UpstreamError{StatusCode: resp.StatusCode, Body: string(snippet)}
}
