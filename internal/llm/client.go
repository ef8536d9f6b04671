package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-assistant/internal/invoice"
	"github.com/noah-isme/invoice-assistant/internal/obs"
	"github.com/noah-isme/invoice-assistant/internal/resilience"
)

const maxRetries = 2

var (
	openFenceRe  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	closeFenceRe = regexp.MustCompile("\\s*```$")
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type invoiceEnvelope struct {
	Invoice *invoice.Data `json:"invoice"`
}

// Generate asks the model for an invoice draft and parses the reply. Parse
// failures are retried with fresh completions up to two extra times.
func (c Client) Generate(ctx context.Context, prompt string, in invoice.GenerateInput) (invoice.Data, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return invoice.Data{}, invoice.ErrGeneratorNotConfigured
	}
	system := buildSystemPrompt(in, time.Now())

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.Logger.Warn().Int("attempt", attempt+1).Msg("retrying llm completion")
		}
		raw, err := c.complete(ctx, system, prompt)
		if err != nil {
			return invoice.Data{}, err
		}
		parsed, err := parseInvoiceJSON(raw)
		if err != nil {
			c.Logger.Warn().Err(err).Int("attempt", attempt+1).Msg("llm output parse failed")
			lastErr = err
			continue
		}
		return parsed, nil
	}
	return invoice.Data{}, fmt.Errorf("%w after %d attempts: %v", invoice.ErrDraftInvalid, maxRetries+1, lastErr)
}

func (c Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	result := "ok"
	if err != nil || (resp != nil && resp.StatusCode >= 400) {
		result = "error"
	}
	if obs.LLMRequestLatency != nil {
		obs.LLMRequestLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		return "", fmt.Errorf("llm: completion call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm: upstream status %d: %s", resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm: response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func parseInvoiceJSON(raw string) (invoice.Data, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = openFenceRe.ReplaceAllString(cleaned, "")
	cleaned = closeFenceRe.ReplaceAllString(cleaned, "")

	var env invoiceEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
		return invoice.Data{}, fmt.Errorf("parse invoice json: %w", err)
	}
	if env.Invoice == nil {
		return invoice.Data{}, errors.New(`parse invoice json: missing "invoice" object`)
	}
	return *env.Invoice, nil
}
