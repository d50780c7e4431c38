package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/provider"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Client implements provider.Provider against the OpenAI HTTP API.
type Client struct {
	apiKey  string
	baseURL string
	models  map[string]config.LLMModel
	http    *http.Client
}

// New creates an OpenAI-backed provider from configuration. The API key
// falls back to OPENAI_API_KEY when unset.
func New(cfg config.LLMConfig) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		models:  cfg.Models,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	Temperature    *float64           `json:"temperature,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat    `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat sends a structured conversation and returns the raw completion.
func (c *Client) Chat(ctx context.Context, model string, messages []provider.Message, opts provider.ChatOptions) (string, provider.Usage, error) {
	m, ok := c.models[model]
	if !ok {
		return "", provider.Usage{}, fmt.Errorf("model %s not configured", model)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	req := chatRequest{
		Model:    apiModel,
		Messages: messages,
	}
	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	} else if m.Temperature > 0 {
		t := m.Temperature
		req.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	} else if m.MaxTokens > 0 {
		req.MaxTokens = m.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return "", provider.Usage{}, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", provider.Usage{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		return "", provider.Usage{}, fmt.Errorf("openai: %s (%s)", resp.Error.Message, resp.Error.Type)
	}
	if len(resp.Choices) == 0 {
		return "", provider.Usage{}, fmt.Errorf("no choices in response")
	}
	usage := provider.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// Embed generates vector embeddings for the provided inputs.
func (c *Client) Embed(ctx context.Context, model string, input []string) ([][]float32, error) {
	if len(input) == 0 {
		return nil, nil
	}
	m, ok := c.models[model]
	if !ok {
		return nil, fmt.Errorf("model %s not configured", model)
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	body, err := c.post(ctx, "/embeddings", map[string]interface{}{
		"model": apiModel,
		"input": input,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Verify checks the credential against the models endpoint.
func (c *Client) Verify(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("openai api key not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("credential check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("credential check: invalid api key (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("credential check: status %d", resp.StatusCode)
	}
	return nil
}

// CostEstimate converts token usage into an approximate dollar cost.
func (c *Client) CostEstimate(model string, usage provider.Usage) float64 {
	m, ok := c.models[model]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1000*m.CostPer1K +
		float64(usage.CompletionTokens)/1000*m.CostPer1KOutput
}

// post sends a JSON request, retrying 429/5xx and transport errors with
// exponential backoff. Other 4xx statuses are terminal.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
			continue
		default:
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}
	}
	return nil, fmt.Errorf("openai %s failed after %d attempts: %w", path, maxAttempts, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
