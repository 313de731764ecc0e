package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	maxRetries        = 6
	baseRetryDelay    = 2 * time.Second
	minRateLimitDelay = 5 * time.Second
)

// openAICompatClient is the shared transport for every OpenAI-compatible
// backend. Each concrete provider differs only in Config.BaseURL, the
// default model, and an optional path prefix ("/v1" for most, "" for
// gemini's OpenAI-compat endpoint).
type openAICompatClient struct {
	cfg        Config
	client     *http.Client
	pathPrefix string
}

func newOpenAICompatClient(cfg Config) *openAICompatClient {
	return newOpenAICompatClientPrefix(cfg, "/v1")
}

func newOpenAICompatClientPrefix(cfg Config, prefix string) *openAICompatClient {
	return &openAICompatClient{
		cfg:        cfg,
		client:     &http.Client{Timeout: 120 * time.Second},
		pathPrefix: prefix,
	}
}

// NewOpenAICompat builds a generic OpenAI-compatible provider for the
// "custom" backend, where BaseURL is supplied entirely by configuration.
func NewOpenAICompat(cfg Config) Provider {
	return newOpenAICompatClient(cfg)
}

type chatCompletionRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	Temperature    float64   `json:"temperature,omitempty"`
	MaxTokens      int       `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAICompatClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat != "" {
		body.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: req.ResponseFormat}
	}

	var resp chatCompletionResponse
	if err := c.doPost(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("modelclient: empty choices in chat response")
	}
	return &ChatResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		FinishReason:     resp.Choices[0].FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *openAICompatClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body := embeddingRequest{Model: c.cfg.Model, Input: texts}
	var resp embeddingResponse
	if err := c.doPost(ctx, "/embeddings", body, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}

func (c *openAICompatClient) doPost(ctx context.Context, path string, reqBody, respBody any) error {
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("modelclient: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + c.pathPrefix + path

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * baseRetryDelay / 2
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("modelclient: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("modelclient: request failed: %w", err)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("modelclient: read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(data, respBody); err != nil {
				return fmt.Errorf("modelclient: decode response: %w", err)
			}
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := minRateLimitDelay
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					wait = time.Duration(secs) * time.Second
				}
			}
			lastErr = fmt.Errorf("modelclient: rate limited (status %d): %s", resp.StatusCode, data)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if retryableStatusCode(resp.StatusCode) {
			lastErr = fmt.Errorf("modelclient: retryable status %d: %s", resp.StatusCode, data)
			continue
		}

		return fmt.Errorf("modelclient: request failed with status %d: %s", resp.StatusCode, data)
	}

	return fmt.Errorf("modelclient: exhausted retries: %w", lastErr)
}

func retryableStatusCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
