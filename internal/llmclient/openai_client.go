// internal/llmclient/openai_client.go

// Package llmclient talks to an OpenAI-compatible chat completions endpoint.
// The agent uses it for one decision per tick, so calls are single-shot with
// a hard per-call timeout; the control loop's failure mode decides what
// happens when a call fails.
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ChatClient is the surface the decision engine needs. Implemented by
// OpenAIClient in production and by fakes in tests.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ContentPart is one element of a multimodal user message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inline data URL plus the requested analysis detail.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ChatRequest is the engine-facing request shape.
type ChatRequest struct {
	System    string
	UserParts []ContentPart
	ForceJSON bool
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionPayload struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Messages       []chatMessage   `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Config holds the connection settings for one OpenAI-compatible endpoint.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	APIKeyEnv   string
}

// OpenAIClient is a minimal chat completions client. One instance per run.
type OpenAIClient struct {
	cfg        Config
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIClient resolves the API key from the environment (loading a local
// .env once as a developer convenience) and builds the client.
func NewOpenAIClient(cfg Config, logger *zap.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llmclient: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}

	_ = godotenv.Load()
	apiKey := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if apiKey == "" {
		return nil, fmt.Errorf("llmclient: missing API key env var %q", cfg.APIKeyEnv)
	}

	return &OpenAIClient{
		cfg:        cfg,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("llm_client.openai"),
	}, nil
}

// PNGDataURL encodes a PNG screenshot as an inline data URL.
func PNGDataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// Complete performs a single chat completion call and returns the assistant
// message content. No retries: the caller's failure mode owns error handling.
func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.UserParts})

	payload := chatCompletionPayload{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages:    messages,
	}
	if req.ForceJSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llmclient: marshal request payload: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llmclient: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llmclient: read response body: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llmclient: non-JSON response (HTTP %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(respBody))
		if parsed.Error != nil && parsed.Error.Message != "" {
			detail = parsed.Error.Message
		}
		return "", fmt.Errorf("llmclient: API error %d: %s", resp.StatusCode, detail)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llmclient: API returned no choices")
	}

	content := parsed.Choices[0].Message.Content
	c.logger.Debug("Chat completion finished",
		zap.Duration("duration", time.Since(start)),
		zap.String("model", c.cfg.Model),
		zap.String("finish_reason", parsed.Choices[0].FinishReason),
		zap.Int("content_bytes", len(content)),
	)
	return content, nil
}
