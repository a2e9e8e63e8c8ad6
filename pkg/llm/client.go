// Package llm is the chat-completions client used for summarization. It only
// makes outbound calls; no local state is mutated here.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dtnitsch/deck-digest/models"
	"github.com/dtnitsch/deck-digest/pkg/retry"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Client calls a chat-completions endpoint with bounded retries.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	retry   retry.Config
	client  *http.Client
}

// NewClient builds a Client from the summarizer config.
func NewClient(cfg models.SummarizerConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		retry: retry.Config{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		},
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Complete sends the messages and returns the first choice's content.
// Transient failures (network errors, timeouts, 429, 5xx, empty or malformed
// bodies) are retried with doubling backoff; other HTTP errors abort at once.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	var content string
	err := retry.WithBackoff(ctx, c.retry, func(ctx context.Context) error {
		var err error
		content, err = c.callOnce(ctx, messages)
		return err
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// Summarize is the single-prompt convenience used by chunk summarization.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, []Message{{Role: "user", Content: prompt}})
}

func (c *Client) callOnce(ctx context.Context, messages []Message) (string, error) {
	reqBody := completionRequest{Model: c.model, Messages: messages}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", retry.Abort(fmt.Errorf("llm: failed to marshal request: %w", err))
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", retry.Abort(fmt.Errorf("llm: failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(respBody))
		httpErr := fmt.Errorf("llm: endpoint returned status %d: %s", resp.StatusCode, detail)
		if retry.HTTPStatusRetryable(resp.StatusCode) {
			return "", httpErr
		}
		return "", retry.Abort(httpErr)
	}

	var apiResp completionResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("llm: failed to parse response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("llm: API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}

	content := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm: empty completion content")
	}
	return content, nil
}
