package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spherical/pdf-diff/internal/domain"
	"github.com/spherical/pdf-diff/internal/observability"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel  = "google/gemini-2.5-flash-preview-09-2025"
)

// Client transcribes page rasters through an OpenRouter vision model
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	retry      *RetryConfig
	logger     *observability.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg *RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
}

// Response represents the API response structure
type Response struct {
	ID      string     `json:"id"`
	Choices []Choice   `json:"choices"`
	Error   *StreamErr `json:"error,omitempty"`
}

// StreamErr is an error object the provider sends in place of a chunk once
// the stream has started.
type StreamErr struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a new LLM client
func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}

	c := &Client{
		apiKey:     apiKey,
		model:      model,
		endpoint:   openRouterURL,
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithStage("llm")
	return c
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

// Transcribe returns the full plain-text transcription of the page image.
func (c *Client) Transcribe(ctx context.Context, imagePath string) (string, error) {
	resultCh := make(chan string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		errCh <- c.Stream(ctx, imagePath, resultCh)
	}()

	var sb strings.Builder
	for chunk := range resultCh {
		sb.WriteString(chunk)
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

// Stream sends the page image to the model and streams the transcription
func (c *Client) Stream(ctx context.Context, imagePath string, resultCh chan<- string) error {
	if c.apiKey == "" {
		return domain.APIError("OpenRouter API key is not configured", nil)
	}

	req, err := c.buildRequest(imagePath)
	if err != nil {
		return domain.APIError("Failed to build request", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.APIError("Failed to marshal request", err)
	}

	resp, err := c.send(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/spherical/pdf-diff")
		req.Header.Set("X-Title", "PDF Revision Diff")

		return c.httpClient.Do(req)
	})
	if err != nil {
		return domain.APIError("Failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return domain.APIError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	if err := NewStreamParser(resp.Body).ParseAll(ctx, resultCh); err != nil {
		return domain.APIError("Failed to parse stream", err)
	}
	return nil
}

// buildRequest constructs the API request with the page image
func (c *Client) buildRequest(imagePath string) (*Request, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: buildPrompt()},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{msg},
		Stream:   true,
	}, nil
}

// buildPrompt creates the transcription prompt
func buildPrompt() string {
	return `You are an OCR engine. Transcribe ALL text visible on this document page.

RULES:
- Output plain text only. No Markdown, no code fences, no commentary.
- Preserve reading order: top to bottom, left to right, column by column.
- Keep one output line per printed line.
- Reproduce numbers, units, identifiers and punctuation exactly as printed.
- Do not correct spelling, expand abbreviations or translate.
- Transcribe table cells row by row, separating cells with a single space.
- Skip purely decorative graphics.
- If the page has no text, output nothing.`
}
