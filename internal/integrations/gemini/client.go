package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"willows-assistant/internal/domain"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash-exp"
	DefaultTimeout = 30 * time.Second
)

// generateRequest is the minimal request shape for the generateContent endpoint.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// generateResponse keeps every segment of the extraction path optional so a
// missing segment can be told apart from a decode failure.
type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Model      string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from model %s: %s", e.StatusCode, e.Model, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// DecodeError reports a 2xx response whose body was not the expected JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gemini: decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) DecodeFailure() bool { return true }

// Client calls the Gemini generateContent REST endpoint. The API key travels
// as the "key" query parameter.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = strings.TrimSpace(model)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds a single upstream call. Zero or negative keeps the
// client's own timeout. It applies to a copy of the http.Client, whether or
// not WithHTTPClient is also given and in either order.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a Client for DefaultModel at DefaultBaseURL unless options say otherwise.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.model == "" {
		return nil, errors.New("gemini: model must not be empty")
	}
	if c.httpClient == nil {
		return nil, errors.New("gemini: http client must not be nil")
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c, nil
}

func generateURL(baseURL, model, apiKey string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
}

// Generate returns candidates[0].content.parts[0].text, or "" when any segment
// of that path is missing.
func (c *Client) Generate(ctx context.Context, apiKey string, conv domain.Conversation) (string, error) {
	if apiKey == "" {
		return "", errors.New("gemini: api key must not be empty")
	}

	body, err := json.Marshal(toRequest(conv))
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, generateURL(c.baseURL, c.model, apiKey), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}

	var payload generateResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", &DecodeError{Err: err}
	}
	return firstCandidateText(payload), nil
}

func toRequest(conv domain.Conversation) generateRequest {
	contents := make([]content, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		contents = append(contents, content{
			Role:  m.Role,
			Parts: []part{{Text: m.Content}},
		})
	}
	return generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     conv.Generation.Temperature,
			TopK:            conv.Generation.TopK,
			TopP:            conv.Generation.TopP,
			MaxOutputTokens: conv.Generation.MaxOutputTokens,
		},
	}
}

func firstCandidateText(payload generateResponse) string {
	if len(payload.Candidates) == 0 {
		return ""
	}
	c := payload.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 || c.Parts[0].Text == nil {
		return ""
	}
	return *c.Parts[0].Text
}

func (c *Client) doJSONRequest(req *http.Request) ([]byte, error) {
	res, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, redactKey(doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			Model:      c.model,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// redactKey drops the request URL from transport errors so the API key never
// reaches the logs.
func redactKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
