// Package llm is a minimal client for OpenAI-compatible chat completion
// APIs, plus the address correction source built on it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.openai.com/v1"
	DefaultModel        = "gpt-4.1-mini"
	DefaultEndpointPath = "/chat/completions"
	DefaultTimeout      = 60 * time.Second
)

// Options configures a Client. Zero values take the defaults above.
type Options struct {
	BaseURL      string
	Model        string
	APIKey       string
	EndpointPath string // may be a full URL
	Timeout      time.Duration
	Temperature  *float64

	// RequestsPerMinute throttles outgoing calls; 0 disables throttling.
	RequestsPerMinute int

	ExtraHeaders map[string]string
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.EndpointPath == "" {
		o.EndpointPath = DefaultEndpointPath
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

// Client sends chat completion requests.
type Client struct {
	hc      *http.Client
	url     string
	apiKey  string
	model   string
	temp    *float64
	extraH  map[string]string
	limiter *rate.Limiter
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	opts.defaults()
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	fullURL := opts.EndpointPath
	if !(strings.HasPrefix(fullURL, "http://") || strings.HasPrefix(fullURL, "https://")) {
		base := strings.TrimRight(opts.BaseURL, "/")
		path := strings.TrimLeft(opts.EndpointPath, "/")
		fullURL = base + "/" + path
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &Client{
		hc:      &http.Client{Timeout: opts.Timeout},
		url:     fullURL,
		apiKey:  opts.APIKey,
		model:   opts.Model,
		temp:    opts.Temperature,
		extraH:  opts.ExtraHeaders,
		limiter: limiter,
	}, nil
}

// Model returns the model requests are sent to.
func (c *Client) Model() string { return c.model }

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema asks the service for structured output.
type JSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends messages and returns the content of the first choice.
// When schema is non-nil the response is constrained to it.
func (c *Client) Complete(ctx context.Context, messages []Message, schema *JSONSchema) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages: %w", ErrInvalidInput)
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temp,
	}
	if schema != nil {
		req.ResponseFormat = &responseFormat{Type: "json_schema", JSONSchema: schema}
	}
	body, err := json.Marshal(&req)
	if err != nil {
		return "", fmt.Errorf("encode: %v: %w", err, ErrInvalidInput)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %v: %w", err, ErrInvalidInput)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.extraH {
		if k == "" {
			continue
		}
		httpReq.Header.Set(k, v)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
		}
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(slurp))
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5 {
			return "", &UpstreamError{Status: resp.StatusCode, Message: msg}
		}
		return "", fmt.Errorf("llm upstream %d: %w", resp.StatusCode, ErrInvalidInput)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode: %w", ErrResponseInvalid)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", ErrResponseInvalid
	}
	return cr.Choices[0].Message.Content, nil
}
