// Package openai provides a client for the OpenAI embeddings and
// web-search-enabled Responses APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL        = "https://api.openai.com"
	defaultEmbeddingModel = "text-embedding-3-large"
	defaultSearchModel    = "gpt-4o-mini"
)

// Client performs embedding and web-search calls against the OpenAI API.
type Client interface {
	// Embed returns the embedding vector for a single input text.
	Embed(ctx context.Context, text string) ([]float64, error)
	// WebSearch runs a prompt through the Responses API with the web search
	// tool enabled and returns the model's text output plus the raw
	// response body for callers that need to scan nested payloads.
	WebSearch(ctx context.Context, prompt string) (*WebSearchResponse, error)
}

// WebSearchResponse is the distilled result of a Responses API call.
type WebSearchResponse struct {
	OutputText string
	// Raw is the unparsed response body. Search results sometimes arrive
	// as citation annotations rather than message text, so callers fall
	// back to scanning this for URL-shaped strings.
	Raw []byte
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithEmbeddingModel overrides the default embedding model.
func WithEmbeddingModel(model string) Option {
	return func(c *httpClient) {
		c.embeddingModel = model
	}
}

// WithSearchModel overrides the default search model.
func WithSearchModel(model string) Option {
	return func(c *httpClient) {
		c.searchModel = model
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey         string
	baseURL        string
	embeddingModel string
	searchModel    string
	http           *http.Client
}

// NewClient creates an OpenAI API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:         apiKey,
		baseURL:        defaultBaseURL,
		embeddingModel: defaultEmbeddingModel,
		searchModel:    defaultSearchModel,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *httpClient) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := c.post(ctx, "/v1/embeddings", embeddingRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "openai: unmarshal embedding response")
	}
	if len(result.Data) == 0 {
		return nil, eris.New("openai: no embedding returned")
	}
	return result.Data[0].Embedding, nil
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       string         `json:"input"`
	Tools       []responseTool `json:"tools,omitempty"`
	Temperature float64        `json:"temperature"`
}

type responseTool struct {
	Type string `json:"type"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (c *httpClient) WebSearch(ctx context.Context, prompt string) (*WebSearchResponse, error) {
	body, err := c.post(ctx, "/v1/responses", responsesRequest{
		Model: c.searchModel,
		Input: prompt,
		Tools: []responseTool{{Type: "web_search"}},
	})
	if err != nil {
		return nil, err
	}

	var result responsesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "openai: unmarshal responses body")
	}

	var text bytes.Buffer
	for _, item := range result.Output {
		if item.Type != "message" {
			continue
		}
		for _, block := range item.Content {
			if block.Type == "output_text" {
				text.WriteString(block.Text)
			}
		}
	}

	return &WebSearchResponse{OutputText: text.String(), Raw: body}, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "openai: marshal request %s", path)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "openai: create request %s", path)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrapf(err, "openai: send request %s", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "openai: read response %s", path)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
