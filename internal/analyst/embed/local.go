// Package embed provides the embedding client the analyst uses to turn
// record text and questions into vectors.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "all-minilm"
	maxRetries     = 4
	initialDelay   = 500 * time.Millisecond
)

// Embedder turns text into vectors. Documents and queries take
// different prefixes for asymmetric retrieval models.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// LocalClient talks to an Ollama-compatible /api/embed endpoint.
type LocalClient struct {
	baseURL string
	model   string
	client  *http.Client
}

type LocalClientOption func(*LocalClient)

func WithBaseURL(url string) LocalClientOption {
	return func(c *LocalClient) { c.baseURL = strings.TrimSuffix(url, "/") }
}

func WithModel(model string) LocalClientOption {
	return func(c *LocalClient) { c.model = model }
}

func NewLocalClient(opts ...LocalClientOption) *LocalClient {
	c := &LocalClient{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *LocalClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "search_document: "+text)
}

func (c *LocalClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.embed(ctx, "search_query: "+query)
}

func (c *LocalClient) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("embed request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read embed response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(respBody))
			if resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var parsed embedResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("decode embed response: %w", err)
		}
		if len(parsed.Embeddings) == 0 {
			return nil, fmt.Errorf("embed endpoint returned no embeddings")
		}
		return parsed.Embeddings[0], nil
	}

	return nil, fmt.Errorf("embed retries exhausted: %w", lastErr)
}
