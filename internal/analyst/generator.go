package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator produces a grounded natural-language answer from retrieved
// records.
type Generator interface {
	Answer(ctx context.Context, question string, records []Record) (string, error)
}

// ChatGenerator talks to an Ollama-compatible /api/chat endpoint.
type ChatGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewChatGenerator(baseURL, model string) *ChatGenerator {
	return &ChatGenerator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

const systemPrompt = `You are a retail sales data analyst. Answer the question using only ` +
	`the sales records provided. Cite record event ids in square brackets. If the records ` +
	`do not contain the answer, say so plainly.`

func (g *ChatGenerator) Answer(ctx context.Context, question string, records []Record) (string, error) {
	var sb strings.Builder
	sb.WriteString("Sales records:\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "- [%s] %s\n", r.EventID, r.Text)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: sb.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Message.Content == "" {
		return "", fmt.Errorf("chat endpoint returned empty answer")
	}
	return parsed.Message.Content, nil
}
