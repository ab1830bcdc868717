// Package llm adapts OpenAI-compatible chat-completion providers to the
// ChatModel port. Generation is streamed as server-sent events and
// forwarded delta by delta over a channel.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// OpenAIChatModel streams completions from any OpenAI-compatible
// /chat/completions endpoint (OpenAI, SGLang, vLLM, Ollama).
type OpenAIChatModel struct {
	apiKey   string
	model    string
	baseURL  string
	sampling map[string]any
	client   *http.Client
}

type chatDelta struct {
	Content string `json:"content"`
}

type chatChoice struct {
	Delta        chatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type chatChunk struct {
	Choices []chatChoice `json:"choices"`
}

func NewOpenAIChatModel(apiKeyEnv, model, baseURL string, sampling map[string]any) (*OpenAIChatModel, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	return &OpenAIChatModel{
		apiKey:   apiKey,
		model:    model,
		baseURL:  baseURL,
		sampling: sampling,
		// No client timeout: generation length is unbounded and the
		// stream is cancelled through the request context.
		client: &http.Client{},
	}, nil
}

// Stream opens the token stream. Context cancellation aborts the HTTP
// request, which closes the returned channel.
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []domain.Message, options map[string]any) (<-chan port.StreamEvent, error) {
	payload := map[string]any{
		"model":    m.model,
		"messages": messages,
		"stream":   true,
	}
	for k, v := range m.sampling {
		payload[k] = v
	}
	for k, v := range options {
		payload[k] = v
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, &domain.ProviderError{Err: fmt.Errorf("provider returned status %d: %s", resp.StatusCode, body)}
	}

	events := make(chan port.StreamEvent)
	go m.readStream(resp.Body, events)

	return events, nil
}

// readStream parses SSE lines until [DONE], a finish signal, or a read
// error. Always closes the body and the channel.
func (m *OpenAIChatModel) readStream(body io.ReadCloser, events chan<- port.StreamEvent) {
	defer close(events)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // tolerate keep-alive noise between events
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			events <- port.StreamEvent{Delta: choice.Delta.Content}
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		events <- port.StreamEvent{Err: &domain.ProviderError{Err: err}}
	}
}

// ModelName returns the model name.
func (m *OpenAIChatModel) ModelName() string {
	return m.model
}
