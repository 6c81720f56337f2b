// Package openai implements the ai.Client port against OpenAI-compatible
// servers for installs that point the pipeline at a remote provider instead
// of the local model server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/aydenden/companylens/internal/domain/ai"
)

type Client struct {
	client *openai.Client
	model  string
}

// NewClient builds a client for an OpenAI-compatible endpoint. baseURL may be
// empty for the default API host; model must be a vision-capable model when
// image analysis is in play.
func NewClient(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model}
}

// Chat streams one chat completion, mapping SSE deltas onto the same chunk
// callback the local provider uses. Reasoning deltas (when the provider emits
// them) feed the thinking channel.
func (c *Client) Chat(ctx context.Context, messages []ai.Message, onChunk ai.StreamFunc) (ai.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Stream:   true,
		Messages: convertMessages(messages),
	}

	s, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return ai.Response{}, classifyError(err)
	}
	defer s.Close()

	var out ai.Response
	for {
		resp, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ai.Response{}, classifyError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		out.Content += delta.Content
		out.Thinking += delta.ReasoningContent
		if onChunk != nil && (delta.Content != "" || delta.ReasoningContent != "") {
			onChunk(ai.Chunk{Thinking: delta.ReasoningContent, Content: delta.Content})
		}
	}
	if onChunk != nil {
		onChunk(ai.Chunk{Done: true})
	}
	return out, nil
}

// convertMessages maps domain messages to the OpenAI wire shape. Images
// become data-URI parts alongside the text.
func convertMessages(messages []ai.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := openai.ChatCompletionMessage{Role: m.Role}
		if len(m.Images) == 0 {
			cm.Content = m.Content
			out = append(out, cm)
			continue
		}
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
		for _, img := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/png;base64," + img,
				},
			})
		}
		cm.MultiContent = parts
		out = append(out, cm)
	}
	return out
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
		}
		return fmt.Errorf("%w: %v", ai.ErrRequestFailed, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ai.ErrRequestFailed, err)
}
