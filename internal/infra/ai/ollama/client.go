// Package ollama implements the ai.Client port against a local model server
// speaking the newline-delimited JSON chat protocol.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/aydenden/companylens/internal/domain/ai"
	"github.com/aydenden/companylens/internal/infra/ai/stream"
)

const (
	DefaultEndpoint = "http://127.0.0.1:11434"
	DefaultModel    = "llama3.2-vision"
	DefaultTimeout  = 120 * time.Second

	endpointChat = "/api/chat"

	// maxResponseSize caps accumulated output to keep a malfunctioning model
	// from exhausting memory (1 MB).
	maxResponseSize = 1024 * 1024
)

// Client talks to a local model endpoint over loopback.
type Client struct {
	endpoint string
	model    string
	timeout  time.Duration
}

// NewClient creates a client for the given endpoint and model. timeout bounds
// each Chat call wall-clock; zero means DefaultTimeout.
func NewClient(endpoint, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{endpoint: endpoint, model: model, timeout: timeout}
}

// chatRequest is the wire shape of a streaming chat request.
type chatRequest struct {
	Model    string       `json:"model"`
	Messages []ai.Message `json:"messages"`
	Stream   bool         `json:"stream"`
}

// Chat performs one streaming exchange. Response bytes are fed through a
// line buffer as they arrive; every parsed frame's thinking and content
// deltas are accumulated separately and surfaced through onChunk. A stream
// that ends without a done frame still finalizes with whatever accumulated
// (soft-complete); transport failures return an error and no response.
func (c *Client) Chat(ctx context.Context, messages []ai.Message, onChunk ai.StreamFunc) (ai.Response, error) {
	if len(messages) == 0 {
		return ai.Response{}, errors.New("messages cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: true})
	if err != nil {
		return ai.Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+endpointChat, bytes.NewReader(body))
	if err != nil {
		return ai.Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// No client-level timeout here: it would kill long streams mid-flight.
	// The context deadline above bounds the whole call instead.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return ai.Response{}, c.classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusTooManyRequests {
			return ai.Response{}, fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, string(errBody))
		}
		return ai.Response{}, fmt.Errorf("%w: status %d: %s", ai.ErrRequestFailed, resp.StatusCode, string(errBody))
	}

	return c.readStream(resp.Body, onChunk)
}

// readStream drives the line buffer and frame parser over the response body.
func (c *Client) readStream(body io.Reader, onChunk ai.StreamFunc) (ai.Response, error) {
	var (
		lb   stream.LineBuffer
		out  ai.Response
		done bool
		buf  = make([]byte, 8192)
	)

	apply := func(d *stream.Delta) {
		out.Thinking += d.Thinking
		out.Content += d.Content
		if onChunk != nil && (d.Thinking != "" || d.Content != "" || d.Done) {
			onChunk(ai.Chunk{Thinking: d.Thinking, Content: d.Content, Done: d.Done})
		}
	}

	for !done {
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range lb.Append(buf[:n]) {
				d := stream.ParseFrame(line)
				if d == nil {
					// malformed frame, skip
					continue
				}
				apply(d)
				if d.Done {
					done = true
					break
				}
			}
			if len(out.Thinking)+len(out.Content) > maxResponseSize {
				return ai.Response{}, fmt.Errorf("%w: response too large (>%d bytes)", ai.ErrRequestFailed, maxResponseSize)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return ai.Response{}, c.classifyError(err)
		}
	}

	// Recover a final frame that arrived without a trailing newline.
	if rest := lb.Flush(); rest != "" {
		if d := stream.ParseFrame(rest); d != nil {
			apply(d)
		}
	}

	// A stream that closed without a done frame is a soft-complete: some
	// servers omit the terminal frame.
	return out, nil
}

// Healthy checks that the model server answers on its root endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return c.classifyError(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ai.ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// classifyError maps transport errors to the domain sentinels.
func (c *Client) classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ai.ErrTimeout, c.timeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ai.ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w at %s", ai.ErrNotRunning, c.endpoint)
	}
	return fmt.Errorf("%w: %v", ai.ErrRequestFailed, err)
}
