package ai

import "context"

// StreamFunc receives incremental chunks while a chat call is in flight.
// Chunks arrive in stream order; the final chunk has Done set.
type StreamFunc func(Chunk)

// Client is the port for a chat-style model backend.
// Implementations must be stateless across calls: each Chat owns its own
// decoder and buffers and may be invoked concurrently.
type Client interface {
	Chat(ctx context.Context, messages []Message, onChunk StreamFunc) (Response, error)
}
