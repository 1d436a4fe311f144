package client

import (
	"context"
	"fmt"

	"github.com/leofalp/duet/providers/ai"
)

// Client wraps one upstream provider behind its middleware chain. It is the
// unit the orchestrator holds per provider: stateless, safe for concurrent
// use, and cheap to share across in-flight requests.
type Client struct {
	provider ai.Provider
	send     SendFunc
	stream   StreamFunc
}

// New builds a Client for the given provider with the supplied middleware
// entries. The chains are built once at construction; per-request state lives
// entirely in the context and request values. Returns an error when provider
// is nil or any middleware entry has a nil Send field.
func New(provider ai.Provider, middlewares ...MiddlewareConfig) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("client: provider must not be nil")
	}

	for i, middleware := range middlewares {
		if middleware.Send == nil {
			return nil, fmt.Errorf("client: middleware %d has a nil Send field", i)
		}
	}

	return &Client{
		provider: provider,
		send:     buildSendChain(provider, middlewares),
		stream:   buildStreamChain(provider, middlewares),
	}, nil
}

// Name returns the wrapped provider's stable identifier.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Send executes a synchronous completion through the middleware chain.
func (c *Client) Send(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	return c.send(ctx, request)
}

// Stream executes a streaming completion through the middleware chain. The
// returned ChatStream must be consumed by the caller; see [ai.ChatStream].
func (c *Client) Stream(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	return c.stream(ctx, request)
}
