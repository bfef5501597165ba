package services

import (
	"context"

	"github.com/kindred-ai/kindred-api/services/ark"
)

// ChatCompleter is the slice of the Ark client consumed by synchronous
// service calls. Services accept this interface so tests can substitute a
// scripted gateway.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, messages []ark.Message, options ...ark.Option) (*ark.Response, error)
}

// StreamCompleter is the streaming slice of the Ark client
type StreamCompleter interface {
	ChatCompleter
	StreamChatCompletion(ctx context.Context, messages []ark.Message, callback func(ark.StreamChunk) error, options ...ark.Option) error
}
