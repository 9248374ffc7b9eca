package llm

import (
	"context"
	"errors"
)

// Completer is one model backend. Implementations return the raw assistant
// text; callers own parsing.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn prompt, optionally with one image attached.
type Request struct {
	System      string
	User        string
	ImageURL    string
	ImageData   []byte
	ImageMIME   string
	JSON        bool
	Temperature float32
	MaxTokens   int
}

// HasImage reports whether an image is attached.
func (r Request) HasImage() bool {
	return r.ImageURL != "" || len(r.ImageData) > 0
}

var (
	// ErrRateLimited marks 429-class failures. Only these are retried.
	ErrRateLimited = errors.New("model backend rate limited")
	// ErrTransport marks every other call failure.
	ErrTransport = errors.New("model backend transport error")
	// ErrParse marks output that could not be turned into the expected shape.
	ErrParse = errors.New("model output unparseable")
	// ErrNotConfigured is returned when no backend credentials are present.
	ErrNotConfigured = errors.New("model backend not configured")
	// ErrEmptyResponse is returned when the backend answered with no text.
	ErrEmptyResponse = errors.New("model backend returned no content")
)

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
