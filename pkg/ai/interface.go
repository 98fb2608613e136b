package ai

import (
	"context"
	"time"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
)

// ChatRequest is one system+user exchange that must be answered with a JSON object.
type ChatRequest struct {
	Model  string
	System string
	User   string
}

// Transport sends a ChatRequest to a provider and returns the raw reply text.
// Provider HTTP failures are reported as *StatusError.
type Transport interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// MailInput is the part of a message the classifier reads.
type MailInput struct {
	From    string
	To      string
	Subject string
	Date    string
	Snippet string
	Body    string
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
