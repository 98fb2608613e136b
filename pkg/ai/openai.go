package ai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOllamaBaseURL = "http://localhost:11434/v1"

// OpenAITransport talks to any OpenAI-compatible chat completions endpoint.
type OpenAITransport struct {
	client *openai.Client
}

// NewOpenAITransport builds a transport for apiKey; a non-empty baseURL points
// it at a compatible server such as Ollama.
func NewOpenAITransport(apiKey, baseURL string, httpClient *http.Client) *OpenAITransport {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAITransport{client: openai.NewClientWithConfig(cfg)}
}

// NewOllamaTransport targets Ollama's OpenAI-compatible API.
func NewOllamaTransport(baseURL string) *OpenAITransport {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return NewOpenAITransport("ollama", baseURL, nil)
}

func (t *OpenAITransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		// A zero temperature is dropped by omitempty; this is the closest value that is sent.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
