package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiTransport sends chat requests through the Gemini SDK.
type GeminiTransport struct {
	client *genai.Client
}

func NewGeminiTransport(ctx context.Context, apiKey string) (*GeminiTransport, error) {
	if apiKey == "" {
		return nil, errors.New("gemini provider requires an API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiTransport{client: client}, nil
}

func (t *GeminiTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	model := t.client.GenerativeModel(req.Model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}

	resp, err := model.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", wrapGeminiError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func (t *GeminiTransport) Close() error {
	return t.client.Close()
}

func wrapGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return &StatusError{StatusCode: gerr.Code, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return &StatusError{StatusCode: http.StatusTooManyRequests, Err: err}
		case codes.Unavailable:
			return &StatusError{StatusCode: http.StatusServiceUnavailable, Err: err}
		}
	}
	return err
}
