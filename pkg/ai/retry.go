package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("empty response from model")

// StatusError carries the HTTP status a provider answered with.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model provider returned HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// DefaultLadder is the backoff schedule used for models without their own.
var DefaultLadder = []time.Duration{400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond}

// isRetryable reports whether err is a rate-limit or overload answer: HTTP 429,
// HTTP 503, or a message mentioning a rate limit.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode == http.StatusTooManyRequests || se.StatusCode == http.StatusServiceUnavailable {
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

// LadderFor returns the backoff schedule for model.
func LadderFor(ladders map[string][]time.Duration, model string) []time.Duration {
	if l, ok := ladders[model]; ok {
		return l
	}
	return DefaultLadder
}
