package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"

	"go.uber.org/zap"
)

const systemPrompt = `You classify a single email for a job seeker's application tracker.
Reply with one JSON object and nothing else, with exactly these keys:
{"is_job_related": boolean, "status": string, "summary": string, "company_name": string}

status must be exactly one of:
- "applied": confirms an application was received or submitted
- "rejected": the company declines to move forward
- "next_steps": an interview, assessment, call, or offer is being scheduled or extended
- "comment_only": job related but none of the above (recruiter outreach, status check, general update)
- "not_job_related": anything else

summary is one short sentence. company_name is the hiring company, or "" when unknown or not job related.`

// ClassifierConfig tunes a Classifier.
type ClassifierConfig struct {
	Model        string
	Ladders      map[string][]time.Duration
	MaxBodyChars int
}

// Classifier asks a model to label a message, retrying rate-limit answers on
// a fixed backoff ladder.
type Classifier struct {
	transport    Transport
	model        string
	ladder       []time.Duration
	maxBodyChars int
	sleep        Sleeper
	logger       *zap.Logger
}

func NewClassifier(transport Transport, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	return &Classifier{
		transport:    transport,
		model:        cfg.Model,
		ladder:       LadderFor(cfg.Ladders, cfg.Model),
		maxBodyChars: cfg.MaxBodyChars,
		sleep:        contextSleep,
		logger:       logger.Named("classifier"),
	}
}

// WithSleeper replaces the backoff sleep.
func (c *Classifier) WithSleeper(s Sleeper) *Classifier {
	c.sleep = s
	return c
}

// Classify returns nil when the model could not produce a valid verdict. The
// failure is logged and the message stays eligible for a later run.
func (c *Classifier) Classify(ctx context.Context, in MailInput) *maildomain.ClassificationResult {
	req := ChatRequest{Model: c.model, System: systemPrompt, User: c.userPrompt(in)}
	log := c.logger.With(zap.String("model", c.model), zap.String("subject", in.Subject))

	for attempt := 0; ; attempt++ {
		content, err := c.transport.Complete(ctx, req)
		if err == nil {
			result, perr := ParseClassification(content)
			if perr != nil {
				log.Warn("discarding malformed classification", zap.Error(perr))
				return nil
			}
			return result
		}

		if !isRetryable(err) {
			log.Warn("classification failed", zap.Int("attempt", attempt+1), zap.Error(err))
			return nil
		}
		if attempt >= len(c.ladder) {
			log.Warn("classification retries exhausted", zap.Int("attempts", attempt+1), zap.Error(err))
			return nil
		}

		delay := c.ladder[attempt]
		log.Info("model rate limited, backing off", zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			log.Warn("classification abandoned", zap.Error(err))
			return nil
		}
	}
}

func (c *Classifier) userPrompt(in MailInput) string {
	body := in.Body
	if strings.TrimSpace(body) == "" {
		body = in.Snippet
	}
	if c.maxBodyChars > 0 {
		if r := []rune(body); len(r) > c.maxBodyChars {
			body = string(r[:c.maxBodyChars]) + "\n[truncated]"
		}
	}
	return fmt.Sprintf("From: %s\nTo: %s\nDate: %s\nSubject: %s\n\n%s", in.From, in.To, in.Date, in.Subject, body)
}

type wireClassification struct {
	IsJobRelated *bool   `json:"is_job_related"`
	Status       *string `json:"status"`
	Summary      *string `json:"summary"`
	CompanyName  *string `json:"company_name"`
}

// ParseClassification decodes a model reply. Every key is required, no other
// key is accepted, and status must be a known value.
func ParseClassification(content string) (*maildomain.ClassificationResult, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(content))))
	dec.DisallowUnknownFields()

	var w wireClassification
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode classification: trailing data after object")
	}

	switch {
	case w.IsJobRelated == nil:
		return nil, errors.New("classification missing is_job_related")
	case w.Status == nil:
		return nil, errors.New("classification missing status")
	case w.Summary == nil:
		return nil, errors.New("classification missing summary")
	case w.CompanyName == nil:
		return nil, errors.New("classification missing company_name")
	}

	status := maildomain.Status(*w.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("classification has unknown status %q", *w.Status)
	}

	return &maildomain.ClassificationResult{
		IsJobRelated: *w.IsJobRelated,
		Status:       status,
		Summary:      *w.Summary,
		CompanyName:  strings.TrimSpace(*w.CompanyName),
	}, nil
}
