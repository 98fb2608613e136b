package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// MaxPartDepth bounds how deep a payload tree is converted.
const MaxPartDepth = 32

// TokenUpdateFunc is called after the token source refreshes an access token.
type TokenUpdateFunc func(*oauth2.Token) error

type Service struct {
	clientID     string
	clientSecret string
	oauthURL     oauth2.Endpoint
	apiEndpoint  string
	qps          float64
	limiters     sync.Map // owner -> *rate.Limiter
	logger       *zap.Logger
}

type Option func(*Service)

// WithQPS caps Gmail API calls per owner per second.
func WithQPS(qps float64) Option {
	return func(s *Service) { s.qps = qps }
}

// WithEndpoints points the client at alternate OAuth and Gmail API hosts.
func WithEndpoints(oauthURL oauth2.Endpoint, apiEndpoint string) Option {
	return func(s *Service) {
		s.oauthURL = oauthURL
		s.apiEndpoint = apiEndpoint
	}
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
	logger   *zap.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			s.logger.Error("failed to persist refreshed token", zap.Error(err))
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		oauthURL:     google.Endpoint,
		qps:          5,
		logger:       logger.Named("gmail"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) limiter(owner string) *rate.Limiter {
	if v, ok := s.limiters.Load(owner); ok {
		return v.(*rate.Limiter)
	}
	burst := int(s.qps)
	if burst < 1 {
		burst = 1
	}
	v, _ := s.limiters.LoadOrStore(owner, rate.NewLimiter(rate.Limit(s.qps), burst))
	return v.(*rate.Limiter)
}

// NewMailbox builds an authenticated Gmail client for owner. A token with a
// refresh token but no known expiry is refreshed on first use.
func (s *Service) NewMailbox(ctx context.Context, owner string, token *oauth2.Token, onRefresh TokenUpdateFunc) (*Mailbox, error) {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return nil, fmt.Errorf("gmail: %w", maildomain.ErrCredentialMissing)
	}
	tok := *token
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if tok.RefreshToken != "" && tok.Expiry.IsZero() {
		tok.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     s.oauthURL,
	}
	wrapped := &notifyTokenSource{
		src:      config.TokenSource(ctx, &tok),
		current:  &tok,
		callback: onRefresh,
		logger:   s.logger.With(zap.String("owner", owner)),
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, wrapped))}
	if s.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(s.apiEndpoint))
	}
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Mailbox{srv: srv, limiter: s.limiter(owner), logger: wrapped.logger}, nil
}

// Connect is NewMailbox behind the MailboxClient interface.
func (s *Service) Connect(ctx context.Context, owner string, token *oauth2.Token, onRefresh TokenUpdateFunc) (maildomain.MailboxClient, error) {
	mb, err := s.NewMailbox(ctx, owner, token, onRefresh)
	if err != nil {
		return nil, err
	}
	return mb, nil
}

// Mailbox is one owner's Gmail mailbox.
type Mailbox struct {
	srv     *gmail.Service
	limiter *rate.Limiter
	logger  *zap.Logger
}

func (m *Mailbox) ListIDs(ctx context.Context, query, pageToken string, pageSize int64) ([]string, string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	call := m.srv.Users.Messages.List("me").Q(query).MaxResults(pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", wrapError("list messages", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.Id)
	}
	return ids, resp.NextPageToken, nil
}

func (m *Mailbox) Get(ctx context.Context, id string) (*maildomain.RemoteMessage, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	msg, err := m.srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get message "+id, err)
	}
	return ConvertMessage(msg), nil
}

// Watch registers push notifications for the inbox on a Pub/Sub topic and
// returns the starting history id. Any earlier watch is stopped first.
func (m *Mailbox) Watch(ctx context.Context, topicName string) (uint64, error) {
	// Only one watch per user is allowed; a missing one makes Stop fail harmlessly.
	_ = m.srv.Users.Stop("me").Context(ctx).Do()

	resp, err := m.srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, wrapError("watch mailbox", err)
	}
	m.logger.Info("gmail watch started", zap.Int64("expiration", resp.Expiration), zap.Uint64("history_id", resp.HistoryId))
	return resp.HistoryId, nil
}

func wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("gmail %s: %w", op, maildomain.ErrNotFound)
	}
	return fmt.Errorf("gmail %s: %w", op, err)
}

// ConvertMessage maps a Gmail API message onto the provider-neutral form.
func ConvertMessage(msg *gmail.Message) *maildomain.RemoteMessage {
	if msg == nil {
		return nil
	}
	return &maildomain.RemoteMessage{
		ID:             msg.Id,
		ThreadID:       msg.ThreadId,
		Snippet:        msg.Snippet,
		LabelIDs:       msg.LabelIds,
		InternalDateMs: msg.InternalDate,
		Payload:        convertPart(msg.Payload, 0),
	}
}

func convertPart(p *gmail.MessagePart, depth int) *maildomain.MessagePart {
	if p == nil || depth > MaxPartDepth {
		return nil
	}
	out := &maildomain.MessagePart{MimeType: p.MimeType}
	for _, h := range p.Headers {
		if h != nil {
			out.Headers = append(out.Headers, maildomain.Header{Name: h.Name, Value: h.Value})
		}
	}
	if p.Body != nil && p.Body.Data != "" {
		out.Data = decodeBody(p.Body.Data)
	}
	for _, child := range p.Parts {
		if c := convertPart(child, depth+1); c != nil {
			out.Parts = append(out.Parts, c)
		}
	}
	return out
}

// decodeBody accepts padded and unpadded base64url.
func decodeBody(data string) []byte {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return b
	}
	return nil
}
