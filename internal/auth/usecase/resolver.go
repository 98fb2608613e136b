package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	authdomain "jobtracker-backend/internal/auth/domain"
	"jobtracker-backend/internal/auth/repository"
	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/pkg/gmail"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultIMAPPort = "993"

type GmailConnector interface {
	Connect(ctx context.Context, owner string, token *oauth2.Token, onRefresh gmail.TokenUpdateFunc) (maildomain.MailboxClient, error)
}

type IMAPConnector interface {
	Connect(ctx context.Context, addr, username, password string) (maildomain.MailboxClient, error)
}

var errProviderDisabled = errors.New("mailbox provider not configured")

// CredentialResolver opens an owner's mailbox from the stored credential and
// writes refreshed OAuth tokens back to the store.
type CredentialResolver struct {
	creds  repository.CredentialRepository
	gmail  GmailConnector
	imap   IMAPConnector
	logger *zap.Logger
}

// NewCredentialResolver accepts nil connectors for disabled providers.
func NewCredentialResolver(creds repository.CredentialRepository, gmail GmailConnector, imap IMAPConnector, logger *zap.Logger) *CredentialResolver {
	return &CredentialResolver{
		creds:  creds,
		gmail:  gmail,
		imap:   imap,
		logger: logger.Named("credentials"),
	}
}

func (r *CredentialResolver) MailboxFor(ctx context.Context, owner string) (maildomain.MailboxClient, error) {
	cred, err := r.creds.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: load credential: %v", maildomain.ErrPersistence, err)
	}
	if !cred.Usable() {
		return nil, fmt.Errorf("owner %s: %w", owner, maildomain.ErrCredentialMissing)
	}

	switch cred.Provider {
	case authdomain.ProviderIMAP:
		if r.imap == nil {
			return nil, fmt.Errorf("imap: %w", errProviderDisabled)
		}
		return r.imap.Connect(ctx, IMAPAddress(cred.IMAPHost), cred.IMAPUsername, cred.IMAPPassword)
	default:
		if r.gmail == nil {
			return nil, fmt.Errorf("gmail: %w", errProviderDisabled)
		}
		return r.gmail.Connect(ctx, owner, TokenFromCredential(cred), r.persistRefresh(ctx, owner))
	}
}

// persistRefresh stores a refreshed token even when the sync that triggered
// the refresh is later cancelled.
func (r *CredentialResolver) persistRefresh(ctx context.Context, owner string) gmail.TokenUpdateFunc {
	ctx = context.WithoutCancel(ctx)
	return func(t *oauth2.Token) error {
		if err := r.creds.Put(ctx, CredentialFromToken(owner, t)); err != nil {
			return err
		}
		r.logger.Info("refreshed access token stored", zap.String("owner", owner), zap.Time("expiry", t.Expiry))
		return nil
	}
}

func TokenFromCredential(c *authdomain.Credential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
	}
	if c.Expiry != nil {
		tok.Expiry = *c.Expiry
	}
	return tok
}

// CredentialFromToken is the partial update written after a refresh. The
// refresh token is only present when the provider rotated it.
func CredentialFromToken(owner string, t *oauth2.Token) *authdomain.Credential {
	c := &authdomain.Credential{
		Owner:        owner,
		Provider:     authdomain.ProviderGoogle,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if !t.Expiry.IsZero() {
		expiry := t.Expiry.UTC().Truncate(time.Second)
		c.Expiry = &expiry
	}
	return c
}

// IMAPAddress appends the implicit-TLS port when host has none.
func IMAPAddress(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, defaultIMAPPort)
}
