package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	authdomain "jobtracker-backend/internal/auth/domain"
	authdto "jobtracker-backend/internal/auth/dto"
	"jobtracker-backend/internal/auth/repository"
	maildomain "jobtracker-backend/internal/mail/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type watcher interface {
	Watch(ctx context.Context, topicName string) (uint64, error)
}

type authUsecase struct {
	creds     repository.CredentialRepository
	fcmTokens repository.FCMTokenRepository
	mailboxes maildomain.MailboxResolver
	jwtSecret []byte
	topic     string
	logger    *zap.Logger
}

// NewAuthUsecase verifies HS256 bearer tokens signed with jwtSecret. topic is
// the Pub/Sub topic Gmail watches publish to.
func NewAuthUsecase(
	creds repository.CredentialRepository,
	fcmTokens repository.FCMTokenRepository,
	mailboxes maildomain.MailboxResolver,
	jwtSecret, topic string,
	logger *zap.Logger,
) AuthUsecase {
	return &authUsecase{
		creds:     creds,
		fcmTokens: fcmTokens,
		mailboxes: mailboxes,
		jwtSecret: []byte(jwtSecret),
		topic:     topic,
		logger:    logger.Named("auth"),
	}
}

func (u *authUsecase) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	owner := maildomain.NormalizeOwner(email)
	if owner == "" {
		return "", ErrInvalidToken
	}
	return owner, nil
}

func (u *authUsecase) SaveCredential(ctx context.Context, owner string, req *authdto.CredentialRequest) (*authdomain.Credential, error) {
	owner = maildomain.NormalizeOwner(owner)
	if owner == "" {
		return nil, maildomain.ErrInvalidOwner
	}
	update := req.ToDomain(owner)
	update.IMAPHost = strings.TrimSpace(update.IMAPHost)
	if update.Provider == authdomain.ProviderIMAP {
		existing, err := u.creds.Get(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("%w: load credential: %v", maildomain.ErrPersistence, err)
		}
		if !mergedIMAPComplete(existing, update) {
			return nil, fmt.Errorf("%w: imap host, username and password are required", ErrInvalidCredential)
		}
	}

	if err := u.creds.Put(ctx, update); err != nil {
		return nil, fmt.Errorf("%w: save credential: %v", maildomain.ErrPersistence, err)
	}
	saved, err := u.creds.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: reload credential: %v", maildomain.ErrPersistence, err)
	}
	u.logger.Info("credential stored", zap.String("owner", owner), zap.String("provider", saved.Provider), zap.Bool("usable", saved.Usable()))
	return saved, nil
}

// mergedIMAPComplete reports whether the stored bundle with update merged over
// it carries every IMAP field. Put overwrites only non-empty fields.
func mergedIMAPComplete(existing, update *authdomain.Credential) bool {
	pick := func(next string, prev func(*authdomain.Credential) string) string {
		if next != "" || existing == nil {
			return next
		}
		return prev(existing)
	}
	host := pick(update.IMAPHost, func(c *authdomain.Credential) string { return c.IMAPHost })
	user := pick(update.IMAPUsername, func(c *authdomain.Credential) string { return c.IMAPUsername })
	pass := pick(update.IMAPPassword, func(c *authdomain.Credential) string { return c.IMAPPassword })
	return host != "" && user != "" && pass != ""
}

func (u *authUsecase) GetCredential(ctx context.Context, owner string) (*authdomain.Credential, error) {
	cred, err := u.creds.Get(ctx, maildomain.NormalizeOwner(owner))
	if err != nil {
		return nil, fmt.Errorf("%w: load credential: %v", maildomain.ErrPersistence, err)
	}
	if cred == nil {
		return nil, maildomain.ErrCredentialMissing
	}
	return cred, nil
}

func (u *authUsecase) RegisterDevice(ctx context.Context, owner string, req *authdto.RegisterFCMRequest) error {
	return u.fcmTokens.SaveToken(ctx, maildomain.NormalizeOwner(owner), req.Token, req.DeviceInfo)
}

func (u *authUsecase) UnregisterDevice(ctx context.Context, owner, token string) error {
	return u.fcmTokens.DeleteOwnerToken(ctx, maildomain.NormalizeOwner(owner), token)
}

func (u *authUsecase) StartWatch(ctx context.Context, owner string) (uint64, error) {
	if u.topic == "" {
		return 0, ErrWatchNotConfigured
	}
	mailbox, err := u.mailboxes.MailboxFor(ctx, maildomain.NormalizeOwner(owner))
	if err != nil {
		return 0, err
	}
	if c, ok := mailbox.(io.Closer); ok {
		defer c.Close()
	}
	w, ok := mailbox.(watcher)
	if !ok {
		return 0, ErrWatchUnsupported
	}
	return w.Watch(ctx, u.topic)
}
