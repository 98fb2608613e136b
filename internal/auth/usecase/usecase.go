package usecase

import (
	"context"
	"errors"

	authdomain "jobtracker-backend/internal/auth/domain"
	authdto "jobtracker-backend/internal/auth/dto"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredential  = errors.New("credential bundle is incomplete")
	ErrWatchUnsupported   = errors.New("push notifications need a Gmail credential")
	ErrWatchNotConfigured = errors.New("no Pub/Sub topic configured")
)

// AuthUsecase owns bearer verification, credential storage and device
// registration for an owner.
type AuthUsecase interface {
	// ValidateToken verifies a bearer token and returns its owner.
	ValidateToken(tokenString string) (string, error)
	SaveCredential(ctx context.Context, owner string, req *authdto.CredentialRequest) (*authdomain.Credential, error)
	GetCredential(ctx context.Context, owner string) (*authdomain.Credential, error)
	RegisterDevice(ctx context.Context, owner string, req *authdto.RegisterFCMRequest) error
	UnregisterDevice(ctx context.Context, owner, token string) error
	// StartWatch subscribes the owner's Gmail inbox to push notifications.
	StartWatch(ctx context.Context, owner string) (uint64, error)
}
