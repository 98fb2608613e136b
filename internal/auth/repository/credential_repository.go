package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "jobtracker-backend/internal/auth/domain"
	"jobtracker-backend/pkg/utils/crypto"

	"gorm.io/gorm"
)

// CredentialRepository stores one credential bundle per owner.
type CredentialRepository interface {
	// Get returns nil, nil when the owner has no credential.
	Get(ctx context.Context, owner string) (*authdomain.Credential, error)
	// Put merges cred into the stored bundle field by field.
	Put(ctx context.Context, cred *authdomain.Credential) error
	ListOwners(ctx context.Context) ([]string, error)
}

type credentialRepository struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

// NewCredentialRepository seals secret fields with cipher; a nil cipher stores
// them as given.
func NewCredentialRepository(db *gorm.DB, cipher *crypto.Cipher) CredentialRepository {
	return &credentialRepository{db: db, cipher: cipher}
}

func (r *credentialRepository) Get(ctx context.Context, owner string) (*authdomain.Credential, error) {
	var row authdomain.Credential
	err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.open(&row); err != nil {
		return nil, fmt.Errorf("decrypt credential for %s: %w", owner, err)
	}
	return &row, nil
}

func (r *credentialRepository) Put(ctx context.Context, cred *authdomain.Credential) error {
	if cred == nil || cred.Owner == "" {
		return errors.New("credential owner is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing authdomain.Credential
		err := tx.Where("owner = ?", cred.Owner).First(&existing).Error
		now := time.Now().UTC()

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			existing = authdomain.Credential{Owner: cred.Owner, Provider: authdomain.ProviderGoogle, CreatedAt: now}
		case err != nil:
			return err
		default:
			if err := r.open(&existing); err != nil {
				return fmt.Errorf("decrypt credential for %s: %w", cred.Owner, err)
			}
		}

		existing.Merge(cred)
		existing.UpdatedAt = now
		if err := r.seal(&existing); err != nil {
			return err
		}
		return tx.Save(&existing).Error
	})
}

func (r *credentialRepository) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	err := r.db.WithContext(ctx).Model(&authdomain.Credential{}).Order("owner ASC").Pluck("owner", &owners).Error
	if err != nil {
		return nil, err
	}
	return owners, nil
}

func (r *credentialRepository) seal(c *authdomain.Credential) error {
	for _, f := range []*string{&c.AccessToken, &c.RefreshToken, &c.IMAPPassword} {
		v, err := r.cipher.Encrypt(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

func (r *credentialRepository) open(c *authdomain.Credential) error {
	for _, f := range []*string{&c.AccessToken, &c.RefreshToken, &c.IMAPPassword} {
		v, err := r.cipher.Decrypt(*f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}
