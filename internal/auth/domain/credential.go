package domain

import "time"

const (
	ProviderGoogle = "google"
	ProviderIMAP   = "imap"
)

// Credential is the mailbox credential bundle stored per owner. Secret fields
// are encrypted at rest by the repository and never serialized to clients.
type Credential struct {
	Owner        string     `json:"owner" gorm:"primaryKey;size:320"`
	Provider     string     `json:"provider" gorm:"size:16;not null"`
	AccessToken  string     `json:"-" gorm:"type:text"`
	RefreshToken string     `json:"-" gorm:"type:text"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty" gorm:"type:text"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	IMAPHost     string     `json:"imap_host,omitempty"`
	IMAPUsername string     `json:"imap_username,omitempty"`
	IMAPPassword string     `json:"-" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Credential) TableName() string {
	return "credentials"
}

// Merge copies every non-empty field of update onto c.
func (c *Credential) Merge(update *Credential) {
	if update == nil {
		return
	}
	mergeString(&c.Provider, update.Provider)
	mergeString(&c.AccessToken, update.AccessToken)
	mergeString(&c.RefreshToken, update.RefreshToken)
	mergeString(&c.TokenType, update.TokenType)
	mergeString(&c.Scope, update.Scope)
	mergeString(&c.IMAPHost, update.IMAPHost)
	mergeString(&c.IMAPUsername, update.IMAPUsername)
	mergeString(&c.IMAPPassword, update.IMAPPassword)
	if update.Expiry != nil && !update.Expiry.IsZero() {
		expiry := *update.Expiry
		c.Expiry = &expiry
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Usable reports whether the bundle holds enough to open a mailbox.
func (c *Credential) Usable() bool {
	if c == nil {
		return false
	}
	switch c.Provider {
	case ProviderIMAP:
		return c.IMAPHost != "" && c.IMAPUsername != "" && c.IMAPPassword != ""
	case ProviderGoogle, "":
		return c.AccessToken != "" || c.RefreshToken != ""
	}
	return false
}
