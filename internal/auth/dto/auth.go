package dto

import (
	"time"

	authdomain "jobtracker-backend/internal/auth/domain"
)

// CredentialRequest uploads a mailbox credential bundle. Empty fields leave
// the stored values untouched.
type CredentialRequest struct {
	Provider     string     `json:"provider" binding:"omitempty,oneof=google imap"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	Scope        string     `json:"scope"`
	Expiry       *time.Time `json:"expiry"`
	IMAPHost     string     `json:"imap_host"`
	IMAPUsername string     `json:"imap_username"`
	IMAPPassword string     `json:"imap_password"`
}

func (r *CredentialRequest) ToDomain(owner string) *authdomain.Credential {
	return &authdomain.Credential{
		Owner:        owner,
		Provider:     r.Provider,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		Expiry:       r.Expiry,
		IMAPHost:     r.IMAPHost,
		IMAPUsername: r.IMAPUsername,
		IMAPPassword: r.IMAPPassword,
	}
}

// CredentialStatus describes a stored bundle without its secrets.
type CredentialStatus struct {
	Owner           string     `json:"owner"`
	Provider        string     `json:"provider"`
	Usable          bool       `json:"usable"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	Expiry          *time.Time `json:"expiry,omitempty"`
	IMAPHost        string     `json:"imap_host,omitempty"`
	IMAPUsername    string     `json:"imap_username,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewCredentialStatus(c *authdomain.Credential) *CredentialStatus {
	return &CredentialStatus{
		Owner:           c.Owner,
		Provider:        c.Provider,
		Usable:          c.Usable(),
		HasRefreshToken: c.RefreshToken != "",
		Expiry:          c.Expiry,
		IMAPHost:        c.IMAPHost,
		IMAPUsername:    c.IMAPUsername,
		UpdatedAt:       c.UpdatedAt,
	}
}

type RegisterFCMRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type WatchResponse struct {
	HistoryID uint64 `json:"history_id"`
}
