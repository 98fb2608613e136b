package domain

import (
	"strings"
	"time"
)

// MailMessage is the stored copy of one remote message, partitioned by owner.
// Messages are never deleted; a re-fetch refreshes the remote fields and
// carries the classification fields forward.
type MailMessage struct {
	Owner          string                `json:"owner" gorm:"primaryKey;size:320"`
	ID             string                `json:"id" gorm:"primaryKey;size:255"`
	ThreadID       string                `json:"thread_id" gorm:"index"`
	From           string                `json:"from"`
	To             string                `json:"to"`
	Subject        string                `json:"subject"`
	Date           string                `json:"date"`
	Snippet        string                `json:"snippet" gorm:"type:text"`
	Body           string                `json:"body" gorm:"type:text"`
	LabelIDs       []string              `json:"label_ids" gorm:"serializer:json;type:text"`
	FetchedAt      time.Time             `json:"fetched_at"`
	InternalDateMs int64                 `json:"internal_date_ms" gorm:"index"`
	Classification *ClassificationResult `json:"classification,omitempty" gorm:"serializer:json;type:text"`
	ClassifiedAt   *time.Time            `json:"classified_at,omitempty"`
	CreatedAt      *time.Time            `json:"created_at,omitempty"`
}

func (MailMessage) TableName() string {
	return "mail_messages"
}

// IsClassified reports whether the message already carries a usable classification.
func (m *MailMessage) IsClassified() bool {
	return m.Classification != nil && m.Classification.Status != ""
}

// MatchesCompany reports whether the message was classified as job related for
// the given company. Names are compared trimmed and case-insensitively.
func (m *MailMessage) MatchesCompany(company string) bool {
	c := m.Classification
	if c == nil || !c.IsJobRelated || c.Status == StatusNotJobRelated {
		return false
	}
	want := strings.TrimSpace(company)
	if want == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.CompanyName), want)
}

// SyncCursor is the per-owner high-water mark of remote internal dates.
type SyncCursor struct {
	Owner              string    `json:"owner" gorm:"primaryKey;size:320"`
	LastInternalDateMs int64     `json:"last_internal_date_ms"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (SyncCursor) TableName() string {
	return "sync_cursors"
}

// NormalizeOwner trims and lowercases an owner identity so every store is
// keyed the same way.
func NormalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
