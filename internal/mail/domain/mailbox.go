package domain

import (
	"context"
	"strings"
)

// Header is a single message header as delivered by the provider.
type Header struct {
	Name  string
	Value string
}

// MessagePart is one node of a MIME part tree. Data holds the decoded body of
// leaf parts.
type MessagePart struct {
	MimeType string
	Headers  []Header
	Data     []byte
	Parts    []*MessagePart
}

// RemoteMessage is the full representation returned by a MailboxClient.
type RemoteMessage struct {
	ID             string
	ThreadID       string
	Snippet        string
	LabelIDs       []string
	InternalDateMs int64
	Payload        *MessagePart
}

// Header returns the first top-level header with the given name, compared
// case-insensitively, or "".
func (m *RemoteMessage) Header(name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// MailboxClient lists and fetches messages from one owner's remote mailbox.
// Query strings use the Gmail search grammar (after:, before:, newer_than:).
type MailboxClient interface {
	ListIDs(ctx context.Context, query, pageToken string, pageSize int64) (ids []string, nextPageToken string, err error)
	Get(ctx context.Context, id string) (*RemoteMessage, error)
}

// MailboxResolver yields an authenticated MailboxClient for an owner, or an
// error wrapping ErrCredentialMissing when none is stored.
type MailboxResolver interface {
	MailboxFor(ctx context.Context, owner string) (MailboxClient, error)
}
