package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	maildomain "jobtracker-backend/internal/mail/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

const (
	DefaultMailbox = "INBOX"
	snippetRunes   = 200
)

// Dialer opens authenticated, read-only IMAP mailboxes.
type Dialer struct {
	Timeout   time.Duration
	TLSConfig *tls.Config
	// Insecure dials without TLS. Only meant for local servers.
	Insecure bool
	Mailbox  string

	logger *zap.Logger
}

func NewDialer(logger *zap.Logger) *Dialer {
	return &Dialer{
		Timeout: 30 * time.Second,
		Mailbox: DefaultMailbox,
		logger:  logger.Named("imap"),
	}
}

// Open connects to addr (host:port), logs in and selects the mailbox
// read-only.
func (d *Dialer) Open(ctx context.Context, addr, username, password string) (*Mailbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		c   *client.Client
		err error
	)
	if d.Insecure {
		c, err = client.Dial(addr)
	} else {
		c, err = client.DialTLS(addr, d.TLSConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("IMAP connection error: %w", err)
	}
	c.Timeout = d.Timeout

	if err := c.Login(username, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}
	status, err := c.Select(d.Mailbox, true)
	if err != nil {
		c.Logout()
		return nil, fmt.Errorf("select %s: %w", d.Mailbox, err)
	}

	return &Mailbox{
		c:           c,
		uidValidity: status.UidValidity,
		now:         time.Now,
		listings:    map[string][]uint32{},
		logger:      d.logger.With(zap.String("username", username)),
	}, nil
}

// Connect is Open behind the MailboxClient interface.
func (d *Dialer) Connect(ctx context.Context, addr, username, password string) (maildomain.MailboxClient, error) {
	mb, err := d.Open(ctx, addr, username, password)
	if err != nil {
		return nil, err
	}
	return mb, nil
}

// Mailbox serves one selected IMAP folder. Message ids are
// "<uidvalidity>-<uid>"; page tokens are offsets into the listing of a query,
// newest first. A Mailbox is not safe for concurrent use by the IMAP client,
// so calls are serialized.
type Mailbox struct {
	mu          sync.Mutex
	c           *client.Client
	uidValidity uint32
	now         func() time.Time
	listings    map[string][]uint32
	logger      *zap.Logger
}

func (m *Mailbox) ListIDs(ctx context.Context, query, pageToken string, pageSize int64) ([]string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	uids, ok := m.listings[query]
	if !ok || offset == 0 {
		q, err := ParseQuery(query, m.now())
		if err != nil {
			return nil, "", err
		}
		uids, err = m.search(q)
		if err != nil {
			return nil, "", err
		}
		m.listings[query] = uids
	}

	page, next := Paginate(uids, offset, int(pageSize))
	ids := make([]string, len(page))
	for i, uid := range page {
		ids[i] = FormatID(m.uidValidity, uid)
	}
	return ids, next, nil
}

// search runs the coarse server-side search, then filters and orders by the
// exact internal date.
func (m *Mailbox) search(q Query) ([]uint32, error) {
	uids, err := m.c.UidSearch(q.Criteria())
	if err != nil {
		return nil, fmt.Errorf("error searching mailbox: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqSet, []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate}, messages)
	}()

	type dated struct {
		uid uint32
		at  time.Time
	}
	var matched []dated
	for msg := range messages {
		if q.Match(msg.InternalDate) {
			matched = append(matched, dated{msg.Uid, msg.InternalDate})
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching internal dates: %w", err)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].at.Equal(matched[j].at) {
			return matched[i].at.After(matched[j].at)
		}
		return matched[i].uid > matched[j].uid
	})
	out := make([]uint32, len(matched))
	for i, d := range matched {
		out[i] = d.uid
	}
	return out, nil
}

func (m *Mailbox) Get(ctx context.Context, id string) (*maildomain.RemoteMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	validity, uid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	if validity != m.uidValidity {
		return nil, fmt.Errorf("uid validity changed for %s: %w", id, maildomain.ErrNotFound)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid, imap.FetchInternalDate, imap.FetchFlags}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqSet, items, messages)
	}()
	var msg *imap.Message
	for fetched := range messages {
		msg = fetched
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching message UID %d: %w", uid, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message UID %d: %w", uid, maildomain.ErrNotFound)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}
	payload, err := ParseMIME(body)
	if err != nil {
		return nil, fmt.Errorf("parse message UID %d: %w", uid, err)
	}

	remote := &maildomain.RemoteMessage{
		ID:             id,
		ThreadID:       id,
		LabelIDs:       msg.Flags,
		InternalDateMs: msg.InternalDate.UnixMilli(),
		Payload:        payload,
	}
	remote.Snippet = Snippet(payload)
	return remote, nil
}

// Close logs out and closes the connection.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return nil
	}
	err := m.c.Logout()
	m.c = nil
	return err
}

func FormatID(uidValidity, uid uint32) string {
	return fmt.Sprintf("%d-%d", uidValidity, uid)
}

func ParseID(id string) (uidValidity, uid uint32, err error) {
	left, right, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed message id %q", id)
	}
	v, err1 := strconv.ParseUint(left, 10, 32)
	u, err2 := strconv.ParseUint(right, 10, 32)
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, fmt.Errorf("malformed message id %q: %w", id, err)
	}
	return uint32(v), uint32(u), nil
}

// Paginate returns the page of uids starting at offset and the token of the
// following page, or "" at the end.
func Paginate(uids []uint32, offset, size int) ([]uint32, string) {
	if size <= 0 {
		size = len(uids)
	}
	if offset >= len(uids) {
		return nil, ""
	}
	end := offset + size
	if end >= len(uids) {
		return uids[offset:], ""
	}
	return uids[offset:end], strconv.Itoa(end)
}
