package imap

import (
	"errors"
	"io"
	"strings"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/pkg/utils/text"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// MaxPartDepth bounds how deep nested multiparts are parsed.
const MaxPartDepth = 32

// ParseMIME reads an RFC 5322 message into a part tree. Transfer encodings
// and known charsets are decoded; unknown charsets are passed through raw.
func ParseMIME(r io.Reader) (*maildomain.MessagePart, error) {
	e, err := message.Read(r)
	if err != nil && !tolerable(err) {
		return nil, err
	}
	return convertEntity(e, 0)
}

func tolerable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func convertEntity(e *message.Entity, depth int) (*maildomain.MessagePart, error) {
	part := &maildomain.MessagePart{}
	fields := e.Header.Fields()
	for fields.Next() {
		v, err := fields.Text()
		if err != nil {
			v = fields.Value()
		}
		part.Headers = append(part.Headers, maildomain.Header{Name: fields.Key(), Value: v})
	}
	part.MimeType, _, _ = e.Header.ContentType()
	if part.MimeType == "" {
		// RFC 2045 default
		part.MimeType = "text/plain"
	}

	mr := e.MultipartReader()
	if mr == nil {
		data, err := io.ReadAll(e.Body)
		if err != nil {
			return nil, err
		}
		part.Data = data
		return part, nil
	}
	if depth >= MaxPartDepth {
		return part, nil
	}
	for {
		child, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !tolerable(err) {
			return nil, err
		}
		converted, err := convertEntity(child, depth+1)
		if err != nil {
			return nil, err
		}
		part.Parts = append(part.Parts, converted)
	}
	return part, nil
}

// Snippet is a short plain-text preview of the first text part.
func Snippet(root *maildomain.MessagePart) string {
	var walk func(p *maildomain.MessagePart) string
	walk = func(p *maildomain.MessagePart) string {
		if p == nil {
			return ""
		}
		if len(p.Data) > 0 {
			switch {
			case p.MimeType == "text/html":
				return text.HTMLToText(string(p.Data))
			case p.MimeType == "" || strings.HasPrefix(p.MimeType, "text/"):
				return string(p.Data)
			}
		}
		for _, c := range p.Parts {
			if s := walk(c); s != "" {
				return s
			}
		}
		return ""
	}

	s := strings.Join(strings.Fields(walk(root)), " ")
	if r := []rune(s); len(r) > snippetRunes {
		return string(r[:snippetRunes])
	}
	return s
}
