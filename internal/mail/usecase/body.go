package usecase

import (
	"strings"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/pkg/utils/text"
)

// MaxPartDepth bounds how deep ExtractBody descends into nested multiparts.
const MaxPartDepth = 32

// ExtractBody walks the part tree depth first and returns the text of the
// first part that yields any. HTML parts are converted to plain text.
func ExtractBody(root *maildomain.MessagePart) string {
	type frame struct {
		part  *maildomain.MessagePart
		depth int
	}
	if root == nil {
		return ""
	}

	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s := partText(f.part, f.depth == 0); s != "" {
			return s
		}
		if f.depth >= MaxPartDepth {
			continue
		}
		for i := len(f.part.Parts) - 1; i >= 0; i-- {
			if child := f.part.Parts[i]; child != nil {
				stack = append(stack, frame{child, f.depth + 1})
			}
		}
	}
	return ""
}

func partText(p *maildomain.MessagePart, isRoot bool) string {
	if len(p.Data) == 0 {
		return ""
	}
	mime := strings.ToLower(strings.TrimSpace(p.MimeType))
	switch {
	case mime == "text/html":
		return text.HTMLToText(string(p.Data))
	case strings.HasPrefix(mime, "text/"), mime == "" && isRoot:
		return strings.TrimSpace(string(p.Data))
	}
	return ""
}
