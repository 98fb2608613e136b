package dto

import maildomain "jobtracker-backend/internal/mail/domain"

type SyncRequest struct {
	QueryOverride     string `json:"query_override"`
	SkipCursorAdvance bool   `json:"skip_cursor_advance"`
}

// MessageResponse is a stored message without its body.
type MessageResponse struct {
	ID             string                           `json:"id"`
	ThreadID       string                           `json:"thread_id"`
	From           string                           `json:"from"`
	Subject        string                           `json:"subject"`
	Date           string                           `json:"date"`
	Snippet        string                           `json:"snippet"`
	InternalDateMs int64                            `json:"internal_date_ms"`
	Classification *maildomain.ClassificationResult `json:"classification,omitempty"`
}

type CompanyMessagesResponse struct {
	Company  string            `json:"company"`
	Count    int               `json:"count"`
	Messages []MessageResponse `json:"messages"`
}

func NewCompanyMessagesResponse(company string, messages []*maildomain.MailMessage) *CompanyMessagesResponse {
	out := &CompanyMessagesResponse{
		Company:  company,
		Count:    len(messages),
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, MessageResponse{
			ID:             m.ID,
			ThreadID:       m.ThreadID,
			From:           m.From,
			Subject:        m.Subject,
			Date:           m.Date,
			Snippet:        m.Snippet,
			InternalDateMs: m.InternalDateMs,
			Classification: m.Classification,
		})
	}
	return out
}
