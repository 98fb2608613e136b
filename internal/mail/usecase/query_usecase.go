package usecase

import (
	"context"
	"fmt"
	"sort"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/internal/mail/repository"
)

// FilterByCompany keeps the job-related messages classified for company,
// compared case-insensitively after trimming. Input order is preserved.
func FilterByCompany(messages []*maildomain.MailMessage, company string) []*maildomain.MailMessage {
	out := make([]*maildomain.MailMessage, 0)
	for _, m := range messages {
		if m != nil && m.MatchesCompany(company) {
			out = append(out, m)
		}
	}
	return out
}

// SortNewestFirst orders messages by internal date, newest first. A missing
// internal date sorts as zero.
func SortNewestFirst(messages []*maildomain.MailMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].InternalDateMs > messages[j].InternalDateMs
	})
}

type queryUsecase struct {
	messages repository.MessageRepository
}

func NewQueryUsecase(messages repository.MessageRepository) QueryUsecase {
	return &queryUsecase{messages: messages}
}

func (u *queryUsecase) MessagesByCompany(ctx context.Context, owner, company string) ([]*maildomain.MailMessage, error) {
	owner = maildomain.NormalizeOwner(owner)
	if owner == "" {
		return nil, maildomain.ErrInvalidOwner
	}
	all, err := u.messages.ListClassified(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list classified messages: %w", err)
	}
	matched := FilterByCompany(all, company)
	SortNewestFirst(matched)
	return matched, nil
}
