package usecase

import (
	"context"
	"testing"

	maildomain "jobtracker-backend/internal/mail/domain"
	"jobtracker-backend/internal/mail/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifiedMessage(id string, ms int64, status maildomain.Status, company string) *maildomain.MailMessage {
	return &maildomain.MailMessage{
		Owner:          owner,
		ID:             id,
		InternalDateMs: ms,
		Classification: &maildomain.ClassificationResult{
			IsJobRelated: status != maildomain.StatusNotJobRelated,
			Status:       status,
			CompanyName:  company,
		},
	}
}

func TestFilterByCompany(t *testing.T) {
	msgs := []*maildomain.MailMessage{
		classifiedMessage("a", 1, maildomain.StatusApplied, "Acme"),
		classifiedMessage("b", 2, maildomain.StatusRejected, "Beta"),
		classifiedMessage("c", 3, maildomain.StatusNextSteps, " acme "),
		classifiedMessage("d", 4, maildomain.StatusNotJobRelated, "Acme"),
		nil,
		{Owner: owner, ID: "e"},
	}

	got := FilterByCompany(msgs, "ACME")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.Empty(t, FilterByCompany(msgs, "Gamma"))
	assert.NotNil(t, FilterByCompany(nil, "Acme"))
}

func TestSortNewestFirstIsStable(t *testing.T) {
	msgs := []*maildomain.MailMessage{
		{ID: "old", InternalDateMs: 100},
		{ID: "missing-1"},
		{ID: "new", InternalDateMs: 300},
		{ID: "missing-2"},
		{ID: "mid", InternalDateMs: 200},
	}
	SortNewestFirst(msgs)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"new", "mid", "old", "missing-1", "missing-2"}, ids)
}

func TestMessagesByCompany(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.NewMessageRepository(db)

	for _, m := range []*maildomain.MailMessage{
		classifiedMessage("m1", 100000, maildomain.StatusApplied, "Acme"),
		classifiedMessage("m2", 300000, maildomain.StatusNextSteps, "acme"),
		classifiedMessage("m3", 200000, maildomain.StatusApplied, "Beta"),
		{Owner: owner, ID: "m4", InternalDateMs: 400000},
		{Owner: "bob@x.com", ID: "m5", InternalDateMs: 500000, Classification: &maildomain.ClassificationResult{IsJobRelated: true, Status: maildomain.StatusApplied, CompanyName: "Acme"}},
	} {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	uc := NewQueryUsecase(repo)
	got, err := uc.MessagesByCompany(ctx, "ALICE@x.com", "Acme")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].ID)
	assert.Equal(t, "m1", got[1].ID)

	none, err := uc.MessagesByCompany(ctx, owner, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = uc.MessagesByCompany(ctx, "", "Acme")
	assert.ErrorIs(t, err, maildomain.ErrInvalidOwner)
}
