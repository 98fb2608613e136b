package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOwner(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeOwner("  Alice@Example.COM "))
	assert.Equal(t, "", NormalizeOwner("   "))
}

func TestMatchesCompany(t *testing.T) {
	tests := []struct {
		name    string
		c       *ClassificationResult
		company string
		want    bool
	}{
		{"exact", &ClassificationResult{IsJobRelated: true, Status: StatusApplied, CompanyName: "Acme"}, "Acme", true},
		{"case and space", &ClassificationResult{IsJobRelated: true, Status: StatusRejected, CompanyName: " acme "}, "ACME", true},
		{"not job related flag", &ClassificationResult{IsJobRelated: false, Status: StatusApplied, CompanyName: "Acme"}, "Acme", false},
		{"not job related status", &ClassificationResult{IsJobRelated: true, Status: StatusNotJobRelated, CompanyName: "Acme"}, "Acme", false},
		{"prefix only", &ClassificationResult{IsJobRelated: true, Status: StatusApplied, CompanyName: "Acme Corp"}, "Acme", false},
		{"unclassified", nil, "Acme", false},
		{"blank query", &ClassificationResult{IsJobRelated: true, Status: StatusApplied, CompanyName: ""}, " ", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := &MailMessage{Classification: tt.c}
			assert.Equal(t, tt.want, m.MatchesCompany(tt.company))
		})
	}
}

func TestRemoteMessageHeaderIsCaseInsensitive(t *testing.T) {
	m := &RemoteMessage{Payload: &MessagePart{Headers: []Header{
		{Name: "from", Value: "a@x.com"},
		{Name: "SUBJECT", Value: "Hi"},
	}}}
	assert.Equal(t, "a@x.com", m.Header("From"))
	assert.Equal(t, "Hi", m.Header("Subject"))
	assert.Equal(t, "", m.Header("Date"))

	var nilMsg *RemoteMessage
	assert.Equal(t, "", nilMsg.Header("From"))
}

func TestStatusSets(t *testing.T) {
	assert.True(t, StatusCommentOnly.Actionable())
	assert.False(t, StatusNotJobRelated.Actionable())
	assert.True(t, StatusNotJobRelated.Valid())
	assert.False(t, Status("hired").Valid())
	assert.False(t, Status("").Actionable())
}
