package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	maildomain "jobtracker-backend/internal/mail/domain"

	"gorm.io/datatypes"
)

// MaxCommentNoteLength bounds a rollup comment note, in characters.
const MaxCommentNoteLength = 280

var ErrRollupNotFound = errors.New("rollup not found")

// Comment is a dated note appended for comment_only classifications.
type Comment struct {
	Date string `json:"date"`
	Note string `json:"note"`
}

// JobRollup aggregates an owner's classified messages for one company.
type JobRollup struct {
	ID          string         `json:"id" gorm:"primaryKey;size:600"`
	Owner       string         `json:"owner" gorm:"index;size:320;not null"`
	CompanyName string         `json:"company_name"`
	Applied     int            `json:"applied"`
	Rejected    int            `json:"rejected"`
	NextSteps   int            `json:"next_steps"`
	Comments    datatypes.JSON `json:"comments"`
	LastUpdated string         `json:"last_updated" gorm:"size:10;index"`
}

func (JobRollup) TableName() string {
	return "job_rollups"
}

// Slugify lowercases a company name and joins its whitespace-separated words
// with underscores.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// RollupID derives the deterministic rollup key for an owner and company.
func RollupID(owner, company string) string {
	return maildomain.NormalizeOwner(owner) + "::" + Slugify(company)
}

// TruncateNote cuts s to MaxCommentNoteLength runes.
func TruncateNote(s string) string {
	r := []rune(s)
	if len(r) <= MaxCommentNoteLength {
		return s
	}
	return string(r[:MaxCommentNoteLength])
}

// ErrCorruptComments means the stored comment column is not a JSON list.
var ErrCorruptComments = errors.New("corrupt rollup comments")

// DecodeComments reads the comment list. Entries stored as bare strings by
// older writers are returned as comments dated legacyDate. Entries that are
// neither strings nor comment objects are skipped; only a column that is not
// a list at all is an error.
func (r *JobRollup) DecodeComments(legacyDate string) ([]Comment, error) {
	raw := bytes.TrimSpace(r.Comments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Comment{}, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptComments, r.ID, err)
	}

	comments := make([]Comment, 0, len(entries))
	for _, e := range entries {
		e = bytes.TrimSpace(e)
		if len(e) == 0 {
			continue
		}
		switch e[0] {
		case '"':
			var note string
			if err := json.Unmarshal(e, &note); err == nil {
				comments = append(comments, Comment{Date: legacyDate, Note: note})
			}
		case '{':
			var c Comment
			if err := json.Unmarshal(e, &c); err == nil {
				comments = append(comments, c)
			}
		}
	}
	return comments, nil
}

// SetComments replaces the stored comment list.
func (r *JobRollup) SetComments(comments []Comment) error {
	if comments == nil {
		comments = []Comment{}
	}
	b, err := json.Marshal(comments)
	if err != nil {
		return err
	}
	r.Comments = datatypes.JSON(b)
	return nil
}
