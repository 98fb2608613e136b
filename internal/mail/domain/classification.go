package domain

// Status is the closed set of labels the classifier may assign.
type Status string

const (
	StatusApplied       Status = "applied"
	StatusRejected      Status = "rejected"
	StatusNextSteps     Status = "next_steps"
	StatusCommentOnly   Status = "comment_only"
	StatusNotJobRelated Status = "not_job_related"
)

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApplied, StatusRejected, StatusNextSteps, StatusCommentOnly, StatusNotJobRelated:
		return true
	}
	return false
}

// Actionable reports whether a status changes a company rollup.
func (s Status) Actionable() bool {
	return s.Valid() && s != StatusNotJobRelated
}

// ClassificationResult is the model's verdict for one message. Once stored on
// a message it is never recomputed.
type ClassificationResult struct {
	IsJobRelated bool   `json:"is_job_related"`
	Status       Status `json:"status"`
	Summary      string `json:"summary"`
	CompanyName  string `json:"company_name"`
}
