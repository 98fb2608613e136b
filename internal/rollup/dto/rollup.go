package dto

import rollupdomain "jobtracker-backend/internal/rollup/domain"

type RollupResponse struct {
	ID          string                 `json:"id"`
	CompanyName string                 `json:"company_name"`
	Applied     int                    `json:"applied"`
	Rejected    int                    `json:"rejected"`
	NextSteps   int                    `json:"next_steps"`
	Comments    []rollupdomain.Comment `json:"comments"`
	LastUpdated string                 `json:"last_updated"`
}

// NewRollupResponse decodes stored comments, dating legacy entries with the
// rollup's last update.
func NewRollupResponse(r *rollupdomain.JobRollup) (*RollupResponse, error) {
	comments, err := r.DecodeComments(r.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &RollupResponse{
		ID:          r.ID,
		CompanyName: r.CompanyName,
		Applied:     r.Applied,
		Rejected:    r.Rejected,
		NextSteps:   r.NextSteps,
		Comments:    comments,
		LastUpdated: r.LastUpdated,
	}, nil
}
