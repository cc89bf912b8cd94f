// AngelaMos | 2026
// dto.go

package generation

type AnalyzeRequest struct {
	ResumeText string `json:"resume_text" validate:"required,min=50,max=50000"`
	JobText    string `json:"job_text"    validate:"omitempty,max=50000"`
}

type OptimizeRequest struct {
	ResumeText string `json:"resume_text" validate:"required,min=50,max=50000"`
	JobText    string `json:"job_text"    validate:"required,min=50,max=50000"`
}

type AnalyzeResponse struct {
	FitScore         int      `json:"fit_score"`
	MissingSkills    []string `json:"missing_skills"`
	Summary          string   `json:"summary,omitempty"`
	Charged          int64    `json:"charged"`
	RemainingCredits int64    `json:"remaining_credits"`
}

type OptimizeResponse struct {
	Content          string `json:"content"`
	Charged          int64  `json:"charged"`
	RemainingCredits int64  `json:"remaining_credits"`
}
