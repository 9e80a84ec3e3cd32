// Package upstream provides dual-mode access to the networking platform: a
// programmatic REST path and a browser-automation path implementing the same
// capability contract, composed behind a facade that retries transient
// failures per path and falls back to the browser when the programmatic path
// is structurally unavailable.
package upstream

import "context"

// SearchFilter narrows a job search. All fields are optional.
type SearchFilter struct {
	Keywords        string   `json:"keywords,omitempty"`
	Location        string   `json:"location,omitempty"`
	Distance        int      `json:"distance,omitempty"`
	DatePosted      string   `json:"date_posted,omitempty"`
	JobType         []string `json:"job_type,omitempty"`
	ExperienceLevel []string `json:"experience_level,omitempty"`
	CompanyName     string   `json:"company_name,omitempty"`
	Remote          bool     `json:"remote,omitempty"`
}

// SearchResult is one page of job search results. Each entry is a summary
// record keyed by the same field names as the full job record, so results
// merge into the job cache without clobbering detail.
type SearchResult struct {
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Count   int              `json:"count"`
	Results []map[string]any `json:"results"`
}

// Accessor is the capability contract implemented by both access paths.
// Every record is returned as plain structured data keyed by stable field
// names (job_id, title, company, ...); callers and caches treat records as
// opaque beyond those keys.
type Accessor interface {
	FetchProfile(ctx context.Context, profileID string) (map[string]any, error)
	FetchCompany(ctx context.Context, companyID string) (map[string]any, error)
	SearchJobs(ctx context.Context, filter SearchFilter, page, count int) (*SearchResult, error)
	FetchJobDetails(ctx context.Context, jobID string) (map[string]any, error)
	FetchRecommendedJobs(ctx context.Context, count int) ([]map[string]any, error)
	FetchSavedJobs(ctx context.Context, count int) ([]map[string]any, error)
	SaveJob(ctx context.Context, jobID string) error
	FetchFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error)
}
