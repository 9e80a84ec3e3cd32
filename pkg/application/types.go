// Package application tracks job applications: submitting them through the
// browser flow and keeping a durable local history.
package application

import "time"

// Application statuses.
const (
	StatusSubmitted        = "submitted"
	StatusInProgress       = "in_progress"
	StatusExternalRedirect = "external_redirect"
	StatusNoApplyOption    = "no_apply_option"
	StatusWithdrawn        = "withdrawn"
)

// Application methods.
const (
	MethodEasyApply = "easy_apply"
	MethodExternal  = "external"
)

// Application is one tracked job application.
type Application struct {
	ID              string    `json:"id"`
	JobID           string    `json:"job_id"`
	JobTitle        string    `json:"job_title,omitempty"`
	Company         string    `json:"company,omitempty"`
	Status          string    `json:"status"`
	Method          string    `json:"method,omitempty"`
	ResumePath      string    `json:"resume_path,omitempty"`
	CoverLetterPath string    `json:"cover_letter_path,omitempty"`
	ActionURL       string    `json:"action_url,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	AppliedAt       time.Time `json:"applied_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the application still counts toward the one-live-
// application-per-job rule.
func (a *Application) Active() bool {
	return a != nil && a.Status != StatusWithdrawn
}
