package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/joblinkhq/linkedin-agent/pkg/application"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

// Defaults for optional params.
const (
	defaultSearchCount = 20
	defaultListCount   = 10
	defaultTemplate    = "standard"
	defaultFormat      = "html"
)

// sessionResult is the caller-visible view of a session. Tokens stay out of
// responses.
func sessionResult(state session.State) map[string]any {
	result := map[string]any{"authenticated": state.Authenticated}
	if state.Username != "" {
		result["username"] = state.Username
	}
	if state.Mode != "" {
		result["mode"] = state.Mode
	}
	if !state.ExpiresAt.IsZero() {
		result["expires_at"] = state.ExpiresAt
	}
	return result
}

func (d *Dispatcher) handleLogin(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Username string `json:"username"`
		Password string `json:"password"`
		ForceNew bool   `json:"forceNew"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"username": p.Username, "password": p.Password}); err != nil {
		return nil, err
	}

	state, err := d.services.Sessions.Login(ctx, p.Username, p.Password, p.ForceNew)
	if err != nil {
		return nil, err
	}
	return sessionResult(state), nil
}

func (d *Dispatcher) handleLogout(ctx context.Context, params json.RawMessage) (any, error) {
	if err := d.services.Sessions.Logout(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) handleCheckSession(ctx context.Context, params json.RawMessage) (any, error) {
	return sessionResult(d.services.Sessions.CheckSession(ctx)), nil
}

func (d *Dispatcher) handleGetFeed(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Count    int    `json:"count"`
		FeedType string `json:"feedType"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Count <= 0 {
		p.Count = defaultListCount
	}

	posts, err := d.services.Profiles.GetFeed(ctx, p.Count, p.FeedType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(posts), "posts": posts}, nil
}

func (d *Dispatcher) handleGetProfile(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ProfileID string `json:"profileId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"profileId": p.ProfileID}); err != nil {
		return nil, err
	}
	return d.services.Profiles.GetProfile(ctx, p.ProfileID)
}

func (d *Dispatcher) handleGetCompany(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		CompanyID string `json:"companyId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"companyId": p.CompanyID}); err != nil {
		return nil, err
	}
	return d.services.Profiles.GetCompany(ctx, p.CompanyID)
}

func (d *Dispatcher) handleSearchJobs(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Keywords        string   `json:"keywords"`
		Location        string   `json:"location"`
		Distance        int      `json:"distance"`
		DatePosted      string   `json:"datePosted"`
		JobType         []string `json:"jobType"`
		ExperienceLevel []string `json:"experienceLevel"`
		CompanyName     string   `json:"companyName"`
		Remote          bool     `json:"remote"`
		Page            int      `json:"page"`
		Count           int      `json:"count"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Count <= 0 {
		p.Count = defaultSearchCount
	}

	filter := upstream.SearchFilter{
		Keywords:        p.Keywords,
		Location:        p.Location,
		Distance:        p.Distance,
		DatePosted:      p.DatePosted,
		JobType:         p.JobType,
		ExperienceLevel: p.ExperienceLevel,
		CompanyName:     p.CompanyName,
		Remote:          p.Remote,
	}
	return d.services.Jobs.Search(ctx, filter, p.Page, p.Count)
}

func (d *Dispatcher) handleGetJobDetails(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		JobID string `json:"jobId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"jobId": p.JobID}); err != nil {
		return nil, err
	}
	return d.services.Jobs.GetJobDetails(ctx, p.JobID)
}

func (d *Dispatcher) handleGetRecommendedJobs(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Count int `json:"count"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Count <= 0 {
		p.Count = defaultListCount
	}

	jobs, err := d.services.Jobs.GetRecommended(ctx, p.Count)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(jobs), "jobs": jobs}, nil
}

func (d *Dispatcher) handleGetSavedJobs(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Count int `json:"count"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Count <= 0 {
		p.Count = defaultListCount
	}

	jobs, err := d.services.Jobs.GetSaved(ctx, p.Count)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(jobs), "jobs": jobs}, nil
}

func (d *Dispatcher) handleSaveJob(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		JobID string `json:"jobId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"jobId": p.JobID}); err != nil {
		return nil, err
	}

	if err := d.services.Jobs.Save(ctx, p.JobID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "job_id": p.JobID}, nil
}

type documentParams struct {
	ProfileID string `json:"profileId"`
	JobID     string `json:"jobId"`
	Template  string `json:"template"`
	Format    string `json:"format"`
}

func (p *documentParams) applyDefaults() {
	if p.Template == "" {
		p.Template = defaultTemplate
	}
	if p.Format == "" {
		p.Format = defaultFormat
	}
}

func (d *Dispatcher) handleGenerateResume(ctx context.Context, params json.RawMessage) (any, error) {
	var p documentParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"profileId": p.ProfileID}); err != nil {
		return nil, err
	}
	p.applyDefaults()

	profile, err := d.services.Profiles.GetProfile(ctx, p.ProfileID)
	if err != nil {
		return nil, err
	}
	return d.services.Documents.GenerateResume(ctx, profile, p.Template, p.Format)
}

func (d *Dispatcher) handleTailorResume(ctx context.Context, params json.RawMessage) (any, error) {
	var p documentParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"profileId": p.ProfileID, "jobId": p.JobID}); err != nil {
		return nil, err
	}
	p.applyDefaults()

	profile, err := d.services.Profiles.GetProfile(ctx, p.ProfileID)
	if err != nil {
		return nil, err
	}
	job, err := d.services.Jobs.GetJobDetails(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	return d.services.Documents.TailorResume(ctx, profile, job, p.Template, p.Format)
}

func (d *Dispatcher) handleGenerateCoverLetter(ctx context.Context, params json.RawMessage) (any, error) {
	var p documentParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"profileId": p.ProfileID, "jobId": p.JobID}); err != nil {
		return nil, err
	}
	p.applyDefaults()

	profile, err := d.services.Profiles.GetProfile(ctx, p.ProfileID)
	if err != nil {
		return nil, err
	}
	job, err := d.services.Jobs.GetJobDetails(ctx, p.JobID)
	if err != nil {
		return nil, err
	}
	return d.services.Documents.GenerateCoverLetter(ctx, profile, job, p.Template, p.Format)
}

func (d *Dispatcher) handleApplyToJob(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		JobID           string `json:"jobId"`
		ResumePath      string `json:"resumePath"`
		CoverLetterPath string `json:"coverLetterPath"`
		PhoneNumber     string `json:"phoneNumber"`
		Notes           string `json:"notes"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"jobId": p.JobID}); err != nil {
		return nil, err
	}

	return d.services.Applications.Apply(ctx, application.ApplyRequest{
		JobID:           p.JobID,
		ResumePath:      p.ResumePath,
		CoverLetterPath: p.CoverLetterPath,
		PhoneNumber:     p.PhoneNumber,
		Notes:           p.Notes,
	})
}

func (d *Dispatcher) handleGetApplicationStatus(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		ApplicationID string `json:"applicationId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"applicationId": p.ApplicationID}); err != nil {
		return nil, err
	}
	return d.services.Applications.Status(ctx, p.ApplicationID)
}

func (d *Dispatcher) handleGetApplicationHistory(ctx context.Context, params json.RawMessage) (any, error) {
	apps, err := d.services.Applications.History(ctx)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []*application.Application{}
	}
	return map[string]any{"count": len(apps), "applications": apps}, nil
}

func (d *Dispatcher) handleWithdrawApplication(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		JobID string `json:"jobId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := requireFields(map[string]string{"jobId": p.JobID}); err != nil {
		return nil, err
	}
	return d.services.Applications.Withdraw(ctx, p.JobID)
}
