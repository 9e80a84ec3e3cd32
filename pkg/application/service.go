package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/ratelimit"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

const logPrefix = "application:service"

// Applier submits an application through the browser flow. The programmatic
// path has no application endpoint, so this is browser-only.
type Applier interface {
	ApplyToJob(ctx context.Context, jobID, resumePath, coverLetterPath, phoneNumber string) (*upstream.ApplyOutcome, error)
}

var _ Applier = (*upstream.BrowserClient)(nil)

// ApplyRequest carries the optional attachments for one application.
type ApplyRequest struct {
	JobID           string
	ResumePath      string
	CoverLetterPath string
	PhoneNumber     string
	Notes           string
}

type Service struct {
	sessions *session.Manager
	limiter  *ratelimit.Limiter
	applier  Applier
	store    Store
}

// NewService wires the application tracker. applier may be nil when browser
// automation is disabled; Apply then fails with a service-unavailable error
// while the history operations keep working.
func NewService(sessions *session.Manager, limiter *ratelimit.Limiter, applier Applier, store Store) *Service {
	return &Service{sessions: sessions, limiter: limiter, applier: applier, store: store}
}

// Apply submits an application for the job and records the outcome. A job
// with a live (non-withdrawn) application is rejected with a conflict rather
// than applied to twice.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*Application, error) {
	if err := s.sessions.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	existing, err := s.store.GetByJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if existing.Active() {
		return nil, apierror.Conflict(fmt.Sprintf("Already applied to job %s on %s",
			req.JobID, existing.AppliedAt.Format("2006-01-02"))).
			WithDetail("application_id", existing.ID)
	}

	if s.applier == nil {
		return nil, apierror.ServiceUnavailable("Browser automation is disabled, cannot submit applications", 0)
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	outcome, err := s.applier.ApplyToJob(ctx, req.JobID, req.ResumePath, req.CoverLetterPath, req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	app := &Application{
		ID:              uuid.NewString(),
		JobID:           req.JobID,
		JobTitle:        outcome.JobTitle,
		Company:         outcome.Company,
		Status:          outcome.Status,
		Method:          outcome.Method,
		ResumePath:      req.ResumePath,
		CoverLetterPath: req.CoverLetterPath,
		ActionURL:       outcome.ActionURL,
		Notes:           req.Notes,
		AppliedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Put(ctx, app); err != nil {
		return nil, err
	}

	slog.Info(fmt.Sprintf("%s - recorded application %s for job %s (%s)", logPrefix, app.ID, app.JobID, app.Status))
	return app, nil
}

// Status returns one application by id.
func (s *Service) Status(ctx context.Context, applicationID string) (*Application, error) {
	app, err := s.store.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apierror.NotFound("application", applicationID)
	}
	return app, nil
}

// History returns all tracked applications, newest first.
func (s *Service) History(ctx context.Context) ([]*Application, error) {
	return s.store.List(ctx)
}

// Withdraw marks the job's application withdrawn. The upstream offers no
// withdrawal endpoint, so this updates the local record only.
func (s *Service) Withdraw(ctx context.Context, jobID string) (*Application, error) {
	app, err := s.store.GetByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apierror.NotFound("application for job", jobID)
	}
	if app.Status == StatusWithdrawn {
		return app, nil
	}

	app.Status = StatusWithdrawn
	app.UpdatedAt = time.Now()
	if err := s.store.Put(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}
