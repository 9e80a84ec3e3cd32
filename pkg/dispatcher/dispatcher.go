package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/application"
	"github.com/joblinkhq/linkedin-agent/pkg/docgen"
	"github.com/joblinkhq/linkedin-agent/pkg/retry"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

const logPrefix = "dispatcher:dispatch"

// SessionService is the slice of the session manager the dispatcher consumes.
type SessionService interface {
	Login(ctx context.Context, username, password string, forceNew bool) (session.State, error)
	Logout(ctx context.Context) error
	CheckSession(ctx context.Context) session.State
}

// ProfileService serves profile, company and feed lookups.
type ProfileService interface {
	GetProfile(ctx context.Context, profileID string) (map[string]any, error)
	GetCompany(ctx context.Context, companyID string) (map[string]any, error)
	GetFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error)
}

// JobService serves job discovery.
type JobService interface {
	Search(ctx context.Context, filter upstream.SearchFilter, page, count int) (*upstream.SearchResult, error)
	GetJobDetails(ctx context.Context, jobID string) (map[string]any, error)
	GetRecommended(ctx context.Context, count int) ([]map[string]any, error)
	GetSaved(ctx context.Context, count int) ([]map[string]any, error)
	Save(ctx context.Context, jobID string) error
}

// ApplicationService tracks job applications.
type ApplicationService interface {
	Apply(ctx context.Context, req application.ApplyRequest) (*application.Application, error)
	Status(ctx context.Context, applicationID string) (*application.Application, error)
	History(ctx context.Context) ([]*application.Application, error)
	Withdraw(ctx context.Context, jobID string) (*application.Application, error)
}

// DocumentService generates resumes and cover letters.
type DocumentService interface {
	GenerateResume(ctx context.Context, profile map[string]any, template, format string) (*docgen.Document, error)
	TailorResume(ctx context.Context, profile, job map[string]any, template, format string) (*docgen.Document, error)
	GenerateCoverLetter(ctx context.Context, profile, job map[string]any, template, format string) (*docgen.Document, error)
}

// Services bundles the collaborators behind the method table.
type Services struct {
	Sessions     SessionService
	Profiles     ProfileService
	Jobs         JobService
	Applications ApplicationService
	Documents    DocumentService
}

// handlerFunc validates params and invokes one operation.
type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes requests through an explicit method table.
type Dispatcher struct {
	services Services
	handlers map[string]handlerFunc
	methods  []string

	// outerRetry, when set, re-runs a whole operation on transient taxonomy
	// kinds, with its own attempt budget independent of any retries inside
	// the upstream facade.
	outerRetry *retry.Config
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithOuterRetry enables operation-level retry with the given policy.
func WithOuterRetry(cfg retry.Config) Option {
	return func(d *Dispatcher) { d.outerRetry = &cfg }
}

// NewDispatcher builds the method table over the given services.
func NewDispatcher(services Services, opts ...Option) *Dispatcher {
	d := &Dispatcher{services: services}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers = map[string]handlerFunc{
		"linkedin.login":                 d.handleLogin,
		"linkedin.logout":                d.handleLogout,
		"linkedin.checkSession":          d.handleCheckSession,
		"linkedin.getFeed":               d.handleGetFeed,
		"linkedin.getProfile":            d.handleGetProfile,
		"linkedin.getCompany":            d.handleGetCompany,
		"linkedin.searchJobs":            d.handleSearchJobs,
		"linkedin.getJobDetails":         d.handleGetJobDetails,
		"linkedin.getRecommendedJobs":    d.handleGetRecommendedJobs,
		"linkedin.getSavedJobs":          d.handleGetSavedJobs,
		"linkedin.saveJob":               d.handleSaveJob,
		"linkedin.generateResume":        d.handleGenerateResume,
		"linkedin.tailorResume":          d.handleTailorResume,
		"linkedin.generateCoverLetter":   d.handleGenerateCoverLetter,
		"linkedin.applyToJob":            d.handleApplyToJob,
		"linkedin.getApplicationStatus":  d.handleGetApplicationStatus,
		"linkedin.getApplicationHistory": d.handleGetApplicationHistory,
		"linkedin.withdrawApplication":   d.handleWithdrawApplication,
	}

	d.methods = make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		d.methods = append(d.methods, name)
	}
	sort.Strings(d.methods)
	return d
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	out := make([]string, len(d.methods))
	copy(out, d.methods)
	return out
}

// DispatchRaw parses one input line and dispatches it. A line that is not a
// JSON object yields a parse-error response with a null id.
func (d *Dispatcher) DispatchRaw(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		slog.Warn(fmt.Sprintf("%s - unparseable request: %v", logPrefix, err))
		return errorResponse(nil, codeParseError, "Parse error", map[string]any{
			"cause": err.Error(),
		})
	}
	return d.Dispatch(ctx, &req)
}

// Dispatch routes one request to its handler and normalizes the outcome. A
// panicking handler is recovered into an internal-error response so the
// request loop keeps serving.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%v", logPrefix, req.Method, req.ID))

	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - panic in %s: %v", logPrefix, req.Method, r))
			resp = errorResponse(req.ID, codeInternalError, "Internal error", map[string]any{
				"cause": fmt.Sprint(r),
			})
		}
	}()

	handler, ok := d.handlers[req.Method]
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound,
			fmt.Sprintf("Unknown method: %s", req.Method),
			map[string]any{"methods": d.Methods()})
	}

	result, err := d.invoke(ctx, handler, req.Params)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - %s failed: %v", logPrefix, req.Method, err))
		return failureResponse(req.ID, err)
	}
	return successResponse(req.ID, result)
}

// invoke runs the handler, under the outer retry policy when one is set.
func (d *Dispatcher) invoke(ctx context.Context, handler handlerFunc, params json.RawMessage) (any, error) {
	if d.outerRetry == nil {
		return handler(ctx, params)
	}
	return retry.DoValue(ctx, *d.outerRetry, func(ctx context.Context) (any, error) {
		return handler(ctx, params)
	})
}

// decodeParams unmarshals params into out. An absent params object is
// treated as empty so optional-only methods work without one.
func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return apierror.Validation("Failed to parse params: " + err.Error())
	}
	return nil
}

// requireFields rejects the request when any named field is empty, listing
// every missing name. The operation is never partially executed.
func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apierror.Validation("Missing required parameters", missing...)
}
