package upstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/ratelimit"
	"github.com/joblinkhq/linkedin-agent/pkg/retry"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
)

const facadeLogPrefix = "upstream:facade"

// Facade is the single door to upstream data. Every call runs the same
// pipeline: ensure the session is live, take a rate-limit slot, try the
// programmatic path under retry, and fall back to the browser path only
// when the programmatic path is structurally unavailable.
type Facade struct {
	sessions *session.Manager
	limits   *ratelimit.Set

	api     Accessor
	browser Accessor

	apiRetry     retry.Config
	browserRetry retry.Config
}

// FacadeOption adjusts facade construction.
type FacadeOption func(*Facade)

// WithAPIRetry overrides the retry policy for the programmatic path.
func WithAPIRetry(cfg retry.Config) FacadeOption {
	return func(f *Facade) { f.apiRetry = cfg }
}

// NewFacade wires the two access paths behind the shared session manager and
// rate-limit set. browser may be nil, in which case structural failures of
// the programmatic path propagate as-is.
func NewFacade(sessions *session.Manager, limits *ratelimit.Set, api, browser Accessor, opts ...FacadeOption) *Facade {
	f := &Facade{
		sessions:     sessions,
		limits:       limits,
		api:          api,
		browser:      browser,
		apiRetry:     retry.DefaultConfig(),
		browserRetry: retry.NetworkConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// pathUnavailable reports whether a programmatic-path failure means the path
// itself is broken, as opposed to the request being wrong. Only the former
// justifies switching to the browser: a missing profile is missing on both
// paths, and bad credentials stay bad.
func pathUnavailable(err error) bool {
	switch apierror.KindOf(err) {
	case apierror.KindRetryExhausted,
		apierror.KindServiceUnavailable,
		apierror.KindNetwork,
		apierror.KindTimeout,
		apierror.KindAuthorization,
		apierror.KindInternal:
		return true
	}
	return false
}

// callValue runs one upstream fetch through the full pipeline. limiter picks
// the budget class; the op closures receive the accessor for each path.
func callValue[T any](ctx context.Context, f *Facade, limiter *ratelimit.Limiter, operation string, op func(context.Context, Accessor) (T, error)) (T, error) {
	var zero T

	if err := f.sessions.EnsureAuthenticated(ctx); err != nil {
		return zero, err
	}
	if err := limiter.Acquire(ctx); err != nil {
		return zero, err
	}

	result, err := retry.DoValue(ctx, f.apiRetry, func(ctx context.Context) (T, error) {
		return op(ctx, f.api)
	})
	if err == nil {
		return result, nil
	}
	if f.browser == nil || !pathUnavailable(err) {
		return zero, err
	}

	// The browser fallback runs under the admission already acquired for the
	// API attempt, so a fallback sequence counts once against the window even
	// though it touches the upstream twice.
	slog.Warn(fmt.Sprintf("%s - %s failed on the programmatic path, switching to browser: %v", facadeLogPrefix, operation, err))
	result, berr := retry.DoValue(ctx, f.browserRetry, func(ctx context.Context) (T, error) {
		return op(ctx, f.browser)
	})
	if berr != nil {
		// The original failure is usually the more meaningful one.
		return zero, err
	}
	return result, nil
}

func (f *Facade) FetchProfile(ctx context.Context, profileID string) (map[string]any, error) {
	return callValue(ctx, f, f.limits.Default, "fetchProfile", func(ctx context.Context, a Accessor) (map[string]any, error) {
		return a.FetchProfile(ctx, profileID)
	})
}

func (f *Facade) FetchCompany(ctx context.Context, companyID string) (map[string]any, error) {
	return callValue(ctx, f, f.limits.Default, "fetchCompany", func(ctx context.Context, a Accessor) (map[string]any, error) {
		return a.FetchCompany(ctx, companyID)
	})
}

func (f *Facade) SearchJobs(ctx context.Context, filter SearchFilter, page, count int) (*SearchResult, error) {
	return callValue(ctx, f, f.limits.Search, "searchJobs", func(ctx context.Context, a Accessor) (*SearchResult, error) {
		return a.SearchJobs(ctx, filter, page, count)
	})
}

func (f *Facade) FetchJobDetails(ctx context.Context, jobID string) (map[string]any, error) {
	return callValue(ctx, f, f.limits.Default, "fetchJobDetails", func(ctx context.Context, a Accessor) (map[string]any, error) {
		return a.FetchJobDetails(ctx, jobID)
	})
}

func (f *Facade) FetchRecommendedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	return callValue(ctx, f, f.limits.Search, "fetchRecommendedJobs", func(ctx context.Context, a Accessor) ([]map[string]any, error) {
		return a.FetchRecommendedJobs(ctx, count)
	})
}

func (f *Facade) FetchSavedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	return callValue(ctx, f, f.limits.Default, "fetchSavedJobs", func(ctx context.Context, a Accessor) ([]map[string]any, error) {
		return a.FetchSavedJobs(ctx, count)
	})
}

func (f *Facade) SaveJob(ctx context.Context, jobID string) error {
	_, err := callValue(ctx, f, f.limits.Default, "saveJob", func(ctx context.Context, a Accessor) (struct{}, error) {
		return struct{}{}, a.SaveJob(ctx, jobID)
	})
	return err
}

func (f *Facade) FetchFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error) {
	return callValue(ctx, f, f.limits.Default, "fetchFeed", func(ctx context.Context, a Accessor) ([]map[string]any, error) {
		return a.FetchFeed(ctx, count, feedType)
	})
}
