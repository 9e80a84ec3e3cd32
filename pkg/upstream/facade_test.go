package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/ratelimit"
	"github.com/joblinkhq/linkedin-agent/pkg/retry"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
)

type loginOnlyAPI struct{}

func (a *loginOnlyAPI) Login(ctx context.Context, username, password string) (*session.Record, error) {
	return &session.Record{
		Username:  username,
		Timestamp: time.Now(),
		Cookies:   map[string]string{"li_at": "tok"},
		Mode:      "api",
	}, nil
}

func (a *loginOnlyAPI) Refresh(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	return nil, errors.New("not supported")
}

// stubAccessor fails a fixed number of times with err, then serves record.
type stubAccessor struct {
	calls  int
	fails  int
	err    error
	record map[string]any
}

func (s *stubAccessor) fetch() (map[string]any, error) {
	s.calls++
	if s.calls <= s.fails {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubAccessor) FetchProfile(ctx context.Context, profileID string) (map[string]any, error) {
	return s.fetch()
}
func (s *stubAccessor) FetchCompany(ctx context.Context, companyID string) (map[string]any, error) {
	return s.fetch()
}
func (s *stubAccessor) SearchJobs(ctx context.Context, filter SearchFilter, page, count int) (*SearchResult, error) {
	rec, err := s.fetch()
	if err != nil {
		return nil, err
	}
	return &SearchResult{Total: 1, Page: page, Count: 1, Results: []map[string]any{rec}}, nil
}
func (s *stubAccessor) FetchJobDetails(ctx context.Context, jobID string) (map[string]any, error) {
	return s.fetch()
}
func (s *stubAccessor) FetchRecommendedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	rec, err := s.fetch()
	if err != nil {
		return nil, err
	}
	return []map[string]any{rec}, nil
}
func (s *stubAccessor) FetchSavedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	rec, err := s.fetch()
	if err != nil {
		return nil, err
	}
	return []map[string]any{rec}, nil
}
func (s *stubAccessor) SaveJob(ctx context.Context, jobID string) error {
	_, err := s.fetch()
	return err
}
func (s *stubAccessor) FetchFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error) {
	rec, err := s.fetch()
	if err != nil {
		return nil, err
	}
	return []map[string]any{rec}, nil
}

func fastRetry(maxAttempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func authenticatedManager(t *testing.T) *session.Manager {
	t.Helper()
	store, err := session.NewStore(session.StoreTypeFile, session.WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := session.NewManager(store, &loginOnlyAPI{}, nil, ratelimit.New("login", 10, time.Minute))
	if _, err := m.Login(context.Background(), "user@example.com", "pw", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	return m
}

func newTestFacade(t *testing.T, api, browser Accessor) *Facade {
	t.Helper()
	f := NewFacade(authenticatedManager(t), ratelimit.NewSet(ratelimit.Budgets{}), api, browser)
	f.apiRetry = fastRetry(3)
	f.browserRetry = fastRetry(3)
	return f
}

func TestFacadeUsesProgrammaticPathFirst(t *testing.T) {
	api := &stubAccessor{record: map[string]any{"profile_id": "jane"}}
	browser := &stubAccessor{record: map[string]any{"profile_id": "jane"}}
	f := newTestFacade(t, api, browser)

	rec, err := f.FetchProfile(context.Background(), "jane")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if rec["profile_id"] != "jane" {
		t.Fatalf("unexpected record %v", rec)
	}
	if api.calls != 1 {
		t.Fatalf("api calls = %d, want 1", api.calls)
	}
	if browser.calls != 0 {
		t.Fatalf("browser calls = %d, want 0", browser.calls)
	}
}

func TestFacadeRetriesTransientFailures(t *testing.T) {
	api := &stubAccessor{
		fails:  2,
		err:    apierror.Network("connection reset", nil),
		record: map[string]any{"job_id": "123"},
	}
	f := newTestFacade(t, api, nil)

	if _, err := f.FetchJobDetails(context.Background(), "123"); err != nil {
		t.Fatalf("FetchJobDetails: %v", err)
	}
	if api.calls != 3 {
		t.Fatalf("api calls = %d, want 3", api.calls)
	}
}

func TestFacadeFallsBackWhenPathUnavailable(t *testing.T) {
	api := &stubAccessor{fails: 10, err: apierror.ServiceUnavailable("down", 0)}
	browser := &stubAccessor{record: map[string]any{"job_id": "123"}}
	f := newTestFacade(t, api, browser)

	rec, err := f.FetchJobDetails(context.Background(), "123")
	if err != nil {
		t.Fatalf("FetchJobDetails: %v", err)
	}
	if rec["job_id"] != "123" {
		t.Fatalf("unexpected record %v", rec)
	}
	if browser.calls != 1 {
		t.Fatalf("browser calls = %d, want 1", browser.calls)
	}
}

func TestFacadeDoesNotFallBackOnNotFound(t *testing.T) {
	api := &stubAccessor{fails: 10, err: apierror.NotFound("job", "999")}
	browser := &stubAccessor{record: map[string]any{"job_id": "999"}}
	f := newTestFacade(t, api, browser)

	_, err := f.FetchJobDetails(context.Background(), "999")
	if !apierror.IsKind(err, apierror.KindNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if api.calls != 1 {
		t.Fatalf("api calls = %d, want 1 (not found is not retryable)", api.calls)
	}
	if browser.calls != 0 {
		t.Fatalf("browser calls = %d, want 0", browser.calls)
	}
}

func TestFacadeReportsOriginalErrorWhenBothPathsFail(t *testing.T) {
	api := &stubAccessor{fails: 10, err: apierror.ServiceUnavailable("down", 0)}
	browser := &stubAccessor{fails: 10, err: apierror.Network("driver gone", nil)}
	f := newTestFacade(t, api, browser)

	_, err := f.FetchJobDetails(context.Background(), "123")
	if !apierror.IsKind(err, apierror.KindServiceUnavailable) {
		t.Fatalf("err = %v, want the programmatic-path failure", err)
	}
}

func TestFacadeRequiresAuthentication(t *testing.T) {
	store, err := session.NewStore(session.StoreTypeFile, session.WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	m := session.NewManager(store, &loginOnlyAPI{}, nil, ratelimit.New("login", 10, time.Minute))

	api := &stubAccessor{record: map[string]any{"profile_id": "jane"}}
	f := NewFacade(m, ratelimit.NewSet(ratelimit.Budgets{}), api, nil)

	_, err = f.FetchProfile(context.Background(), "jane")
	if !apierror.IsKind(err, apierror.KindAuthentication) {
		t.Fatalf("err = %v, want AUTHENTICATION_ERROR", err)
	}
	if api.calls != 0 {
		t.Fatalf("api calls = %d, want 0", api.calls)
	}
}

func TestFacadeSearchUsesSearchBudget(t *testing.T) {
	api := &stubAccessor{record: map[string]any{"job_id": "1"}}
	f := newTestFacade(t, api, nil)

	searchBefore := f.limits.Search.Remaining()
	defaultBefore := f.limits.Default.Remaining()
	if _, err := f.SearchJobs(context.Background(), SearchFilter{Keywords: "golang"}, 1, 5); err != nil {
		t.Fatalf("SearchJobs: %v", err)
	}
	if got := f.limits.Search.Remaining(); got != searchBefore-1 {
		t.Fatalf("search remaining = %d, want %d", got, searchBefore-1)
	}
	if got := f.limits.Default.Remaining(); got != defaultBefore {
		t.Fatalf("default remaining = %d, want %d", got, defaultBefore)
	}
}
