package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/application"
	"github.com/joblinkhq/linkedin-agent/pkg/docgen"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
	"github.com/joblinkhq/linkedin-agent/pkg/upstream"
)

// fakeServices implements every service interface with canned data and call
// counters, so routing tests can assert exactly what was invoked.
type fakeServices struct {
	loginCalls    int
	logoutCalls   int
	checkCalls    int
	profileCalls  int
	companyCalls  int
	feedCalls     int
	searchCalls   int
	detailsCalls  int
	applyCalls    int
	statusCalls   int
	historyCalls  int
	withdrawCalls int
	resumeCalls   int

	loginErr   error
	profileErr error
	searchErr  func(call int) error

	jobDetails map[string]any
	panicOn    string
}

func (f *fakeServices) Login(ctx context.Context, username, password string, forceNew bool) (session.State, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return session.State{}, f.loginErr
	}
	return session.State{Authenticated: true, Username: username, Mode: "api"}, nil
}

func (f *fakeServices) Logout(ctx context.Context) error {
	f.logoutCalls++
	return nil
}

func (f *fakeServices) CheckSession(ctx context.Context) session.State {
	f.checkCalls++
	return session.State{Authenticated: true, Username: "user@example.com", Mode: "api"}
}

func (f *fakeServices) GetProfile(ctx context.Context, profileID string) (map[string]any, error) {
	f.profileCalls++
	if f.panicOn == "getProfile" {
		panic("boom")
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return map[string]any{"profile_id": profileID, "name": "Jane Doe"}, nil
}

func (f *fakeServices) GetCompany(ctx context.Context, companyID string) (map[string]any, error) {
	f.companyCalls++
	return map[string]any{"company_id": companyID, "name": "Acme"}, nil
}

func (f *fakeServices) GetFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error) {
	f.feedCalls++
	return []map[string]any{{"text": "hello"}}, nil
}

func (f *fakeServices) Search(ctx context.Context, filter upstream.SearchFilter, page, count int) (*upstream.SearchResult, error) {
	f.searchCalls++
	if f.searchErr != nil {
		if err := f.searchErr(f.searchCalls); err != nil {
			return nil, err
		}
	}
	return &upstream.SearchResult{
		Total: 1, Page: page, Count: 1,
		Results: []map[string]any{{"job_id": "1", "title": "Go Engineer"}},
	}, nil
}

func (f *fakeServices) GetJobDetails(ctx context.Context, jobID string) (map[string]any, error) {
	f.detailsCalls++
	if f.jobDetails != nil {
		return f.jobDetails, nil
	}
	return map[string]any{"job_id": jobID, "title": "Engineer"}, nil
}

func (f *fakeServices) GetRecommended(ctx context.Context, count int) ([]map[string]any, error) {
	return []map[string]any{{"job_id": "7"}}, nil
}

func (f *fakeServices) GetSaved(ctx context.Context, count int) ([]map[string]any, error) {
	return []map[string]any{{"job_id": "8"}}, nil
}

func (f *fakeServices) Save(ctx context.Context, jobID string) error { return nil }

func (f *fakeServices) Apply(ctx context.Context, req application.ApplyRequest) (*application.Application, error) {
	f.applyCalls++
	return &application.Application{ID: "app-1", JobID: req.JobID, Status: application.StatusSubmitted}, nil
}

func (f *fakeServices) Status(ctx context.Context, applicationID string) (*application.Application, error) {
	f.statusCalls++
	if applicationID == "missing" {
		return nil, apierror.NotFound("application", applicationID)
	}
	return &application.Application{ID: applicationID, JobID: "1", Status: application.StatusSubmitted}, nil
}

func (f *fakeServices) History(ctx context.Context) ([]*application.Application, error) {
	f.historyCalls++
	return nil, nil
}

func (f *fakeServices) Withdraw(ctx context.Context, jobID string) (*application.Application, error) {
	f.withdrawCalls++
	return &application.Application{ID: "app-1", JobID: jobID, Status: application.StatusWithdrawn}, nil
}

func (f *fakeServices) GenerateResume(ctx context.Context, profile map[string]any, template, format string) (*docgen.Document, error) {
	f.resumeCalls++
	return &docgen.Document{ID: "doc-1", Kind: "resume", Template: template, Format: format}, nil
}

func (f *fakeServices) TailorResume(ctx context.Context, profile, job map[string]any, template, format string) (*docgen.Document, error) {
	return &docgen.Document{ID: "doc-2", Kind: "resume", Template: template, Format: format}, nil
}

func (f *fakeServices) GenerateCoverLetter(ctx context.Context, profile, job map[string]any, template, format string) (*docgen.Document, error) {
	return &docgen.Document{ID: "doc-3", Kind: "cover_letter", Template: template, Format: format}, nil
}

func newTestDispatcher(fakes *fakeServices, opts ...Option) *Dispatcher {
	return NewDispatcher(Services{
		Sessions:     fakes,
		Profiles:     fakes,
		Jobs:         fakes,
		Applications: fakes,
		Documents:    fakes,
	}, opts...)
}

func dispatch(t *testing.T, d *Dispatcher, method string, params string) *Response {
	t.Helper()
	req := &Request{JSONRPC: jsonRPCVersion, ID: "r1", Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return d.Dispatch(context.Background(), req)
}

func TestEnvelopeExactlyOneOfResultAndError(t *testing.T) {
	d := newTestDispatcher(&fakeServices{})

	success := dispatch(t, d, "linkedin.checkSession", "")
	if success.Result == nil || success.Error != nil {
		t.Fatalf("success envelope = %+v", success)
	}
	if success.JSONRPC != "2.0" || success.ID != "r1" {
		t.Fatalf("success envelope header = %+v", success)
	}

	failure := dispatch(t, d, "linkedin.getProfile", "{}")
	if failure.Result != nil || failure.Error == nil {
		t.Fatalf("failure envelope = %+v", failure)
	}
	if failure.JSONRPC != "2.0" || failure.ID != "r1" {
		t.Fatalf("failure envelope header = %+v", failure)
	}
}

func TestDispatchRawParseError(t *testing.T) {
	d := newTestDispatcher(&fakeServices{})

	resp := d.DispatchRaw(context.Background(), []byte("{not json"))
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ID != nil {
		t.Fatalf("parse error id = %v, want null", resp.ID)
	}
}

func TestUnknownMethodListsAllMethods(t *testing.T) {
	d := newTestDispatcher(&fakeServices{})

	resp := dispatch(t, d, "linkedin.teleport", "{}")
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ID != "r1" {
		t.Fatalf("id = %v, want r1", resp.ID)
	}
	methods, ok := resp.Error.Data["methods"].([]string)
	if !ok {
		t.Fatalf("methods data = %T", resp.Error.Data["methods"])
	}
	if len(methods) != 18 {
		t.Fatalf("methods listed = %d, want 18", len(methods))
	}
}

func TestTaxonomyErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"authentication", apierror.Authentication(""), 401},
		{"authorization", apierror.Authorization(""), 403},
		{"not found", apierror.NotFound("profile", "x"), 404},
		{"validation", apierror.Validation("bad", "field"), 400},
		{"rate limit", apierror.RateLimit("", 5), 429},
		{"conflict", apierror.Conflict(""), 409},
		{"timeout", apierror.Timeout(""), 408},
		{"network", apierror.Network("", nil), 0},
		{"unavailable", apierror.ServiceUnavailable("", 0), 503},
		{"quota", apierror.QuotaExceeded("", 10, 10, 0), 429},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fakes := &fakeServices{profileErr: tc.err}
			d := newTestDispatcher(fakes)

			resp := dispatch(t, d, "linkedin.getProfile", `{"profileId":"jane"}`)
			if resp.Error == nil || resp.Error.Code != tc.code {
				t.Fatalf("resp = %+v, want code %d", resp, tc.code)
			}
			if resp.Error.Data["kind"] == "" {
				t.Fatal("error data missing kind")
			}
		})
	}
}

func TestRetryExhaustedReportsUnderlyingCode(t *testing.T) {
	fakes := &fakeServices{
		profileErr: apierror.RetryExhausted(3, apierror.ServiceUnavailable("down", 0)),
	}
	d := newTestDispatcher(fakes)

	resp := dispatch(t, d, "linkedin.getProfile", `{"profileId":"jane"}`)
	if resp.Error == nil || resp.Error.Code != 503 {
		t.Fatalf("resp = %+v, want code 503", resp)
	}
	if resp.Error.Data["kind"] != string(apierror.KindRetryExhausted) {
		t.Fatalf("kind = %v", resp.Error.Data["kind"])
	}
	if resp.Error.Data["attempts"] != 3 {
		t.Fatalf("attempts = %v", resp.Error.Data["attempts"])
	}
}

func TestRateLimitCarriesRetryAfterHint(t *testing.T) {
	fakes := &fakeServices{profileErr: apierror.RateLimit("slow down", 30)}
	d := newTestDispatcher(fakes)

	resp := dispatch(t, d, "linkedin.getProfile", `{"profileId":"jane"}`)
	if resp.Error == nil || resp.Error.Code != 429 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Error.Data["retry_after"] != 30 {
		t.Fatalf("retry_after = %v", resp.Error.Data["retry_after"])
	}
}

func TestUnexpectedErrorBecomesInternal(t *testing.T) {
	fakes := &fakeServices{profileErr: errors.New("disk exploded")}
	d := newTestDispatcher(fakes)

	resp := dispatch(t, d, "linkedin.getProfile", `{"profileId":"jane"}`)
	if resp.Error == nil || resp.Error.Code != codeInternalError {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Error.Data["cause"] != "disk exploded" {
		t.Fatalf("cause = %v", resp.Error.Data["cause"])
	}
}

func TestPanicRecoveredAndLoopContinues(t *testing.T) {
	fakes := &fakeServices{panicOn: "getProfile"}
	d := newTestDispatcher(fakes)

	resp := dispatch(t, d, "linkedin.getProfile", `{"profileId":"jane"}`)
	if resp.Error == nil || resp.Error.Code != codeInternalError {
		t.Fatalf("panic resp = %+v", resp)
	}
	if resp.Error.Data["cause"] != "boom" {
		t.Fatalf("cause = %v", resp.Error.Data["cause"])
	}

	// The dispatcher keeps serving after a panic.
	next := dispatch(t, d, "linkedin.checkSession", "")
	if next.Error != nil {
		t.Fatalf("next request failed: %+v", next.Error)
	}
}
