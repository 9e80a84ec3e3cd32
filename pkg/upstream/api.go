package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
)

const apiLogPrefix = "upstream:api"

const (
	defaultBaseURL = "https://www.linkedin.com/voyager/api"
	defaultAuthURL = "https://www.linkedin.com/uas/authenticate"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// APIClient is the programmatic access path: an unofficial REST surface
// authenticated by session cookies. Outbound requests are paced by a token
// bucket beneath the per-class sliding-window limiters, so bursts admitted
// by a window still leave the host at a human-ish rhythm.
type APIClient struct {
	baseURL   string
	authURL   string
	userAgent string
	client    *http.Client
	pacer     *rate.Limiter

	mu      sync.Mutex
	cookies map[string]string
	headers map[string]string
	csrf    string
}

// APIOption configures the APIClient.
type APIOption func(*APIClient)

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIClient) { a.client = c }
}

// WithBaseURL overrides the REST base URL (used by tests).
func WithBaseURL(base string) APIOption {
	return func(a *APIClient) { a.baseURL = strings.TrimRight(base, "/") }
}

// WithAuthURL overrides the authentication endpoint (used by tests).
func WithAuthURL(u string) APIOption {
	return func(a *APIClient) { a.authURL = u }
}

// NewAPIClient constructs the programmatic access path. timeout bounds every
// request; pacing defaults to one request per second with a small burst.
func NewAPIClient(timeout time.Duration, opts ...APIOption) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	a := &APIClient{
		baseURL:   defaultBaseURL,
		authURL:   defaultAuthURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: timeout},
		pacer:     rate.NewLimiter(rate.Every(time.Second), 3),
		cookies:   map[string]string{},
		headers:   map[string]string{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AdoptSession installs the cookies and headers of an adopted session
// record. Called by the session manager for both fresh and cached sessions.
func (a *APIClient) AdoptSession(record *session.Record) {
	if record == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cookies = map[string]string{}
	for k, v := range record.Cookies {
		a.cookies[k] = v
	}
	a.headers = map[string]string{}
	for k, v := range record.Headers {
		a.headers[k] = v
	}
	a.csrf = record.Cookies["JSESSIONID"]
}

// --- session.APIAuthenticator ---

// Login performs programmatic authentication and returns the durable record.
func (a *APIClient) Login(ctx context.Context, username, password string) (*session.Record, error) {
	form := url.Values{}
	form.Set("session_key", username)
	form.Set("session_password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierror.Network("failed to build login request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, translateTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, apierror.Authentication("Upstream rejected the credentials")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(resp, "login")
	}

	cookies := map[string]string{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = strings.Trim(c.Value, `"`)
	}
	if cookies["li_at"] == "" {
		return nil, apierror.Authentication("Login response carried no session cookie")
	}

	record := &session.Record{
		Username:  username,
		Timestamp: time.Now(),
		Cookies:   cookies,
		Headers:   map[string]string{"User-Agent": a.userAgent},
		Mode:      "api",
	}
	a.AdoptSession(record)
	slog.Info(fmt.Sprintf("%s - programmatic login succeeded for %s", apiLogPrefix, username))
	return record, nil
}

// Refresh exchanges a refresh token for a new token pair. The cookie-based
// session has no refresh endpoint of its own; this path serves OAuth-issued
// tokens when the deployment has them.
func (a *APIClient) Refresh(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apierror.Network("failed to build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, translateTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusToError(resp, "token refresh")
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apierror.Network("failed to decode refresh response", err)
	}

	tokens := &session.Tokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
	}
	if payload.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

// --- request plumbing ---

func (a *APIClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := a.pacer.Wait(ctx); err != nil {
		return apierror.Timeout("request pacing interrupted: " + err.Error())
	}

	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apierror.Network("failed to build request", err)
	}
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return translateTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusToError(resp, path)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierror.Network(fmt.Sprintf("failed to decode response from %s", path), err)
	}
	return nil
}

func (a *APIClient) post(ctx context.Context, path string, body any) error {
	if err := a.pacer.Wait(ctx); err != nil {
		return apierror.Timeout("request pacing interrupted: " + err.Error())
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierror.Internal("failed to encode request body", err)
		}
		reader = strings.NewReader(string(data))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, reader)
	if err != nil {
		return apierror.Network("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return translateTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return statusToError(resp, path)
	}
	return nil
}

func (a *APIClient) authorize(req *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}
	if a.csrf != "" {
		req.Header.Set("Csrf-Token", a.csrf)
	}
	for name, value := range a.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

// translateTransportError maps transport-library failures into the taxonomy
// at the boundary where they occur. No raw transport errors escape upward.
func translateTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Timeout("Request timed out")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apierror.Timeout("Request timed out")
	}
	return apierror.Network("Network error occurred", err)
}

// statusToError maps an upstream HTTP status into the taxonomy.
func statusToError(resp *http.Response, operation string) error {
	retryAfter := 0
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		retryAfter, _ = strconv.Atoi(ra)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apierror.Authentication("Upstream session is no longer valid")
	case http.StatusForbidden:
		return apierror.Authorization(fmt.Sprintf("Upstream denied access to %s", operation))
	case http.StatusNotFound:
		return apierror.NotFound("resource", operation)
	case http.StatusConflict:
		return apierror.Conflict("")
	case http.StatusTooManyRequests:
		if retryAfter == 0 {
			retryAfter = 60
		}
		return apierror.RateLimit("Upstream rate limit exceeded", retryAfter)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return apierror.Timeout("Upstream request timed out")
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return apierror.ServiceUnavailable("Upstream temporarily unavailable", retryAfter)
	default:
		if resp.StatusCode >= 500 {
			return apierror.ServiceUnavailable(fmt.Sprintf("Upstream returned %d for %s", resp.StatusCode, operation), retryAfter)
		}
		return apierror.Network(fmt.Sprintf("Upstream returned %d for %s", resp.StatusCode, operation), nil)
	}
}

// --- Accessor ---

// Response mirrors cover only the fields the agent consumes.

type voyagerProfile struct {
	PublicID  string `json:"publicIdentifier"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Headline  string `json:"headline"`
	Summary   string `json:"summary"`
	Location  string `json:"locationName"`
	Industry  string `json:"industryName"`

	Experience []map[string]any `json:"experience"`
	Education  []map[string]any `json:"education"`
	Skills     []struct {
		Name string `json:"name"`
	} `json:"skills"`
}

func (a *APIClient) FetchProfile(ctx context.Context, profileID string) (map[string]any, error) {
	var p voyagerProfile
	if err := a.get(ctx, "/identity/profiles/"+url.PathEscape(profileID), nil, &p); err != nil {
		return nil, err
	}

	skills := make([]string, 0, len(p.Skills))
	for _, s := range p.Skills {
		skills = append(skills, s.Name)
	}
	record := map[string]any{
		"profile_id":  profileID,
		"name":        strings.TrimSpace(p.FirstName + " " + p.LastName),
		"headline":    emptyToNil(p.Headline),
		"summary":     emptyToNil(p.Summary),
		"location":    emptyToNil(p.Location),
		"industry":    emptyToNil(p.Industry),
		"profile_url": "https://www.linkedin.com/in/" + profileID + "/",
	}
	if len(p.Experience) > 0 {
		record["experience"] = p.Experience
	}
	if len(p.Education) > 0 {
		record["education"] = p.Education
	}
	if len(skills) > 0 {
		record["skills"] = skills
	}
	return record, nil
}

type voyagerCompany struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Industry    string `json:"companyIndustry"`
	StaffCount  int    `json:"staffCount"`
	Website     string `json:"companyPageUrl"`
	Headquarter string `json:"headquarter"`
}

func (a *APIClient) FetchCompany(ctx context.Context, companyID string) (map[string]any, error) {
	var c voyagerCompany
	if err := a.get(ctx, "/organization/companies/"+url.PathEscape(companyID), nil, &c); err != nil {
		return nil, err
	}
	record := map[string]any{
		"company_id":  companyID,
		"name":        c.Name,
		"description": emptyToNil(c.Description),
		"industry":    emptyToNil(c.Industry),
		"website":     emptyToNil(c.Website),
		"headquarter": emptyToNil(c.Headquarter),
	}
	if c.StaffCount > 0 {
		record["staff_count"] = c.StaffCount
	}
	return record, nil
}

type voyagerJob struct {
	JobID          string `json:"jobPostingId"`
	Title          string `json:"title"`
	CompanyName    string `json:"companyName"`
	Location       string `json:"formattedLocation"`
	Description    string `json:"description"`
	ListedAt       int64  `json:"listedAt"`
	EmploymentType string `json:"employmentStatus"`
	Seniority      string `json:"seniorityLevel"`
	ApplicantCount int    `json:"applies"`
}

func (j voyagerJob) record() map[string]any {
	record := map[string]any{
		"job_id":   j.JobID,
		"title":    j.Title,
		"company":  j.CompanyName,
		"location": emptyToNil(j.Location),
		"url":      "https://www.linkedin.com/jobs/view/" + j.JobID + "/",
	}
	if j.Description != "" {
		record["description"] = j.Description
	}
	if j.ListedAt > 0 {
		record["date_posted"] = time.UnixMilli(j.ListedAt).UTC().Format(time.RFC3339)
	}
	if j.EmploymentType != "" {
		record["employment_type"] = j.EmploymentType
	}
	if j.Seniority != "" {
		record["seniority_level"] = j.Seniority
	}
	if j.ApplicantCount > 0 {
		record["applicant_count"] = j.ApplicantCount
	}
	return record
}

type voyagerSearchResponse struct {
	Elements []voyagerJob `json:"elements"`
	Paging   struct {
		Total int `json:"total"`
		Start int `json:"start"`
		Count int `json:"count"`
	} `json:"paging"`
}

func (a *APIClient) SearchJobs(ctx context.Context, filter SearchFilter, page, count int) (*SearchResult, error) {
	query := url.Values{}
	if filter.Keywords != "" {
		query.Set("keywords", filter.Keywords)
	}
	if filter.Location != "" {
		query.Set("location", filter.Location)
	}
	if filter.Distance > 0 {
		query.Set("distance", strconv.Itoa(filter.Distance))
	}
	if filter.DatePosted != "" {
		query.Set("f_TPR", filter.DatePosted)
	}
	if len(filter.JobType) > 0 {
		query.Set("f_JT", strings.Join(filter.JobType, ","))
	}
	if len(filter.ExperienceLevel) > 0 {
		query.Set("f_E", strings.Join(filter.ExperienceLevel, ","))
	}
	if filter.CompanyName != "" {
		query.Set("f_C", filter.CompanyName)
	}
	if filter.Remote {
		query.Set("f_WT", "2")
	}
	query.Set("start", strconv.Itoa((page-1)*count))
	query.Set("count", strconv.Itoa(count))

	var resp voyagerSearchResponse
	if err := a.get(ctx, "/search/hits", query, &resp); err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(resp.Elements))
	for _, j := range resp.Elements {
		results = append(results, j.record())
	}
	return &SearchResult{
		Total:   resp.Paging.Total,
		Page:    page,
		Count:   len(results),
		Results: results,
	}, nil
}

func (a *APIClient) FetchJobDetails(ctx context.Context, jobID string) (map[string]any, error) {
	var j voyagerJob
	if err := a.get(ctx, "/jobs/jobPostings/"+url.PathEscape(jobID), nil, &j); err != nil {
		return nil, err
	}
	if j.JobID == "" {
		j.JobID = jobID
	}
	return j.record(), nil
}

func (a *APIClient) FetchRecommendedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("count", strconv.Itoa(count))

	var resp voyagerSearchResponse
	if err := a.get(ctx, "/jobs/recommendations", query, &resp); err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(resp.Elements))
	for _, j := range resp.Elements {
		results = append(results, j.record())
	}
	return results, nil
}

func (a *APIClient) FetchSavedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("count", strconv.Itoa(count))

	var resp voyagerSearchResponse
	if err := a.get(ctx, "/jobs/savedJobs", query, &resp); err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(resp.Elements))
	for _, j := range resp.Elements {
		results = append(results, j.record())
	}
	return results, nil
}

func (a *APIClient) SaveJob(ctx context.Context, jobID string) error {
	return a.post(ctx, "/jobs/savedJobs/"+url.PathEscape(jobID), nil)
}

type voyagerFeedResponse struct {
	Elements []struct {
		Actor     string `json:"actorName"`
		Text      string `json:"commentaryText"`
		CreatedAt int64  `json:"createdAt"`
		URN       string `json:"updateUrn"`
	} `json:"elements"`
}

func (a *APIClient) FetchFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("count", strconv.Itoa(count))
	if feedType != "" && feedType != "general" {
		query.Set("feedType", feedType)
	}

	var resp voyagerFeedResponse
	if err := a.get(ctx, "/feed/updates", query, &resp); err != nil {
		return nil, err
	}
	posts := make([]map[string]any, 0, len(resp.Elements))
	for _, e := range resp.Elements {
		post := map[string]any{
			"author": e.Actor,
			"text":   e.Text,
			"urn":    e.URN,
		}
		if e.CreatedAt > 0 {
			post["created_at"] = time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
