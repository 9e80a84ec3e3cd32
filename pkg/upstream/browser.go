package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tebeka/selenium"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/session"
)

const browserLogPrefix = "upstream:browser"

// BrowserClient is the browser-automation access path: a remote WebDriver
// session simulating a human user. The driver is created lazily on first use
// and reused; the page-specific extraction here is deliberately shallow —
// the precise DOM heuristics live upstream of this module's contract.
type BrowserClient struct {
	webdriverURL string
	timeout      time.Duration

	// newDriver is swappable for tests.
	newDriver func() (selenium.WebDriver, error)

	wd selenium.WebDriver
}

// NewBrowserClient targets a remote WebDriver endpoint (e.g. a local
// chromedriver or a Selenium hub). timeout bounds page-readiness waits.
func NewBrowserClient(webdriverURL string, timeout time.Duration) *BrowserClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := &BrowserClient{webdriverURL: webdriverURL, timeout: timeout}
	b.newDriver = func() (selenium.WebDriver, error) {
		caps := selenium.Capabilities{"browserName": "chrome"}
		caps["goog:chromeOptions"] = map[string]any{
			"args": []string{"--headless=new", "--no-sandbox", "--disable-dev-shm-usage"},
		}
		return selenium.NewRemote(caps, webdriverURL)
	}
	return b
}

// driver returns the live WebDriver, creating it on first use.
func (b *BrowserClient) driver() (selenium.WebDriver, error) {
	if b.wd != nil {
		return b.wd, nil
	}
	wd, err := b.newDriver()
	if err != nil {
		return nil, apierror.ServiceUnavailable("Browser automation is unavailable: "+err.Error(), 0)
	}
	b.wd = wd
	return wd, nil
}

// waitFor suspends until the CSS selector matches or the timeout elapses.
func (b *BrowserClient) waitFor(wd selenium.WebDriver, selector string) error {
	err := wd.WaitWithTimeout(func(wd selenium.WebDriver) (bool, error) {
		_, ferr := wd.FindElement(selenium.ByCSSSelector, selector)
		return ferr == nil, nil
	}, b.timeout)
	if err != nil {
		return apierror.Timeout(fmt.Sprintf("Timed out waiting for %s", selector))
	}
	return nil
}

func elementText(parent selenium.WebElement, selector string) string {
	el, err := parent.FindElement(selenium.ByCSSSelector, selector)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// --- session.BrowserAuthenticator ---

// Login drives the login form and captures the resulting cookies.
func (b *BrowserClient) Login(ctx context.Context, username, password string) (*session.Record, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}

	if err := wd.Get("https://www.linkedin.com/login"); err != nil {
		return nil, apierror.Network("Failed to open login page", err)
	}
	if err := b.waitFor(wd, "#username"); err != nil {
		return nil, err
	}

	userField, err := wd.FindElement(selenium.ByCSSSelector, "#username")
	if err != nil {
		return nil, apierror.ServiceUnavailable("Login page layout changed", 0)
	}
	passField, err := wd.FindElement(selenium.ByCSSSelector, "#password")
	if err != nil {
		return nil, apierror.ServiceUnavailable("Login page layout changed", 0)
	}
	userField.SendKeys(username)
	passField.SendKeys(password)

	submit, err := wd.FindElement(selenium.ByCSSSelector, "button[type='submit']")
	if err != nil {
		return nil, apierror.ServiceUnavailable("Login page layout changed", 0)
	}
	if err := submit.Click(); err != nil {
		return nil, apierror.Network("Failed to submit login form", err)
	}

	if err := b.waitFor(wd, ".global-nav__me-photo"); err != nil {
		source, _ := wd.PageSource()
		if strings.Contains(strings.ToLower(source), "security verification") {
			return nil, apierror.Authentication("Security verification required, log in manually first")
		}
		return nil, apierror.Authentication("Login timed out, the upstream may be blocking automated logins")
	}

	cookies, err := wd.GetCookies()
	if err != nil {
		return nil, apierror.Network("Failed to read browser cookies", err)
	}
	cookieMap := make(map[string]string, len(cookies))
	for _, c := range cookies {
		cookieMap[c.Name] = c.Value
	}

	slog.Info(fmt.Sprintf("%s - browser login succeeded for %s", browserLogPrefix, username))
	return &session.Record{
		Username:  username,
		Timestamp: time.Now(),
		Cookies:   cookieMap,
		Mode:      "browser",
	}, nil
}

// Probe verifies the session is still live by loading the feed, which only
// renders for an authenticated user.
func (b *BrowserClient) Probe(ctx context.Context) error {
	wd, err := b.driver()
	if err != nil {
		return err
	}
	if err := wd.Get("https://www.linkedin.com/feed/"); err != nil {
		return apierror.Network("Failed to open feed", err)
	}
	if err := b.waitFor(wd, ".global-nav__me-photo"); err != nil {
		return apierror.Authentication("Browser session expired upstream")
	}
	return nil
}

// Close quits the WebDriver session. Safe to call repeatedly.
func (b *BrowserClient) Close() error {
	if b.wd == nil {
		return nil
	}
	err := b.wd.Quit()
	b.wd = nil
	return err
}

// --- Accessor ---

func (b *BrowserClient) FetchProfile(ctx context.Context, profileID string) (map[string]any, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}
	if err := wd.Get("https://www.linkedin.com/in/" + profileID + "/"); err != nil {
		return nil, apierror.Network("Failed to open profile page", err)
	}
	if err := b.waitFor(wd, "h1"); err != nil {
		return nil, err
	}

	root, err := wd.FindElement(selenium.ByCSSSelector, "main")
	if err != nil {
		return nil, apierror.NotFound("profile", profileID)
	}
	record := map[string]any{
		"profile_id":  profileID,
		"name":        elementText(root, "h1"),
		"headline":    emptyToNil(elementText(root, ".text-body-medium")),
		"location":    emptyToNil(elementText(root, ".text-body-small.inline")),
		"profile_url": "https://www.linkedin.com/in/" + profileID + "/",
	}
	return record, nil
}

func (b *BrowserClient) FetchCompany(ctx context.Context, companyID string) (map[string]any, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}
	if err := wd.Get("https://www.linkedin.com/company/" + companyID + "/about/"); err != nil {
		return nil, apierror.Network("Failed to open company page", err)
	}
	if err := b.waitFor(wd, "h1"); err != nil {
		return nil, err
	}

	root, err := wd.FindElement(selenium.ByCSSSelector, "main")
	if err != nil {
		return nil, apierror.NotFound("company", companyID)
	}
	return map[string]any{
		"company_id":  companyID,
		"name":        elementText(root, "h1"),
		"description": emptyToNil(elementText(root, "p.break-words")),
	}, nil
}

func (b *BrowserClient) SearchJobs(ctx context.Context, filter SearchFilter, page, count int) (*SearchResult, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}

	searchURL := "https://www.linkedin.com/jobs/search/?keywords=" + strings.ReplaceAll(filter.Keywords, " ", "%20")
	if filter.Location != "" {
		searchURL += "&location=" + strings.ReplaceAll(filter.Location, " ", "%20")
	}
	if page > 1 {
		searchURL += "&start=" + strconv.Itoa((page-1)*count)
	}
	if err := wd.Get(searchURL); err != nil {
		return nil, apierror.Network("Failed to open job search page", err)
	}
	if err := b.waitFor(wd, ".base-card"); err != nil {
		return nil, err
	}

	cards, err := wd.FindElements(selenium.ByCSSSelector, ".base-card")
	if err != nil {
		return nil, apierror.ServiceUnavailable("Job search page layout changed", 0)
	}

	results := make([]map[string]any, 0, count)
	for _, card := range cards {
		if len(results) >= count {
			break
		}
		jobID := ""
		if link, lerr := card.FindElement(selenium.ByCSSSelector, "a.base-card__full-link"); lerr == nil {
			if href, herr := link.GetAttribute("href"); herr == nil {
				jobID = jobIDFromURL(href)
			}
		}
		title := elementText(card, ".base-search-card__title")
		if jobID == "" || title == "" {
			continue
		}
		results = append(results, map[string]any{
			"job_id":   jobID,
			"title":    title,
			"company":  emptyToNil(elementText(card, ".base-search-card__subtitle")),
			"location": emptyToNil(elementText(card, ".job-search-card__location")),
			"url":      "https://www.linkedin.com/jobs/view/" + jobID + "/",
		})
	}

	return &SearchResult{
		Total:   len(results),
		Page:    page,
		Count:   len(results),
		Results: results,
	}, nil
}

func (b *BrowserClient) FetchJobDetails(ctx context.Context, jobID string) (map[string]any, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}
	if err := wd.Get("https://www.linkedin.com/jobs/view/" + jobID + "/"); err != nil {
		return nil, apierror.Network("Failed to open job page", err)
	}
	if err := b.waitFor(wd, ".top-card-layout__title"); err != nil {
		return nil, err
	}

	root, err := wd.FindElement(selenium.ByCSSSelector, "main")
	if err != nil {
		return nil, apierror.NotFound("job", jobID)
	}
	return map[string]any{
		"job_id":      jobID,
		"title":       elementText(root, ".top-card-layout__title"),
		"company":     emptyToNil(elementText(root, ".topcard__org-name-link")),
		"location":    emptyToNil(elementText(root, ".topcard__flavor--bullet")),
		"description": emptyToNil(elementText(root, ".description__text")),
		"url":         "https://www.linkedin.com/jobs/view/" + jobID + "/",
	}, nil
}

func (b *BrowserClient) FetchRecommendedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	result, err := b.collectJobCards("https://www.linkedin.com/jobs/collections/recommended/", count)
	return result, err
}

func (b *BrowserClient) FetchSavedJobs(ctx context.Context, count int) ([]map[string]any, error) {
	result, err := b.collectJobCards("https://www.linkedin.com/my-items/saved-jobs/", count)
	return result, err
}

func (b *BrowserClient) collectJobCards(pageURL string, count int) ([]map[string]any, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}
	if err := wd.Get(pageURL); err != nil {
		return nil, apierror.Network("Failed to open jobs page", err)
	}
	if err := b.waitFor(wd, ".job-card-container"); err != nil {
		return nil, err
	}
	cards, err := wd.FindElements(selenium.ByCSSSelector, ".job-card-container")
	if err != nil {
		return nil, apierror.ServiceUnavailable("Jobs page layout changed", 0)
	}

	results := make([]map[string]any, 0, count)
	for _, card := range cards {
		if len(results) >= count {
			break
		}
		jobID, _ := card.GetAttribute("data-job-id")
		title := elementText(card, ".job-card-list__title")
		if jobID == "" || title == "" {
			continue
		}
		results = append(results, map[string]any{
			"job_id":   jobID,
			"title":    title,
			"company":  emptyToNil(elementText(card, ".job-card-container__primary-description")),
			"location": emptyToNil(elementText(card, ".job-card-container__metadata-item")),
			"url":      "https://www.linkedin.com/jobs/view/" + jobID + "/",
		})
	}
	return results, nil
}

func (b *BrowserClient) SaveJob(ctx context.Context, jobID string) error {
	wd, err := b.driver()
	if err != nil {
		return err
	}
	if err := wd.Get("https://www.linkedin.com/jobs/view/" + jobID + "/"); err != nil {
		return apierror.Network("Failed to open job page", err)
	}
	if err := b.waitFor(wd, ".top-card-layout__title"); err != nil {
		return err
	}
	button, err := wd.FindElement(selenium.ByCSSSelector, "button.jobs-save-button")
	if err != nil {
		return apierror.ServiceUnavailable("Save button not found, page layout changed", 0)
	}
	if err := button.Click(); err != nil {
		return apierror.Network("Failed to click save button", err)
	}
	return nil
}

func (b *BrowserClient) FetchFeed(ctx context.Context, count int, feedType string) ([]map[string]any, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}
	if err := wd.Get("https://www.linkedin.com/feed/"); err != nil {
		return nil, apierror.Network("Failed to open feed", err)
	}
	if err := b.waitFor(wd, ".feed-shared-update-v2"); err != nil {
		return nil, err
	}
	posts, err := wd.FindElements(selenium.ByCSSSelector, ".feed-shared-update-v2")
	if err != nil {
		return nil, apierror.ServiceUnavailable("Feed layout changed", 0)
	}

	results := make([]map[string]any, 0, count)
	for _, post := range posts {
		if len(results) >= count {
			break
		}
		text := elementText(post, ".feed-shared-text")
		if text == "" {
			continue
		}
		results = append(results, map[string]any{
			"author": emptyToNil(elementText(post, ".update-components-actor__name")),
			"text":   text,
		})
	}
	return results, nil
}

// ApplyOutcome reports what the Easy Apply flow achieved for one job.
type ApplyOutcome struct {
	JobTitle  string
	Company   string
	Status    string // submitted | in_progress | external_redirect | no_apply_option
	Method    string // easy_apply | external
	ActionURL string
}

// ApplyToJob drives the Easy Apply flow. Uploads use resumePath and
// coverLetterPath when the form asks for them; external postings report a
// redirect rather than attempting to automate a third-party site.
func (b *BrowserClient) ApplyToJob(ctx context.Context, jobID, resumePath, coverLetterPath, phoneNumber string) (*ApplyOutcome, error) {
	wd, err := b.driver()
	if err != nil {
		return nil, err
	}

	jobURL := "https://www.linkedin.com/jobs/view/" + jobID + "/"
	if err := wd.Get(jobURL); err != nil {
		return nil, apierror.Network("Failed to open job page", err)
	}
	if err := b.waitFor(wd, ".job-details-jobs-unified-top-card__job-title"); err != nil {
		return nil, err
	}

	outcome := &ApplyOutcome{ActionURL: jobURL}
	if root, rerr := wd.FindElement(selenium.ByCSSSelector, "main"); rerr == nil {
		outcome.JobTitle = elementText(root, ".job-details-jobs-unified-top-card__job-title")
		outcome.Company = elementText(root, ".job-details-jobs-unified-top-card__company-name")
	}

	applyButton, err := wd.FindElement(selenium.ByCSSSelector, "button.jobs-apply-button")
	if err != nil {
		// No Easy Apply; look for an external application link.
		if ext, eerr := wd.FindElement(selenium.ByCSSSelector, "a[data-tracking-control-name='public_jobs_apply-link-offsite']"); eerr == nil {
			if href, herr := ext.GetAttribute("href"); herr == nil && href != "" {
				outcome.ActionURL = href
			}
			outcome.Status = "external_redirect"
			outcome.Method = "external"
			return outcome, nil
		}
		outcome.Status = "no_apply_option"
		return outcome, nil
	}

	outcome.Method = "easy_apply"
	if err := applyButton.Click(); err != nil {
		return nil, apierror.Network("Failed to open the application form", err)
	}
	if err := b.waitFor(wd, ".jobs-easy-apply-content"); err != nil {
		outcome.Status = "in_progress"
		return outcome, nil
	}

	if phoneNumber != "" {
		if phone, perr := wd.FindElement(selenium.ByCSSSelector, "input[id*='phoneNumber']"); perr == nil {
			phone.Clear()
			phone.SendKeys(phoneNumber)
		}
	}
	if resumePath != "" {
		if upload, uerr := wd.FindElement(selenium.ByCSSSelector, "input[type='file'][id*='resume']"); uerr == nil {
			upload.SendKeys(resumePath)
		}
	}
	if coverLetterPath != "" {
		if upload, uerr := wd.FindElement(selenium.ByCSSSelector, "input[type='file'][id*='coverLetter']"); uerr == nil {
			upload.SendKeys(coverLetterPath)
		}
	}

	// Single-page forms submit directly; multi-step forms are left for the
	// user to finish so the agent never answers screening questions blind.
	submit, serr := wd.FindElement(selenium.ByCSSSelector, "button[aria-label='Submit application']")
	if serr != nil {
		outcome.Status = "in_progress"
		return outcome, nil
	}
	if err := submit.Click(); err != nil {
		outcome.Status = "in_progress"
		return outcome, nil
	}
	outcome.Status = "submitted"
	slog.Info(fmt.Sprintf("%s - submitted application for job %s", browserLogPrefix, jobID))
	return outcome, nil
}

// jobIDFromURL extracts the numeric job id from a job view URL.
func jobIDFromURL(href string) string {
	const marker = "/jobs/view/"
	idx := strings.Index(href, marker)
	if idx < 0 {
		return ""
	}
	rest := href[idx+len(marker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	return rest[:end]
}
