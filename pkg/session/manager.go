package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
	"github.com/joblinkhq/linkedin-agent/pkg/ratelimit"
	"github.com/joblinkhq/linkedin-agent/pkg/retry"
)

const logPrefix = "session:manager"

// APIAuthenticator performs programmatic authentication against the upstream
// platform.
type APIAuthenticator interface {
	// Login authenticates and returns the durable session record.
	Login(ctx context.Context, username, password string) (*Record, error)
	// Refresh exchanges a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

// BrowserAuthenticator performs authentication by driving a real browser.
type BrowserAuthenticator interface {
	// Login drives the login page and returns the durable session record.
	Login(ctx context.Context, username, password string) (*Record, error)
	// Probe verifies the browser session is still live server-side by
	// loading an authenticated-only page. Browser sessions can expire
	// upstream without any local signal.
	Probe(ctx context.Context) error
	// Close releases the browser resource.
	Close() error
}

// Manager owns the session lifecycle. Only one login or refresh is in flight
// at a time; concurrent callers wait for its result rather than racing a
// duplicate authentication against the upstream.
type Manager struct {
	store   Store
	api     APIAuthenticator
	browser BrowserAuthenticator
	limiter *ratelimit.Limiter

	loginRetry   retry.Config
	refreshRetry retry.Config

	mu    sync.Mutex
	state State

	// onAdopt is notified whenever a record becomes the live session, so
	// access clients can install its cookies and tokens. This covers the
	// cached fast path, where the client never saw a login round-trip.
	onAdopt func(*Record)
}

// NewManager wires the session manager. browser may be nil when browser
// automation is disabled; fallback login then fails with the API error.
func NewManager(store Store, api APIAuthenticator, browser BrowserAuthenticator, limiter *ratelimit.Limiter) *Manager {
	return &Manager{
		store:        store,
		api:          api,
		browser:      browser,
		limiter:      limiter,
		loginRetry:   retry.LoginConfig(),
		refreshRetry: retry.DefaultConfig(),
	}
}

// OnAdopt registers the callback invoked with every adopted session record.
func (m *Manager) OnAdopt(fn func(*Record)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAdopt = fn
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Authenticated reports whether a session is currently held.
func (m *Manager) Authenticated() bool {
	return m.State().Authenticated
}

// Login authenticates as username. Unless forceNew, a durable record younger
// than 7 days is adopted directly with zero network calls — the dominant fast
// path for repeated local use. Otherwise the programmatic path is tried
// first; on failure the browser path runs under the bounded login retry
// policy. Exhaustion of both paths is terminal AuthenticationError.
func (m *Manager) Login(ctx context.Context, username, password string, forceNew bool) (State, error) {
	if username == "" || password == "" {
		return State{}, apierror.Validation("Username and password are required", "username", "password")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !forceNew {
		record, err := m.store.Get(ctx, username)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - session store read failed, continuing to network login: %v", logPrefix, err))
		}
		if record.Valid() {
			slog.Info(fmt.Sprintf("%s - adopting cached session for %s", logPrefix, username))
			m.adoptLocked(record)
			return m.state, nil
		}
	}

	if m.limiter != nil {
		if err := m.limiter.TryAcquire(); err != nil {
			return State{}, err
		}
	}

	slog.Info(fmt.Sprintf("%s - attempting API login for %s", logPrefix, username))
	record, apiErr := m.api.Login(ctx, username, password)
	if apiErr == nil {
		m.persistLocked(ctx, record)
		m.adoptLocked(record)
		return m.state, nil
	}

	// Authentication rejections are not recoverable by switching path.
	if apierror.IsKind(apiErr, apierror.KindAuthentication) {
		return State{}, apiErr
	}

	if m.browser == nil {
		return State{}, apierror.Wrap(apierror.KindAuthentication, "Login failed and browser fallback is disabled", apiErr)
	}

	slog.Warn(fmt.Sprintf("%s - API login failed (%s), falling back to browser login", logPrefix, apierror.KindOf(apiErr)))

	record, err := retry.DoValue(ctx, m.loginRetry, func(ctx context.Context) (*Record, error) {
		return m.browser.Login(ctx, username, password)
	})
	if err != nil {
		return State{}, apierror.Wrap(apierror.KindAuthentication,
			fmt.Sprintf("Failed to login as %s via both access paths", username), err)
	}

	m.persistLocked(ctx, record)
	m.adoptLocked(record)
	return m.state, nil
}

// adoptLocked installs a record as the live session. Caller holds m.mu.
func (m *Manager) adoptLocked(record *Record) {
	m.state = State{
		Authenticated: true,
		Username:      record.Username,
		AccessToken:   record.Tokens.AccessToken,
		RefreshToken:  record.Tokens.RefreshToken,
		ExpiresAt:     record.Tokens.ExpiresAt,
		Scopes:        record.Tokens.Scopes,
		Mode:          record.Mode,
	}
	if m.onAdopt != nil {
		m.onAdopt(record)
	}
}

// persistLocked writes the record to the durable store. Persist failures are
// logged, not fatal: the in-memory session still works for this process.
func (m *Manager) persistLocked(ctx context.Context, record *Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := m.store.Put(ctx, record); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to persist session record: %v", logPrefix, err))
	}
}

// CheckSession reports the live session state. For browser-backed sessions
// it additionally probes an authenticated-only page, since browser state can
// silently expire server-side.
func (m *Manager) CheckSession(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Authenticated && m.state.Mode == "browser" && m.browser != nil {
		if err := m.browser.Probe(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - browser liveness probe failed, marking logged out: %v", logPrefix, err))
			m.state = State{}
		}
	}
	return m.state
}

// Refresh exchanges the refresh token for a new token pair, wrapped in the
// standard transient-error retry policy. Valid only when a refresh token is
// present.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx, refreshToken)
}

func (m *Manager) refreshLocked(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		refreshToken = m.state.RefreshToken
	}
	if refreshToken == "" {
		return apierror.Authentication("Token expired and no refresh token available")
	}

	tokens, err := retry.DoValue(ctx, m.refreshRetry, func(ctx context.Context) (*Tokens, error) {
		return m.api.Refresh(ctx, refreshToken)
	})
	if err != nil {
		m.state = State{}
		return apierror.Wrap(apierror.KindAuthentication, "Failed to refresh access token", err)
	}

	m.state.Authenticated = true
	m.state.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		m.state.RefreshToken = tokens.RefreshToken
	}
	m.state.ExpiresAt = tokens.ExpiresAt

	if m.state.Username != "" {
		record, err := m.store.Get(ctx, m.state.Username)
		if err == nil && record != nil {
			record.Tokens.AccessToken = m.state.AccessToken
			record.Tokens.RefreshToken = m.state.RefreshToken
			record.Tokens.ExpiresAt = tokens.ExpiresAt
			m.persistLocked(ctx, record)
		}
	}
	return nil
}

// EnsureAuthenticated is the guard run before every upstream call requiring
// auth. An expired-but-refreshable session is refreshed synchronously; an
// unauthenticated session with no refresh token fails immediately rather
// than attempting the call.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Authenticated {
		if m.state.ExpiresAt.IsZero() || time.Until(m.state.ExpiresAt) > 5*time.Minute {
			return nil
		}
	}
	if m.state.RefreshToken != "" {
		return m.refreshLocked(ctx, m.state.RefreshToken)
	}
	if m.state.Authenticated {
		// Cookie-backed sessions carry no expiry to act on.
		return nil
	}
	return apierror.Authentication("Not logged in")
}

// Logout is idempotent: it releases any held browser resource and clears the
// in-memory state. The durable record is kept so a subsequent login can
// still fast-path.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			slog.Warn(fmt.Sprintf("%s - browser close failed: %v", logPrefix, err))
		}
	}
	m.state = State{}
	slog.Info(fmt.Sprintf("%s - logged out", logPrefix))
	return nil
}
