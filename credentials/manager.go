package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
	"golang.org/x/sync/singleflight"
)

const refreshFlightKey = "refresh"

// errRefreshInProgressNoop marks a refresh request that found the pair
// already rotated by another caller. It never leaves this package.
var errRefreshInProgressNoop = errors.New("credentials: refresh already completed")

// IdentityClearer drops identity state that must not outlive the session.
type IdentityClearer func(ctx context.Context) error

type Option func(*Manager)

func WithRefresher(refresher Refresher) Option {
	return func(m *Manager) {
		if refresher != nil {
			m.refresher = refresher
		}
	}
}

func WithStore(store Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

func WithEventBus(events *core.EventBus) Option {
	return func(m *Manager) {
		if events != nil {
			m.events = events
		}
	}
}

func WithNavigator(navigator Navigator) Option {
	return func(m *Manager) {
		m.navigator = navigator
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clock.Resolve(c)
	}
}

func WithLogger(logger core.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

func WithPublicPaths(paths ...string) Option {
	return func(m *Manager) {
		m.publicPaths = append([]string(nil), paths...)
	}
}

func WithLoginPath(path string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(path) != "" {
			m.loginPath = strings.TrimSpace(path)
		}
	}
}

// WithRefreshLeadWindow enables proactive refresh of JWT access tokens whose
// exp claim falls within window. Zero disables it.
func WithRefreshLeadWindow(window time.Duration) Option {
	return func(m *Manager) {
		m.leadWindow = window
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

func WithIdentityClearer(clearer IdentityClearer) Option {
	return func(m *Manager) {
		if clearer != nil {
			m.clearers = append(m.clearers, clearer)
		}
	}
}

// Manager wraps every authenticated call. It attaches the bearer token,
// refreshes the pair on 401/403 with at most one refresh in flight, and
// forces a logout when the session cannot be recovered.
type Manager struct {
	transport   core.TransportAdapter
	refresher   Refresher
	store       Store
	events      *core.EventBus
	navigator   Navigator
	clock       clock.Clock
	logger      core.Logger
	metrics     core.MetricsRecorder
	inst        core.Instrumentation
	publicPaths []string
	loginPath   string
	leadWindow  time.Duration
	timeout     time.Duration
	clearers    []IdentityClearer

	flight singleflight.Group

	mu         sync.Mutex
	pair       Pair
	generation uint64
	redirected bool
}

func NewManager(transport core.TransportAdapter, opts ...Option) (*Manager, error) {
	if transport == nil {
		return nil, core.NewBadInputError("credentials: transport is required")
	}
	m := &Manager{
		transport:   transport,
		store:       NewMemoryStore(),
		events:      core.NewEventBus(),
		clock:       clock.Real(),
		publicPaths: append([]string(nil), core.DefaultPublicPaths...),
		loginPath:   core.DefaultLoginPath,
		leadWindow:  core.DefaultRefreshLeadWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.refresher == nil {
		m.refresher = NewHTTPRefresher(transport, core.DefaultRefreshPath)
	}
	m.inst = core.NewInstrumentation("onboarding.credentials", m.logger, m.metrics)
	return m, nil
}

func (m *Manager) Events() *core.EventBus {
	return m.events
}

// Restore loads a previously persisted pair. A missing pair is not an error.
func (m *Manager) Restore(ctx context.Context) error {
	pair, err := m.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.pair = pair
	m.mu.Unlock()
	return nil
}

// SetCredentials installs a pair after sign in and starts a new credential
// generation.
func (m *Manager) SetCredentials(ctx context.Context, pair Pair) error {
	if strings.TrimSpace(pair.AccessToken) == "" {
		return core.NewBadInputError("credentials: access token is required")
	}
	m.mu.Lock()
	m.pair = pair
	m.generation++
	m.redirected = false
	m.mu.Unlock()
	if err := m.store.Save(ctx, pair); err != nil {
		m.inst.LogWarn(ctx, "credential persist failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (m *Manager) Credentials() Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.TrimSpace(m.pair.AccessToken) != ""
}

func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) IsPublicPath(path string) bool {
	return IsPublicPath(m.publicPaths, path)
}

// Call executes req with the current bearer token. Transport failures are
// returned unchanged. Non-2xx statuses are returned together with a
// classified error.
func (m *Manager) Call(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	res, err := m.call(ctx, req)
	fields := map[string]any{
		"method": strings.ToUpper(strings.TrimSpace(req.Method)),
		"path":   requestPath(req.URL),
	}
	if res.StatusCode != 0 {
		fields["status_code"] = res.StatusCode
	}
	m.inst.ObserveOperation(ctx, startedAt, "credentials.call", err, fields)
	return res, err
}

func (m *Manager) call(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if err := m.refreshIfExpiring(ctx); err != nil {
		return core.TransportResponse{}, err
	}

	token := m.accessToken()
	res, err := m.send(ctx, req, token)
	if err != nil {
		return res, err
	}
	switch res.StatusCode {
	case http.StatusUnauthorized:
		return m.recoverUnauthorized(ctx, req, token)
	case http.StatusForbidden:
		return m.recoverForbidden(ctx, req, res, token)
	default:
		return finish(res)
	}
}

func (m *Manager) recoverUnauthorized(ctx context.Context, req core.TransportRequest, stale string) (core.TransportResponse, error) {
	next, err := m.refreshFrom(ctx, stale)
	if err != nil {
		return core.TransportResponse{}, err
	}
	res, err := m.send(ctx, req, next.AccessToken)
	if err != nil {
		return res, err
	}
	switch res.StatusCode {
	case http.StatusUnauthorized:
		return res, m.expireHard(ctx, req)
	case http.StatusForbidden:
		return res, m.expireSoft(ctx, req)
	default:
		return finish(res)
	}
}

func (m *Manager) recoverForbidden(
	ctx context.Context,
	req core.TransportRequest,
	res core.TransportResponse,
	stale string,
) (core.TransportResponse, error) {
	if strings.TrimSpace(stale) == "" {
		return res, m.expireSoft(ctx, req)
	}
	next, err := m.refreshFrom(ctx, stale)
	if err != nil {
		return core.TransportResponse{}, err
	}
	res, err = m.send(ctx, req, next.AccessToken)
	if err != nil {
		return res, err
	}
	switch res.StatusCode {
	case http.StatusForbidden:
		return res, m.expireSoft(ctx, req)
	case http.StatusUnauthorized:
		return res, m.expireHard(ctx, req)
	default:
		return finish(res)
	}
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share one in-flight exchange and all observe its outcome. A failed
// exchange clears the credentials and forces a logout once.
func (m *Manager) Refresh(ctx context.Context) (Pair, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := m.flight.DoChan(refreshFlightKey, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Pair{}, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return Pair{}, result.Err
		}
		return result.Val.(Pair), nil
	}
}

// refreshFrom refreshes unless the pair already moved past stale. A rotated
// pair is returned as is; a pair cleared by a concurrent failure is reported
// as a hard expiry without another refresh or logout.
func (m *Manager) refreshFrom(ctx context.Context, stale string) (Pair, error) {
	pair, err := m.rotatedSince(stale)
	switch {
	case errors.Is(err, errRefreshInProgressNoop):
		return pair, nil
	case err != nil:
		return Pair{}, err
	}
	return m.Refresh(ctx)
}

func (m *Manager) rotatedSince(stale string) (Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.pair
	if stale == "" {
		return current, nil
	}
	if current.AccessToken == "" {
		return Pair{}, core.NewSessionExpiredHardError("credentials: session cleared")
	}
	if current.AccessToken != stale {
		return current, errRefreshInProgressNoop
	}
	return current, nil
}

func (m *Manager) doRefresh(ctx context.Context) (Pair, error) {
	startedAt := time.Now()
	m.mu.Lock()
	current := m.pair
	m.mu.Unlock()

	var next Pair
	var err error
	if strings.TrimSpace(current.RefreshToken) == "" {
		err = core.NewSessionExpiredHardError("credentials: no refresh token available")
	} else {
		next, err = m.refresher.Refresh(ctx, current.RefreshToken)
		if err == nil && strings.TrimSpace(next.AccessToken) == "" {
			err = core.NewSessionExpiredHardError("credentials: refresh returned an empty access token")
		}
	}
	if err != nil {
		m.inst.ObserveOperation(ctx, startedAt, "credentials.refresh", err, nil)
		m.ForceLogout(ctx, "refresh_failed")
		return Pair{}, err
	}
	if strings.TrimSpace(next.RefreshToken) == "" {
		next.RefreshToken = current.RefreshToken
	}

	m.mu.Lock()
	m.pair = next
	m.mu.Unlock()
	if saveErr := m.store.Save(ctx, next); saveErr != nil {
		m.inst.LogWarn(ctx, "credential persist failed", map[string]any{"error": saveErr.Error()})
	}
	m.inst.ObserveOperation(ctx, startedAt, "credentials.refresh", nil, nil)
	return next, nil
}

func (m *Manager) refreshIfExpiring(ctx context.Context) error {
	if m.leadWindow <= 0 {
		return nil
	}
	m.mu.Lock()
	pair := m.pair
	m.mu.Unlock()
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil
	}
	if !ExpiresWithin(pair.AccessToken, m.clock.Now(), m.leadWindow) {
		return nil
	}
	_, err := m.refreshFrom(ctx, pair.AccessToken)
	return err
}

// Logout clears the session on request of the merchant.
func (m *Manager) Logout(ctx context.Context) core.LoggedOutEvent {
	return m.ForceLogout(ctx, "logout")
}

// ForceLogout clears the credential and identity state and redirects to the
// login path, unless the navigator is already on a public path or a redirect
// already happened for the current credential generation.
func (m *Manager) ForceLogout(ctx context.Context, reason string) core.LoggedOutEvent {
	if ctx == nil {
		ctx = context.Background()
	}
	currentPath := ""
	if m.navigator != nil {
		currentPath = m.navigator.CurrentPath()
	}

	m.mu.Lock()
	m.pair = Pair{}
	redirect := m.navigator != nil && !m.redirected && !m.IsPublicPath(currentPath)
	if redirect {
		m.redirected = true
	}
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.inst.LogWarn(ctx, "credential clear failed", map[string]any{"error": err.Error()})
	}
	for _, clearer := range m.clearers {
		if err := clearer(ctx); err != nil {
			m.inst.LogWarn(ctx, "identity clear failed", map[string]any{"error": err.Error()})
		}
	}

	event := core.LoggedOutEvent{Reason: reason}
	if redirect {
		m.navigator.Redirect(m.loginPath)
		event.Redirected = true
		event.RedirectTo = m.loginPath
	}
	m.inst.LogInfo(ctx, "session logged out", map[string]any{
		"reason":     reason,
		"redirected": event.Redirected,
		"path":       currentPath,
	})
	m.events.LoggedOut.Publish(ctx, event)
	return event
}

func (m *Manager) expireHard(ctx context.Context, req core.TransportRequest) error {
	path := requestPath(req.URL)
	m.events.SessionExpired.Publish(ctx, core.SessionExpiredEvent{
		Kind:       core.SessionExpiryHard,
		StatusCode: http.StatusUnauthorized,
		Path:       path,
		Reason:     "unauthorized after refresh",
	})
	m.ForceLogout(ctx, "session_expired")
	err := core.NewSessionExpiredHardError("")
	err.WithMetadata(map[string]any{"path": path})
	return err
}

// expireSoft only notifies. Credentials stay in place.
func (m *Manager) expireSoft(ctx context.Context, req core.TransportRequest) error {
	path := requestPath(req.URL)
	m.events.SessionExpired.Publish(ctx, core.SessionExpiredEvent{
		Kind:       core.SessionExpirySoft,
		StatusCode: http.StatusForbidden,
		Path:       path,
		Reason:     "forbidden",
	})
	err := core.NewSessionExpiredSoftError("")
	err.WithMetadata(map[string]any{"path": path})
	return err
}

func (m *Manager) send(ctx context.Context, req core.TransportRequest, token string) (core.TransportResponse, error) {
	out := core.CloneRequest(req)
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	if strings.TrimSpace(token) != "" {
		out.Headers["Authorization"] = "Bearer " + token
	} else {
		delete(out.Headers, "Authorization")
	}
	if out.Timeout <= 0 && m.timeout > 0 {
		out.Timeout = m.timeout
	}
	return m.transport.Do(ctx, out)
}

func (m *Manager) accessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair.AccessToken
}

func finish(res core.TransportResponse) (core.TransportResponse, error) {
	if core.IsSuccessStatus(res.StatusCode) {
		return res, nil
	}
	return res, core.ErrorFromStatus(res.StatusCode, res.Body)
}

func requestPath(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return parsed.Path
}

var _ core.Caller = (*Manager)(nil)
