package verification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/timers"
)

const (
	pollTimerID   = "verification:poll"
	expiryTimerID = "verification:expiry"
)

const (
	ReasonPoll    = "poll"
	ReasonExpired = "expired"
)

type Session struct {
	RequestID   string
	SubjectID   string
	ExternalURL string
	ExpiresAt   time.Time
	Status      core.VerificationStatus
}

// StatusEvent is published to subscribers whenever the session status
// changes.
type StatusEvent struct {
	RequestID string
	Status    core.VerificationStatus
	Previous  core.VerificationStatus
	Reason    string
}

type Option func(*Manager)

func WithTimers(registry *timers.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.timers = registry
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = clock.Resolve(c)
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.pollInterval = interval
		}
	}
}

// WithSessionTTL bounds sessions the provider opened without an expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.sessionTTL = ttl
		}
	}
}

func WithURLOpener(opener URLOpener) Option {
	return func(m *Manager) {
		m.opener = opener
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

// Manager owns at most one verification session. It polls the provider on a
// fixed interval until a terminal status is seen and forces failed when the
// session expires first. Continuations from a torn down session are dropped
// by comparing the generation they were started under.
type Manager struct {
	client       Client
	timers       *timers.Registry
	clock        clock.Clock
	opener       URLOpener
	pollInterval time.Duration
	sessionTTL   time.Duration
	logger       core.Logger
	metrics      core.MetricsRecorder
	inst         core.Instrumentation

	subscribers core.Observers[statusDelivery]

	mu         sync.Mutex
	generation uint64
	current    *activeSession
	onExpired  func(ctx context.Context, session Session)
}

// statusDelivery tags an event with the generation that produced it so
// subscribers can drop it once that session has been torn down.
type statusDelivery struct {
	generation uint64
	event      StatusEvent
}

type activeSession struct {
	session    Session
	generation uint64
	ctx        context.Context
	polling    bool
}

func NewManager(client Client, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, core.NewBadInputError("verification: client is required")
	}
	m := &Manager{
		client:       client,
		clock:        clock.Real(),
		pollInterval: core.DefaultVerificationPoll,
		sessionTTL:   core.DefaultVerificationTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.timers == nil {
		m.timers = timers.NewRegistry(timers.WithClock(m.clock))
	}
	m.inst = core.NewInstrumentation("onboarding.verification", m.logger, m.metrics)
	return m, nil
}

// Initiate creates a provider session for subjectID and starts the poll and
// expiry timers. A session that is already running is replaced.
func (m *Manager) Initiate(ctx context.Context, subjectID string) (Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Session{}, core.NewValidationError("subjectId", "subject id is required")
	}

	startedAt := time.Now()
	result, err := m.client.Initiate(ctx, subjectID)
	m.inst.ObserveOperation(ctx, startedAt, "verification.initiate", err, nil)
	if err != nil {
		return Session{}, err
	}

	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = m.clock.Now().Add(m.sessionTTL)
	}

	m.stopTimers()
	m.mu.Lock()
	m.generation++
	active := &activeSession{
		session: Session{
			RequestID:   result.RequestID,
			SubjectID:   subjectID,
			ExternalURL: result.ExternalURL,
			ExpiresAt:   expiresAt,
			Status:      core.VerificationStatusPending,
		},
		generation: m.generation,
		ctx:        context.WithoutCancel(ctx),
	}
	m.current = active
	m.mu.Unlock()

	gen := active.generation
	if err := m.timers.SetInterval(timers.IntervalConfig{
		ID:       pollTimerID,
		Interval: m.pollInterval,
		Tick:     func() { m.poll(gen) },
	}); err != nil {
		return Session{}, err
	}
	if err := m.timers.SetTimeout(expiryTimerID, expiresAt.Sub(m.clock.Now()), func() { m.expire(gen) }); err != nil {
		return Session{}, err
	}
	m.inst.LogInfo(ctx, "verification session started", map[string]any{
		"request_id": result.RequestID,
		"expires_at": expiresAt,
	})
	return active.session, nil
}

func (m *Manager) poll(gen uint64) {
	m.mu.Lock()
	active := m.current
	if active == nil || active.generation != gen || active.session.Status.IsTerminal() || active.polling {
		m.mu.Unlock()
		return
	}
	active.polling = true
	requestID := active.session.RequestID
	ctx := active.ctx
	m.mu.Unlock()

	startedAt := time.Now()
	status, err := m.client.Status(ctx, requestID)
	m.inst.ObserveOperation(ctx, startedAt, "verification.poll", err, map[string]any{"request_id": requestID})

	m.mu.Lock()
	active.polling = false
	if err != nil {
		m.mu.Unlock()
		return
	}
	if m.current != active || active.session.Status.IsTerminal() || status == active.session.Status {
		m.mu.Unlock()
		return
	}
	if !advances(active.session.Status, status) {
		previous := active.session.Status
		m.mu.Unlock()
		m.inst.LogDebug(ctx, "verification status regression ignored", map[string]any{
			"request_id": requestID,
			"status":     string(status),
			"current":    string(previous),
		})
		return
	}
	previous := active.session.Status
	active.session.Status = status
	if status.IsTerminal() {
		m.timers.Clear(pollTimerID)
	}
	m.mu.Unlock()

	m.publish(ctx, gen, StatusEvent{
		RequestID: requestID,
		Status:    status,
		Previous:  previous,
		Reason:    ReasonPoll,
	})
}

// expire forces failed unless a terminal status was already reached.
func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	active := m.current
	if active == nil || active.generation != gen || active.session.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	previous := active.session.Status
	active.session.Status = core.VerificationStatusFailed
	session := active.session
	ctx := active.ctx
	callback := m.onExpired
	m.timers.Clear(pollTimerID)
	m.mu.Unlock()

	m.inst.LogWarn(ctx, "verification session expired", map[string]any{"request_id": session.RequestID})
	m.publish(ctx, gen, StatusEvent{
		RequestID: session.RequestID,
		Status:    core.VerificationStatusFailed,
		Previous:  previous,
		Reason:    ReasonExpired,
	})
	if callback != nil && m.isCurrent(gen) {
		callback(ctx, session)
	}
}

func (m *Manager) publish(ctx context.Context, gen uint64, event StatusEvent) {
	m.subscribers.Publish(ctx, statusDelivery{generation: gen, event: event})
}

// isCurrent reports whether gen still names the live session.
func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.generation == gen
}

// advances reports whether next moves the session forward. Providers that
// report an earlier status after a later one are not allowed to rewind it.
func advances(current, next core.VerificationStatus) bool {
	return statusRank(next) > statusRank(current)
}

func statusRank(status core.VerificationStatus) int {
	switch status {
	case core.VerificationStatusPending:
		return 0
	case core.VerificationStatusSent:
		return 1
	case core.VerificationStatusUnderReview:
		return 2
	default:
		if status.IsTerminal() {
			return 3
		}
		return -1
	}
}

// Resend tears the current session down, dropping its timers and
// subscribers, and initiates a new one.
func (m *Manager) Resend(ctx context.Context, subjectID string) (Session, error) {
	m.Cleanup()
	return m.Initiate(ctx, subjectID)
}

// Cleanup stops both timers and drops the session, the subscribers and the
// expiry callback. It is safe to call repeatedly.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	m.generation++
	m.current = nil
	m.onExpired = nil
	m.mu.Unlock()
	m.stopTimers()
	m.subscribers.Clear()
}

func (m *Manager) stopTimers() {
	m.timers.Clear(pollTimerID)
	m.timers.Clear(expiryTimerID)
}

// Subscribe registers fn for status changes and returns its disposer. An
// event is handed to fn only while the session that produced it is still
// current, so nothing from a session torn down by Resend or Cleanup reaches
// fn once those calls have returned.
func (m *Manager) Subscribe(fn func(ctx context.Context, event StatusEvent)) func() {
	if fn == nil {
		return func() {}
	}
	return m.subscribers.Subscribe(func(ctx context.Context, delivery statusDelivery) {
		if !m.isCurrent(delivery.generation) {
			return
		}
		fn(ctx, delivery.event)
	})
}

// OnExpired registers the single expiry callback. A later registration
// replaces an earlier one.
func (m *Manager) OnExpired(fn func(ctx context.Context, session Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = fn
}

func (m *Manager) OpenExternalURL(ctx context.Context) error {
	m.mu.Lock()
	active := m.current
	m.mu.Unlock()
	if active == nil || strings.TrimSpace(active.session.ExternalURL) == "" {
		return core.NewBadInputError("verification: no active session")
	}
	if m.opener == nil {
		return core.NewInternalError("verification: no url opener configured")
	}
	return m.opener.Open(ctx, active.session.ExternalURL)
}

func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return m.current.session, true
}

func (m *Manager) Subscribers() int {
	return m.subscribers.Len()
}
