package onboarding

import (
	"context"
	"net/http"
	"sync"

	"github.com/goliatone/go-onboarding/actions"
	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
	"github.com/goliatone/go-onboarding/credentials"
	"github.com/goliatone/go-onboarding/timers"
	"github.com/goliatone/go-onboarding/transport"
	"github.com/goliatone/go-onboarding/verification"
	"github.com/goliatone/go-onboarding/workflow"
)

type Option func(*runtimeOptions)

type runtimeOptions struct {
	config             core.Config
	configProvider     core.ConfigProvider
	optionsResolver    core.OptionsResolver
	logger             core.Logger
	metrics            core.MetricsRecorder
	clock              clock.Clock
	httpClient         transport.HTTPDoer
	transport          core.TransportAdapter
	snapshots          workflow.SnapshotStore
	credentialStore    credentials.Store
	navigator          credentials.Navigator
	urlOpener          verification.URLOpener
	verificationClient verification.Client
	routes             map[workflow.Step]string
}

// WithConfig sets runtime overrides. Non zero values win over loaded
// configuration and defaults.
func WithConfig(cfg core.Config) Option {
	return func(o *runtimeOptions) { o.config = cfg }
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *runtimeOptions) { o.configProvider = provider }
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *runtimeOptions) { o.optionsResolver = resolver }
}

func WithLogger(logger core.Logger) Option {
	return func(o *runtimeOptions) { o.logger = logger }
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(o *runtimeOptions) { o.metrics = metrics }
}

func WithClock(c clock.Clock) Option {
	return func(o *runtimeOptions) { o.clock = c }
}

// WithHTTPClient replaces the client of the default REST transport.
func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *runtimeOptions) { o.httpClient = client }
}

func WithTransport(adapter core.TransportAdapter) Option {
	return func(o *runtimeOptions) { o.transport = adapter }
}

func WithSnapshotStore(store workflow.SnapshotStore) Option {
	return func(o *runtimeOptions) { o.snapshots = store }
}

func WithCredentialStore(store credentials.Store) Option {
	return func(o *runtimeOptions) { o.credentialStore = store }
}

func WithNavigator(navigator credentials.Navigator) Option {
	return func(o *runtimeOptions) { o.navigator = navigator }
}

func WithURLOpener(opener verification.URLOpener) Option {
	return func(o *runtimeOptions) { o.urlOpener = opener }
}

// WithVerificationClient replaces the backend verification client that is
// otherwise built on top of the credential manager.
func WithVerificationClient(client verification.Client) Option {
	return func(o *runtimeOptions) { o.verificationClient = client }
}

func WithRoutes(routes map[workflow.Step]string) Option {
	return func(o *runtimeOptions) { o.routes = routes }
}

// Runtime wires the onboarding components together: authenticated calls run
// through the credential manager, verification status changes flow into the
// workflow, and a logout resets the workflow and drops the verification
// session.
type Runtime struct {
	config       core.Config
	inst         core.Instrumentation
	transport    core.TransportAdapter
	credentials  *credentials.Manager
	timers       *timers.Registry
	actions      *actions.Coordinator
	verification *verification.Manager
	workflow     *workflow.Store
	guard        *workflow.RouteGuard
	facade       *Facade
	binding      *verificationBinding

	mu     sync.Mutex
	closed bool
}

func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := runtimeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	cfg, err := core.ResolveConfig(ctx, options.config, options.configProvider, options.optionsResolver)
	if err != nil {
		return nil, err
	}
	clk := clock.Resolve(options.clock)

	rt := &Runtime{
		config: cfg,
		inst:   core.NewInstrumentation("onboarding.runtime", options.logger, options.metrics),
	}

	rt.transport = options.transport
	if rt.transport == nil {
		client := options.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.API.Timeout}
		}
		rt.transport = transport.NewRESTAdapter(cfg.API.BaseURL, client)
	}

	rt.workflow = workflow.NewStore(
		workflow.WithSnapshotStore(options.snapshots),
		workflow.WithClock(clk),
		workflow.WithLogger(options.logger),
		workflow.WithMetricsRecorder(options.metrics),
		workflow.WithConfig(cfg.Workflow),
	)
	routes := options.routes
	if routes == nil {
		routes = workflow.DefaultRoutes()
	}
	rt.guard, err = workflow.NewRouteGuard(rt.workflow, routes)
	if err != nil {
		return nil, core.NewBadInputError(err.Error())
	}

	credentialOpts := []credentials.Option{
		credentials.WithRefresher(credentials.NewHTTPRefresher(rt.transport, cfg.API.RefreshPath)),
		credentials.WithClock(clk),
		credentials.WithLogger(options.logger),
		credentials.WithMetricsRecorder(options.metrics),
		credentials.WithPublicPaths(cfg.Credentials.PublicPaths...),
		credentials.WithLoginPath(cfg.Credentials.LoginPath),
		credentials.WithRefreshLeadWindow(cfg.Credentials.RefreshLeadWindow),
		credentials.WithRequestTimeout(cfg.API.Timeout),
		credentials.WithIdentityClearer(rt.clearIdentity),
	}
	if options.credentialStore != nil {
		credentialOpts = append(credentialOpts, credentials.WithStore(options.credentialStore))
	}
	if options.navigator != nil {
		credentialOpts = append(credentialOpts, credentials.WithNavigator(options.navigator))
	}
	rt.credentials, err = credentials.NewManager(rt.transport, credentialOpts...)
	if err != nil {
		return nil, err
	}

	rt.timers = timers.NewRegistry(timers.WithClock(clk))
	rt.actions = actions.NewCoordinator(
		actions.WithClock(clk),
		actions.WithMaxRetries(cfg.Actions.MaxRetries),
		actions.WithDefaultDebounce(cfg.Actions.Debounce),
		actions.WithLogger(options.logger),
		actions.WithMetricsRecorder(options.metrics),
	)

	client := options.verificationClient
	if client == nil {
		client = verification.NewHTTPClient(rt.credentials, cfg.Verification)
	}
	rt.verification, err = verification.NewManager(client,
		verification.WithTimers(rt.timers),
		verification.WithClock(clk),
		verification.WithPollInterval(cfg.Verification.PollInterval),
		verification.WithSessionTTL(cfg.Verification.SessionTTL),
		verification.WithURLOpener(options.urlOpener),
		verification.WithLogger(options.logger),
		verification.WithMetricsRecorder(options.metrics),
	)
	if err != nil {
		return nil, err
	}
	rt.binding = &verificationBinding{manager: rt.verification, workflow: rt.workflow, inst: rt.inst}

	rt.facade, err = NewFacade(FacadeDependencies{
		Workflow:     rt.workflow,
		Guard:        rt.guard,
		Verification: rt.binding,
		Credentials:  rt.credentials,
		Actions:      rt.actions,
		Timers:       rt.timers,
	})
	if err != nil {
		return nil, err
	}

	if err := rt.credentials.Restore(ctx); err != nil {
		rt.inst.LogWarn(ctx, "credential restore failed", map[string]any{"error": err.Error()})
	}
	rt.workflow.Load(ctx)
	return rt, nil
}

func (rt *Runtime) clearIdentity(ctx context.Context) error {
	rt.binding.Cleanup()
	_, err := rt.workflow.Dispatch(ctx, workflow.Reset{})
	return err
}

func (rt *Runtime) Config() core.Config                 { return rt.config }
func (rt *Runtime) Transport() core.TransportAdapter    { return rt.transport }
func (rt *Runtime) Credentials() *credentials.Manager   { return rt.credentials }
func (rt *Runtime) Timers() *timers.Registry            { return rt.timers }
func (rt *Runtime) Actions() *actions.Coordinator       { return rt.actions }
func (rt *Runtime) Verification() *verification.Manager { return rt.verification }
func (rt *Runtime) Workflow() *workflow.Store           { return rt.workflow }
func (rt *Runtime) RouteGuard() *workflow.RouteGuard    { return rt.guard }
func (rt *Runtime) Commands() Commands                  { return rt.facade.Commands() }
func (rt *Runtime) Queries() Queries                    { return rt.facade.Queries() }

// Close stops every timer, drops the verification session and releases the
// workflow subscribers. It is safe to call more than once.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	rt.mu.Unlock()

	rt.binding.Cleanup()
	rt.timers.ClearAll()
	rt.workflow.Close()
}

// verificationBinding decorates the verification manager so every session it
// starts reports into the workflow. The manager drops its subscribers on
// cleanup, so the binding subscribes again for each new session.
type verificationBinding struct {
	manager  *verification.Manager
	workflow *workflow.Store
	inst     core.Instrumentation

	mu        sync.Mutex
	dispose   func()
	requestID string
}

func (b *verificationBinding) Initiate(ctx context.Context, subjectID string) (verification.Session, error) {
	session, err := b.manager.Initiate(ctx, subjectID)
	if err != nil {
		return verification.Session{}, err
	}
	b.bind(ctx, session)
	return session, nil
}

func (b *verificationBinding) Resend(ctx context.Context, subjectID string) (verification.Session, error) {
	b.unbind()
	session, err := b.manager.Resend(ctx, subjectID)
	if err != nil {
		return verification.Session{}, err
	}
	b.bind(ctx, session)
	return session, nil
}

func (b *verificationBinding) Cleanup() {
	b.unbind()
	b.manager.Cleanup()
}

func (b *verificationBinding) OpenExternalURL(ctx context.Context) error {
	return b.manager.OpenExternalURL(ctx)
}

func (b *verificationBinding) Session() (verification.Session, bool) {
	return b.manager.Session()
}

func (b *verificationBinding) bind(ctx context.Context, session verification.Session) {
	b.mu.Lock()
	if b.dispose != nil {
		b.dispose()
	}
	b.requestID = session.RequestID
	b.dispose = b.manager.Subscribe(b.onStatus)
	b.mu.Unlock()

	b.manager.OnExpired(b.onExpired)
	b.dispatch(ctx, workflow.SetField{Field: workflow.FieldVerificationRequestID, Value: session.RequestID})
	b.dispatch(ctx, workflow.SetField{Field: workflow.FieldVerificationStatus, Value: session.Status})
	b.dispatch(ctx, workflow.ClearValidationError{Field: string(workflow.FieldVerificationStatus)})
}

func (b *verificationBinding) unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requestID = ""
	if b.dispose != nil {
		b.dispose()
		b.dispose = nil
	}
}

// bound reports whether requestID is the session this binding reports for.
func (b *verificationBinding) bound(requestID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requestID != "" && b.requestID == requestID
}

func (b *verificationBinding) onStatus(ctx context.Context, event verification.StatusEvent) {
	if !b.bound(event.RequestID) {
		b.inst.LogDebug(ctx, "stale verification status dropped", map[string]any{
			"request_id": event.RequestID,
			"status":     string(event.Status),
		})
		return
	}
	b.dispatch(ctx, workflow.SetField{Field: workflow.FieldVerificationStatus, Value: event.Status})
}

func (b *verificationBinding) onExpired(ctx context.Context, session verification.Session) {
	if !b.bound(session.RequestID) {
		return
	}
	b.dispatch(ctx, workflow.SetValidationError{
		Field:   string(workflow.FieldVerificationStatus),
		Message: "verification session expired",
	})
	b.inst.LogInfo(ctx, "verification expiry recorded", map[string]any{"request_id": session.RequestID})
}

func (b *verificationBinding) dispatch(ctx context.Context, action workflow.Action) {
	if _, err := b.workflow.Dispatch(ctx, action); err != nil {
		b.inst.LogWarn(ctx, "workflow dispatch from verification failed", map[string]any{
			"action": action.Type(),
			"error":  err.Error(),
		})
	}
}
