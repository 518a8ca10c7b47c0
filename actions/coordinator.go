package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
)

// Operation is the guarded asynchronous work behind an action id.
type Operation func(ctx context.Context) error

type Status struct {
	Pending    bool
	RetryCount int
	CanRetry   bool
}

type Option func(*Coordinator)

func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = clock.Resolve(c)
	}
}

func WithMaxRetries(max int) Option {
	return func(co *Coordinator) {
		if max >= 0 {
			co.maxRetries = max
		}
	}
}

// WithDefaultDebounce applies a debounce window to every Execute call that
// does not set its own.
func WithDefaultDebounce(window time.Duration) Option {
	return func(co *Coordinator) {
		if window >= 0 {
			co.debounce = window
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(co *Coordinator) {
		co.logger = logger
	}
}

func WithMetricsRecorder(metrics core.MetricsRecorder) Option {
	return func(co *Coordinator) {
		co.metrics = metrics
	}
}

type ExecuteOption func(*executeOptions)

type executeOptions struct {
	debounce *time.Duration
	apply    func()
	revert   func()
}

func Debounce(window time.Duration) ExecuteOption {
	return func(o *executeOptions) {
		o.debounce = &window
	}
}

// Optimistic applies a state mutation when the call is accepted and reverts
// it if the operation fails.
func Optimistic(apply func(), revert func()) ExecuteOption {
	return func(o *executeOptions) {
		o.apply = apply
		o.revert = revert
	}
}

// Coordinator deduplicates named asynchronous actions. An id is pending from
// the moment a call is accepted until its operation settles, and the pending
// flag is released exactly once per accepted run.
type Coordinator struct {
	clock      clock.Clock
	maxRetries int
	debounce   time.Duration
	logger     core.Logger
	metrics    core.MetricsRecorder
	inst       core.Instrumentation

	mu      sync.Mutex
	actions map[string]*actionState
}

type actionState struct {
	pending bool
	running bool
	retries int
	slot    *debounceSlot
}

type debounceSlot struct {
	ctx     context.Context
	op      Operation
	reverts []func()
	waiters []chan error
	timer   clock.Timer
	armed   uint64
}

func NewCoordinator(opts ...Option) *Coordinator {
	co := &Coordinator{
		clock:      clock.Real(),
		maxRetries: core.DefaultActionMaxRetries,
		actions:    map[string]*actionState{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(co)
		}
	}
	co.inst = core.NewInstrumentation("onboarding.actions", co.logger, co.metrics)
	return co
}

// Execute runs op under id. A call made while op is running is rejected with
// a duplicate action error. With a debounce window, calls made while the
// window is open coalesce into the last one and every coalesced caller gets
// its result.
func (co *Coordinator) Execute(ctx context.Context, id string, op Operation, opts ...ExecuteOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewBadInputError("actions: action id is required")
	}
	if op == nil {
		return core.NewBadInputError("actions: operation is required")
	}
	options := executeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	window := co.debounce
	if options.debounce != nil {
		window = *options.debounce
	}

	co.mu.Lock()
	state := co.stateLocked(id)
	if state.running || (state.pending && state.slot == nil) {
		co.mu.Unlock()
		co.inst.LogWarn(ctx, "duplicate action rejected", map[string]any{"action_id": id})
		return core.NewDuplicateActionError(id)
	}
	var reverts []func()
	if options.revert != nil {
		reverts = append(reverts, options.revert)
	}
	var slot *debounceSlot
	var wait chan error
	switch {
	case state.slot != nil:
		slot = state.slot
		wait = slot.joinLocked(ctx, op, reverts)
	case window > 0:
		state.pending = true
		slot = &debounceSlot{}
		state.slot = slot
		wait = slot.joinLocked(ctx, op, reverts)
	default:
		state.pending = true
		state.running = true
	}
	co.mu.Unlock()

	if options.apply != nil {
		options.apply()
	}
	if slot == nil {
		return co.run(ctx, id, op, reverts)
	}
	co.arm(id, slot, window)
	return co.await(ctx, wait)
}

// joinLocked makes the caller the last call of the slot and holds the
// window open until the caller re-arms it. The shared run keeps the last
// caller's values but not its cancellation; each waiter gives up on its own
// context in await.
func (slot *debounceSlot) joinLocked(ctx context.Context, op Operation, reverts []func()) chan error {
	slot.ctx = context.WithoutCancel(ctx)
	slot.op = op
	slot.reverts = append(slot.reverts, reverts...)
	wait := make(chan error, 1)
	slot.waiters = append(slot.waiters, wait)
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
	return wait
}

func (co *Coordinator) arm(id string, slot *debounceSlot, window time.Duration) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if state := co.actions[id]; state == nil || state.slot != slot {
		return
	}
	if slot.timer != nil {
		slot.timer.Stop()
	}
	slot.armed++
	armed := slot.armed
	slot.timer = co.clock.AfterFunc(window, func() { co.fire(id, slot, armed) })
}

func (co *Coordinator) fire(id string, slot *debounceSlot, armed uint64) {
	co.mu.Lock()
	state := co.actions[id]
	if state == nil || state.slot != slot || slot.timer == nil || slot.armed != armed {
		co.mu.Unlock()
		return
	}
	state.slot = nil
	state.running = true
	ctx, op, reverts, waiters := slot.ctx, slot.op, slot.reverts, slot.waiters
	co.mu.Unlock()

	err := co.run(ctx, id, op, reverts)
	for _, waiter := range waiters {
		waiter <- err
	}
}

// Retry re-runs op immediately, bypassing any debounce window. It refuses
// once the failure count for id reached the retry limit.
func (co *Coordinator) Retry(ctx context.Context, id string, op Operation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewBadInputError("actions: action id is required")
	}
	if op == nil {
		return core.NewBadInputError("actions: operation is required")
	}

	co.mu.Lock()
	state := co.stateLocked(id)
	if state.pending {
		co.mu.Unlock()
		return core.NewDuplicateActionError(id)
	}
	if state.retries >= co.maxRetries {
		retries := state.retries
		co.mu.Unlock()
		return core.NewMaxRetriesExceededError(id, retries)
	}
	state.pending = true
	state.running = true
	co.mu.Unlock()
	return co.run(ctx, id, op, nil)
}

func (co *Coordinator) run(ctx context.Context, id string, op Operation, reverts []func()) (err error) {
	startedAt := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = core.NewInternalError(fmt.Sprintf("actions: action %q panicked: %v", id, recovered))
		}
		retries := co.settle(id, err)
		if err != nil {
			for i := len(reverts) - 1; i >= 0; i-- {
				reverts[i]()
			}
		}
		co.inst.ObserveOperation(ctx, startedAt, "actions.execute", err, map[string]any{
			"action_id":   id,
			"retry_count": retries,
		})
	}()
	return op(ctx)
}

func (co *Coordinator) settle(id string, err error) int {
	co.mu.Lock()
	defer co.mu.Unlock()
	state := co.stateLocked(id)
	state.pending = false
	state.running = false
	if err != nil {
		state.retries++
	} else {
		state.retries = 0
	}
	return state.retries
}

func (co *Coordinator) await(ctx context.Context, wait chan error) error {
	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (co *Coordinator) IsPending(id string) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	state, ok := co.actions[strings.TrimSpace(id)]
	return ok && state.pending
}

func (co *Coordinator) IsAnyPending() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	for _, state := range co.actions {
		if state.pending {
			return true
		}
	}
	return false
}

func (co *Coordinator) Status(id string) Status {
	co.mu.Lock()
	defer co.mu.Unlock()
	state, ok := co.actions[strings.TrimSpace(id)]
	if !ok {
		return Status{CanRetry: co.maxRetries > 0}
	}
	return Status{
		Pending:    state.pending,
		RetryCount: state.retries,
		CanRetry:   !state.pending && state.retries < co.maxRetries,
	}
}

func (co *Coordinator) MaxRetries() int {
	return co.maxRetries
}

func (co *Coordinator) stateLocked(id string) *actionState {
	state, ok := co.actions[id]
	if !ok {
		state = &actionState{}
		co.actions[id] = state
	}
	return state
}
