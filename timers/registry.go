package timers

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-onboarding/clock"
	"github.com/goliatone/go-onboarding/core"
)

const DefaultTickInterval = time.Second

type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindInterval  Kind = "interval"
	KindCountdown Kind = "countdown"
)

type IntervalConfig struct {
	ID       string
	Interval time.Duration
	Tick     func()
}

type CountdownConfig struct {
	ID           string
	Duration     time.Duration
	TickInterval time.Duration
	OnTick       func(remaining time.Duration)
	OnComplete   func()
}

type Option func(*Registry)

func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = clock.Resolve(c)
	}
}

// Registry owns named timers. Registering under an id that is already in use
// cancels the previous timer first. A callback only runs while its entry is
// still the one registered under the id.
type Registry struct {
	clock clock.Clock

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	kind  Kind
	timer clock.Timer
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:   clock.Real(),
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Registry) SetTimeout(id string, delay time.Duration, fn func()) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.NewBadInputError("timers: id is required")
	}
	if fn == nil {
		return core.NewBadInputError("timers: callback is required")
	}
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(id)
	e := &entry{kind: KindTimeout}
	r.entries[id] = e
	e.timer = r.clock.AfterFunc(delay, func() {
		if !r.release(id, e) {
			return
		}
		fn()
	})
	return nil
}

func (r *Registry) SetInterval(cfg IntervalConfig) error {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return core.NewBadInputError("timers: id is required")
	}
	if cfg.Interval <= 0 {
		return core.NewBadInputError("timers: interval must be positive")
	}
	if cfg.Tick == nil {
		return core.NewBadInputError("timers: tick callback is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(id)
	e := &entry{kind: KindInterval}
	r.entries[id] = e
	r.scheduleIntervalLocked(id, e, cfg.Interval, cfg.Tick)
	return nil
}

func (r *Registry) scheduleIntervalLocked(id string, e *entry, every time.Duration, tick func()) {
	e.timer = r.clock.AfterFunc(every, func() {
		r.mu.Lock()
		if r.entries[id] != e {
			r.mu.Unlock()
			return
		}
		r.scheduleIntervalLocked(id, e, every, tick)
		r.mu.Unlock()
		tick()
	})
}

// Countdown ticks with the remaining time, measured against a fixed end
// instant, and calls OnComplete once when it reaches zero. The first tick
// carries the full duration and is delivered before Countdown returns.
func (r *Registry) Countdown(cfg CountdownConfig) error {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		return core.NewBadInputError("timers: id is required")
	}
	every := cfg.TickInterval
	if every <= 0 {
		every = DefaultTickInterval
	}
	duration := cfg.Duration
	if duration < 0 {
		duration = 0
	}
	onTick := cfg.OnTick
	if onTick == nil {
		onTick = func(time.Duration) {}
	}
	onComplete := cfg.OnComplete
	if onComplete == nil {
		onComplete = func() {}
	}

	r.mu.Lock()
	r.stopLocked(id)
	if duration == 0 {
		r.mu.Unlock()
		onTick(0)
		onComplete()
		return nil
	}
	e := &entry{kind: KindCountdown}
	r.entries[id] = e
	endAt := r.clock.Now().Add(duration)
	r.scheduleCountdownLocked(id, e, endAt, every, duration, onTick, onComplete)
	r.mu.Unlock()

	onTick(duration)
	return nil
}

func (r *Registry) scheduleCountdownLocked(
	id string,
	e *entry,
	endAt time.Time,
	every time.Duration,
	remaining time.Duration,
	onTick func(time.Duration),
	onComplete func(),
) {
	delay := every
	if remaining < delay {
		delay = remaining
	}
	e.timer = r.clock.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.entries[id] != e {
			r.mu.Unlock()
			return
		}
		left := endAt.Sub(r.clock.Now())
		if left <= 0 {
			delete(r.entries, id)
			r.mu.Unlock()
			onTick(0)
			onComplete()
			return
		}
		r.scheduleCountdownLocked(id, e, endAt, every, left, onTick, onComplete)
		r.mu.Unlock()
		onTick(left)
	})
}

// Clear cancels the timer registered under id. It reports whether a timer
// was live.
func (r *Registry) Clear(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(strings.TrimSpace(id))
}

// ClearAll cancels every live timer. It is the teardown path and leaves the
// registry empty.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.entries {
		r.stopLocked(id)
	}
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[strings.TrimSpace(id)]
	return ok
}

func (r *Registry) Kind(id string) (Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[strings.TrimSpace(id)]
	if !ok {
		return "", false
	}
	return e.kind, true
}

// Active lists the ids of live timers in lexical order.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) stopLocked(id string) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	if e.timer != nil {
		e.timer.Stop()
	}
	return true
}

func (r *Registry) release(id string, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[id] != e {
		return false
	}
	delete(r.entries, id)
	return true
}
