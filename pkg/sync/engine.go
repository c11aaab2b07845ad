// Package sync keeps the local cache and the remote store in step with the
// in-memory goal lists. Saves are debounced and serialized per category.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stefanpenner/horizon/pkg/cache"
	"github.com/stefanpenner/horizon/pkg/store"
)

const (
	DefaultDebounce = 400 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// Remote is the persistent store of record.
type Remote interface {
	Fetch(ctx context.Context, c store.Category) ([]store.Goal, error)
	Save(ctx context.Context, c store.Category, goals []store.Goal) error
}

// Resetter is implemented by remotes that can wipe every category at once.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Status is the sync state of one category.
type Status struct {
	Category store.Category
	// Dirty is set while the current list differs from what the remote last
	// confirmed.
	Dirty  bool
	Saving bool
	// PendingRetry is set after a failed save until a save succeeds.
	PendingRetry bool
	Err          error
}

type lane struct {
	cat       store.Category
	rev       uint64
	latest    []store.Goal
	confirmed []store.Goal
	dirty     bool
	retry     bool
	running   bool
	idle      chan struct{}
	timer     *time.Timer
	lastErr   error
}

// Options configures an Engine. Only Remote is required.
type Options struct {
	Remote   Remote
	Cache    cache.Cache
	Debounce time.Duration
	Timeout  time.Duration
	Limiter  *rate.Limiter
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Engine implements store.Listener and store.Loader.
type Engine struct {
	remote   Remote
	cache    cache.Cache
	debounce time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	metrics  *Metrics
	log      *slog.Logger

	mu     sync.Mutex
	lanes  map[store.Category]*lane
	subs   []func(Status)
	closed bool
}

var (
	_ store.Listener = (*Engine)(nil)
	_ store.Loader   = (*Engine)(nil)
)

// New creates an Engine. It panics if opts.Remote is nil.
func New(opts Options) *Engine {
	if opts.Remote == nil {
		panic("sync: nil Remote")
	}
	e := &Engine{
		remote:   opts.Remote,
		cache:    opts.Cache,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		limiter:  opts.Limiter,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		lanes:    make(map[store.Category]*lane, len(store.Categories)),
	}
	if e.cache == nil {
		e.cache = cache.NewMemory()
	}
	if e.debounce <= 0 {
		e.debounce = DefaultDebounce
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.limiter == nil {
		e.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("component", "sync")
	for _, c := range store.Categories {
		e.lanes[c] = &lane{cat: c, latest: []store.Goal{}, confirmed: []store.Goal{}}
	}
	return e
}

// GoalsChanged records a new snapshot, writes it to the cache and (re)starts
// the category's debounce timer.
func (e *Engine) GoalsChanged(c store.Category, goals []store.Goal) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := e.cache.Put(ctx, c, goals); err != nil {
		e.log.Error("cache write failed", "category", c, "error", err)
	}
	e.metrics.mutations.WithLabelValues(string(c)).Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.lanes[c]
	l.rev++
	l.latest = store.CloneGoals(goals)
	l.dirty = true
	if !e.closed {
		e.scheduleLocked(l)
	}
	e.publishLocked(l)
}

func (e *Engine) scheduleLocked(l *lane) {
	if l.timer == nil {
		l.timer = time.AfterFunc(e.debounce, func() { e.onTimer(l) })
		return
	}
	l.timer.Reset(e.debounce)
}

func (e *Engine) onTimer(l *lane) {
	e.mu.Lock()
	if l.running {
		// A save is in flight; try again once it has had time to settle.
		if !e.closed {
			l.timer.Reset(e.debounce)
		}
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	_ = e.saveOnce(context.Background(), l)
}

// saveOnce sends the lane's latest snapshot if it is dirty and idle. It
// returns errBusy when another save holds the lane.
func (e *Engine) saveOnce(ctx context.Context, l *lane) error {
	e.mu.Lock()
	if l.running {
		e.mu.Unlock()
		return errBusy
	}
	if !l.dirty {
		e.mu.Unlock()
		return nil
	}
	snap := store.CloneGoals(l.latest)
	rev := l.rev
	l.running = true
	l.idle = make(chan struct{})
	e.publishLocked(l)
	e.mu.Unlock()

	err := e.limiter.Wait(ctx)
	if err == nil {
		sctx, cancel := context.WithTimeout(ctx, e.timeout)
		err = e.remote.Save(sctx, l.cat, snap)
		cancel()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	l.running = false
	close(l.idle)
	l.idle = nil

	if err != nil {
		perr := &store.PersistenceError{Op: "save", Category: l.cat, Err: err}
		l.retry = true
		l.lastErr = perr
		e.metrics.saves.WithLabelValues(string(l.cat), "error").Inc()
		e.log.Warn("save failed", "category", l.cat, "goals", len(snap), "revision", rev, "error", err)
	} else {
		l.confirmed = snap
		l.retry = false
		l.lastErr = nil
		if l.rev == rev {
			l.dirty = false
		}
		e.metrics.saves.WithLabelValues(string(l.cat), "ok").Inc()
		e.log.Debug("saved", "category", l.cat, "goals", len(snap), "revision", rev)
	}
	// Mutations that arrived mid-save still need sending.
	if l.dirty && l.rev != rev && !e.closed {
		e.scheduleLocked(l)
	}
	e.publishLocked(l)
	if err != nil {
		return l.lastErr
	}
	return nil
}

var errBusy = errors.New("save in flight")

// waitIdle blocks until no save is running for l.
func (e *Engine) waitIdle(ctx context.Context, l *lane) error {
	for {
		e.mu.Lock()
		idle := l.idle
		e.mu.Unlock()
		if idle == nil {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush waits for in-flight saves and then immediately saves every dirty
// category, bypassing the debounce. It is the manual retry and the shutdown
// path. Failures are joined; categories that failed stay dirty.
func (e *Engine) Flush(ctx context.Context) error {
	var errs []error
	for _, c := range store.Categories {
		if err := e.flushLane(ctx, e.lanes[c]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) flushLane(ctx context.Context, l *lane) error {
	for {
		e.mu.Lock()
		if l.timer != nil {
			l.timer.Stop()
		}
		dirty := l.dirty
		e.mu.Unlock()
		if !dirty {
			return nil
		}
		if err := e.waitIdle(ctx, l); err != nil {
			return err
		}
		err := e.saveOnce(ctx, l)
		switch {
		case errors.Is(err, errBusy):
			continue
		case err != nil:
			return err
		}
		e.mu.Lock()
		done := !l.dirty
		e.mu.Unlock()
		if done {
			return nil
		}
	}
}

// LoadCategory fetches a category from the remote. The remote copy wins and
// refreshes the cache. When the remote fails the cached copy is returned with
// a *store.PersistenceError and the category is marked dirty so the next save
// pushes it; with no cached copy either, an empty list is returned.
func (e *Engine) LoadCategory(ctx context.Context, c store.Category) ([]store.Goal, error) {
	fctx, cancel := context.WithTimeout(ctx, e.timeout)
	goals, err := e.remote.Fetch(fctx, c)
	cancel()
	if err == nil {
		if goals == nil {
			goals = []store.Goal{}
		}
		// Only rewrite the cache when it differs, so file watchers are not
		// woken by every reload.
		if cached, ok, _ := e.cache.Get(ctx, c); !ok || !store.EqualGoals(cached, goals) {
			if cerr := e.cache.Put(ctx, c, goals); cerr != nil {
				e.log.Error("cache write failed", "category", c, "error", cerr)
			}
		}
		e.mu.Lock()
		l := e.lanes[c]
		l.latest = store.CloneGoals(goals)
		l.confirmed = store.CloneGoals(goals)
		l.dirty = false
		l.retry = false
		l.lastErr = nil
		e.publishLocked(l)
		e.mu.Unlock()
		return goals, nil
	}

	perr := &store.PersistenceError{Op: "load", Category: c, Err: err}
	e.log.Warn("remote load failed", "category", c, "error", err)
	cached, ok, cerr := e.cache.Get(ctx, c)
	if cerr != nil {
		e.log.Error("cache read failed", "category", c, "error", cerr)
	}
	if !ok {
		return []store.Goal{}, perr
	}

	e.mu.Lock()
	l := e.lanes[c]
	l.latest = store.CloneGoals(cached)
	l.dirty = true
	l.retry = true
	l.lastErr = perr
	e.publishLocked(l)
	e.mu.Unlock()
	return cached, perr
}

// ResetRemote wipes the remote after the store has been reset locally. Lanes
// whose latest snapshot is empty are confirmed without a per-category save.
// Remotes that cannot reset in one call are flushed instead.
func (e *Engine) ResetRemote(ctx context.Context) error {
	r, ok := e.remote.(Resetter)
	if !ok {
		return e.Flush(ctx)
	}
	e.mu.Lock()
	for _, l := range e.lanes {
		if l.timer != nil {
			l.timer.Stop()
		}
	}
	e.mu.Unlock()
	for _, c := range store.Categories {
		if err := e.waitIdle(ctx, e.lanes[c]); err != nil {
			return err
		}
	}

	revs := make(map[store.Category]uint64, len(e.lanes))
	e.mu.Lock()
	for c, l := range e.lanes {
		revs[c] = l.rev
	}
	e.mu.Unlock()

	err := e.limiter.Wait(ctx)
	if err == nil {
		rctx, cancel := context.WithTimeout(ctx, e.timeout)
		err = r.Reset(rctx)
		cancel()
	}
	if err != nil {
		e.log.Warn("remote reset failed", "error", err)
		e.mu.Lock()
		for _, l := range e.lanes {
			if l.dirty {
				l.retry = true
				l.lastErr = &store.PersistenceError{Op: "reset", Category: l.cat, Err: err}
				e.publishLocked(l)
			}
		}
		e.mu.Unlock()
		return &store.PersistenceError{Op: "reset", Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range store.Categories {
		l := e.lanes[c]
		l.confirmed = []store.Goal{}
		if len(l.latest) == 0 && l.rev == revs[c] {
			l.dirty = false
			l.retry = false
			l.lastErr = nil
		} else if l.dirty && !e.closed {
			e.scheduleLocked(l)
		}
		e.publishLocked(l)
	}
	return nil
}

// State returns the current status of category c.
func (e *Engine) State(c store.Category) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.lanes[c]
	if !ok {
		return Status{Category: c}
	}
	return l.status()
}

// Dirty lists the categories with unconfirmed changes, in display order.
func (e *Engine) Dirty() []store.Category {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []store.Category
	for _, c := range store.Categories {
		if e.lanes[c].dirty {
			out = append(out, c)
		}
	}
	return out
}

// Confirmed returns the last snapshot the remote accepted for c.
func (e *Engine) Confirmed(c store.Category) []store.Goal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return store.CloneGoals(e.lanes[c].confirmed)
}

// Subscribe registers fn for status changes and immediately replays the
// current status of every category. fn runs with the engine lock held; it
// must not block or call back into the Engine.
func (e *Engine) Subscribe(fn func(Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
	for _, c := range store.Categories {
		fn(e.lanes[c].status())
	}
}

func (e *Engine) publishLocked(l *lane) {
	st := l.status()
	for _, fn := range e.subs {
		fn(st)
	}
}

func (l *lane) status() Status {
	return Status{
		Category:     l.cat,
		Dirty:        l.dirty,
		Saving:       l.running,
		PendingRetry: l.retry,
		Err:          l.lastErr,
	}
}

// Close stops pending timers and waits for in-flight saves. Dirty
// categories are left as they are; call Flush first to push them.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	for _, l := range e.lanes {
		if l.timer != nil {
			l.timer.Stop()
		}
	}
	e.mu.Unlock()
	for _, c := range store.Categories {
		_ = e.waitIdle(context.Background(), e.lanes[c])
	}
	return nil
}
