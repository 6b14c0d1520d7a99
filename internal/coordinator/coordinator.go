package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stayware/identity-context-service/internal/access"
	"github.com/stayware/identity-context-service/internal/audit"
	"github.com/stayware/identity-context-service/internal/directory"
	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/resolver"
	"github.com/stayware/identity-context-service/internal/retry"
	"github.com/stayware/identity-context-service/internal/session"
)

// CheckInterval of the low-frequency periodic expiry verification.
// Catches expiry the scheduled refresh timer missed, e.g. after a
// host suspend/resume.
const CheckInterval = 5 * time.Minute

// Coordinator wires the session store, context directory and context
// resolver together and publishes a stable reactive auth state to any
// number of concurrent consumers. At most one initialization sequence
// runs per process lifetime segment (between sign-outs) and at most
// one refresh is in flight at a time.
type Coordinator struct {
	logger    *slog.Logger
	sessions  *session.Store
	directory *directory.Directory
	resolver  *resolver.Resolver
	audit     *audit.Emitter
	policy    retry.Backoff
	clock     model.Clock

	// caller-supplied callbacks ; optional
	onExpired func()
	onError   func(*errors.Error)

	mu       sync.Mutex
	snap     Snapshot
	watchers map[*Watcher]struct{}
	refresh  *time.Timer
	done     chan struct{}

	flight singleflight.Group
	// set by this process's own SignOut ; external "signed out"
	// notifications are ignored unless it is raised
	explicitLogout atomic.Bool
}

type Option func(c *Coordinator)

// WithExpiryCallback invoked when the session actually expires
// and refresh did not recover it.
func WithExpiryCallback(fn func()) Option {
	return func(c *Coordinator) {
		c.onExpired = fn
	}
}

// WithErrorCallback invoked on every error recorded to state.
func WithErrorCallback(fn func(*errors.Error)) Option {
	return func(c *Coordinator) {
		c.onError = fn
	}
}

// WithBackoff overrides the initialization retry policy.
func WithBackoff(policy retry.Backoff) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithClock overrides the time source.
func WithClock(clock model.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

func New(
	logger *slog.Logger,
	sessions *session.Store,
	dir *directory.Directory,
	res *resolver.Resolver,
	emitter *audit.Emitter,
	opts ...Option,
) *Coordinator {

	c := &Coordinator{
		logger:    logger,
		sessions:  sessions,
		directory: dir,
		resolver:  res,
		audit:     emitter,
		policy:    retry.Default,
		clock:     model.LocalTime,
		snap:      Snapshot{Status: StatusUninitialized},
		watchers:  make(map[*Watcher]struct{}),
		done:      make(chan struct{}),
	}
	for _, setup := range opts {
		setup(c)
	}
	return c
}

// Init establishes the auth state. Safe to call from many consumers
// near-simultaneously: late callers await the one in-flight sequence
// instead of re-triggering it, and an already-ready coordinator
// returns its snapshot at once.
func (c *Coordinator) Init(ctx context.Context) (Snapshot, error) {

	c.mu.Lock()
	switch c.snap.Status {
	case StatusReady:
		snap := c.snap
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	snap, err, _ := c.flight.Do("init", func() (any, error) {
		return c.initialize(ctx)
	})

	if err != nil {
		return c.State(), err
	}

	return snap.(Snapshot), nil
}

func (c *Coordinator) initialize(ctx context.Context) (Snapshot, error) {

	c.transition(func(snap *Snapshot) {
		*snap = Snapshot{Status: StatusInitializing}
	})
	c.explicitLogout.Store(false)

	// session first ; network failures retried with backoff
	var grant *model.Session
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		grant, err = c.sessions.Get(ctx)
		return err
	})

	if err != nil {
		if errors.ClassOf(err) == errors.NoSession {
			// signed-out is a state, not a failure
			snap := Snapshot{Status: StatusUninitialized}
			c.transition(func(s *Snapshot) { *s = snap })
			return snap, nil
		}
		fail := errors.FromError(err)
		c.transition(func(snap *Snapshot) {
			*snap = Snapshot{Status: StatusError, Err: fail}
		})
		c.report(fail)
		return c.State(), fail
	}

	userId := grant.UserID

	// partial data beats blocking forever: profile and context
	// sub-failures are recorded, never fatal
	profile, err := c.directory.FetchProfile(ctx, userId)
	if err != nil {
		c.logger.Warn("init: profile load failed", "error", err)
	}
	if profile == nil {
		// provider identity as the fallback profile source
		if fallback, err := c.sessions.Identity(ctx); err == nil {
			profile = fallback
		}
	}

	contexts, err := c.directory.FetchContexts(ctx, userId)
	if err != nil {
		c.logger.Warn("init: context load failed", "error", err)
	}

	admin := c.directory.CheckPlatformAdmin(ctx, userId)
	current := c.resolver.ResolveInitial(userId, contexts)

	snap := Snapshot{
		Status:        StatusReady,
		Session:       grant,
		User:          profile,
		Contexts:      contexts,
		Current:       current,
		PlatformAdmin: admin,
		Anomalies:     model.DetectAnomalies(contexts),
	}
	c.transition(func(s *Snapshot) { *s = snap })

	c.scheduleRefresh(grant)

	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	go c.periodicCheck(done)

	c.logger.Info("auth state ready",
		"user.id", userId,
		"contexts", len(contexts),
		"admin", admin,
	)

	return snap, nil
}

// State returns the current published snapshot.
func (c *Coordinator) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Watch subscribes a consumer to state snapshots. The caller MUST
// Close the watcher on teardown ; snapshots arriving later are
// discarded rather than delivered to a gone consumer.
func (c *Coordinator) Watch() *Watcher {
	w := newWatcher()
	c.mu.Lock()
	c.watchers[w] = struct{}{}
	snap := c.snap
	c.mu.Unlock()
	w.push(snap) // current state first
	return w
}

// Evaluator over the current snapshot ; pure, no I/O.
func (c *Coordinator) Evaluator() access.Evaluator {
	snap := c.State()
	return access.Evaluator{
		Current:       snap.Current,
		PlatformAdmin: snap.PlatformAdmin,
	}
}

// HasPermission shorthand.
func (c *Coordinator) HasPermission(permission string) bool {
	return c.Evaluator().Has(permission)
}

// Switch activates another context ; rejected unless the target is a
// member of the cached list and no other switch is pending.
func (c *Coordinator) Switch(ctx context.Context, contextId string) (bool, error) {

	ok, err := c.resolver.Switch(ctx, contextId)
	if !ok {
		return false, err
	}

	current := c.resolver.Current()
	c.transition(func(snap *Snapshot) {
		snap.Current = current
	})

	workspaceId := ""
	if current != nil {
		workspaceId = current.WorkspaceId
	}
	c.audit.Emit("context", contextId, "switch", workspaceId, nil)

	return true, nil
}

// SetDefault marks a context as the user's default and refreshes
// the cached list so is_default flags stay consistent.
func (c *Coordinator) SetDefault(ctx context.Context, contextId string) (bool, error) {

	ok, err := c.resolver.SetDefault(ctx, contextId)
	if !ok {
		return false, err
	}

	c.publishContexts()
	return true, nil
}

// RefreshContexts re-fetches the context list, falling back off a
// revoked active context automatically.
func (c *Coordinator) RefreshContexts(ctx context.Context) error {
	if err := c.resolver.RefreshContexts(ctx); err != nil {
		return err
	}
	c.publishContexts()
	return nil
}

// SignOut clears remote and local session state and returns the
// coordinator to uninitialized. Idempotent: signing out while signed
// out leaves local state cleared without error.
func (c *Coordinator) SignOut(ctx context.Context) error {

	c.explicitLogout.Store(true)

	snap := c.State()
	userId := ""
	if snap.Session != nil {
		userId = snap.Session.UserID
	}

	err := c.sessions.SignOut(ctx)
	c.resolver.Reset()
	c.stopTimers()

	c.transition(func(snap *Snapshot) {
		*snap = Snapshot{Status: StatusUninitialized}
	})

	if userId != "" {
		c.audit.Emit("session", userId, "logout", "", nil)
	}

	return err
}

// Teardown stops timers and detaches all watchers. The coordinator
// keeps its published state ; a later Init starts a fresh segment.
func (c *Coordinator) Teardown() {
	c.stopTimers()
	c.mu.Lock()
	watchers := c.watchers
	c.watchers = make(map[*Watcher]struct{})
	c.mu.Unlock()
	for w := range watchers {
		w.Close()
	}
}

// region: refresh cycle

func (c *Coordinator) scheduleRefresh(grant *model.Session) {

	remain := grant.ExpiresIn(c.clock.Now())
	delay := remain - model.ExpiryBuffer
	if delay < time.Second {
		delay = time.Second
	}

	c.mu.Lock()
	if c.refresh != nil {
		c.refresh.Stop()
	}
	c.refresh = time.AfterFunc(delay, func() {
		c.refreshCycle(context.Background())
	})
	c.mu.Unlock()

	c.logger.Debug("session: refresh scheduled", "in", delay.Round(time.Second))
}

func (c *Coordinator) refreshCycle(ctx context.Context) {

	if c.State().Status != StatusReady {
		return
	}

	grant, err := c.sessions.Refresh(ctx)

	if err == nil {
		c.transition(func(snap *Snapshot) {
			snap.Session = grant
			snap.Expired = false
			snap.Err = nil
		})
		c.scheduleRefresh(grant)
		return
	}

	fail := errors.FromError(err)

	// record the failure but keep the previous session
	// until it actually expires
	prev := c.sessions.Current()
	if prev != nil && prev.Verify(c.clock.Now()) == nil {
		c.transition(func(snap *Snapshot) {
			snap.Err = fail
		})
		c.report(fail)
		// another attempt before the grant runs out
		next := prev.ExpiresIn(c.clock.Now()) / 2
		if next < time.Second {
			next = time.Second
		}
		c.mu.Lock()
		if c.refresh != nil {
			c.refresh.Stop()
		}
		c.refresh = time.AfterFunc(next, func() {
			c.refreshCycle(context.Background())
		})
		c.mu.Unlock()
		return
	}

	c.expire(fail)
}

// expire moves ready state into its expired sub-condition and
// invokes the caller-supplied expiry callback.
func (c *Coordinator) expire(fail *errors.Error) {

	c.transition(func(snap *Snapshot) {
		snap.Expired = true
		snap.Err = fail
	})
	c.report(fail)

	c.logger.Warn("session: expired", "error", fail)

	if c.onExpired != nil {
		c.onExpired()
	}
}

// periodicCheck independently verifies the cached session hasn't
// silently expired between scheduled refreshes.
func (c *Coordinator) periodicCheck(done <-chan struct{}) {

	tick := time.NewTicker(CheckInterval)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return
		case <-tick.C:
		}

		snap := c.State()
		if snap.Status != StatusReady || snap.Session == nil {
			continue
		}
		if snap.Session.NearExpiry(c.clock.Now()) {
			c.logger.Debug("session: periodic check: near expiry")
			c.refreshCycle(context.Background())
		}
	}
}

func (c *Coordinator) stopTimers() {
	c.mu.Lock()
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	select {
	case <-c.done:
		// already torn down
	default:
		close(c.done)
	}
	c.done = make(chan struct{})
	c.mu.Unlock()
}

// endregion

func (c *Coordinator) publishContexts() {
	contexts := c.resolver.Contexts()
	current := c.resolver.Current()
	c.transition(func(snap *Snapshot) {
		snap.Contexts = contexts
		snap.Current = current
		snap.Anomalies = model.DetectAnomalies(contexts)
	})
}

// transition applies a mutation to the published state and fans the
// new snapshot out to live watchers. Single writer: every mutation
// funnels through here under the coordinator lock.
func (c *Coordinator) transition(mutate func(snap *Snapshot)) {
	c.mu.Lock()
	mutate(&c.snap)
	snap := c.snap
	watchers := make([]*Watcher, 0, len(c.watchers))
	for w := range c.watchers {
		if w.closed.Load() {
			delete(c.watchers, w)
			continue
		}
		watchers = append(watchers, w)
	}
	c.mu.Unlock()

	for _, w := range watchers {
		w.push(snap)
	}
}

func (c *Coordinator) report(fail *errors.Error) {
	if c.onError != nil && fail != nil {
		c.onError(fail)
	}
}
