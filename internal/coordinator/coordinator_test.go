package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stayware/identity-context-service/internal/audit"
	"github.com/stayware/identity-context-service/internal/directory"
	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/resolver"
	"github.com/stayware/identity-context-service/internal/retry"
	"github.com/stayware/identity-context-service/internal/session"
	"github.com/stayware/identity-context-service/internal/store"
)

// region: test doubles

type fakeIdp struct {
	mu       sync.Mutex
	refreshN atomic.Int64
	failN    int // fail this many refreshes with NETWORK_ERROR first
	fail     error
	next     func() *model.Session
	identity *model.UserIdentity
}

func (c *fakeIdp) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	c.refreshN.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failN > 0 {
		c.failN--
		return nil, errors.ErrNetwork()
	}
	if c.fail != nil {
		return nil, c.fail
	}
	return c.next(), nil
}

func (c *fakeIdp) SignOut(ctx context.Context, accessToken string) error {
	return nil
}

func (c *fakeIdp) User(ctx context.Context, accessToken string) (*model.UserIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, nil
}

type fakeState struct {
	mu    sync.Mutex
	state store.State
	gone  bool
}

func (c *fakeState) Load() (*store.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gone {
		return nil, nil
	}
	saved := c.state
	return &saved, nil
}

func (c *fakeState) SaveSession(grant *model.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Session = grant
	c.gone = false
	return nil
}

func (c *fakeState) SaveContextId(contextId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ContextId = contextId
	c.gone = false
	return nil
}

func (c *fakeState) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = store.State{}
	c.gone = true
	return nil
}

type fakeDirectory struct {
	mu       sync.Mutex
	profileN atomic.Int64
	profile  *model.UserIdentity
	contexts []*model.Context
	admin    bool
	switches []string
}

func (c *fakeDirectory) GetUserProfile(req store.ProfileRequest) (*model.UserIdentity, error) {
	c.profileN.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, nil
}

func (c *fakeDirectory) GetUserContexts(req store.ContextListRequest) (*model.ContextList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &model.ContextList{Data: c.contexts}, nil
}

func (c *fakeDirectory) CheckPlatformAdmin(req store.AdminCheckRequest) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin, nil
}

func (c *fakeDirectory) SwitchContext(req store.SwitchContextRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switches = append(c.switches, req.FromContextId+">"+req.ToContextId)
	return nil
}

func (c *fakeDirectory) SetDefaultContext(req store.SetDefaultContextRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.contexts {
		e.Default = e.Id == req.ContextId
	}
	return nil
}

// endregion

var fastRetry = retry.Backoff{
	Base:     time.Microsecond,
	Cap:      time.Millisecond,
	Attempts: 5,
	Rand:     func() float64 { return 0 },
}

func grantAt(expiry time.Time) *model.Session {
	return &model.Session{
		AccessToken:  "tok",
		RefreshToken: "ref",
		TokenType:    "bearer",
		ExpiresAt:    expiry,
		UserID:       "usr-1",
	}
}

func testContexts() []*model.Context {
	return []*model.Context{
		{Id: "ctx-1", UserId: "usr-1", WorkspaceId: "ws-1", Type: model.ContextOwner, Active: true},
		{Id: "ctx-2", UserId: "usr-1", WorkspaceId: "ws-2", Type: model.ContextStaff, Active: true, Default: true,
			Permissions: []string{"bookings.view"}},
	}
}

type harness struct {
	idp   *fakeIdp
	state *fakeState
	repo  *fakeDirectory
	c     *Coordinator
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	logger := slog.Default()
	idp := &fakeIdp{}
	state := &fakeState{gone: true}
	repo := &fakeDirectory{
		profile:  &model.UserIdentity{Id: "usr-1", Email: "guest@example.com"},
		contexts: testContexts(),
	}

	sessions := session.NewStore(logger, idp, state)
	dir := directory.New(logger, repo)
	res := resolver.New(logger, dir, state)
	emitter, err := audit.NewEmitter(logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	opts = append([]Option{WithBackoff(fastRetry)}, opts...)
	c := New(logger, sessions, dir, res, emitter, opts...)
	t.Cleanup(c.Teardown)

	return &harness{idp: idp, state: state, repo: repo, c: c}
}

// signIn seeds a persisted grant, as a prior authenticated run would.
func (h *harness) signIn(expiry time.Time) {
	h.state.mu.Lock()
	h.state.state.Session = grantAt(expiry)
	h.state.gone = false
	h.state.mu.Unlock()
}

func TestCoordinatorInit(t *testing.T) {

	t.Run("no persisted session is a state, not a failure", func(t *testing.T) {
		h := newHarness(t)
		snap, err := h.c.Init(context.Background())
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if snap.Status != StatusUninitialized {
			t.Errorf("Init() status = %v, want %v", snap.Status, StatusUninitialized)
		}
	})

	t.Run("restores a persisted session", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Now().Add(time.Hour))

		snap, err := h.c.Init(context.Background())
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if snap.Status != StatusReady {
			t.Fatalf("Init() status = %v, want %v", snap.Status, StatusReady)
		}
		if snap.User == nil || snap.User.Id != "usr-1" {
			t.Errorf("Init() user = %v, want usr-1", snap.User)
		}
		if len(snap.Contexts) != 2 {
			t.Errorf("Init() contexts = %d, want 2", len(snap.Contexts))
		}
		if snap.Current == nil || snap.Current.Id != "ctx-2" {
			t.Errorf("Init() current = %v, want default ctx-2", snap.Current)
		}
		if n := h.idp.refreshN.Load(); n != 0 {
			t.Errorf("refresh calls = %d, want 0 for a fresh grant", n)
		}
	})

	t.Run("second call returns the ready snapshot without reloading", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Now().Add(time.Hour))

		if _, err := h.c.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
		if _, err := h.c.Init(context.Background()); err != nil {
			t.Fatal(err)
		}
		if n := h.repo.profileN.Load(); n != 1 {
			t.Errorf("profile loads = %d, want 1", n)
		}
	})

	t.Run("network failures retried with backoff", func(t *testing.T) {
		h := newHarness(t)
		// expired grant forces a refresh on first Get
		h.signIn(time.Now().Add(-time.Minute))
		h.idp.mu.Lock()
		h.idp.failN = 2
		h.idp.next = func() *model.Session { return grantAt(time.Now().Add(time.Hour)) }
		h.idp.mu.Unlock()

		snap, err := h.c.Init(context.Background())
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if snap.Status != StatusReady {
			t.Errorf("Init() status = %v, want %v", snap.Status, StatusReady)
		}
		if n := h.idp.refreshN.Load(); n != 3 {
			t.Errorf("refresh calls = %d, want 3 (2 failures + 1 success)", n)
		}
	})

	t.Run("exhausted retries surface an error state", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Now().Add(-time.Minute))
		h.idp.mu.Lock()
		h.idp.failN = 100
		h.idp.mu.Unlock()

		_, err := h.c.Init(context.Background())
		if err == nil {
			t.Fatal("Init() error = nil, want terminal failure")
		}
		if got := h.c.State().Status; got != StatusError {
			t.Errorf("State() status = %v, want %v", got, StatusError)
		}
		if n := h.idp.refreshN.Load(); n != int64(fastRetry.Attempts) {
			t.Errorf("refresh calls = %d, want %d", n, fastRetry.Attempts)
		}
	})

	t.Run("missing directory profile falls back to the provider identity", func(t *testing.T) {
		h := newHarness(t)
		h.repo.mu.Lock()
		h.repo.profile = nil
		h.repo.mu.Unlock()
		h.idp.mu.Lock()
		h.idp.identity = &model.UserIdentity{Id: "usr-1", Email: "guest@example.com"}
		h.idp.mu.Unlock()
		h.signIn(time.Now().Add(time.Hour))

		snap, err := h.c.Init(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if snap.User == nil || snap.User.Email != "guest@example.com" {
			t.Errorf("Init() user = %v, want provider fallback", snap.User)
		}
	})

	t.Run("platform admin flag lands in the snapshot", func(t *testing.T) {
		h := newHarness(t)
		h.repo.admin = true
		h.signIn(time.Now().Add(time.Hour))

		snap, err := h.c.Init(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !snap.PlatformAdmin {
			t.Error("Init() platform admin = false, want true")
		}
		if !h.c.HasPermission("anything.at.all") {
			t.Error("HasPermission() = false, want admin override")
		}
	})
}

func TestCoordinatorWatch(t *testing.T) {

	h := newHarness(t)
	h.signIn(time.Now().Add(time.Hour))

	w := h.c.Watch()
	defer w.Close()

	// current state first
	select {
	case snap := <-w.Updates():
		if snap.Status != StatusUninitialized {
			t.Errorf("first snapshot status = %v, want %v", snap.Status, StatusUninitialized)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	if _, err := h.c.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	// initializing, then ready
	var last Snapshot
	deadline := time.After(time.Second)
	for last.Status != StatusReady {
		select {
		case last = <-w.Updates():
		case <-deadline:
			t.Fatalf("never observed ready, last = %v", last.Status)
		}
	}
	if last.Current == nil || last.Current.Id != "ctx-2" {
		t.Errorf("ready snapshot current = %v, want ctx-2", last.Current)
	}
}

func TestCoordinatorSwitch(t *testing.T) {

	h := newHarness(t)
	h.signIn(time.Now().Add(time.Hour))
	if _, err := h.c.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	ok, err := h.c.Switch(context.Background(), "ctx-1")
	if err != nil || !ok {
		t.Fatalf("Switch() = %v, %v, want true, nil", ok, err)
	}
	if got := h.c.State().Current; got == nil || got.Id != "ctx-1" {
		t.Errorf("State() current = %v, want ctx-1", got)
	}
	// owner now ; staff role no longer applies
	if !h.c.HasPermission("workspace.delete") {
		t.Error("HasPermission() = false, want owner authority")
	}
	if len(h.repo.switches) != 1 || h.repo.switches[0] != "ctx-2>ctx-1" {
		t.Errorf("remote switches = %v, want [ctx-2>ctx-1]", h.repo.switches)
	}

	// unknown target rejected without error
	ok, err = h.c.Switch(context.Background(), "ctx-9")
	if ok || err != nil {
		t.Errorf("Switch(ctx-9) = %v, %v, want false, nil", ok, err)
	}
}

func TestCoordinatorSetDefault(t *testing.T) {

	h := newHarness(t)
	h.signIn(time.Now().Add(time.Hour))
	if _, err := h.c.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	ok, err := h.c.SetDefault(context.Background(), "ctx-1")
	if err != nil || !ok {
		t.Fatalf("SetDefault() = %v, %v, want true, nil", ok, err)
	}
	snap := h.c.State()
	if got := model.DefaultContext(snap.Contexts); got == nil || got.Id != "ctx-1" {
		t.Errorf("default context = %v, want ctx-1", got)
	}
}

func TestCoordinatorSignOut(t *testing.T) {

	h := newHarness(t)
	h.signIn(time.Now().Add(time.Hour))
	if _, err := h.c.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := h.c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}

	snap := h.c.State()
	if snap.Status != StatusUninitialized {
		t.Errorf("State() status = %v, want %v", snap.Status, StatusUninitialized)
	}
	if snap.Session != nil || snap.Current != nil {
		t.Errorf("State() = %+v, want cleared", snap)
	}
	if !h.state.gone {
		t.Error("persisted state survived sign-out")
	}
	if h.c.HasPermission("profile.view") {
		t.Error("HasPermission() = true after sign-out, want false")
	}

	// signed-out re-init lands back in uninitialized
	again, err := h.c.Init(context.Background())
	if err != nil {
		t.Fatalf("Init() after sign-out error = %v", err)
	}
	if again.Status != StatusUninitialized {
		t.Errorf("Init() status = %v, want %v", again.Status, StatusUninitialized)
	}
}

func TestCoordinatorRefreshCycle(t *testing.T) {

	t.Run("transient failure keeps the session until expiry", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Now().Add(time.Hour))
		if _, err := h.c.Init(context.Background()); err != nil {
			t.Fatal(err)
		}

		h.idp.mu.Lock()
		h.idp.fail = errors.ErrNetwork()
		h.idp.mu.Unlock()

		h.c.refreshCycle(context.Background())

		snap := h.c.State()
		if snap.Status != StatusReady {
			t.Errorf("status = %v, want %v", snap.Status, StatusReady)
		}
		if snap.Expired {
			t.Error("expired = true, want false while the grant is still valid")
		}
		if snap.Err == nil {
			t.Error("err = nil, want the recorded refresh failure")
		}
		if snap.Session == nil {
			t.Error("session = nil, want retained grant")
		}
	})

	t.Run("failure past expiry flags the expired sub-condition", func(t *testing.T) {
		var expired atomic.Bool
		h := newHarness(t, WithExpiryCallback(func() { expired.Store(true) }))
		h.signIn(time.Now().Add(time.Hour))
		if _, err := h.c.Init(context.Background()); err != nil {
			t.Fatal(err)
		}

		h.idp.mu.Lock()
		h.idp.fail = errors.ErrNetwork()
		h.idp.mu.Unlock()
		// the wall clock is now past the grant's expiry
		h.c.clock = model.ClockFunc(func() time.Time {
			return time.Now().Add(2 * time.Hour)
		})

		h.c.refreshCycle(context.Background())

		snap := h.c.State()
		if !snap.Expired {
			t.Error("expired = false, want true")
		}
		if !expired.Load() {
			t.Error("expiry callback not invoked")
		}
	})

	t.Run("successful cycle replaces the grant", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(time.Now().Add(time.Hour))
		if _, err := h.c.Init(context.Background()); err != nil {
			t.Fatal(err)
		}

		renewed := grantAt(time.Now().Add(2 * time.Hour))
		renewed.AccessToken = "tok-2"
		h.idp.mu.Lock()
		h.idp.next = func() *model.Session { return renewed }
		h.idp.mu.Unlock()

		h.c.refreshCycle(context.Background())

		snap := h.c.State()
		if snap.Session == nil || snap.Session.AccessToken != "tok-2" {
			t.Errorf("session = %v, want renewed tok-2", snap.Session)
		}
		if snap.Err != nil || snap.Expired {
			t.Errorf("err/expired = %v/%v, want clean state", snap.Err, snap.Expired)
		}
	})
}

func TestCoordinatorAnomalies(t *testing.T) {

	h := newHarness(t)
	h.repo.mu.Lock()
	h.repo.contexts = []*model.Context{
		{Id: "ctx-1", UserId: "usr-1", WorkspaceId: "ws-1", Type: model.ContextStaff, Active: true},
		{Id: "ctx-2", UserId: "usr-1", WorkspaceId: "ws-1", Type: model.ContextTenant, Active: true},
	}
	h.repo.mu.Unlock()
	h.signIn(time.Now().Add(time.Hour))

	snap, err := h.c.Init(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Anomalies) != 1 || snap.Anomalies[0].WorkspaceId != "ws-1" {
		t.Errorf("anomalies = %v, want one at ws-1", snap.Anomalies)
	}
}
