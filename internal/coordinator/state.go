package coordinator

import (
	"sync"
	"sync/atomic"

	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
)

// Status of the coordinator state machine.
type Status string

const (
	// No session established ; also the post-sign-out state
	StatusUninitialized Status = "uninitialized"
	// First initialization sequence in flight
	StatusInitializing Status = "initializing"
	// Session + profile + contexts resolved ; possibly partial
	StatusReady Status = "ready"
	// Retry-exhausted network failure -or- unrecoverable session error
	StatusError Status = "error"
)

// Snapshot of the published auth state. Immutable once handed out ;
// all mutations funnel through the Coordinator.
type Snapshot struct {
	Status Status
	// Session grant ; nil when signed out
	Session *model.Session
	// Profile record ; may be nil on non-fatal sub-failures
	User *model.UserIdentity
	// All active contexts of the user
	Contexts []*model.Context
	// Current active context ; nil is the
	// unauthenticated-for-business-purposes state
	Current *model.Context
	// Platform-admin override flag
	PlatformAdmin bool
	// Allowed-but-flagged membership states
	Anomalies []model.ContextAnomaly
	// The session passed its absolute expiry and refresh
	// did not recover it ; sub-condition of ready
	Expired bool
	// Last recorded error ; transient refresh failures keep
	// the previous session until it actually expires
	Err *errors.Error
}

// Watcher is one consumer's subscription to state snapshots.
// Consumers track their own liveness: results arriving after
// Close are discarded, never delivered.
type Watcher struct {
	updates chan Snapshot
	closed  atomic.Bool
	once    sync.Once
}

func newWatcher() *Watcher {
	return &Watcher{
		// slow consumers drop intermediate snapshots,
		// never block the coordinator
		updates: make(chan Snapshot, 8),
	}
}

// Updates yields state snapshots ; closed on Watcher.Close.
func (w *Watcher) Updates() <-chan Snapshot {
	return w.updates
}

// Close marks the consumer gone. Idempotent.
func (w *Watcher) Close() {
	w.closed.Store(true)
	w.once.Do(func() {
		close(w.updates)
	})
}

func (w *Watcher) push(snap Snapshot) (ok bool) {
	if w.closed.Load() {
		return false
	}
	defer func() {
		// racing Close ; the consumer is gone anyway
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case w.updates <- snap:
	default:
		// full buffer ; drop this intermediate snapshot
	}
	return true
}
