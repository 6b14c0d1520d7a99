package file

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/stayware/identity-context-service/internal/model"
	"github.com/stayware/identity-context-service/internal/store"
)

// StateStore persists agent state as a single JSON file.
// Writes go through a temp file + rename so a crash mid-write
// never leaves a torn state behind.
type StateStore struct {
	mu   sync.Mutex
	path string
}

var _ store.StateStore = (*StateStore)(nil)

func NewStateStore(path string) (*StateStore, error) {
	if path == "" {
		home, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, "stayware", "identity-context.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &StateStore{path: path}, nil
}

func (c *StateStore) Load() (*store.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *StateStore) load() (*store.State, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// cold start ; nothing persisted yet
			return nil, nil
		}
		return nil, err
	}
	state := new(store.State)
	if err = json.Unmarshal(data, state); err != nil {
		// unreadable state is the same as no state
		return nil, nil
	}
	return state, nil
}

func (c *StateStore) SaveSession(grant *model.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load()
	if err != nil {
		return err
	}
	if state == nil {
		state = new(store.State)
	}
	state.Session = grant
	return c.save(state)
}

func (c *StateStore) SaveContextId(contextId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.load()
	if err != nil {
		return err
	}
	if state == nil {
		state = new(store.State)
	}
	state.ContextId = contextId
	return c.save(state)
}

func (c *StateStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (c *StateStore) save(state *store.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	// tokens inside ; owner-only
	tmp := c.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
