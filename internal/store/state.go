package store

import (
	"github.com/stayware/identity-context-service/internal/model"
)

// StateStore. Client-side persisted state surviving restarts:
// the session grant and the last-active context id.
type StateStore interface {
	// Load persisted state ; (nil, nil) when none exists yet
	Load() (*State, error)
	// SaveSession persists the session grant ; nil clears it
	SaveSession(grant *model.Session) error
	// SaveContextId persists the last-active context id ;
	// written on every successful switch
	SaveContextId(contextId string) error
	// Clear removes ALL persisted state ; sign-out
	Clear() error
}

// State persisted across agent restarts.
type State struct {
	// Session grant, if any
	Session *model.Session `json:"session,omitempty"`
	// Last-active context id, if any
	ContextId string `json:"context_id,omitempty"`
}
