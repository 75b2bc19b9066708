// internal/presence/registry.go
//
// Presence registry for connected users.
// Responsibilities:
//   - Track which connections have registered a username.
//   - Assign every registered user to the shared lobby broadcast group.
//   - Answer "who is online" queries for a group.
//   - Remove users on disconnect and hand back the prior record so the
//     caller can announce the departure.
//
// Characteristics:
//   - Stores *User records keyed by connection id in a map.
//   - Concurrency-safe via RWMutex; operations are independent per
//     connection, so map-level locking is all that is needed.
//   - State is lost when the process restarts.

package presence

import (
	"errors"
	"sync"
)

// LobbyGroup is the broadcast group every registered user joins by default.
const LobbyGroup = "lobby"

// ErrInvalidName is returned when registration is attempted with an empty name.
var ErrInvalidName = errors.New("presence: name must not be empty")

// User is one registered connection.
// Wire field names match the realtime protocol.
type User struct {
	ID    string `json:"id"`   // connection id, primary key
	Name  string `json:"name"` // display name supplied at registration
	Group string `json:"room"` // broadcast group, LobbyGroup by default
}

// Registry maps connection ids to registered users.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by User.ID
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*User)}
}

// Register creates a user bound to the lobby group.
// Returns ErrInvalidName for an empty name; the registry is untouched
// in that case.
func (r *Registry) Register(connID, name string) (*User, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	u := &User{ID: connID, Name: name, Group: LobbyGroup}
	r.mu.Lock()
	r.users[connID] = u
	r.mu.Unlock()
	return u, nil
}

// Lookup returns the user for a connection id, if registered.
func (r *Registry) Lookup(connID string) (*User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[connID]
	return u, ok
}

// ListGroup returns every user currently attached to the given group.
func (r *Registry) ListGroup(group string) []*User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*User{}
	for _, u := range r.users {
		if u.Group == group {
			out = append(out, u)
		}
	}
	return out
}

// Remove deletes the user for a connection id and returns the prior
// record so the caller can announce the departure.
func (r *Registry) Remove(connID string) (*User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[connID]
	if !ok {
		return nil, false
	}
	delete(r.users, connID)
	return u, true
}
