package hub

import "sync"

// Registry maps an authenticated user id to that user's live connections.
// Events addressed to a user go to every connection the user owns.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]map[string]*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[int64]map[string]*Conn),
	}
}

// Register adds a connection under its owning user. Idempotent per
// connection id.
func (r *Registry) Register(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.users[conn.UserID]
	if !ok {
		conns = make(map[string]*Conn)
		r.users[conn.UserID] = conns
	}
	conns[conn.ID] = conn
}

// Deregister removes the connection from the registry. The user entry is
// reclaimed when its last connection goes away.
func (r *Registry) Deregister(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.users[conn.UserID]
	if !ok {
		return
	}
	delete(conns, conn.ID)
	if len(conns) == 0 {
		delete(r.users, conn.UserID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connections. An empty
// result makes delivery a no-op, not an error.
func (r *Registry) ConnectionsFor(userID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.users[userID]
	out := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// ConnectionCount reports how many live connections the user owns.
func (r *Registry) ConnectionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// allConns snapshots every registered connection, for shutdown.
func (r *Registry) allConns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Conn
	for _, conns := range r.users {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}
