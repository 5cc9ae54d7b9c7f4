package gridws

import (
	"sync"
)

// Registry owns the set of currently open connections. All membership
// changes go through Register/Unregister; broadcast observes members only
// through ForEach. Guarded by a mutex since register, unregister, and
// send-failure removal arrive from different goroutines.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register adds a connection to the live set. Registering the same identity
// twice is a no-op.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.id]; ok {
		return
	}
	r.conns[c.id] = c
}

// Unregister removes a connection from the live set. Safe to call for a
// connection that was never registered or is already gone.
func (r *Registry) Unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.id)
}

// ForEach visits a snapshot of the currently registered connections. The
// visit callback runs outside the registry lock, so it may itself call
// Unregister; connections that close mid-enumeration fail their own send
// without disturbing the rest.
func (r *Registry) ForEach(visit func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		visit(c)
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
