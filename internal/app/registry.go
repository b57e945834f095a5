// Package app wires the room engine to live transport sessions and owns the
// room directory. All state here is per-process; nothing is persisted.
package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pairbooth/signaling/internal/core"
)

type sessionEntry struct {
	conn core.SignalConnection
	// displayName stays empty until a join succeeds. An entry without a name
	// holds a connection but does not count toward room capacity.
	displayName string
}

// Registry tracks the live connections of one room and their association
// with participant identity. A session exists here from connection accept,
// before (and whether or not) it ever joins.
type Registry struct {
	mu      sync.RWMutex
	entries map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.SessionID]*sessionEntry)}
}

// Register adds a connection with no identity yet. Called at accept time,
// before any application message is processed.
func (r *Registry) Register(sid core.SessionID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sid] = &sessionEntry{conn: conn}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("session registered")
}

// AttachIdentity sets the display name after a successful join decision.
func (r *Registry) AttachIdentity(sid core.SessionID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return false
	}
	e.displayName = displayName
	return true
}

// Unregister removes the entry and releases its channel. Idempotent:
// connection close and explicit leave can race and both must be safe.
func (r *Registry) Unregister(sid core.SessionID) bool {
	r.mu.Lock()
	e, ok := r.entries[sid]
	if ok {
		delete(r.entries, sid)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.conn.Close()
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("session unregistered")
	return true
}

func (r *Registry) Has(sid core.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[sid]
	return ok
}

// Size is the raw number of live connections, joined or not.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ActiveCount counts sessions that completed a join. This is the number
// compared against the capacity limit; a not-yet-joined connection must not
// block a legitimate participant.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.displayName != "" {
			n++
		}
	}
	return n
}

// Send delivers a frame to one session, best effort. A closed or slow
// channel drops the frame; the sender is never told.
func (r *Registry) Send(sid core.SessionID, f core.Frame) {
	r.mu.RLock()
	e, ok := r.entries[sid]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := e.conn.TrySend(f); err != nil {
		log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Err(err).Msg("send dropped")
	}
}

// Broadcast delivers to every registered session. One dead recipient must
// not prevent delivery to the others.
func (r *Registry) Broadcast(f core.Frame) {
	for _, sid := range r.sessionIDs() {
		r.Send(sid, f)
	}
}

// BroadcastExcept delivers to every registered session but one.
func (r *Registry) BroadcastExcept(exclude core.SessionID, f core.Frame) {
	for _, sid := range r.sessionIDs() {
		if sid != exclude {
			r.Send(sid, f)
		}
	}
}

func (r *Registry) sessionIDs() []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0, len(r.entries))
	for sid := range r.entries {
		out = append(out, sid)
	}
	return out
}
