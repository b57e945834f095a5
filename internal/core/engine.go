// Package core holds the room state machine and the protocol vocabulary.
// Nothing in here touches a socket.
package core

import "github.com/pairbooth/signaling/internal/domain"

// Engine is the pure state machine of one room: who is in it, whether a
// capture session is running, and which layout is staged.
//
// Every operation is total: it returns a bool instead of failing, and the
// caller decides what (if anything) to broadcast. The engine is not safe for
// concurrent use; the owning room serializes access to it.
type Engine struct {
	order        []SessionID
	participants map[SessionID]domain.Participant
	state        domain.RoomState
	layout       domain.Layout
}

func NewEngine() *Engine {
	return &Engine{
		participants: make(map[SessionID]domain.Participant),
		state:        domain.StateIdle,
	}
}

// Join inserts or overwrites the participant record for sid. Rejoining with
// the same sid updates the display name, not the count. Capacity is the
// caller's concern and is checked before the engine is ever touched.
func (e *Engine) Join(sid SessionID, displayName string) bool {
	if _, ok := e.participants[sid]; !ok {
		e.order = append(e.order, sid)
	}
	e.participants[sid] = domain.Participant{ID: string(sid), DisplayName: displayName}
	return true
}

// Leave removes the participant unconditionally. Dropping below two
// participants invalidates any in-flight session: a capture must not
// continue once the peer is gone.
func (e *Engine) Leave(sid SessionID) {
	if _, ok := e.participants[sid]; ok {
		delete(e.participants, sid)
		for i, id := range e.order {
			if id == sid {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
	if len(e.participants) < domain.MaxParticipants {
		e.state = domain.StateIdle
		e.layout = ""
	}
}

// StartSession transitions IDLE -> SESSION and stores the layout. A second
// start observes the flipped state and is rejected, which is the sole guard
// against racing start requests.
func (e *Engine) StartSession(layout domain.Layout) bool {
	if e.state != domain.StateIdle {
		return false
	}
	e.state = domain.StateSession
	e.layout = layout
	return true
}

// UpdateLayout stages a layout choice. Choices after a session has started
// are rejected; the caller simply skips the broadcast.
func (e *Engine) UpdateLayout(layout domain.Layout) bool {
	if e.state != domain.StateIdle {
		return false
	}
	e.layout = layout
	return true
}

// ResetSession returns the room to IDLE and clears the layout. Always succeeds.
func (e *Engine) ResetSession() bool {
	e.state = domain.StateIdle
	e.layout = ""
	return true
}

func (e *Engine) ParticipantCount() int { return len(e.participants) }

func (e *Engine) HasParticipant(sid SessionID) bool {
	_, ok := e.participants[sid]
	return ok
}

func (e *Engine) State() domain.RoomState { return e.state }

func (e *Engine) Layout() domain.Layout { return e.layout }

// Snapshot is a read-only projection for broadcast payloads. Participants
// come back in join order, stable across snapshots while membership is
// unchanged.
func (e *Engine) Snapshot() RoomSnapshot {
	out := make([]domain.Participant, 0, len(e.order))
	for _, sid := range e.order {
		out = append(out, e.participants[sid])
	}
	return RoomSnapshot{
		Participants: out,
		State:        e.state,
		Layout:       e.layout,
	}
}

// RoomSnapshot is the engine's read-only view (no transport fields).
type RoomSnapshot struct {
	Participants []domain.Participant `json:"participants"`
	State        domain.RoomState     `json:"state"`
	Layout       domain.Layout        `json:"layout,omitempty"`
}
