package app

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairbooth/signaling/internal/core"
	"github.com/pairbooth/signaling/internal/domain"
)

// Room is the coordinating unit for one room code: an engine, a session
// registry, and the relay logic stitching them together. It is the sole
// writer of its engine.
//
// All inbound envelopes for a room are processed strictly one at a time
// under mu. That serialization is what makes the capacity check and the
// session-start guard race free.
type Room struct {
	code domain.RoomCode
	dir  *Directory

	mu     sync.Mutex
	engine *core.Engine
	reg    *Registry
	closed bool

	startLead time.Duration
	clock     func() time.Time
}

func newRoom(code domain.RoomCode, dir *Directory) *Room {
	return &Room{
		code:      code,
		dir:       dir,
		engine:    core.NewEngine(),
		reg:       NewRegistry(),
		startLead: dir.startLead,
		clock:     dir.clock,
	}
}

func (r *Room) Code() domain.RoomCode { return r.code }

// Connect registers a fresh connection. It reports false when the room was
// already torn down, in which case the caller must re-resolve the code.
func (r *Room) Connect(sid core.SessionID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.reg.Register(sid, conn)
	return true
}

// Disconnect handles transport close or error. Always safe to call more
// than once for the same session.
func (r *Room) Disconnect(sid core.SessionID) {
	r.mu.Lock()
	r.dropSession(sid)
	r.teardownLocked()
	r.mu.Unlock()
	r.reapIfClosed()
}

// HandleEnvelope dispatches one inbound message. Unknown types are dropped
// with a log line only.
func (r *Room) HandleEnvelope(sid core.SessionID, env core.Envelope) {
	r.mu.Lock()
	switch env.Type {
	case core.EventRoomJoin:
		r.handleJoin(sid, env.Payload)
	case core.EventRoomLeave:
		r.handleLeave(sid)
	case core.EventSessionStart:
		r.handleSessionStart(env.Payload)
	case core.EventSessionLayout:
		r.handleSessionLayout(env.Payload)
	case core.EventSessionReset:
		r.handleSessionReset()
	case core.EventWebRTCOffer, core.EventWebRTCAnswer, core.EventWebRTCCandidate:
		r.relayTargeted(sid, env.Type, env.Payload)
	case core.EventPhotoSend:
		r.relayFrom(sid, core.EventPhotoReceive, env.Payload)
	case core.EventPhotoMeta:
		r.relayFrom(sid, core.EventPhotoMeta, env.Payload)
	case core.EventPhotoTransferComplete:
		r.relayFrom(sid, core.EventPhotoTransferred, env.Payload)
	case core.EventLocationUpdate:
		r.handleLocation(sid, env.Payload)
	default:
		log.Warn().Str("module", "app.room").Str("room", string(r.code)).Str("type", env.Type).Msg("unknown event type")
	}
	r.mu.Unlock()
	r.reapIfClosed()
}

func (r *Room) handleJoin(sid core.SessionID, payload json.RawMessage) {
	var p core.JoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Warn().Str("module", "app.room").Str("room", string(r.code)).Err(err).Msg("bad join payload")
		return
	}
	if err := domain.ValidateDisplayName(p.DisplayName); err != nil {
		log.Warn().Str("module", "app.room").Str("room", string(r.code)).Str("sid", string(sid)).Err(err).Msg("join dropped")
		return
	}

	// Validate before mutating: a full room never sees the attempt at all.
	rejoin := r.engine.HasParticipant(sid)
	if !rejoin && r.reg.ActiveCount() >= domain.MaxParticipants {
		r.send(sid, core.EventRoomError, core.ErrorPayload{Message: "Room is full (max 2 participants)"})
		log.Info().Str("module", "app.room").Str("room", string(r.code)).Str("sid", string(sid)).Msg("join rejected, room full")
		return
	}

	r.reg.AttachIdentity(sid, p.DisplayName)
	r.engine.Join(sid, p.DisplayName)
	log.Info().Str("module", "app.room").Str("room", string(r.code)).Str("sid", string(sid)).Str("name", p.DisplayName).Msg("joined")

	r.broadcastParticipants()
	if r.engine.ParticipantCount() >= domain.MaxParticipants {
		log.Info().Str("module", "app.room").Str("room", string(r.code)).Msg("room ready")
		r.broadcast(core.EventRoomReady, core.ReadyPayload{Ready: true})
	}
}

// handleLeave is the explicit variant of Disconnect: the remaining peer also
// gets a session:reset so its UI returns to the waiting screen.
func (r *Room) handleLeave(sid core.SessionID) {
	r.dropSession(sid)
	r.broadcast(core.EventSessionReset, struct{}{})
	r.teardownLocked()
}

func (r *Room) handleSessionStart(payload json.RawMessage) {
	var p core.StartPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Warn().Str("module", "app.room").Str("room", string(r.code)).Err(err).Msg("bad start payload")
			return
		}
	}
	if !r.engine.StartSession(p.Layout) {
		// Expected race (double click, duplicate retry), not a client bug.
		log.Debug().Str("module", "app.room").Str("room", string(r.code)).Msg("start ignored, session already running")
		return
	}
	log.Info().Str("module", "app.room").Str("room", string(r.code)).Str("layout", string(p.Layout)).Msg("session started")
	r.broadcast(core.EventSessionStart, core.StartPayload{
		StartTime: r.clock().Add(r.startLead).UnixMilli(),
		Layout:    p.Layout,
	})
}

func (r *Room) handleSessionLayout(payload json.RawMessage) {
	// Clients send either a bare token or {"layout": token}.
	var token string
	if err := json.Unmarshal(payload, &token); err != nil {
		var obj struct {
			Layout string `json:"layout"`
		}
		if err := json.Unmarshal(payload, &obj); err != nil {
			log.Warn().Str("module", "app.room").Str("room", string(r.code)).Msg("bad layout payload")
			return
		}
		token = obj.Layout
	}
	if !r.engine.UpdateLayout(domain.Layout(token)) {
		log.Debug().Str("module", "app.room").Str("room", string(r.code)).Msg("layout ignored, session already running")
		return
	}
	log.Info().Str("module", "app.room").Str("room", string(r.code)).Str("layout", token).Msg("layout updated")
	r.broadcast(core.EventSessionLayout, token)
}

func (r *Room) handleSessionReset() {
	r.engine.ResetSession()
	log.Info().Str("module", "app.room").Str("room", string(r.code)).Msg("session reset")
	r.broadcast(core.EventSessionReset, struct{}{})
}

// dropSession removes a session from registry and engine and tells the
// remaining peers about the shrunken participant list. Caller holds mu.
func (r *Room) dropSession(sid core.SessionID) {
	if !r.reg.Unregister(sid) {
		return
	}
	r.engine.Leave(sid)
	log.Info().Str("module", "app.room").Str("room", string(r.code)).Str("sid", string(sid)).Msg("session left")
	if r.reg.Size() > 0 {
		r.broadcastParticipants()
	}
}

// teardownLocked marks the room closed once the last session is gone.
// Caller holds mu; the directory entry is reaped after unlock.
func (r *Room) teardownLocked() {
	if !r.closed && r.reg.Size() == 0 {
		r.closed = true
	}
}

func (r *Room) reapIfClosed() {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		r.dir.remove(r.code, r)
	}
}

func (r *Room) broadcastParticipants() {
	snap := r.engine.Snapshot()
	r.broadcast(core.EventRoomJoined, core.ParticipantsPayload{Participants: snap.Participants})
}

func (r *Room) send(sid core.SessionID, eventType string, payload any) {
	f, err := core.Encode(eventType, payload)
	if err != nil {
		log.Error().Str("module", "app.room").Str("type", eventType).Err(err).Msg("encode failed")
		return
	}
	r.reg.Send(sid, f)
}

func (r *Room) broadcast(eventType string, payload any) {
	f, err := core.Encode(eventType, payload)
	if err != nil {
		log.Error().Str("module", "app.room").Str("type", eventType).Err(err).Msg("encode failed")
		return
	}
	r.reg.Broadcast(f)
}
