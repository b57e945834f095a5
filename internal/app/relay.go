package app

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/pairbooth/signaling/internal/core"
)

var validate = validator.New()

// relayTargeted forwards a signaling envelope to the session named in the
// payload's "to" field, stamped with the sender's id and with "to" stripped.
// When the target is unknown or already gone, it falls back to broadcasting
// to every other session: a brief race between peer disconnect and in-flight
// signaling is expected and must not hard-fail the negotiation. Fire and
// forget either way.
func (r *Room) relayTargeted(sid core.SessionID, eventType string, payload json.RawMessage) {
	body, ok := decodeObject(payload)
	if !ok {
		log.Warn().Str("module", "app.relay").Str("room", string(r.code)).Str("type", eventType).Msg("bad signaling payload")
		return
	}
	target, _ := body["to"].(string)
	delete(body, "to")
	body["from"] = string(sid)

	f, err := core.Encode(eventType, body)
	if err != nil {
		log.Error().Str("module", "app.relay").Str("type", eventType).Err(err).Msg("encode failed")
		return
	}
	if target != "" && r.reg.Has(core.SessionID(target)) {
		log.Debug().Str("module", "app.relay").Str("room", string(r.code)).Str("type", eventType).Str("from", string(sid)).Str("to", target).Msg("relaying")
		r.reg.Send(core.SessionID(target), f)
		return
	}
	r.reg.BroadcastExcept(sid, f)
}

// relayFrom re-tags an inbound data envelope with the outbound event type,
// stamps the sender, and fans it out to every other session.
func (r *Room) relayFrom(sid core.SessionID, outType string, payload json.RawMessage) {
	body, ok := decodeObject(payload)
	if !ok {
		log.Warn().Str("module", "app.relay").Str("room", string(r.code)).Str("type", outType).Msg("bad relay payload")
		return
	}
	body["from"] = string(sid)

	f, err := core.Encode(outType, body)
	if err != nil {
		log.Error().Str("module", "app.relay").Str("type", outType).Err(err).Msg("encode failed")
		return
	}
	r.reg.BroadcastExcept(sid, f)
}

// handleLocation relays a location update to the sender's peers. Payloads
// missing numeric coordinates are dropped without a word to anyone.
func (r *Room) handleLocation(sid core.SessionID, payload json.RawMessage) {
	var loc core.LocationPayload
	if err := json.Unmarshal(payload, &loc); err != nil {
		log.Warn().Str("module", "app.relay").Str("room", string(r.code)).Err(err).Msg("bad location payload")
		return
	}
	if err := validate.Struct(loc); err != nil {
		log.Warn().Str("module", "app.relay").Str("room", string(r.code)).Err(err).Msg("location missing coordinates")
		return
	}
	r.relayFrom(sid, core.EventLocationUpdate, payload)
}

func decodeObject(payload json.RawMessage) (map[string]any, bool) {
	body := make(map[string]any)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, false
		}
	}
	return body, true
}
