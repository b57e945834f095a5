package core

import (
	"encoding/json"

	"github.com/pairbooth/signaling/internal/domain"
)

// Envelope wraps every application message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event vocabulary. Unknown types are dropped, never errored back.
const (
	EventRoomJoin   = "room:join"
	EventRoomJoined = "room:joined"
	EventRoomReady  = "room:ready"
	EventRoomError  = "room:error"
	EventRoomLeave  = "room:leave"

	EventSessionStart  = "session:start"
	EventSessionLayout = "session:layout"
	EventSessionReset  = "session:reset"

	EventWebRTCOffer     = "webrtc:offer"
	EventWebRTCAnswer    = "webrtc:answer"
	EventWebRTCCandidate = "webrtc:candidate"

	EventPhotoSend             = "photo:send"
	EventPhotoReceive          = "photo:receive"
	EventPhotoMeta             = "photo:meta"
	EventPhotoTransferComplete = "photo:transfer-complete"
	EventPhotoTransferred      = "photo:transferred"

	EventLocationUpdate = "location:update"
)

// JoinPayload is the body of room:join. Code is redundant with the
// connection route but kept for API symmetry.
type JoinPayload struct {
	Code        string `json:"code,omitempty"`
	DisplayName string `json:"displayName"`
}

// ParticipantsPayload is the body of room:joined.
type ParticipantsPayload struct {
	Participants []domain.Participant `json:"participants"`
}

type ReadyPayload struct {
	Ready bool `json:"ready"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// StartPayload is the body of session:start in both directions. Inbound only
// Layout is set; outbound StartTime anchors the synchronized countdown.
type StartPayload struct {
	StartTime int64         `json:"startTime,omitempty"`
	Layout    domain.Layout `json:"layout,omitempty"`
}

// LocationPayload is the body of location:update. Lat and Lng are pointers so
// that missing or non-numeric coordinates fail decoding or validation instead
// of defaulting to zero.
type LocationPayload struct {
	Lat      *float64 `json:"lat" validate:"required"`
	Lng      *float64 `json:"lng" validate:"required"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	City     string   `json:"city,omitempty"`
	Country  string   `json:"country,omitempty"`
}

// Encode marshals an envelope with the given payload into a wire frame.
func Encode(eventType string, payload any) (Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: body})
}
