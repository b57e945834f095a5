package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

// Participant is a joined member of a room. The ID equals the transport
// session id assigned at connection accept time.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id, displayName string) (Participant, error) {
	if err := ValidateDisplayName(displayName); err != nil {
		return Participant{}, err
	}
	return Participant{ID: id, DisplayName: displayName}, nil
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
