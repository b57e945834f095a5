// Package domain contains entities without logic, just meta-data
// and the validation rules that keep them well formed.
package domain

import (
	"errors"
	"regexp"
	"strings"
)

const MaxParticipants = 2

type (
	RoomCode string
	Layout   string
)

// RoomState is the lifecycle of a paired capture session.
type RoomState string

const (
	StateIdle    RoomState = "IDLE"
	StateSession RoomState = "SESSION"
)

var (
	ErrInvalidRoomCode = errors.New("invalid room code")

	roomCodeRe = regexp.MustCompile(`^[a-zA-Z0-9]{1,20}$`)
)

// ParseRoomCode validates a raw room code and normalizes it to uppercase.
// The normalized code is the routing key: two clients sharing a code share a room.
func ParseRoomCode(raw string) (RoomCode, error) {
	if !roomCodeRe.MatchString(raw) {
		return "", ErrInvalidRoomCode
	}
	return RoomCode(strings.ToUpper(raw)), nil
}
