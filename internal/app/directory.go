package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairbooth/signaling/internal/domain"
)

// Directory maps normalized room codes to their coordinating units. It is
// the only writer of that map: units are created lazily on first resolve and
// reaped when their last session disconnects.
type Directory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]*Room

	startLead time.Duration
	clock     func() time.Time
}

func NewDirectory(startLead time.Duration) *Directory {
	return &Directory{
		rooms:     make(map[domain.RoomCode]*Room),
		startLead: startLead,
		clock:     time.Now,
	}
}

// Resolve returns the singleton unit for a normalized code, creating it if
// needed. Two simultaneous first-joins to a brand-new code get the same unit.
func (d *Directory) Resolve(code domain.RoomCode) *Room {
	d.mu.RLock()
	room, ok := d.rooms[code]
	d.mu.RUnlock()
	if ok {
		return room
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if room, ok = d.rooms[code]; ok {
		return room
	}
	room = newRoom(code, d)
	d.rooms[code] = room
	log.Info().Str("module", "app.directory").Str("room", string(code)).Msg("room created")
	return room
}

// Count reports the number of live rooms.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// remove deletes a unit, but only if it is still the one registered for the
// code: a fresh room may already have taken the slot.
func (d *Directory) remove(code domain.RoomCode, room *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, ok := d.rooms[code]; ok && current == room {
		delete(d.rooms, code)
		log.Info().Str("module", "app.directory").Str("room", string(code)).Msg("room removed")
	}
}
