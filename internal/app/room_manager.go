package app

import (
	"sort"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type memberSet map[core.SessionID]struct{}

// RoomDirectory maps rooms to their members. A room exists only while it
// has at least one member. Like Registry it relies on the caller for locking.
type RoomDirectory struct {
	rooms map[domain.RoomID]memberSet
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{rooms: make(map[domain.RoomID]memberSet)}
}

// Join adds sid to room, creating the room on first use, and returns the
// resulting member count.
func (d *RoomDirectory) Join(room domain.RoomID, sid core.SessionID) int {
	members, ok := d.rooms[room]
	if !ok {
		members = make(memberSet)
		d.rooms[room] = members
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room created")
	}
	members[sid] = struct{}{}
	return len(members)
}

// Leave removes sid from room and returns the remaining member count.
// Unknown rooms and non-members are ignored.
func (d *RoomDirectory) Leave(room domain.RoomID, sid core.SessionID) int {
	members, ok := d.rooms[room]
	if !ok {
		return 0
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(d.rooms, room)
		log.Info().Str("module", "app.rooms").Str("room", string(room)).Msg("room removed")
		return 0
	}
	return len(members)
}

func (d *RoomDirectory) MemberCount(room domain.RoomID) int {
	return len(d.rooms[room])
}

func (d *RoomDirectory) Contains(room domain.RoomID, sid core.SessionID) bool {
	_, ok := d.rooms[room][sid]
	return ok
}

// Members returns a copy of the member ids of room.
func (d *RoomDirectory) Members(room domain.RoomID) []core.SessionID {
	return lo.Keys(d.rooms[room])
}

// List returns a point-in-time snapshot ordered by room id.
func (d *RoomDirectory) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(d.rooms))
	for id, members := range d.rooms {
		out = append(out, core.RoomInfo{ID: id, Users: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
