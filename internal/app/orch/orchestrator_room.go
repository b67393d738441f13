package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

// Join moves the session into room under username. A session already in a
// different room leaves it first; re-joining the current room only updates
// the display name. Everyone in the room, joiner included, receives
// user_joined with the post-join member count.
func (o *Orchestrator) Join(sid core.SessionID, room domain.RoomID, username string) error {
	name, err := domain.NormalizeUsername(username)
	if err != nil {
		return err
	}
	if room == "" {
		return domain.ErrRoomIDEmpty
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.Registry.Get(sid)
	if err != nil {
		return err
	}
	if sess.InRoom() && sess.Room != room {
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(sess.Room)).Msg("switching rooms")
		o.leaveLocked(sess)
	}

	if err := o.Registry.SetDisplayName(sid, name); err != nil {
		return err
	}
	if err := o.Registry.SetRoom(sid, room); err != nil {
		return err
	}
	count := o.Rooms.Join(room, sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(room)).Int("room_users", count).Msg("added to room")

	o.broadcastLocked(room, "", app.EventUserJoined, app.UserPresence{
		Username:  name,
		UserID:    sid,
		RoomUsers: count,
	})
	return nil
}

// Leave removes the session from room. It is a no-op when room is not the
// session's current room.
func (o *Orchestrator) Leave(sid core.SessionID, room domain.RoomID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.Registry.Get(sid)
	if err != nil {
		return err
	}
	if !sess.InRoom() || sess.Room != room {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(room)).Msg("leave for a room the session is not in")
		return nil
	}
	o.leaveLocked(sess)
	return nil
}

// leaveLocked removes sess from its room and tells the remaining members.
func (o *Orchestrator) leaveLocked(sess core.Session) {
	remaining := o.Rooms.Leave(sess.Room, sess.ID)
	if err := o.Registry.SetRoom(sess.ID, ""); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sess.ID)).Msg("clear room")
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sess.ID)).Str("room", string(sess.Room)).Int("room_users", remaining).Msg("removed from room")

	o.broadcastLocked(sess.Room, sess.ID, app.EventUserLeft, app.UserPresence{
		Username:  sess.DisplayName,
		UserID:    sess.ID,
		RoomUsers: remaining,
	})
}
