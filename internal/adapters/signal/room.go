package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

func (ctl *SignalWSController) handleJoin(sid core.SessionID, data json.RawMessage) error {
	var p joinPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	room, err := domain.NewRoomID(p.Room)
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Str("username", p.Username).Msg("join")
	return ctl.Orch.Join(sid, room, p.Username)
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, data json.RawMessage) error {
	var p leavePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("leave")
	return ctl.Orch.Leave(sid, domain.RoomID(p.Room))
}
