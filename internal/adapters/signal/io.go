package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Settings.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump set deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Settings.WriteTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump processes this connection's events one at a time, in arrival
// order. When it returns the session is torn down.
func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		if ctl.Chat != nil {
			ctl.Chat.Forget(sid)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Settings.ReadLimit)
	pongWait := ctl.Settings.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logReadError(sid, err)
			return
		}
		ctl.Dispatch(ctx, sid, data)
	}
}

func logReadError(sid core.SessionID, err error) {
	ev := log.Warn()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		ev = log.Debug()
	}
	ev.Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
}

// Dispatch routes one inbound message. Errors are contained here: they are
// logged and never reported back over the wire.
func (ctl *SignalWSController) Dispatch(ctx context.Context, sid core.SessionID, data []byte) {
	env, err := decodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return
	}

	switch env.Type {
	case app.EventJoinRoom:
		err = ctl.handleJoin(sid, env.Data)
	case app.EventLeaveRoom:
		err = ctl.handleLeave(sid, env.Data)
	case app.EventVideoFrame:
		err = ctl.handleVideoFrame(ctx, sid, env.Data)
	case app.EventScreenShareStarted:
		err = ctl.Orch.ScreenShare(sid, true)
	case app.EventScreenShareEnded:
		err = ctl.Orch.ScreenShare(sid, false)
	case app.EventToggleFeature:
		err = ctl.handleToggleFeature(sid, env.Data)
	case app.EventChatMessage:
		err = ctl.handleChat(sid, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("unknown signal")
		return
	}
	if err != nil {
		logEventError(sid, env.Type, err)
	}
}

func logEventError(sid core.SessionID, event string, err error) {
	ev := log.Warn()
	switch {
	case errors.Is(err, core.ErrUnknownSession):
		ev = log.Debug()
	case errors.Is(err, core.ErrFrameDecode), errors.Is(err, core.ErrAnnotation), errors.Is(err, core.ErrFrameEncode):
		ev = log.Info()
	}
	ev.Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", event).Msg("event dropped")
}
