package orch

import (
	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/core"
)

// Chat stamps the message at receipt and relays it to the whole room,
// sender included. Sessions outside any room are ignored.
func (o *Orchestrator) Chat(sid core.SessionID, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.Registry.Get(sid)
	if err != nil {
		return err
	}
	if !sess.InRoom() {
		return nil
	}
	o.broadcastLocked(sess.Room, "", app.EventChatMessage, app.ChatMessage{
		Username:  sess.DisplayName,
		Message:   text,
		Timestamp: unixSeconds(o.now()),
	})
	return nil
}
