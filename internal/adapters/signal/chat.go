package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/VideoChat/internal/core"
)

var errChatRateLimited = errors.New("chat rate limited")

func (ctl *SignalWSController) handleChat(sid core.SessionID, data json.RawMessage) error {
	var p chatPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if limit := ctl.Settings.MaxChatLength; limit > 0 {
		if err := validate.Var(p.Message, fmt.Sprintf("max=%d", limit)); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}
	if ctl.Chat != nil && !ctl.Chat.Allow(sid) {
		return errChatRateLimited
	}
	return ctl.Orch.Chat(sid, p.Message)
}
