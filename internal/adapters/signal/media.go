package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/VideoChat/internal/core"
)

func (ctl *SignalWSController) handleVideoFrame(ctx context.Context, sid core.SessionID, data json.RawMessage) error {
	var p framePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnFrame(ctx, sid, p.Frame)
}

func (ctl *SignalWSController) handleToggleFeature(sid core.SessionID, data json.RawMessage) error {
	var p togglePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	return ctl.Orch.ToggleFeature(sid, p.Feature, *p.Enabled)
}
