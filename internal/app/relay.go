package app

import (
	"errors"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/rs/zerolog/log"
)

// Target is one recipient of a relayed event.
type Target struct {
	SID  core.SessionID
	Conn core.SignalConnection
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []core.SessionID
	Kicked  []core.SessionID
}

// Relay fans an encoded event out to its targets without blocking.
// Failed deliveries are never retried.
type Relay struct {
	Policy Policy
}

func NewRelay(policy Policy) *Relay {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Relay{Policy: policy}
}

func (r *Relay) Publish(event string, frame core.Frame, targets []Target) PublishResult {
	res := PublishResult{}
	for _, t := range targets {
		err := t.Conn.TrySend(frame)
		if err == nil {
			res.SendTo++
			continue
		}
		if errors.Is(err, core.ErrConnClosed) {
			res.Dropped = append(res.Dropped, t.SID)
			continue
		}
		switch r.Policy.OnBackPressure(event, t.SID) {
		case KickMember:
			log.Warn().Err(err).Str("module", "app.relay").Str("event", event).Str("sid", string(t.SID)).Msg("slow member kicked")
			t.Conn.Close()
			res.Kicked = append(res.Kicked, t.SID)
		case DropFrame, NoAction:
			res.Dropped = append(res.Dropped, t.SID)
		}
	}
	log.Debug().Str("module", "app.relay").Str("event", event).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Int("kicked", len(res.Kicked)).Msg("broadcast result")
	return res
}
