// Package orch implements the event router's state transitions. Every
// compound operation over the session registry and the room directory runs
// under a single mutex so no reader ever sees a session that names a room
// which does not list it, or the reverse.
package orch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/app/vision"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

// FrameProcessor turns an inbound frame into the frame to relay.
type FrameProcessor interface {
	Process(ctx context.Context, dataURI string, features domain.FeatureSet) (vision.Result, error)
}

type Orchestrator struct {
	mu       sync.Mutex
	Registry *app.Registry
	Rooms    *app.RoomDirectory
	Relay    *app.Relay
	Frames   FrameProcessor

	// AnnotateTimeout bounds a single frame's processing; zero disables it.
	AnnotateTimeout time.Duration
	Now             func() time.Time
}

func New(frames FrameProcessor, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomDirectory(),
		Relay:    app.NewRelay(policy),
		Frames:   frames,
		Now:      time.Now,
	}
}

// Connect registers a new session. On ErrDuplicateSession the caller must
// drop the connection.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Registry.Create(sid, conn, cancel)
}

// Disconnect tears the session down exactly like an explicit leave followed
// by removal. Unknown ids are ignored.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, err := o.Registry.Get(sid)
	if err != nil {
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Msg("disconnect for unknown session")
		return
	}
	if sess.InRoom() {
		o.leaveLocked(sess)
	}
	o.Registry.Remove(sid)
}

// Session returns a snapshot of one session.
func (o *Orchestrator) Session(sid core.SessionID) (core.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Registry.Get(sid)
}

// RoomList lists every room with its member count.
func (o *Orchestrator) RoomList() []core.RoomInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Rooms.List()
}

func (o *Orchestrator) SessionCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Registry.Len()
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// targetsLocked resolves the room members, minus exclude, to connections.
func (o *Orchestrator) targetsLocked(room domain.RoomID, exclude core.SessionID) []app.Target {
	members := lo.Filter(o.Rooms.Members(room), func(sid core.SessionID, _ int) bool {
		return sid != exclude
	})
	return lo.FilterMap(members, func(sid core.SessionID, _ int) (app.Target, bool) {
		conn, ok := o.Registry.Conn(sid)
		return app.Target{SID: sid, Conn: conn}, ok
	})
}

// publish encodes data once and relays it to targets.
func (o *Orchestrator) publish(event string, data any, targets []app.Target) app.PublishResult {
	if len(targets) == 0 {
		return app.PublishResult{}
	}
	frame, err := app.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("event", event).Msg("encode failed")
		return app.PublishResult{}
	}
	return o.Relay.Publish(event, frame, targets)
}

// broadcastLocked sends to every member of room except exclude (pass "" to
// include everyone). Enqueueing happens under the lock so each recipient
// observes events in the order the state changed.
func (o *Orchestrator) broadcastLocked(room domain.RoomID, exclude core.SessionID, event string, data any) app.PublishResult {
	return o.publish(event, data, o.targetsLocked(room, exclude))
}

func (o *Orchestrator) replyLocked(sid core.SessionID, event string, data any) {
	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}
	o.publish(event, data, []app.Target{{SID: sid, Conn: conn}})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
