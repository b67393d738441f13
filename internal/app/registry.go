package app

import (
	"context"
	"fmt"

	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session core.Session
	Conn    core.SignalConnection
	Cancel  context.CancelFunc
}

// Registry owns per-connection state. It is not safe for concurrent use:
// the orchestrator serialises every call together with the room directory.
type Registry struct {
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Create registers a session with default state bound to its transport endpoint.
func (r *Registry) Create(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) error {
	if _, ok := r.sessions[sid]; ok {
		return fmt.Errorf("create %s: %w", sid, core.ErrDuplicateSession)
	}
	r.sessions[sid] = &sessionEntry{
		Session: core.Session{ID: sid},
		Conn:    conn,
		Cancel:  cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created session")
	return nil
}

// Get returns a copy; mutating it has no effect on the registry.
func (r *Registry) Get(sid core.SessionID) (core.Session, error) {
	e, ok := r.sessions[sid]
	if !ok {
		return core.Session{}, fmt.Errorf("get %s: %w", sid, core.ErrUnknownSession)
	}
	return e.Session, nil
}

func (r *Registry) Conn(sid core.SessionID) (core.SignalConnection, bool) {
	e, ok := r.sessions[sid]
	if !ok || e.Conn == nil {
		return nil, false
	}
	return e.Conn, true
}

func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) error {
	e, ok := r.sessions[sid]
	if !ok {
		return fmt.Errorf("set room %s: %w", sid, core.ErrUnknownSession)
	}
	e.Session.Room = room
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return nil
}

func (r *Registry) SetDisplayName(sid core.SessionID, name string) error {
	e, ok := r.sessions[sid]
	if !ok {
		return fmt.Errorf("set display name %s: %w", sid, core.ErrUnknownSession)
	}
	e.Session.DisplayName = name
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("username", name).Msg("updated username")
	return nil
}

func (r *Registry) SetFeatureFlag(sid core.SessionID, f domain.Feature, enabled bool) error {
	if !f.Valid() {
		return fmt.Errorf("set feature %s: %w", f, domain.ErrUnknownFeature)
	}
	e, ok := r.sessions[sid]
	if !ok {
		return fmt.Errorf("set feature %s: %w", sid, core.ErrUnknownSession)
	}
	e.Session.Features = e.Session.Features.With(f, enabled)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("feature", f.String()).Bool("enabled", enabled).Msg("updated feature")
	return nil
}

// Remove deletes the session. Room membership must already be reconciled.
func (r *Registry) Remove(sid core.SessionID) {
	e, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(r.sessions, sid)
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed session")
}

func (r *Registry) Len() int { return len(r.sessions) }

// Snapshot copies every live session.
func (r *Registry) Snapshot() []core.Session {
	out := make([]core.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.Session)
	}
	return out
}
