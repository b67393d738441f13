package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

// ToggleFeature flips one annotation feature for the session and
// acknowledges to the sender only.
func (o *Orchestrator) ToggleFeature(sid core.SessionID, feature string, enabled bool) error {
	f, err := domain.ParseFeature(feature)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.Registry.SetFeatureFlag(sid, f, enabled); err != nil {
		return err
	}
	o.replyLocked(sid, app.EventFeatureToggled, app.FeatureToggled{
		Feature: f.String(),
		Enabled: enabled,
	})
	return nil
}

// OnFrame runs the sender's frame through the annotator and relays it to
// the other members of the sender's room. The lock is not held while the
// frame is processed. Any returned error means the frame was dropped.
func (o *Orchestrator) OnFrame(ctx context.Context, sid core.SessionID, dataURI string) error {
	o.mu.Lock()
	sess, err := o.Registry.Get(sid)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	if !sess.InRoom() {
		return nil
	}

	if o.AnnotateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.AnnotateTimeout)
		defer cancel()
	}
	res, err := o.Frames.Process(ctx, dataURI, sess.Features)
	if err != nil {
		return err
	}

	// The sender may have left or switched rooms while the frame was
	// being processed; relay against the current state.
	o.mu.Lock()
	cur, err := o.Registry.Get(sid)
	if err != nil || !cur.InRoom() {
		o.mu.Unlock()
		return nil
	}
	targets := o.targetsLocked(cur.Room, sid)
	o.mu.Unlock()

	// Video is best effort, so it is encoded and enqueued outside the lock.
	r := o.publish(app.EventVideoFrame, app.VideoFrame{
		Frame:    res.Frame,
		UserID:   sid,
		Username: cur.DisplayName,
	}, targets)
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Bool("annotated", res.Annotated).Int("sent_to", r.SendTo).Msg("frame relayed")
	return nil
}

// ScreenShare notifies the other room members that the sender started or
// stopped sharing its screen.
func (o *Orchestrator) ScreenShare(sid core.SessionID, started bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, err := o.Registry.Get(sid)
	if err != nil {
		return err
	}
	if !sess.InRoom() {
		return nil
	}
	event := app.EventScreenShareEnded
	if started {
		event = app.EventScreenShareStarted
	}
	o.broadcastLocked(sess.Room, sid, event, app.ScreenShare{
		UserID:   sid,
		Username: sess.DisplayName,
	})
	return nil
}
