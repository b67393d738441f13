package orch

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/app/vision"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
)

// recordingConn collects every frame it is handed.
type recordingConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (c *recordingConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingConn) events(t *testing.T, event string) []json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, f := range c.frames {
		var env app.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		if env.Type == event {
			out = append(out, env.Data)
		}
	}
	return out
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func newTestOrchestrator(a core.FrameAnnotator) *Orchestrator {
	if a == nil {
		a = vision.Overlay{}
	}
	return New(vision.NewPipeline(a, 0), app.SimplePolicy{})
}

func connect(t *testing.T, o *Orchestrator, sid core.SessionID) *recordingConn {
	t.Helper()
	conn := &recordingConn{}
	require.NoError(t, o.Connect(sid, conn, nil))
	return conn
}

func pngFrame(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(3, 3, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// requireConsistent checks that session rooms and room members agree.
func requireConsistent(t *testing.T, o *Orchestrator) {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, s := range o.Registry.Snapshot() {
		if s.InRoom() {
			require.True(t, o.Rooms.Contains(s.Room, s.ID), "session %s claims room %s", s.ID, s.Room)
		}
	}
	for _, info := range o.Rooms.List() {
		require.Positive(t, info.Users, "empty room %s listed", info.ID)
		for _, sid := range o.Rooms.Members(info.ID) {
			s, err := o.Registry.Get(sid)
			require.NoError(t, err, "room %s lists disconnected %s", info.ID, sid)
			require.Equal(t, info.ID, s.Room)
		}
	}
}

func features(fs ...domain.Feature) domain.FeatureSet {
	var s domain.FeatureSet
	for _, f := range fs {
		s = s.With(f, true)
	}
	return s
}
