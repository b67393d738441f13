package orch

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dkeye/VideoChat/internal/app"
	"github.com/dkeye/VideoChat/internal/core"
	"github.com/dkeye/VideoChat/internal/domain"
	"github.com/dkeye/VideoChat/internal/mocks"
)

func TestJoin_TwoUsersSeeRoomUsersTwo(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")

	// When alice then bob join r1
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	// Then alice saw both joins, with post-join counts
	seen := alice.events(t, app.EventUserJoined)
	req.Len(seen, 2)
	req.Equal(app.UserPresence{Username: "alice", UserID: "a", RoomUsers: 1}, decode[app.UserPresence](t, seen[0]))
	req.Equal(app.UserPresence{Username: "bob", UserID: "b", RoomUsers: 2}, decode[app.UserPresence](t, seen[1]))

	// And bob, the joiner, received his own join
	seen = bob.events(t, app.EventUserJoined)
	req.Len(seen, 1)
	req.Equal(2, decode[app.UserPresence](t, seen[0]).RoomUsers)

	// And the directory lists one room with two users
	req.Equal([]core.RoomInfo{{ID: "r1", Users: 2}}, o.RoomList())
	requireConsistent(t, o)
}

func TestJoin_RejectsInvalidInput(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	conn := connect(t, o, "a")

	req.ErrorIs(o.Join("a", "r1", "  "), domain.ErrUsernameEmpty)
	req.ErrorIs(o.Join("a", "", "alice"), domain.ErrRoomIDEmpty)
	req.ErrorIs(o.Join("ghost", "r1", "casper"), core.ErrUnknownSession)

	req.Empty(conn.events(t, app.EventUserJoined))
	req.Empty(o.RoomList())
}

func TestJoin_SwitchingRoomsLeavesThePreviousOne(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	// When bob moves to r2
	req.NoError(o.Join("b", "r2", "bob"))

	// Then alice is told bob left r1
	left := alice.events(t, app.EventUserLeft)
	req.Len(left, 1)
	req.Equal(app.UserPresence{Username: "bob", UserID: "b", RoomUsers: 1}, decode[app.UserPresence](t, left[0]))

	// And bob is alone in r2
	sess, err := o.Session("b")
	req.NoError(err)
	req.Equal(domain.RoomID("r2"), sess.Room)
	req.Equal([]core.RoomInfo{{ID: "r1", Users: 1}, {ID: "r2", Users: 1}}, o.RoomList())
	req.Len(bob.events(t, app.EventUserJoined), 2)
	requireConsistent(t, o)
}

func TestJoin_SameRoomTwiceKeepsOneMembership(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")

	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("a", "r1", "alicia"))

	joins := alice.events(t, app.EventUserJoined)
	req.Len(joins, 2)
	req.Equal(app.UserPresence{Username: "alicia", UserID: "a", RoomUsers: 1}, decode[app.UserPresence](t, joins[1]))
	req.Empty(alice.events(t, app.EventUserLeft))
	req.Equal([]core.RoomInfo{{ID: "r1", Users: 1}}, o.RoomList())
}

func TestLeave_NotifiesRemainingMembers(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	carol := connect(t, o, "c")
	for sid, name := range map[core.SessionID]string{"a": "alice", "b": "bob", "c": "carol"} {
		req.NoError(o.Join(sid, "r1", name))
	}

	// When carol leaves
	req.NoError(o.Leave("c", "r1"))

	// Then the two remaining members see room_users drop by one
	for _, conn := range []*recordingConn{alice, bob} {
		left := conn.events(t, app.EventUserLeft)
		req.Len(left, 1)
		req.Equal(app.UserPresence{Username: "carol", UserID: "c", RoomUsers: 2}, decode[app.UserPresence](t, left[0]))
	}
	// And carol is not told about her own departure
	req.Empty(carol.events(t, app.EventUserLeft))

	sess, err := o.Session("c")
	req.NoError(err)
	req.False(sess.InRoom())
	requireConsistent(t, o)
}

func TestLeave_LastMemberRemovesRoom(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	connect(t, o, "a")
	req.NoError(o.Join("a", "r1", "alice"))

	req.NoError(o.Leave("a", "r1"))

	req.Empty(o.RoomList())
	req.Zero(o.Rooms.MemberCount("r1"))
	requireConsistent(t, o)
}

func TestLeave_OtherRoomIsIgnored(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	connect(t, o, "a")
	req.NoError(o.Join("a", "r1", "alice"))

	req.NoError(o.Leave("a", "r2"))
	req.NoError(o.Leave("a", ""))

	req.Equal([]core.RoomInfo{{ID: "r1", Users: 1}}, o.RoomList())
}

func TestDisconnect_BehavesLikeLeave(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	// When bob drops without leaving
	o.Disconnect("b")

	// Then alice sees the same user_left an explicit leave produces
	left := alice.events(t, app.EventUserLeft)
	req.Len(left, 1)
	req.Equal(app.UserPresence{Username: "bob", UserID: "b", RoomUsers: 1}, decode[app.UserPresence](t, left[0]))

	// And bob is gone from the registry
	_, err := o.Session("b")
	req.ErrorIs(err, core.ErrUnknownSession)

	// And a second disconnect and late events are harmless
	o.Disconnect("b")
	req.ErrorIs(o.Chat("b", "hello?"), core.ErrUnknownSession)
	req.ErrorIs(o.Leave("b", "r1"), core.ErrUnknownSession)
	req.ErrorIs(o.ScreenShare("b", true), core.ErrUnknownSession)
	req.ErrorIs(o.ToggleFeature("b", "face_detection", true), core.ErrUnknownSession)
	req.ErrorIs(o.OnFrame(context.Background(), "b", pngFrame(t)), core.ErrUnknownSession)

	o.Disconnect("a")
	req.Empty(o.RoomList())
	req.Zero(o.Registry.Len())
}

func TestDisconnect_CancelsSessionContext(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(o.Connect("a", &recordingConn{}, cancel))

	o.Disconnect("a")

	req.ErrorIs(ctx.Err(), context.Canceled)
}

func TestConnect_DuplicateSession(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	connect(t, o, "a")

	err := o.Connect("a", &recordingConn{}, nil)
	req.ErrorIs(err, core.ErrDuplicateSession)
	req.Equal(1, o.Registry.Len())
}

func TestChat_WithoutRoomIsNoop(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("b", "r1", "bob"))

	req.NoError(o.Chat("a", "anyone?"))

	req.Empty(alice.events(t, app.EventChatMessage))
	req.Empty(bob.events(t, app.EventChatMessage))
}

func TestChat_BroadcastsToWholeRoomWithTimestamp(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	o.Now = func() time.Time { return time.Unix(1700000000, 250_000_000) }
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	outsider := connect(t, o, "c")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))
	req.NoError(o.Join("c", "r2", "carol"))

	req.NoError(o.Chat("a", "hi bob"))

	want := app.ChatMessage{Username: "alice", Message: "hi bob", Timestamp: 1700000000.25}
	for _, conn := range []*recordingConn{alice, bob} {
		msgs := conn.events(t, app.EventChatMessage)
		req.Len(msgs, 1)
		req.Equal(want, decode[app.ChatMessage](t, msgs[0]))
	}
	req.Empty(outsider.events(t, app.EventChatMessage))
}

func TestScreenShare_ExcludesSender(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	req.NoError(o.ScreenShare("a", true))
	req.NoError(o.ScreenShare("a", false))

	started := bob.events(t, app.EventScreenShareStarted)
	req.Len(started, 1)
	req.Equal(app.ScreenShare{UserID: "a", Username: "alice"}, decode[app.ScreenShare](t, started[0]))
	req.Len(bob.events(t, app.EventScreenShareEnded), 1)
	req.Empty(alice.events(t, app.EventScreenShareStarted))
	req.Empty(alice.events(t, app.EventScreenShareEnded))
}

func TestToggleFeature_AcknowledgesSenderOnly(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	req.NoError(o.ToggleFeature("a", "face_detection", true))

	acks := alice.events(t, app.EventFeatureToggled)
	req.Len(acks, 1)
	req.Equal(app.FeatureToggled{Feature: "face_detection", Enabled: true}, decode[app.FeatureToggled](t, acks[0]))
	req.Empty(bob.events(t, app.EventFeatureToggled))

	a, err := o.Session("a")
	req.NoError(err)
	req.Equal(features(domain.FaceDetection), a.Features)
	b, err := o.Session("b")
	req.NoError(err)
	req.False(b.Features.Any())
}

func TestToggleFeature_UnknownFeatureLeavesFlags(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	req.NoError(o.ToggleFeature("a", "pose_detection", true))
	alice.reset()

	err := o.ToggleFeature("a", "mind_reading", true)
	req.ErrorIs(err, domain.ErrUnknownFeature)

	sess, err := o.Session("a")
	req.NoError(err)
	req.Equal(features(domain.PoseDetection), sess.Features)
	req.Empty(alice.events(t, app.EventFeatureToggled))
}

func TestOnFrame_RelayedToOthersOnly(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	carol := connect(t, o, "c")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))
	req.NoError(o.Join("c", "r1", "carol"))
	frame := pngFrame(t)

	req.NoError(o.OnFrame(context.Background(), "a", frame))

	for _, conn := range []*recordingConn{bob, carol} {
		frames := conn.events(t, app.EventVideoFrame)
		req.Len(frames, 1)
		req.Equal(app.VideoFrame{Frame: frame, UserID: "a", Username: "alice"}, decode[app.VideoFrame](t, frames[0]))
	}
	req.Empty(alice.events(t, app.EventVideoFrame))
}

func TestOnFrame_AnnotatesOnlyForSessionsWithFeatures(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	annotator := mocks.NewMockFrameAnnotator(ctrl)
	o := newTestOrchestrator(annotator)
	alice := connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))
	req.NoError(o.ToggleFeature("a", "face_detection", true))
	frame := pngFrame(t)

	// Only alice's frame reaches the annotator, with alice's flags
	annotator.EXPECT().
		Annotate(gomock.Any(), gomock.Any(), features(domain.FaceDetection)).
		DoAndReturn(func(_ context.Context, img image.Image, _ domain.FeatureSet) (image.Image, error) {
			return img, nil
		}).
		Times(1)

	req.NoError(o.OnFrame(context.Background(), "a", frame))
	req.NoError(o.OnFrame(context.Background(), "b", frame))

	fromAlice := bob.events(t, app.EventVideoFrame)
	req.Len(fromAlice, 1)
	annotated := decode[app.VideoFrame](t, fromAlice[0])
	req.NotEqual(frame, annotated.Frame)
	req.Contains(annotated.Frame, "data:image/jpeg;base64,")

	fromBob := alice.events(t, app.EventVideoFrame)
	req.Len(fromBob, 1)
	req.Equal(frame, decode[app.VideoFrame](t, fromBob[0]).Frame)
}

func TestOnFrame_MalformedFrameIsDropped(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	for _, frame := range []string{"", "garbage", "data:image/jpeg;base64,%%%", "data:image/png;base64,aGVsbG8="} {
		err := o.OnFrame(context.Background(), "a", frame)
		req.ErrorIs(err, core.ErrFrameDecode, frame)
	}
	req.Empty(bob.events(t, app.EventVideoFrame))

	// And the sender's session survives
	req.NoError(o.Chat("a", "still here"))
	req.Len(bob.events(t, app.EventChatMessage), 1)
}

func TestOnFrame_AnnotatorTimeoutDropsFrame(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	annotator := mocks.NewMockFrameAnnotator(ctrl)
	o := newTestOrchestrator(annotator)
	o.AnnotateTimeout = 10 * time.Millisecond
	connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))
	req.NoError(o.ToggleFeature("a", "hand_tracking", true))

	annotator.EXPECT().Annotate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ image.Image, _ domain.FeatureSet) (image.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	err := o.OnFrame(context.Background(), "a", pngFrame(t))
	req.ErrorIs(err, core.ErrAnnotation)
	req.Empty(bob.events(t, app.EventVideoFrame))
}

// stubbornAnnotator never looks at its context.
type stubbornAnnotator struct {
	delay time.Duration
}

func (a stubbornAnnotator) Annotate(_ context.Context, img image.Image, _ domain.FeatureSet) (image.Image, error) {
	time.Sleep(a.delay)
	return img, nil
}

func TestOnFrame_TimeoutHoldsForAnnotatorIgnoringContext(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(stubbornAnnotator{delay: 300 * time.Millisecond})
	o.AnnotateTimeout = 10 * time.Millisecond
	connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))
	req.NoError(o.ToggleFeature("a", "face_detection", true))

	start := time.Now()
	err := o.OnFrame(context.Background(), "a", pngFrame(t))

	// Then the frame is dropped at the deadline, not when the annotator returns
	req.ErrorIs(err, core.ErrAnnotation)
	req.Less(time.Since(start), 200*time.Millisecond)

	// And nothing reaches bob once the annotator finally returns
	time.Sleep(400 * time.Millisecond)
	req.Empty(bob.events(t, app.EventVideoFrame))
}

func TestOnFrame_WithoutRoomIsNoop(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	alice := connect(t, o, "a")

	req.NoError(o.OnFrame(context.Background(), "a", pngFrame(t)))
	req.Empty(alice.events(t, app.EventVideoFrame))
}

func TestBackpressure_SlowMemberLosesFramesButKeepsSession(t *testing.T) {
	req := require.New(t)
	o := newTestOrchestrator(nil)
	connect(t, o, "a")
	bob := connect(t, o, "b")
	req.NoError(o.Join("a", "r1", "alice"))
	req.NoError(o.Join("b", "r1", "bob"))

	bob.full = true
	req.NoError(o.OnFrame(context.Background(), "a", pngFrame(t)))
	req.False(bob.isClosed())

	// A control event that cannot be queued disconnects the member
	req.NoError(o.Chat("a", "hello"))
	req.True(bob.isClosed())
}

func TestConcurrentEvents_KeepRegistryAndDirectoryConsistent(t *testing.T) {
	o := newTestOrchestrator(nil)
	rooms := []domain.RoomID{"r1", "r2", "r3"}
	const sessions = 24
	const steps = 200

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(i)))
			sid := core.SessionID(fmt.Sprintf("s%d", i))
			connected := false
			for step := 0; step < steps; step++ {
				if !connected {
					if err := o.Connect(sid, &recordingConn{}, nil); err != nil {
						t.Error(err)
						return
					}
					connected = true
					continue
				}
				room := rooms[rng.Intn(len(rooms))]
				switch rng.Intn(5) {
				case 0, 1:
					_ = o.Join(sid, room, string(sid))
				case 2:
					_ = o.Leave(sid, room)
				case 3:
					_ = o.Chat(sid, "ping")
				case 4:
					o.Disconnect(sid)
					connected = false
				}
			}
		}(i)
	}
	wg.Wait()

	requireConsistent(t, o)
	total := 0
	for _, info := range o.RoomList() {
		total += info.Users
	}
	require.LessOrEqual(t, total, o.Registry.Len())
}

func TestRandomSequences_InvariantHoldsAfterEveryEvent(t *testing.T) {
	o := newTestOrchestrator(nil)
	rng := rand.New(rand.NewSource(42))
	rooms := []domain.RoomID{"r1", "r2"}
	ids := []core.SessionID{"a", "b", "c", "d"}
	live := map[core.SessionID]bool{}

	for step := 0; step < 500; step++ {
		sid := ids[rng.Intn(len(ids))]
		room := rooms[rng.Intn(len(rooms))]
		if !live[sid] {
			require.NoError(t, o.Connect(sid, &recordingConn{}, nil))
			live[sid] = true
		} else {
			switch rng.Intn(3) {
			case 0:
				require.NoError(t, o.Join(sid, room, "user"))
			case 1:
				require.NoError(t, o.Leave(sid, room))
			case 2:
				o.Disconnect(sid)
				live[sid] = false
			}
		}
		requireConsistent(t, o)
	}
}
