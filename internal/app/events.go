package app

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/VideoChat/internal/core"
)

// Inbound event names.
const (
	EventJoinRoom           = "join_room"
	EventLeaveRoom          = "leave_room"
	EventToggleFeature      = "toggle_ai_feature"
	EventChatMessage        = "chat_message"
	EventVideoFrame         = "video_frame"
	EventScreenShareStarted = "screen_share_started"
	EventScreenShareEnded   = "screen_share_ended"
)

// Outbound-only event names. video_frame, chat_message and the screen share
// events are reused in both directions.
const (
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventFeatureToggled = "ai_feature_toggled"
)

type UserPresence struct {
	Username  string         `json:"username"`
	UserID    core.SessionID `json:"user_id"`
	RoomUsers int            `json:"room_users"`
}

type VideoFrame struct {
	Frame    string         `json:"frame"`
	UserID   core.SessionID `json:"user_id"`
	Username string         `json:"username"`
}

type ScreenShare struct {
	UserID   core.SessionID `json:"user_id"`
	Username string         `json:"username"`
}

type FeatureToggled struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

type ChatMessage struct {
	Username  string  `json:"username"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

// Envelope is the wire framing of every event in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps data into an envelope named event.
func Encode(event string, data any) (core.Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	b, err := json.Marshal(Envelope{Type: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}
